package checkout

import (
	"strconv"
	"strings"
	"time"

	"bloomcart-be/internal/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DeliveryMode string

const (
	ModePickup     DeliveryMode = "pickup"
	ModeDelivery   DeliveryMode = "delivery"
	ModeThirdParty DeliveryMode = "third_party"
)

func (m DeliveryMode) Valid() bool {
	switch m {
	case ModePickup, ModeDelivery, ModeThirdParty:
		return true
	}
	return false
}

type TimeSlot string

const (
	SlotMorning   TimeSlot = "09:00-12:00"
	SlotMidday    TimeSlot = "12:00-15:00"
	SlotAfternoon TimeSlot = "15:00-18:00"
	SlotEvening   TimeSlot = "18:00-21:00"
)

var TimeSlots = []TimeSlot{SlotMorning, SlotMidday, SlotAfternoon, SlotEvening}

func (t TimeSlot) Valid() bool {
	for _, s := range TimeSlots {
		if s == t {
			return true
		}
	}
	return false
}

type ProductKind string

const (
	KindFlower     ProductKind = "flower"
	KindComplement ProductKind = "complement"
	KindBreakfast  ProductKind = "breakfast"
)

const DateLayout = "2006-01-02"

type CustomerInfo struct {
	FullName   string `json:"fullName" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required"`
	NationalID string `json:"nationalId" validate:"required"`
}

func (c CustomerInfo) normalized() CustomerInfo {
	return CustomerInfo{
		FullName:   strings.TrimSpace(c.FullName),
		Email:      strings.TrimSpace(c.Email),
		Phone:      strings.TrimSpace(c.Phone),
		NationalID: strings.TrimSpace(c.NationalID),
	}
}

type DeliveryInfo struct {
	Mode           DeliveryMode `json:"mode" validate:"required,oneof=pickup delivery third_party"`
	DistrictID     string       `json:"districtId,omitempty" validate:"required_unless=Mode pickup"`
	Address        string       `json:"address,omitempty" validate:"required_unless=Mode pickup"`
	Reference      string       `json:"reference,omitempty"`
	RecipientName  string       `json:"recipientName,omitempty" validate:"required_if=Mode third_party"`
	RecipientPhone string       `json:"recipientPhone,omitempty" validate:"required_if=Mode third_party"`
	Date           string       `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot       TimeSlot     `json:"timeSlot" validate:"required,timeslot"`
	Dedication     string       `json:"dedication,omitempty" validate:"max=300"`
}

// Normalize trims input and drops address fields for pickup, whatever the client sent.
func (d DeliveryInfo) Normalize() DeliveryInfo {
	out := DeliveryInfo{
		Mode:           d.Mode,
		DistrictID:     strings.TrimSpace(d.DistrictID),
		Address:        strings.TrimSpace(d.Address),
		Reference:      strings.TrimSpace(d.Reference),
		RecipientName:  strings.TrimSpace(d.RecipientName),
		RecipientPhone: strings.TrimSpace(d.RecipientPhone),
		Date:           strings.TrimSpace(d.Date),
		TimeSlot:       TimeSlot(strings.TrimSpace(string(d.TimeSlot))),
		Dedication:     strings.TrimSpace(d.Dedication),
	}
	if out.Mode == ModePickup {
		out.DistrictID = ""
		out.Address = ""
		out.Reference = ""
	}
	return out
}

// CartLine is read-only here: the cart collaborator owns quantities.
type CartLine struct {
	Kind      ProductKind     `json:"kind"`
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"imageUrl,omitempty"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartSnapshot is the cart as captured when the customer entered checkout.
type CartSnapshot struct {
	Lines      []CartLine `json:"lines"`
	CapturedAt time.Time  `json:"capturedAt"`
}

func (c CartSnapshot) Validate() error {
	if len(c.Lines) == 0 {
		return apperr.Validation("cart", "cart is empty")
	}
	fields := apperr.FieldErrors{}
	for i, l := range c.Lines {
		switch l.Kind {
		case KindFlower, KindComplement, KindBreakfast:
		default:
			fields.Add(lineField(i, "kind"), "must be one of: flower complement breakfast")
		}
		if strings.TrimSpace(l.ProductID) == "" {
			fields.Add(lineField(i, "productId"), "is required")
		}
		if l.Quantity < 1 {
			fields.Add(lineField(i, "quantity"), "must be at least 1")
		}
		if l.UnitPrice.IsNegative() {
			fields.Add(lineField(i, "unitPrice"), "must not be negative")
		}
	}
	return fields.Err()
}

type Step string

const (
	StepDelivery     Step = "delivery"
	StepAddress      Step = "address"
	StepPayment      Step = "payment"
	StepProcessing   Step = "processing"
	StepConfirmation Step = "confirmation"
)

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Session is one customer's checkout attempt. It lives only in the session
// store and is replaced by a draft or an order once payment starts.
type Session struct {
	ID uuid.UUID `json:"id"`
	// IdempotencyKey guards draft and order creation for this attempt.
	IdempotencyKey uuid.UUID          `json:"idempotencyKey"`
	Step           Step               `json:"step"`
	Mode           DeliveryMode       `json:"mode,omitempty"`
	Method         Method             `json:"method,omitempty"`
	Customer       CustomerInfo       `json:"customer"`
	Delivery       DeliveryInfo       `json:"delivery"`
	Cart           CartSnapshot       `json:"cart"`
	Totals         Totals             `json:"totals"`
	Errors         apperr.FieldErrors `json:"errors,omitempty"`

	// PaymentPending is set when a method is selected and holds the session
	// at the payment step until the draft or order is attached or released.
	PaymentPending bool `json:"paymentPending,omitempty"`

	DraftID     *uuid.UUID `json:"draftId,omitempty"`
	DraftNumber string     `json:"draftNumber,omitempty"`
	OrderNumber string     `json:"orderNumber,omitempty"`
	ClearCart   bool       `json:"clearCart"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PaymentStarted reports whether a draft or an order exists, or is being
// created, for the attempt.
func (s *Session) PaymentStarted() bool {
	return s.PaymentPending || s.DraftID != nil || s.OrderNumber != ""
}

func lineField(i int, name string) string {
	return "cart.lines[" + strconv.Itoa(i) + "]." + name
}
