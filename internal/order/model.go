package order

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"bloomcart-be/internal/checkout"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DraftStatus string

const (
	DraftAwaitingPayment  DraftStatus = "awaiting_payment"
	DraftPaymentConfirmed DraftStatus = "payment_confirmed"
	DraftPromoted         DraftStatus = "promoted"
	DraftDiscarded        DraftStatus = "discarded"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type FulfillmentStatus string

const (
	FulfillmentReceived   FulfillmentStatus = "received"
	FulfillmentPreparing  FulfillmentStatus = "preparing"
	FulfillmentDispatched FulfillmentStatus = "dispatched"
	FulfillmentDelivered  FulfillmentStatus = "delivered"
	FulfillmentCancelled  FulfillmentStatus = "cancelled"
)

// Snapshot freezes what the customer checked out. Stored as JSONB.
type Snapshot struct {
	Customer checkout.CustomerInfo `json:"customer"`
	Delivery checkout.DeliveryInfo `json:"delivery"`
	Lines    []checkout.CartLine   `json:"lines"`
	Subtotal decimal.Decimal       `json:"subtotal"`
	Shipping decimal.Decimal       `json:"shipping"`
}

func (s Snapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Snapshot) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		*s = Snapshot{}
		return nil
	}
	return errors.New("order: unsupported snapshot column type")
}

// Draft is a card checkout that started payment but is not confirmed paid.
// Abandoned drafts are never billed and never listed as orders.
type Draft struct {
	ID             uuid.UUID
	DraftNumber    string
	IdempotencyKey uuid.UUID
	CheckoutID     uuid.UUID
	Snapshot       Snapshot
	Total          decimal.Decimal
	Currency       string
	IntentID       string
	ClientToken    string
	Status         DraftStatus
	OrderNumber    string
	FailureReason  string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Order struct {
	ID                uuid.UUID
	OrderNumber       string
	DraftID           *uuid.UUID
	IdempotencyKey    uuid.UUID
	CheckoutID        uuid.UUID
	Snapshot          Snapshot
	Total             decimal.Decimal
	Currency          string
	Method            checkout.Method
	PaymentStatus     PaymentStatus
	FulfillmentStatus FulfillmentStatus
	Notes             string
	Dedication        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PaymentProof is the latest proof image for a wallet order. Re-uploads replace it.
type PaymentProof struct {
	OrderNumber string
	URL         string
	ContentType string
	Size        int64
	UploadedAt  time.Time
}

// DraftResult is handed to the client to continue the card payment.
type DraftResult struct {
	DraftID     uuid.UUID       `json:"draftId"`
	DraftNumber string          `json:"draftNumber"`
	IntentID    string          `json:"intentId"`
	ClientToken string          `json:"clientToken"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	Status      DraftStatus     `json:"status"`
}

// ExpiredDraft identifies a draft swept by DiscardExpired.
type ExpiredDraft struct {
	ID       uuid.UUID
	IntentID string
}
