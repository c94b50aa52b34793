package order

import (
	"fmt"
	"time"

	"bloomcart-be/internal/checkout"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

func SnapshotFromSession(s *checkout.Session, totals checkout.Totals) Snapshot {
	return Snapshot{
		Customer: s.Customer,
		Delivery: s.Delivery,
		Lines:    append([]checkout.CartLine(nil), s.Cart.Lines...),
		Subtotal: totals.Subtotal,
		Shipping: totals.Shipping,
	}
}

// orderFromDraft builds the paid order a confirmed card draft turns into.
func orderFromDraft(d *Draft, orderNumber string) (*Order, error) {
	var o Order
	if err := copier.Copy(&o, d); err != nil {
		return nil, fmt.Errorf("copy draft %s: %w", d.ID, err)
	}

	draftID := d.ID
	o.ID = uuid.New()
	o.OrderNumber = orderNumber
	o.DraftID = &draftID
	o.Snapshot.Lines = append([]checkout.CartLine(nil), d.Snapshot.Lines...)
	o.Method = checkout.MethodCard
	o.PaymentStatus = PaymentPaid
	o.FulfillmentStatus = FulfillmentReceived
	o.Dedication = d.Snapshot.Delivery.Dedication
	o.CreatedAt = time.Time{}
	o.UpdatedAt = time.Time{}
	return &o, nil
}

func resultFromDraft(d *Draft) *DraftResult {
	return &DraftResult{
		DraftID:     d.ID,
		DraftNumber: d.DraftNumber,
		IntentID:    d.IntentID,
		ClientToken: d.ClientToken,
		Total:       d.Total,
		Currency:    d.Currency,
		Status:      d.Status,
	}
}
