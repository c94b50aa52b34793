package order

import (
	"context"
	"errors"

	"bloomcart-be/internal/payment"

	"github.com/google/uuid"
)

// PaymentHooks exposes drafts and the finalizer to the payment adapter.
type PaymentHooks struct {
	repo      Repository
	finalizer *Finalizer
}

func NewPaymentHooks(repo Repository, finalizer *Finalizer) *PaymentHooks {
	return &PaymentHooks{repo: repo, finalizer: finalizer}
}

func (h *PaymentHooks) DraftByIntent(ctx context.Context, intentID string) (*payment.DraftRef, error) {
	d, err := h.repo.DraftByIntent(ctx, intentID)
	if errors.Is(err, ErrDraftNotFound) {
		return nil, payment.ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment.DraftRef{
		ID:          d.ID,
		Total:       d.Total,
		Currency:    d.Currency,
		Promoted:    d.Status == DraftPromoted,
		OrderNumber: d.OrderNumber,
	}, nil
}

func (h *PaymentHooks) MarkPaymentConfirmed(ctx context.Context, draftID uuid.UUID) error {
	return h.finalizer.ConfirmPayment(ctx, draftID)
}

func (h *PaymentHooks) Promote(ctx context.Context, draftID uuid.UUID) (string, error) {
	o, err := h.finalizer.Promote(ctx, draftID)
	if err != nil {
		return "", err
	}
	return o.OrderNumber, nil
}

func (h *PaymentHooks) Discard(ctx context.Context, draftID uuid.UUID, reason string) error {
	return h.finalizer.Discard(ctx, draftID, reason)
}

var (
	_ payment.Drafts    = (*PaymentHooks)(nil)
	_ payment.Finalizer = (*PaymentHooks)(nil)
)
