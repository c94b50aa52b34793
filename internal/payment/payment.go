package payment

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Gateway is the external card processor.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	VerifySignature(r *http.Request) error
}

// Drafts looks up and confirms the draft owning an intent.
type Drafts interface {
	DraftByIntent(ctx context.Context, intentID string) (*DraftRef, error)
	MarkPaymentConfirmed(ctx context.Context, draftID uuid.UUID) error
}

// Finalizer turns a confirmed draft into an order, or tombstones it.
type Finalizer interface {
	Promote(ctx context.Context, draftID uuid.UUID) (orderNumber string, err error)
	Discard(ctx context.Context, draftID uuid.UUID, reason string) error
}
