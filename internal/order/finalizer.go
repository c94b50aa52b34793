package order

import (
	"context"
	"errors"
	"time"

	"bloomcart-be/internal/apperr"
	"bloomcart-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IntentCanceler releases processor intents of drafts that will never be paid.
type IntentCanceler interface {
	CancelIntent(ctx context.Context, intentID string) error
}

// Finalizer owns the terminal transitions of drafts.
type Finalizer struct {
	repo    Repository
	intents IntentCanceler
	now     func() time.Time
}

func NewFinalizer(repo Repository, intents IntentCanceler) *Finalizer {
	return &Finalizer{
		repo:    repo,
		intents: intents,
		now:     time.Now,
	}
}

// Promote converts a payment_confirmed draft into a paid Order. At most one
// promotion per draft succeeds; the others get a consistency violation.
func (f *Finalizer) Promote(ctx context.Context, draftID uuid.UUID) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Promote"),
		zap.String("draft_id", draftID.String()),
	)

	o, err := f.repo.PromoteDraft(ctx, draftID)
	switch {
	case err == nil:
		log.Info("order created from draft",
			zap.String("order_number", o.OrderNumber),
			zap.String("total", o.Total.StringFixed(2)),
		)
		return o, nil
	case errors.Is(err, ErrDraftNotFound):
		return nil, apperr.NotFound(err.Error())
	case errors.Is(err, ErrAlreadyPromoted):
		log.Error("promotion rejected, draft already promoted")
		return nil, apperr.Consistency(err.Error())
	case errors.Is(err, ErrDraftDiscarded):
		return nil, apperr.Expired("draft expired or was discarded")
	case errors.Is(err, ErrPaymentNotConfirmed):
		return nil, apperr.Conflict(err.Error())
	}

	log.Error("promotion failed", zap.Error(err))
	return nil, err
}

// ConfirmPayment records that the processor reported the draft's intent paid.
// Repeated confirmations are no-ops; a draft past its expiry is discarded
// instead and can never be promoted.
func (f *Finalizer) ConfirmPayment(ctx context.Context, draftID uuid.UUID) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ConfirmPayment"),
		zap.String("draft_id", draftID.String()),
	)

	ok, err := f.repo.ConfirmDraftPayment(ctx, draftID, f.now())
	if err != nil {
		log.Error("failed to confirm draft payment", zap.Error(err))
		return err
	}
	if ok {
		return nil
	}

	d, err := f.repo.GetDraft(ctx, draftID)
	if errors.Is(err, ErrDraftNotFound) {
		return apperr.NotFound(err.Error())
	}
	if err != nil {
		return err
	}

	switch d.Status {
	case DraftPaymentConfirmed, DraftPromoted:
		return nil
	case DraftDiscarded:
		return apperr.Expired("draft expired or was discarded")
	}

	// still awaiting payment, so it is past expiry
	if _, err := f.repo.DiscardDraft(ctx, draftID, "expired"); err != nil {
		log.Error("failed to discard expired draft", zap.Error(err))
		return err
	}
	log.Warn("payment confirmed after draft expiry, draft discarded")
	return apperr.Expired("draft expired before payment was confirmed")
}

// Discard tombstones a draft that will never be promoted. Discarding an
// already discarded draft is a no-op.
func (f *Finalizer) Discard(ctx context.Context, draftID uuid.UUID, reason string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Discard"),
		zap.String("draft_id", draftID.String()),
		zap.String("reason", reason),
	)

	ok, err := f.repo.DiscardDraft(ctx, draftID, reason)
	if err != nil {
		log.Error("failed to discard draft", zap.Error(err))
		return err
	}
	if ok {
		log.Info("draft discarded")
		return nil
	}

	d, err := f.repo.GetDraft(ctx, draftID)
	if errors.Is(err, ErrDraftNotFound) {
		return apperr.NotFound(err.Error())
	}
	if err != nil {
		return err
	}

	switch d.Status {
	case DraftDiscarded:
		return nil
	case DraftPromoted:
		return apperr.Conflict("draft already promoted to order " + d.OrderNumber)
	}
	return apperr.Conflict("draft payment already confirmed")
}

// DiscardExpired sweeps drafts whose payment window closed and releases their
// intents at the processor.
func (f *Finalizer) DiscardExpired(ctx context.Context, now time.Time) (int, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "DiscardExpired"),
	)

	expired, err := f.repo.DiscardExpiredDrafts(ctx, now)
	if err != nil {
		log.Error("failed to sweep expired drafts", zap.Error(err))
		return 0, err
	}

	for _, d := range expired {
		if d.IntentID == "" || f.intents == nil {
			continue
		}
		if err := f.intents.CancelIntent(ctx, d.IntentID); err != nil {
			log.Warn("failed to cancel intent of expired draft",
				zap.String("draft_id", d.ID.String()),
				zap.String("intent_id", d.IntentID),
				zap.Error(err),
			)
		}
	}

	if len(expired) > 0 {
		log.Info("expired drafts discarded", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}
