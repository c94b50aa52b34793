package payment

import (
	"context"
	"errors"
	"fmt"

	"bloomcart-be/internal/apperr"
	"bloomcart-be/internal/logger"

	"go.uber.org/zap"
)

// Adapter wraps the card processor for the card branch of checkout.
type Adapter struct {
	gateway   Gateway
	drafts    Drafts
	finalizer Finalizer
}

func NewAdapter(gateway Gateway, drafts Drafts, finalizer Finalizer) *Adapter {
	return &Adapter{
		gateway:   gateway,
		drafts:    drafts,
		finalizer: finalizer,
	}
}

func (a *Adapter) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if !req.Amount.IsPositive() {
		return nil, apperr.Validation("amount", "must be positive")
	}

	intent, err := a.gateway.CreateIntent(ctx, req)
	if err != nil {
		return nil, apperr.Gateway("payment initiation failed", err)
	}
	if intent.Status.Dead() {
		return nil, apperr.Gateway("payment initiation failed", fmt.Errorf("intent %s is %s", intent.ID, intent.Status))
	}
	return intent, nil
}

// CancelIntent releases an intent whose draft was abandoned before payment.
func (a *Adapter) CancelIntent(ctx context.Context, intentID string) error {
	if err := a.gateway.CancelIntent(ctx, intentID); err != nil {
		return apperr.Gateway("payment cancellation failed", err)
	}
	return nil
}

// ConfirmCallback settles the draft owning intentID once the processor reports
// a final status. The intent is re-read from the processor; callback payloads
// are never trusted. Safe to call any number of times for the same intent.
func (a *Adapter) ConfirmCallback(ctx context.Context, intentID string) (*ConfirmResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ConfirmCallback"),
		zap.String("intent_id", intentID),
	)

	intent, err := a.gateway.GetIntent(ctx, intentID)
	if err != nil {
		log.Error("failed to read intent from gateway", zap.Error(err))
		return nil, apperr.Gateway("payment confirmation failed", err)
	}

	draft, err := a.drafts.DraftByIntent(ctx, intentID)
	if errors.Is(err, ErrDraftNotFound) {
		log.Warn("callback for unknown intent")
		return nil, apperr.NotFound(err.Error())
	}
	if err != nil {
		log.Error("failed to load draft", zap.Error(err))
		return nil, err
	}

	log = log.With(
		zap.String("draft_id", draft.ID.String()),
		zap.String("intent_status", string(intent.Status)),
	)

	result := &ConfirmResult{
		IntentID: intentID,
		DraftID:  draft.ID,
		Status:   intent.Status,
	}

	switch {
	case intent.Status.Paid():
		if draft.Promoted {
			log.Info("draft already promoted, ignoring repeated callback",
				zap.String("order_number", draft.OrderNumber))
			result.Outcome = OutcomeAlreadyPromoted
			result.OrderNumber = draft.OrderNumber
			return result, nil
		}

		if !intent.Amount.Equal(draft.Total) || intent.Currency != draft.Currency {
			log.Error("intent amount does not match draft total, manual reconciliation required",
				zap.String("intent_amount", intent.Amount.StringFixed(2)),
				zap.String("intent_currency", intent.Currency),
				zap.String("draft_total", draft.Total.StringFixed(2)),
				zap.String("draft_currency", draft.Currency),
			)
			return nil, apperr.Consistency("payment amount does not match order total")
		}

		if err := a.drafts.MarkPaymentConfirmed(ctx, draft.ID); err != nil {
			if apperr.Is(err, apperr.KindExpired) {
				// money moved for a dead draft; refunds are handled outside checkout
				log.Error("paid intent for discarded draft, refund required", zap.Error(err))
			}
			return nil, err
		}

		number, err := a.finalizer.Promote(ctx, draft.ID)
		if apperr.Is(err, apperr.KindConsistency) {
			// a concurrent callback promoted it first
			current, lookupErr := a.drafts.DraftByIntent(ctx, intentID)
			if lookupErr == nil && current.Promoted {
				result.Outcome = OutcomeAlreadyPromoted
				result.OrderNumber = current.OrderNumber
				return result, nil
			}
			return nil, err
		}
		if err != nil {
			log.Error("promotion failed", zap.Error(err))
			return nil, err
		}

		log.Info("draft promoted", zap.String("order_number", number))
		result.Outcome = OutcomePromoted
		result.OrderNumber = number
		return result, nil

	case intent.Status.Dead():
		if draft.Promoted {
			log.Error("dead intent for promoted draft, manual reconciliation required",
				zap.String("order_number", draft.OrderNumber))
			return nil, apperr.Consistency("payment failed after order was placed")
		}
		if err := a.finalizer.Discard(ctx, draft.ID, "payment "+string(intent.Status)); err != nil {
			log.Error("failed to discard draft", zap.Error(err))
			return nil, err
		}
		log.Info("draft discarded")
		result.Outcome = OutcomeDiscarded
		return result, nil

	case intent.Status == IntentCreated:
		result.Outcome = OutcomePending
		return result, nil
	}

	log.Warn("unknown intent status")
	return nil, apperr.Gateway("payment confirmation failed", fmt.Errorf("unknown intent status %q", intent.Status))
}
