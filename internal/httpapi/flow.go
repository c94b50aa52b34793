package httpapi

import (
	"context"

	"bloomcart-be/internal/apperr"
	"bloomcart-be/internal/checkout"
	"bloomcart-be/internal/logger"
	"bloomcart-be/internal/order"
	"bloomcart-be/internal/storefront"
	"bloomcart-be/internal/wallet"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// paymentStart is what the customer needs to continue paying.
type paymentStart struct {
	Session *checkout.Session `json:"session"`

	// card
	Draft *order.DraftResult `json:"draft,omitempty"`

	// wallet
	Order        *orderView                 `json:"order,omitempty"`
	Channel      *storefront.PaymentChannel `json:"channel,omitempty"`
	Instructions []string                   `json:"instructions,omitempty"`
}

// checkoutFlow ties the checkout session to the draft or order it pays with.
type checkoutFlow struct {
	sessions   checkout.Service
	drafts     Drafts
	finalizer  DraftDiscarder
	wallet     WalletPayments
	storefront storefront.Client
}

// StartPayment records the chosen method and branches once on it: card
// checkouts get a draft and a payment intent, wallet checkouts get an order.
func (f *checkoutFlow) StartPayment(ctx context.Context, id uuid.UUID, p checkout.Payment) (*paymentStart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "flow"),
		zap.String("method", "StartPayment"),
		zap.String("session_id", id.String()),
		zap.String("payment_method", string(p.Method())),
	)

	switch p := p.(type) {
	case checkout.CardPayment:
		session, err := f.sessions.SelectPayment(ctx, id, p)
		if err != nil {
			return nil, err
		}

		draft, err := f.drafts.CreateDraft(ctx, session)
		if err != nil {
			f.release(ctx, id)
			return nil, err
		}

		session, err = f.sessions.AttachDraft(ctx, id, draft.DraftID, draft.DraftNumber)
		if err != nil {
			log.Error("failed to attach draft to session", zap.Error(err))
			return nil, err
		}
		return &paymentStart{Session: session, Draft: draft}, nil

	case checkout.WalletPayment:
		current, err := f.sessions.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.DraftID != nil {
			// switching away from card: the draft must never be promoted
			if err := f.finalizer.Discard(ctx, *current.DraftID, "payment method changed"); err != nil {
				return nil, err
			}
			if _, err := f.sessions.DetachDraft(ctx, id); err != nil {
				return nil, err
			}
		}

		session, err := f.sessions.SelectPayment(ctx, id, p)
		if err != nil {
			return nil, err
		}

		o, err := f.wallet.CreateOrder(ctx, session)
		if err != nil {
			f.release(ctx, id)
			return nil, err
		}

		session, err = f.sessions.AttachOrder(ctx, id, o.OrderNumber)
		if err != nil {
			log.Error("failed to attach order to session", zap.Error(err))
			return nil, err
		}

		channel, err := f.storefront.PaymentChannel(ctx, string(o.Method))
		if err != nil {
			log.Warn("payment channel unavailable, sending generic instructions", zap.Error(err))
			channel = nil
		}

		return &paymentStart{
			Session:      session,
			Order:        newOrderView(o),
			Channel:      channel,
			Instructions: wallet.OrderInstructions(o, channel),
		}, nil
	}

	return nil, apperr.Validation("paymentMethod", "unsupported payment method")
}

// release reopens the earlier steps after payment creation failed.
func (f *checkoutFlow) release(ctx context.Context, id uuid.UUID) {
	if _, err := f.sessions.ReleasePayment(ctx, id); err != nil {
		logger.FromCtx(ctx).Warn("could not release checkout after failed payment start",
			zap.String("session_id", id.String()),
			zap.Error(err),
		)
	}
}

// Refresh returns the session, first catching up with a card draft that was
// promoted by the gateway callback since the customer last looked.
func (f *checkoutFlow) Refresh(ctx context.Context, id uuid.UUID) (*checkout.Session, error) {
	session, err := f.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Step != checkout.StepPayment || session.DraftID == nil {
		return session, nil
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "flow"),
		zap.String("method", "Refresh"),
		zap.String("session_id", id.String()),
		zap.String("draft_id", session.DraftID.String()),
	)

	draft, err := f.drafts.Status(ctx, *session.DraftID)
	if err != nil {
		log.Warn("could not read draft status", zap.Error(err))
		return session, nil
	}

	switch draft.Status {
	case order.DraftPromoted:
		confirmed, err := f.sessions.MarkConfirmed(ctx, id, draft.OrderNumber)
		if err != nil {
			log.Warn("could not move checkout to confirmation", zap.Error(err))
			return session, nil
		}
		return confirmed, nil
	case order.DraftDiscarded:
		// the customer may start the payment again with a fresh draft
		detached, err := f.sessions.DetachDraft(ctx, id)
		if err != nil {
			log.Warn("could not detach discarded draft", zap.Error(err))
			return session, nil
		}
		return detached, nil
	}
	return session, nil
}

// Discard abandons the checkout. An unpaid draft is tombstoned and a pending
// wallet settle task is cancelled; placed orders stay.
func (f *checkoutFlow) Discard(ctx context.Context, id uuid.UUID) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "flow"),
		zap.String("method", "Discard"),
		zap.String("session_id", id.String()),
	)

	session, err := f.sessions.Get(ctx, id)
	if err != nil {
		return err
	}

	if session.DraftID != nil {
		err := f.finalizer.Discard(ctx, *session.DraftID, "checkout abandoned")
		if err != nil && !apperr.Is(err, apperr.KindConflict) && !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
	}
	if session.OrderNumber != "" && f.wallet.Cancel(session.OrderNumber) {
		log.Info("pending settle task cancelled", zap.String("order_number", session.OrderNumber))
	}

	return f.sessions.Discard(ctx, id)
}
