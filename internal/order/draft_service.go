package order

import (
	"context"
	"errors"
	"time"

	"bloomcart-be/internal/apperr"
	"bloomcart-be/internal/checkout"
	"bloomcart-be/internal/logger"
	"bloomcart-be/internal/payment"
	"bloomcart-be/internal/storefront"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Intents is the processor side of a draft: its intent is created with the
// draft id as idempotency key and cancelled when the draft is dropped.
type Intents interface {
	CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
}

// intentGrace is how long a draft may wait for its intent before a retry
// treats the creating call as dead and requests the intent itself.
const intentGrace = 30 * time.Second

type Pricer interface {
	Price(ctx context.Context, lines []checkout.CartLine, delivery checkout.DeliveryInfo) (checkout.Totals, error)
}

// DraftService pre-commits card checkouts as drafts before the customer pays.
type DraftService struct {
	repo     Repository
	payments Intents
	pricer   Pricer
	currency string
	ttl      time.Duration
	now      func() time.Time
}

func NewDraftService(repo Repository, payments Intents, pricer Pricer, currency string, ttl time.Duration) *DraftService {
	return &DraftService{
		repo:     repo,
		payments: payments,
		pricer:   pricer,
		currency: currency,
		ttl:      ttl,
		now:      time.Now,
	}
}

// CreateDraft stores a snapshot of the session and requests a payment intent
// for the server-computed total. Repeated calls for the same checkout attempt
// return the same draft and intent while the session still prices to it; a
// draft left behind by changed delivery details is discarded and replaced.
func (s *DraftService) CreateDraft(ctx context.Context, session *checkout.Session) (*DraftResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateDraft"),
		zap.String("checkout_id", session.ID.String()),
	)

	if session.Step != checkout.StepPayment {
		return nil, apperr.Conflict("checkout is not at the payment step")
	}
	if session.Method != checkout.MethodCard {
		return nil, apperr.Conflict("drafts are only created for card payments")
	}

	if _, err := s.repo.OrderByIdempotencyKey(ctx, session.IdempotencyKey); err == nil {
		return nil, apperr.Conflict(ErrOrderExists.Error())
	} else if !errors.Is(err, ErrOrderNotFound) {
		log.Error("failed to check existing order", zap.Error(err))
		return nil, err
	}

	totals, err := s.price(ctx, session)
	if err != nil {
		return nil, err
	}
	if !totals.Total.Equal(session.Totals.Total) {
		log.Warn("session total differs from recomputed total, charging recomputed",
			zap.String("session_total", session.Totals.Total.StringFixed(2)),
			zap.String("total", totals.Total.StringFixed(2)),
		)
	}

	if existing, err := s.liveDraft(ctx, session, totals); err != nil || existing != nil {
		return existing, err
	}

	number, err := s.repo.NextDraftNumber(ctx)
	if err != nil {
		log.Error("failed to allocate draft number", zap.Error(err))
		return nil, err
	}

	draft := &Draft{
		ID:             uuid.New(),
		DraftNumber:    number,
		IdempotencyKey: session.IdempotencyKey,
		CheckoutID:     session.ID,
		Snapshot:       SnapshotFromSession(session, totals),
		Total:          totals.Total,
		Currency:       s.currency,
		Status:         DraftAwaitingPayment,
		ExpiresAt:      s.now().Add(s.ttl),
	}

	if err := s.repo.InsertDraft(ctx, draft); err != nil {
		if errors.Is(err, ErrDraftExists) {
			// lost the race to a concurrent call for the same attempt
			existing, lookupErr := s.liveDraft(ctx, session, totals)
			if lookupErr != nil || existing != nil {
				return existing, lookupErr
			}
			return nil, apperr.Conflict("payment initiation in progress")
		}
		log.Error("failed to insert draft", zap.Error(err))
		return nil, err
	}

	return s.requestIntent(ctx, draft, session)
}

func (s *DraftService) price(ctx context.Context, session *checkout.Session) (checkout.Totals, error) {
	totals, err := s.pricer.Price(ctx, session.Cart.Lines, session.Delivery)
	if errors.Is(err, storefront.ErrDistrictNotFound) || errors.Is(err, checkout.ErrDistrictRequired) {
		return checkout.Totals{}, apperr.Validation("delivery.districtId", "unknown district")
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to price checkout",
			zap.String("layer", "service"),
			zap.String("checkout_id", session.ID.String()),
			zap.Error(err),
		)
		return checkout.Totals{}, err
	}
	return totals, nil
}

// requestIntent asks the processor for the draft's intent and attaches it.
// The draft id is the idempotency key, so asking again for the same draft
// returns the intent created before.
func (s *DraftService) requestIntent(ctx context.Context, draft *Draft, session *checkout.Session) (*DraftResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "requestIntent"),
		zap.String("draft_number", draft.DraftNumber),
	)

	intent, err := s.payments.CreateIntent(ctx, payment.IntentRequest{
		Amount:   draft.Total,
		Currency: draft.Currency,
		Customer: payment.Customer{
			Name:  session.Customer.FullName,
			Email: session.Customer.Email,
			Phone: session.Customer.Phone,
		},
		Reference:      draft.DraftNumber,
		IdempotencyKey: draft.ID.String(),
		ExpiresAt:      draft.ExpiresAt,
	})
	if err != nil {
		log.Warn("intent creation failed, discarding draft", zap.Error(err))
		s.drop(ctx, draft.ID, "", "payment initiation failed")
		if !apperr.Is(err, apperr.KindGateway) {
			err = apperr.Gateway("payment initiation failed", err)
		}
		return nil, err
	}

	if err := s.repo.AttachIntent(ctx, draft.ID, intent.ID, intent.ClientToken); err != nil {
		// a concurrent retry may have attached the same intent already
		if d, getErr := s.repo.GetDraft(ctx, draft.ID); getErr == nil && d.IntentID == intent.ID {
			return resultFromDraft(d), nil
		}
		log.Error("failed to attach intent to draft, releasing it",
			zap.String("intent_id", intent.ID),
			zap.Error(err),
		)
		s.drop(ctx, draft.ID, intent.ID, "intent could not be recorded")
		return nil, err
	}
	draft.IntentID = intent.ID
	draft.ClientToken = intent.ClientToken

	log.Info("draft created",
		zap.String("intent_id", intent.ID),
		zap.String("total", draft.Total.StringFixed(2)),
	)
	return resultFromDraft(draft), nil
}

// drop discards a draft that will never be paid and cancels its intent.
// Failures are logged; the expiry sweep and the processor's own intent
// expiry are the fallback.
func (s *DraftService) drop(ctx context.Context, draftID uuid.UUID, intentID, reason string) bool {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("draft_id", draftID.String()),
		zap.String("reason", reason),
	)

	discarded, err := s.repo.DiscardDraft(ctx, draftID, reason)
	if err != nil {
		log.Error("failed to discard draft", zap.Error(err))
		return false
	}
	if discarded && intentID != "" {
		if err := s.payments.CancelIntent(ctx, intentID); err != nil {
			log.Warn("failed to cancel intent", zap.String("intent_id", intentID), zap.Error(err))
		}
	}
	return discarded
}

// liveDraft returns the result of the attempt's live draft, or nil when there
// is none. A draft priced for other delivery details than the session has now
// is discarded so a fresh one is created. A draft still waiting for its
// intent is a conflict while the creating call may be running, and gets its
// intent requested here once that call is presumed dead.
func (s *DraftService) liveDraft(ctx context.Context, session *checkout.Session, totals checkout.Totals) (*DraftResult, error) {
	d, err := s.repo.LiveDraftByIdempotencyKey(ctx, session.IdempotencyKey)
	if errors.Is(err, ErrDraftNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if d.Status != DraftAwaitingPayment {
		// already paid; the promotion decides what happens to it
		return resultFromDraft(d), nil
	}

	if !matchesSession(d, session, totals) {
		logger.FromCtx(ctx).Warn("live draft no longer matches checkout, replacing it",
			zap.String("layer", "service"),
			zap.String("draft_number", d.DraftNumber),
			zap.String("draft_total", d.Total.StringFixed(2)),
			zap.String("total", totals.Total.StringFixed(2)),
		)
		if !s.drop(ctx, d.ID, d.IntentID, "checkout changed") {
			return nil, apperr.Consistency("draft total does not match the checkout total")
		}
		return nil, nil
	}

	if d.IntentID == "" {
		if s.now().Sub(d.CreatedAt) < intentGrace {
			return nil, apperr.Conflict("payment initiation in progress")
		}
		return s.requestIntent(ctx, d, session)
	}
	return resultFromDraft(d), nil
}

func matchesSession(d *Draft, session *checkout.Session, totals checkout.Totals) bool {
	return d.Total.Equal(totals.Total) &&
		d.Snapshot.Delivery == session.Delivery &&
		d.Snapshot.Customer == session.Customer
}

// Status returns the draft a checkout attempt is paying for.
func (s *DraftService) Status(ctx context.Context, draftID uuid.UUID) (*Draft, error) {
	d, err := s.repo.GetDraft(ctx, draftID)
	if errors.Is(err, ErrDraftNotFound) {
		return nil, apperr.NotFound(err.Error())
	}
	return d, err
}
