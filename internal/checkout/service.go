package checkout

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"bloomcart-be/internal/apperr"
	"bloomcart-be/internal/logger"
	"bloomcart-be/internal/storefront"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	Start(ctx context.Context, cart CartSnapshot) (*Session, error)
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	SubmitDelivery(ctx context.Context, id uuid.UUID, customer CustomerInfo, mode DeliveryMode) (*Session, error)
	SubmitAddress(ctx context.Context, id uuid.UUID, delivery DeliveryInfo) (*Session, error)
	Back(ctx context.Context, id uuid.UUID) (*Session, error)
	SelectPayment(ctx context.Context, id uuid.UUID, p Payment) (*Session, error)
	ReleasePayment(ctx context.Context, id uuid.UUID) (*Session, error)
	AttachDraft(ctx context.Context, id uuid.UUID, draftID uuid.UUID, draftNumber string) (*Session, error)
	DetachDraft(ctx context.Context, id uuid.UUID) (*Session, error)
	AttachOrder(ctx context.Context, id uuid.UUID, orderNumber string) (*Session, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (*Session, error)
	MarkConfirmed(ctx context.Context, id uuid.UUID, orderNumber string) (*Session, error)
	Discard(ctx context.Context, id uuid.UUID) error
}

type service struct {
	store  Store
	pricer *Pricer
	loc    *time.Location
	now    func() time.Time

	// serializes read-modify-write of one session inside this process
	locks [32]sync.Mutex
}

func NewService(store Store, pricer *Pricer, loc *time.Location) Service {
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		store:  store,
		pricer: pricer,
		loc:    loc,
		now:    time.Now,
	}
}

func (s *service) Start(ctx context.Context, cart CartSnapshot) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Start"),
		zap.Int("line_count", len(cart.Lines)),
	)

	if len(cart.Lines) == 0 {
		log.Warn("checkout started with empty cart")
		return nil, apperr.Validation("cart", ErrEmptyCart.Error())
	}
	if err := cart.Validate(); err != nil {
		log.Warn("invalid cart snapshot", zap.Error(err))
		return nil, err
	}

	now := s.now()
	if cart.CapturedAt.IsZero() {
		cart.CapturedAt = now
	}

	totals, _ := ComputeTotal(cart.Lines, ModePickup, nil)

	session := &Session{
		ID:             uuid.New(),
		IdempotencyKey: uuid.New(),
		Step:           StepDelivery,
		Cart:           cart,
		Totals:         totals,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Save(ctx, session); err != nil {
		log.Error("failed to save checkout session", zap.Error(err))
		return nil, err
	}

	log.Info("checkout session started", zap.String("session_id", session.ID.String()))
	return session, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	session, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, apperr.NotFound(err.Error())
	}
	return session, err
}

func (s *service) SubmitDelivery(ctx context.Context, id uuid.UUID, customer CustomerInfo, mode DeliveryMode) (*Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		if session.Step != StepDelivery {
			return apperr.Conflict("customer details are entered at the delivery step")
		}

		session.Customer = customer.normalized()
		session.Mode = mode
		session.Delivery.Mode = mode

		fields := ValidateDeliveryStep(customer, mode)
		session.Errors = fields
		if !fields.Empty() {
			return errKeep{fields.Err()}
		}

		if mode == ModePickup {
			session.Totals, _ = ComputeTotal(session.Cart.Lines, ModePickup, nil)
		}
		return session.transition(StepAddress)
	})
}

func (s *service) SubmitAddress(ctx context.Context, id uuid.UUID, delivery DeliveryInfo) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "SubmitAddress"),
		zap.String("session_id", id.String()),
	)

	return s.update(ctx, id, func(session *Session) error {
		if session.Step != StepAddress {
			return apperr.Conflict("delivery details are entered at the address step")
		}

		delivery.Mode = session.Mode
		session.Delivery = delivery.Normalize()

		fields := ValidateAddressStep(delivery, session.Mode, s.now().In(s.loc))
		if fields.Empty() {
			totals, err := s.pricer.Price(ctx, session.Cart.Lines, session.Delivery)
			switch {
			case errors.Is(err, storefront.ErrDistrictNotFound):
				fields.Add("delivery.districtId", "unknown district")
			case err != nil:
				log.Warn("district lookup failed", zap.Error(err))
				fields.Add("delivery.districtId", "district information unavailable, try again")
			default:
				session.Totals = totals
			}
		}

		session.Errors = fields
		if !fields.Empty() {
			return errKeep{fields.Err()}
		}

		log.Info("delivery priced",
			zap.String("mode", string(session.Mode)),
			zap.String("subtotal", session.Totals.Subtotal.StringFixed(2)),
			zap.String("shipping", session.Totals.Shipping.StringFixed(2)),
			zap.String("total", session.Totals.Total.StringFixed(2)),
		)
		return session.transition(StepPayment)
	})
}

func (s *service) Back(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		prev, ok := previous(session.Step)
		if !ok {
			return apperr.Conflict("cannot go back from " + string(session.Step))
		}
		session.Errors = nil
		return session.transition(prev)
	})
}

func (s *service) SelectPayment(ctx context.Context, id uuid.UUID, p Payment) (*Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		if session.Step != StepPayment {
			return apperr.Conflict("payment is selected at the payment step")
		}
		if session.OrderNumber != "" {
			return apperr.Conflict("an order already exists for this checkout")
		}
		session.Method = p.Method()
		session.PaymentPending = true
		return nil
	})
}

// ReleasePayment lets the customer leave the payment step again after
// payment creation failed before anything was attached.
func (s *service) ReleasePayment(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		if session.DraftID == nil && session.OrderNumber == "" {
			session.PaymentPending = false
		}
		return nil
	})
}

func (s *service) AttachDraft(ctx context.Context, id uuid.UUID, draftID uuid.UUID, draftNumber string) (*Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		session.DraftID = &draftID
		session.DraftNumber = draftNumber
		return nil
	})
}

func (s *service) DetachDraft(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		session.DraftID = nil
		session.DraftNumber = ""
		session.PaymentPending = false
		return nil
	})
}

func (s *service) AttachOrder(ctx context.Context, id uuid.UUID, orderNumber string) (*Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		session.OrderNumber = orderNumber
		return nil
	})
}

func (s *service) MarkProcessing(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		return session.transition(StepProcessing)
	})
}

// MarkConfirmed is the shared terminal state of both payment branches. The
// returned session carries ClearCart so the caller empties the cart.
func (s *service) MarkConfirmed(ctx context.Context, id uuid.UUID, orderNumber string) (*Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		if err := session.transition(StepConfirmation); err != nil {
			return err
		}
		if orderNumber != "" {
			session.OrderNumber = orderNumber
		}
		session.ClearCart = true
		return nil
	})
}

func (s *service) Discard(ctx context.Context, id uuid.UUID) error {
	logger.FromCtx(ctx).Info("checkout session discarded", zap.String("session_id", id.String()))
	return s.store.Delete(ctx, id)
}

// errKeep marks a failure whose session changes (entered data, field errors)
// must still be saved.
type errKeep struct{ err error }

func (e errKeep) Error() string { return e.err.Error() }
func (e errKeep) Unwrap() error { return e.err }

func (s *service) update(ctx context.Context, id uuid.UUID, fn func(*Session) error) (*Session, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(session); err != nil {
		var keep errKeep
		if !errors.As(err, &keep) {
			return session, err
		}
		session.UpdatedAt = s.now()
		if saveErr := s.store.Save(ctx, session); saveErr != nil {
			return nil, saveErr
		}
		return session, keep.err
	}

	session.UpdatedAt = s.now()
	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) lockFor(id uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(id[:])
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}
