package wallet

import (
	"context"
	"errors"
	"time"

	"bloomcart-be/internal/apperr"
	"bloomcart-be/internal/checkout"
	"bloomcart-be/internal/logger"
	"bloomcart-be/internal/notify"
	"bloomcart-be/internal/order"
	"bloomcart-be/internal/storefront"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Sessions interface {
	MarkProcessing(ctx context.Context, id uuid.UUID) (*checkout.Session, error)
	MarkConfirmed(ctx context.Context, id uuid.UUID, orderNumber string) (*checkout.Session, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, msg notify.Message) (string, error)
}

type ReviewVerifier interface {
	Verify(token string) (string, error)
}

type Config struct {
	Currency      string
	MaxProofBytes int64
	SettleDelay   time.Duration
}

// Workflow runs manual wallet payments: the order exists right away with a
// pending payment, the customer uploads a transfer proof and staff verify it.
type Workflow struct {
	orders   order.Repository
	sessions Sessions
	pricer   order.Pricer
	proofs   ProofStore
	notifier Notifier
	reviews  ReviewVerifier
	cfg      Config
	tasks    *settleTasks
}

func NewWorkflow(
	orders order.Repository,
	sessions Sessions,
	pricer order.Pricer,
	proofs ProofStore,
	notifier Notifier,
	reviews ReviewVerifier,
	cfg Config,
) *Workflow {
	if cfg.MaxProofBytes <= 0 {
		cfg.MaxProofBytes = DefaultMaxProofBytes
	}
	return &Workflow{
		orders:   orders,
		sessions: sessions,
		pricer:   pricer,
		proofs:   proofs,
		notifier: notifier,
		reviews:  reviews,
		cfg:      cfg,
		tasks:    newSettleTasks(),
	}
}

// CreateOrder places a wallet order with payment pending. Calling it again for
// the same checkout attempt returns the order already placed.
func (w *Workflow) CreateOrder(ctx context.Context, session *checkout.Session) (*order.Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrder"),
		zap.String("checkout_id", session.ID.String()),
	)

	if session.Step != checkout.StepPayment {
		return nil, apperr.Conflict("checkout is not at the payment step")
	}
	payment, err := checkout.ParsePayment(string(session.Method))
	if err != nil {
		return nil, err
	}
	if _, ok := payment.(checkout.WalletPayment); !ok {
		return nil, apperr.Conflict(ErrNotWalletOrder.Error())
	}

	if existing, err := w.orders.OrderByIdempotencyKey(ctx, session.IdempotencyKey); err == nil {
		log.Info("order already placed for checkout", zap.String("order_number", existing.OrderNumber))
		return existing, nil
	} else if !errors.Is(err, order.ErrOrderNotFound) {
		log.Error("failed to check existing order", zap.Error(err))
		return nil, err
	}

	totals, err := w.pricer.Price(ctx, session.Cart.Lines, session.Delivery)
	if errors.Is(err, storefront.ErrDistrictNotFound) || errors.Is(err, checkout.ErrDistrictRequired) {
		return nil, apperr.Validation("delivery.districtId", "unknown district")
	}
	if err != nil {
		log.Error("failed to price checkout", zap.Error(err))
		return nil, err
	}

	o := &order.Order{
		ID:                uuid.New(),
		IdempotencyKey:    session.IdempotencyKey,
		CheckoutID:        session.ID,
		Snapshot:          order.SnapshotFromSession(session, totals),
		Total:             totals.Total,
		Currency:          w.cfg.Currency,
		Method:            session.Method,
		PaymentStatus:     order.PaymentPending,
		FulfillmentStatus: order.FulfillmentReceived,
		Dedication:        session.Delivery.Dedication,
	}

	if err := w.orders.CreateOrder(ctx, o); err != nil {
		if errors.Is(err, order.ErrOrderExists) {
			return w.orders.OrderByIdempotencyKey(ctx, session.IdempotencyKey)
		}
		log.Error("failed to create order", zap.Error(err))
		return nil, err
	}

	log.Info("wallet order created",
		zap.String("order_number", o.OrderNumber),
		zap.String("wallet", string(o.Method)),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return o, nil
}

// AttachProof stores the customer's transfer proof and schedules the staff
// notification after the settle delay. A re-upload replaces the proof and
// restarts the delay.
func (w *Workflow) AttachProof(ctx context.Context, orderNumber string, upload Upload) (*order.PaymentProof, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "AttachProof"),
		zap.String("order_number", orderNumber),
	)

	o, err := w.walletOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus != order.PaymentPending {
		return nil, apperr.Conflict("payment already " + string(o.PaymentStatus))
	}

	contentType, err := ValidateUpload(upload, w.cfg.MaxProofBytes)
	if err != nil {
		log.Info("proof rejected", zap.String("filename", upload.Filename), zap.Error(err))
		return nil, err
	}

	stored, err := w.proofs.Put(ctx, orderNumber, upload.Data)
	if err != nil {
		log.Error("failed to store proof", zap.Error(err))
		return nil, apperr.Gateway("proof upload failed", err)
	}

	proof := &order.PaymentProof{
		OrderNumber: orderNumber,
		URL:         stored.URL,
		ContentType: contentType,
		Size:        int64(len(upload.Data)),
	}
	if err := w.orders.UpsertProof(ctx, proof); err != nil {
		log.Error("failed to save proof", zap.Error(err))
		return nil, err
	}

	if _, err := w.sessions.MarkProcessing(ctx, o.CheckoutID); err != nil {
		// the order stands even when the browser session is gone
		log.Warn("could not move checkout to processing", zap.Error(err))
	}

	w.tasks.schedule(ctx, orderNumber, w.cfg.SettleDelay, func(taskCtx context.Context) {
		if _, err := w.finalize(taskCtx, orderNumber); err != nil {
			logger.FromCtx(taskCtx).Error("settle task failed",
				zap.String("order_number", orderNumber), zap.Error(err))
		}
	})

	log.Info("proof attached",
		zap.String("content_type", contentType),
		zap.Int64("size", proof.Size),
		zap.Duration("settle_delay", w.cfg.SettleDelay),
	)
	return proof, nil
}

// NotifyAndFinalize notifies staff and confirms the checkout without waiting
// for the settle delay. Safe to repeat.
func (w *Workflow) NotifyAndFinalize(ctx context.Context, orderNumber string) (*Dispatch, error) {
	w.tasks.cancel(orderNumber)
	return w.finalize(ctx, orderNumber)
}

func (w *Workflow) finalize(ctx context.Context, orderNumber string) (*Dispatch, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "NotifyAndFinalize"),
		zap.String("order_number", orderNumber),
	)

	o, err := w.walletOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	proof, err := w.orders.GetProof(ctx, orderNumber)
	if errors.Is(err, order.ErrOrderNotFound) {
		return nil, apperr.Conflict(ErrProofRequired.Error())
	}
	if err != nil {
		log.Error("failed to load proof", zap.Error(err))
		return nil, err
	}

	link, err := w.notifier.Dispatch(ctx, notify.Message{
		OrderNumber:  o.OrderNumber,
		Kind:         notify.KindWalletProof,
		Reference:    proofReference(proof),
		CustomerName: o.Snapshot.Customer.FullName,
		Phone:        o.Snapshot.Customer.Phone,
		Method:       string(o.Method),
		Total:        o.Total,
		Currency:     o.Currency,
		ProofURL:     proof.URL,
		DeliveryDate: o.Snapshot.Delivery.Date,
		TimeSlot:     string(o.Snapshot.Delivery.TimeSlot),
	})
	if err != nil {
		// queued in the outbox; the scheduler retries it
		log.Error("staff notification failed", zap.Error(err))
	}

	if _, err := w.sessions.MarkConfirmed(ctx, o.CheckoutID, o.OrderNumber); err != nil {
		log.Warn("could not move checkout to confirmation", zap.Error(err))
	}

	log.Info("wallet checkout finalized")
	return &Dispatch{
		OrderNumber: o.OrderNumber,
		DeepLink:    link,
		ClearCart:   true,
	}, nil
}

// proofReference identifies one upload, so a replaced proof is notified again.
func proofReference(p *order.PaymentProof) string {
	return p.UploadedAt.UTC().Format(time.RFC3339Nano)
}

// Cancel stops the pending settle task of an order, if any.
func (w *Workflow) Cancel(orderNumber string) bool {
	return w.tasks.cancel(orderNumber)
}

// Shutdown cancels every pending settle task and waits for running ones.
func (w *Workflow) Shutdown() {
	w.tasks.shutdown()
}

// Review resolves a signed review link to the order and its latest proof,
// without changing anything. The proof is nil when none was uploaded.
func (w *Workflow) Review(ctx context.Context, token string) (*order.Order, *order.PaymentProof, error) {
	orderNumber, err := w.reviews.Verify(token)
	if err != nil {
		return nil, nil, apperr.Validation("token", err.Error())
	}

	o, err := w.walletOrder(ctx, orderNumber)
	if err != nil {
		return nil, nil, err
	}

	proof, err := w.orders.GetProof(ctx, orderNumber)
	if errors.Is(err, order.ErrOrderNotFound) {
		return o, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return o, proof, nil
}

// VerifyPayment records the staff decision taken from a signed review link.
func (w *Workflow) VerifyPayment(ctx context.Context, token string, approved bool) (*order.Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "VerifyPayment"),
	)

	orderNumber, err := w.reviews.Verify(token)
	if err != nil {
		return nil, apperr.Validation("token", err.Error())
	}
	log = log.With(zap.String("order_number", orderNumber))

	to := order.PaymentFailed
	if approved {
		to = order.PaymentPaid
	}

	ok, err := w.orders.UpdatePaymentStatus(ctx, orderNumber, order.PaymentPending, to)
	if err != nil {
		log.Error("failed to update payment status", zap.Error(err))
		return nil, err
	}

	o, err := w.orders.GetOrder(ctx, orderNumber)
	if errors.Is(err, order.ErrOrderNotFound) {
		return nil, apperr.NotFound(err.Error())
	}
	if err != nil {
		return nil, err
	}
	if !ok && o.PaymentStatus != to {
		return nil, apperr.Conflict("payment already " + string(o.PaymentStatus))
	}

	log.Info("wallet payment reviewed", zap.String("payment_status", string(o.PaymentStatus)))
	return o, nil
}

func (w *Workflow) walletOrder(ctx context.Context, orderNumber string) (*order.Order, error) {
	o, err := w.orders.GetOrder(ctx, orderNumber)
	if errors.Is(err, order.ErrOrderNotFound) {
		return nil, apperr.NotFound(err.Error())
	}
	if err != nil {
		return nil, err
	}
	if o.Method == checkout.MethodCard {
		return nil, apperr.Conflict(ErrNotWalletOrder.Error())
	}
	return o, nil
}
