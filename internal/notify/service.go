package notify

import (
	"context"
	"fmt"
	"time"

	"bloomcart-be/internal/apperr"
	"bloomcart-be/internal/logger"

	"go.uber.org/zap"
)

const retryBatchSize = 50

// pendingGrace is how long a PENDING row is left to the Dispatch call that
// created it before retries pick it up.
const pendingGrace = 5 * time.Minute

// Service delivers staff notifications through an outbox so failed sends can
// be retried later.
type Service struct {
	repo        Repository
	mailer      Mailer
	links       *LinkSigner
	staffEmail  string
	storePhone  string
	maxAttempts int
	now         func() time.Time
}

func NewService(repo Repository, mailer Mailer, links *LinkSigner, staffEmail, storePhone string, maxAttempts int) *Service {
	return &Service{
		repo:        repo,
		mailer:      mailer,
		links:       links,
		staffEmail:  staffEmail,
		storePhone:  storePhone,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Dispatch notifies staff about msg and returns the customer's deep link to
// the store chat. The link is returned even when sending fails; the failed
// row stays in the outbox for RetryPending.
func (s *Service) Dispatch(ctx context.Context, msg Message) (string, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Dispatch"),
		zap.String("order_number", msg.OrderNumber),
	)

	n, err := s.compose(msg)
	if err != nil {
		log.Error("failed to compose notification", zap.Error(err))
		return "", apperr.NotificationDispatch(err)
	}

	stored, created, err := s.repo.Record(ctx, n)
	if err != nil {
		log.Error("failed to record notification", zap.Error(err))
		return n.DeepLink, apperr.NotificationDispatch(err)
	}
	if !created && stored.Status == StatusSent {
		log.Info("notification already sent")
		return stored.DeepLink, nil
	}

	if err := s.send(ctx, stored); err != nil {
		log.Warn("notification send failed, queued for retry", zap.Error(err))
		return stored.DeepLink, apperr.NotificationDispatch(err)
	}

	log.Info("notification sent", zap.String("recipient", stored.Recipient))
	return stored.DeepLink, nil
}

// RetryPending re-sends unsent notifications with attempts left and reports
// how many went out.
func (s *Service) RetryPending(ctx context.Context) (int, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RetryPending"),
	)

	pending, err := s.repo.Pending(ctx, s.maxAttempts, retryBatchSize, s.now().Add(-pendingGrace))
	if err != nil {
		log.Error("failed to list pending notifications", zap.Error(err))
		return 0, err
	}

	sent := 0
	for i := range pending {
		n := &pending[i]
		if err := s.send(ctx, n); err != nil {
			log.Warn("retry failed",
				zap.String("order_number", n.OrderNumber),
				zap.Int("attempts", n.Attempts+1),
				zap.Error(err),
			)
			continue
		}
		sent++
	}

	if len(pending) > 0 {
		log.Info("pending notifications retried", zap.Int("pending", len(pending)), zap.Int("sent", sent))
	}
	return sent, nil
}

func (s *Service) send(ctx context.Context, n *Notification) error {
	if err := s.mailer.Send(ctx, n.Recipient, n.Subject, n.Body); err != nil {
		if markErr := s.repo.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
			logger.FromCtx(ctx).Error("failed to mark notification failed",
				zap.Int64("notification_id", n.ID), zap.Error(markErr))
		}
		return err
	}
	return s.repo.MarkSent(ctx, n.ID)
}

func (s *Service) compose(msg Message) (*Notification, error) {
	kind := msg.Kind
	if kind == "" {
		kind = KindWalletProof
	}

	reviewURL, err := s.links.ReviewURL(msg.OrderNumber)
	if err != nil {
		return nil, err
	}

	total := msg.Total.StringFixed(2)
	body, err := renderWalletProof(walletProofData{
		OrderNumber:  msg.OrderNumber,
		CustomerName: msg.CustomerName,
		Phone:        msg.Phone,
		Currency:     msg.Currency,
		Total:        total,
		Method:       msg.Method,
		DeliveryDate: msg.DeliveryDate,
		TimeSlot:     msg.TimeSlot,
		ProofURL:     msg.ProofURL,
		ReviewURL:    reviewURL,
	})
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Hola, realicé el pago del pedido %s por %s %s con %s. Adjunto mi comprobante.",
		msg.OrderNumber, msg.Currency, total, msg.Method)

	return &Notification{
		OrderNumber: msg.OrderNumber,
		Kind:        kind,
		Reference:   msg.Reference,
		Recipient:   s.staffEmail,
		Subject:     fmt.Sprintf("Pago por verificar: pedido %s", msg.OrderNumber),
		Body:        body,
		DeepLink:    DeepLink(s.storePhone, text),
		Status:      StatusPending,
	}, nil
}
