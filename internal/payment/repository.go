package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

const ProviderCard = "CARD"

type WebhookEvent struct {
	Provider       string
	EventID        string
	EventType      string
	IntentID       string
	Payload        json.RawMessage
	SignatureValid bool
}

// Repository is the gateway callback log.
type Repository interface {
	SavePaymentWebhook(ctx context.Context, ev WebhookEvent) (webhookID int64, isDuplicate bool, err error)
	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// SavePaymentWebhook records a callback once per (provider, event id). A
// redelivered event is a duplicate unless its earlier processing failed, in
// which case it is handed back for another attempt.
func (r *repository) SavePaymentWebhook(ctx context.Context, ev WebhookEvent) (int64, bool, error) {
	const q = `
	INSERT INTO payment_webhooks (
		provider,
		event_id,
		event_type,
		intent_id,
		payload,
		signature_valid
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (provider, event_id)
	DO UPDATE SET status = 'RECEIVED', failure_reason = NULL
	WHERE payment_webhooks.status = 'FAILED'
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		q,
		ev.Provider,
		ev.EventID,
		ev.EventType,
		ev.IntentID,
		[]byte(ev.Payload),
		ev.SignatureValid,
	).Scan(&id)

	if err != nil {
		// Duplicate webhook → idempotent success
		if errors.Is(err, sql.ErrNoRows) {
			return 0, true, nil
		}
		return 0, false, err
	}

	return id, false, nil
}

func (r *repository) MarkWebhookProcessed(ctx context.Context, webhookID int64) error {
	const q = `
	UPDATE payment_webhooks
	SET status = 'PROCESSED', processed_at = NOW()
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID)
	return err
}

func (r *repository) MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error {
	const q = `
	UPDATE payment_webhooks
	SET status = 'FAILED', failure_reason = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID, reason)
	return err
}
