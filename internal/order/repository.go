package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bloomcart-be/internal/logger"
	"bloomcart-be/internal/utils"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	NextDraftNumber(ctx context.Context) (string, error)
	InsertDraft(ctx context.Context, d *Draft) error
	GetDraft(ctx context.Context, id uuid.UUID) (*Draft, error)
	LiveDraftByIdempotencyKey(ctx context.Context, key uuid.UUID) (*Draft, error)
	DraftByIntent(ctx context.Context, intentID string) (*Draft, error)
	AttachIntent(ctx context.Context, id uuid.UUID, intentID, clientToken string) error
	ConfirmDraftPayment(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	DiscardDraft(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	DiscardExpiredDrafts(ctx context.Context, now time.Time) ([]ExpiredDraft, error)
	PromoteDraft(ctx context.Context, id uuid.UUID) (*Order, error)

	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, orderNumber string) (*Order, error)
	OrderByIdempotencyKey(ctx context.Context, key uuid.UUID) (*Order, error)
	UpdatePaymentStatus(ctx context.Context, orderNumber string, from, to PaymentStatus) (bool, error)
	UpsertProof(ctx context.Context, p *PaymentProof) error
	GetProof(ctx context.Context, orderNumber string) (*PaymentProof, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const draftColumns = `
	id, draft_number, idempotency_key, checkout_id, snapshot, total, currency,
	COALESCE(intent_id, ''), COALESCE(client_token, ''), status,
	COALESCE(order_number, ''), COALESCE(failure_reason, ''),
	expires_at, created_at, updated_at`

const orderColumns = `
	id, order_number, draft_id, idempotency_key, checkout_id, snapshot, total, currency,
	payment_method, payment_status, fulfillment_status, notes, dedication,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*Draft, error) {
	var d Draft
	err := row.Scan(
		&d.ID,
		&d.DraftNumber,
		&d.IdempotencyKey,
		&d.CheckoutID,
		&d.Snapshot,
		&d.Total,
		&d.Currency,
		&d.IntentID,
		&d.ClientToken,
		&d.Status,
		&d.OrderNumber,
		&d.FailureReason,
		&d.ExpiresAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o       Order
		draftID uuid.NullUUID
	)
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&draftID,
		&o.IdempotencyKey,
		&o.CheckoutID,
		&o.Snapshot,
		&o.Total,
		&o.Currency,
		&o.Method,
		&o.PaymentStatus,
		&o.FulfillmentStatus,
		&o.Notes,
		&o.Dedication,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if draftID.Valid {
		o.DraftID = &draftID.UUID
	}
	return &o, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (r *repository) NextDraftNumber(ctx context.Context) (string, error) {
	var seq int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('draft_number_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return utils.FormatDraftNumber(seq), nil
}

func (r *repository) InsertDraft(ctx context.Context, d *Draft) error {
	query := `
		INSERT INTO order_drafts (
			id, draft_number, idempotency_key, checkout_id,
			snapshot, total, currency, status, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		d.ID,
		d.DraftNumber,
		d.IdempotencyKey,
		d.CheckoutID,
		d.Snapshot,
		d.Total,
		d.Currency,
		d.Status,
		d.ExpiresAt,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDraftExists
	}
	return err
}

func (r *repository) GetDraft(ctx context.Context, id uuid.UUID) (*Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM order_drafts WHERE id = $1`
	return scanDraft(r.db.QueryRowContext(ctx, query, id))
}

func (r *repository) LiveDraftByIdempotencyKey(ctx context.Context, key uuid.UUID) (*Draft, error) {
	query := `
		SELECT ` + draftColumns + `
		FROM order_drafts
		WHERE idempotency_key = $1 AND status <> 'discarded'
	`
	return scanDraft(r.db.QueryRowContext(ctx, query, key))
}

func (r *repository) DraftByIntent(ctx context.Context, intentID string) (*Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM order_drafts WHERE intent_id = $1`
	return scanDraft(r.db.QueryRowContext(ctx, query, intentID))
}

func (r *repository) AttachIntent(ctx context.Context, id uuid.UUID, intentID, clientToken string) error {
	query := `
		UPDATE order_drafts
		SET intent_id = $2, client_token = $3, updated_at = NOW()
		WHERE id = $1 AND intent_id IS NULL
	`

	res, err := r.db.ExecContext(ctx, query, id, intentID, clientToken)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrDraftNotFound
	}
	return nil
}

// ConfirmDraftPayment moves a live, unexpired draft to payment_confirmed.
// It reports false when the draft was not in that state.
func (r *repository) ConfirmDraftPayment(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE order_drafts
		SET status = 'payment_confirmed', updated_at = NOW()
		WHERE id = $1
		  AND status = 'awaiting_payment'
		  AND expires_at > $2
	`

	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected == 1, nil
}

// DiscardDraft tombstones a draft still waiting for payment.
func (r *repository) DiscardDraft(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE order_drafts
		SET status = 'discarded', failure_reason = $2, updated_at = NOW()
		WHERE id = $1
		  AND status = 'awaiting_payment'
	`

	res, err := r.db.ExecContext(ctx, query, id, reason)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected == 1, nil
}

func (r *repository) DiscardExpiredDrafts(ctx context.Context, now time.Time) ([]ExpiredDraft, error) {
	query := `
		UPDATE order_drafts
		SET status = 'discarded', failure_reason = 'expired', updated_at = NOW()
		WHERE status = 'awaiting_payment'
		  AND expires_at <= $1
		RETURNING id, COALESCE(intent_id, '')
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpiredDraft
	for rows.Next() {
		var d ExpiredDraft
		if err := rows.Scan(&d.ID, &d.IntentID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PromoteDraft converts a payment_confirmed draft into a paid order in one
// transaction. The draft row stays locked until commit, so two promotions of
// the same draft serialize and the second sees it promoted.
func (r *repository) PromoteDraft(ctx context.Context, id uuid.UUID) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "PromoteDraft"),
		zap.String("draft_id", id.String()),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return nil, err
	}
	defer tx.Rollback()

	d, err := scanDraft(tx.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM order_drafts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	switch d.Status {
	case DraftPromoted:
		return nil, ErrAlreadyPromoted
	case DraftDiscarded:
		return nil, ErrDraftDiscarded
	case DraftAwaitingPayment:
		return nil, ErrPaymentNotConfirmed
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		log.Error("failed to allocate order number", zap.Error(err))
		return nil, err
	}

	o, err := orderFromDraft(d, utils.FormatOrderNumber(seq))
	if err != nil {
		return nil, err
	}

	if err := insertOrder(ctx, tx, o); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyPromoted
		}
		log.Error("failed to insert order", zap.Error(err))
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE order_drafts
		SET status = 'promoted', order_number = $2, updated_at = NOW()
		WHERE id = $1
	`, id, o.OrderNumber)
	if err != nil {
		log.Error("failed to mark draft promoted", zap.Error(err))
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit promotion", zap.Error(err))
		return nil, err
	}

	log.Info("draft promoted", zap.String("order_number", o.OrderNumber))
	return o, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertOrder(ctx context.Context, q queryRower, o *Order) error {
	query := `
		INSERT INTO orders (
			id, order_number, draft_id, idempotency_key, checkout_id,
			snapshot, total, currency, payment_method, payment_status,
			fulfillment_status, notes, dedication
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at
	`

	var draftID any
	if o.DraftID != nil {
		draftID = *o.DraftID
	}

	return q.QueryRowContext(ctx, query,
		o.ID,
		o.OrderNumber,
		draftID,
		o.IdempotencyKey,
		o.CheckoutID,
		o.Snapshot,
		o.Total,
		o.Currency,
		o.Method,
		o.PaymentStatus,
		o.FulfillmentStatus,
		o.Notes,
		o.Dedication,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
}

// CreateOrder allocates an order number and inserts o. A second order for the
// same idempotency key yields ErrOrderExists.
func (r *repository) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return err
	}
	o.OrderNumber = utils.FormatOrderNumber(seq)

	if err := insertOrder(ctx, tx, o); err != nil {
		if isUniqueViolation(err) {
			return ErrOrderExists
		}
		return err
	}

	return tx.Commit()
}

func (r *repository) GetOrder(ctx context.Context, orderNumber string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	return scanOrder(r.db.QueryRowContext(ctx, query, orderNumber))
}

func (r *repository) OrderByIdempotencyKey(ctx context.Context, key uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = $1`
	return scanOrder(r.db.QueryRowContext(ctx, query, key))
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, orderNumber string, from, to PaymentStatus) (bool, error) {
	query := `
		UPDATE orders
		SET payment_status = $3, updated_at = NOW()
		WHERE order_number = $1
		  AND payment_status = $2
	`

	res, err := r.db.ExecContext(ctx, query, orderNumber, from, to)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected == 1, nil
}

func (r *repository) UpsertProof(ctx context.Context, p *PaymentProof) error {
	query := `
		INSERT INTO payment_proofs (order_number, url, content_type, size_bytes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_number)
		DO UPDATE SET url = EXCLUDED.url,
		              content_type = EXCLUDED.content_type,
		              size_bytes = EXCLUDED.size_bytes,
		              uploaded_at = NOW()
		RETURNING uploaded_at
	`

	return r.db.QueryRowContext(ctx, query, p.OrderNumber, p.URL, p.ContentType, p.Size).
		Scan(&p.UploadedAt)
}

func (r *repository) GetProof(ctx context.Context, orderNumber string) (*PaymentProof, error) {
	query := `
		SELECT order_number, url, content_type, size_bytes, uploaded_at
		FROM payment_proofs
		WHERE order_number = $1
	`

	var p PaymentProof
	err := r.db.QueryRowContext(ctx, query, orderNumber).
		Scan(&p.OrderNumber, &p.URL, &p.ContentType, &p.Size, &p.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
