package notify

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Repository interface {
	// Record inserts n unless a row for the same order, kind and reference
	// exists, in which case the existing row is returned and created is false.
	Record(ctx context.Context, n *Notification) (stored *Notification, created bool, err error)
	Get(ctx context.Context, orderNumber string, kind Kind, reference string) (*Notification, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	Pending(ctx context.Context, maxAttempts, limit int, staleBefore time.Time) ([]Notification, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const notificationColumns = `
	id, order_number, kind, reference, recipient, subject, body, deep_link,
	status, attempts, COALESCE(last_error, ''), created_at, sent_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var (
		n      Notification
		sentAt sql.NullTime
	)
	err := row.Scan(
		&n.ID,
		&n.OrderNumber,
		&n.Kind,
		&n.Reference,
		&n.Recipient,
		&n.Subject,
		&n.Body,
		&n.DeepLink,
		&n.Status,
		&n.Attempts,
		&n.LastError,
		&n.CreatedAt,
		&sentAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	if sentAt.Valid {
		n.SentAt = &sentAt.Time
	}
	return &n, nil
}

func (r *repository) Record(ctx context.Context, n *Notification) (*Notification, bool, error) {
	query := `
		INSERT INTO notifications (order_number, kind, reference, recipient, subject, body, deep_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_number, kind, reference) DO NOTHING
		RETURNING id, status, attempts, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		n.OrderNumber, n.Kind, n.Reference, n.Recipient, n.Subject, n.Body, n.DeepLink,
	).Scan(&n.ID, &n.Status, &n.Attempts, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := r.Get(ctx, n.OrderNumber, n.Kind, n.Reference)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

func (r *repository) Get(ctx context.Context, orderNumber string, kind Kind, reference string) (*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE order_number = $1 AND kind = $2 AND reference = $3`
	return scanNotification(r.db.QueryRowContext(ctx, query, orderNumber, kind, reference))
}

func (r *repository) MarkSent(ctx context.Context, id int64) error {
	query := `
		UPDATE notifications
		SET status = 'SENT', attempts = attempts + 1, last_error = NULL,
		    sent_at = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, time.Now())
	return err
}

func (r *repository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE notifications
		SET status = 'FAILED', attempts = attempts + 1, last_error = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, reason)
	return err
}

// Pending returns unsent rows that still have attempts left, oldest first.
// PENDING rows newer than staleBefore are skipped: their first send may
// still be running.
func (r *repository) Pending(ctx context.Context, maxAttempts, limit int, staleBefore time.Time) ([]Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE (status = 'FAILED' OR (status = 'PENDING' AND created_at < $3))
		  AND attempts < $1
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, maxAttempts, limit, staleBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}
