package order

import (
	"context"
	"sync"
	"time"

	"bloomcart-be/internal/utils"

	"github.com/google/uuid"
)

// memRepository is an in-memory Repository with the same conditional
// transitions as the Postgres one.
type memRepository struct {
	mu       sync.Mutex
	draftSeq int64
	orderSeq int64
	drafts   map[uuid.UUID]Draft
	orders   map[string]Order
	proofs   map[string]PaymentProof

	// attachErr fails the next AttachIntent once
	attachErr error
}

func newMemRepository() *memRepository {
	return &memRepository{
		drafts: map[uuid.UUID]Draft{},
		orders: map[string]Order{},
		proofs: map[string]PaymentProof{},
	}
}

func (m *memRepository) NextDraftNumber(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draftSeq++
	return utils.FormatDraftNumber(m.draftSeq), nil
}

func (m *memRepository) InsertDraft(_ context.Context, d *Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.drafts {
		if existing.IdempotencyKey == d.IdempotencyKey && existing.Status != DraftDiscarded {
			return ErrDraftExists
		}
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	m.drafts[d.ID] = *d
	return nil
}

func (m *memRepository) GetDraft(_ context.Context, id uuid.UUID) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	return &d, nil
}

func (m *memRepository) LiveDraftByIdempotencyKey(_ context.Context, key uuid.UUID) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drafts {
		if d.IdempotencyKey == key && d.Status != DraftDiscarded {
			return &d, nil
		}
	}
	return nil, ErrDraftNotFound
}

func (m *memRepository) DraftByIntent(_ context.Context, intentID string) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drafts {
		if d.IntentID == intentID {
			return &d, nil
		}
	}
	return nil, ErrDraftNotFound
}

func (m *memRepository) AttachIntent(_ context.Context, id uuid.UUID, intentID, clientToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.attachErr; err != nil {
		m.attachErr = nil
		return err
	}
	d, ok := m.drafts[id]
	if !ok || d.IntentID != "" {
		return ErrDraftNotFound
	}
	d.IntentID = intentID
	d.ClientToken = clientToken
	m.drafts[id] = d
	return nil
}

func (m *memRepository) ConfirmDraftPayment(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok || d.Status != DraftAwaitingPayment || !d.ExpiresAt.After(now) {
		return false, nil
	}
	d.Status = DraftPaymentConfirmed
	m.drafts[id] = d
	return true, nil
}

func (m *memRepository) DiscardDraft(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok || d.Status != DraftAwaitingPayment {
		return false, nil
	}
	d.Status = DraftDiscarded
	d.FailureReason = reason
	m.drafts[id] = d
	return true, nil
}

func (m *memRepository) DiscardExpiredDrafts(_ context.Context, now time.Time) ([]ExpiredDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ExpiredDraft
	for id, d := range m.drafts {
		if d.Status == DraftAwaitingPayment && !d.ExpiresAt.After(now) {
			d.Status = DraftDiscarded
			d.FailureReason = "expired"
			m.drafts[id] = d
			out = append(out, ExpiredDraft{ID: id, IntentID: d.IntentID})
		}
	}
	return out, nil
}

func (m *memRepository) PromoteDraft(_ context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	switch d.Status {
	case DraftPromoted:
		return nil, ErrAlreadyPromoted
	case DraftDiscarded:
		return nil, ErrDraftDiscarded
	case DraftAwaitingPayment:
		return nil, ErrPaymentNotConfirmed
	}

	m.orderSeq++
	o, err := orderFromDraft(&d, utils.FormatOrderNumber(m.orderSeq))
	if err != nil {
		return nil, err
	}
	o.CreatedAt = time.Now()
	m.orders[o.OrderNumber] = *o

	d.Status = DraftPromoted
	d.OrderNumber = o.OrderNumber
	m.drafts[id] = d
	return o, nil
}

func (m *memRepository) CreateOrder(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.IdempotencyKey == o.IdempotencyKey {
			return ErrOrderExists
		}
	}
	m.orderSeq++
	o.OrderNumber = utils.FormatOrderNumber(m.orderSeq)
	o.CreatedAt = time.Now()
	m.orders[o.OrderNumber] = *o
	return nil
}

func (m *memRepository) GetOrder(_ context.Context, orderNumber string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderNumber]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (m *memRepository) OrderByIdempotencyKey(_ context.Context, key uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *memRepository) UpdatePaymentStatus(_ context.Context, orderNumber string, from, to PaymentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderNumber]
	if !ok || o.PaymentStatus != from {
		return false, nil
	}
	o.PaymentStatus = to
	m.orders[orderNumber] = o
	return true, nil
}

func (m *memRepository) UpsertProof(_ context.Context, p *PaymentProof) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.UploadedAt = time.Now()
	m.proofs[p.OrderNumber] = *p
	return nil
}

func (m *memRepository) GetProof(_ context.Context, orderNumber string) (*PaymentProof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proofs[orderNumber]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &p, nil
}

func (m *memRepository) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memRepository) draftsFor(key uuid.UUID) []Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Draft
	for _, d := range m.drafts {
		if d.IdempotencyKey == key {
			out = append(out, d)
		}
	}
	return out
}

var _ Repository = (*memRepository)(nil)
