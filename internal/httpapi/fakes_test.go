package httpapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"bloomcart-be/internal/apperr"
	"bloomcart-be/internal/checkout"
	"bloomcart-be/internal/order"
	"bloomcart-be/internal/storefront"
	"bloomcart-be/internal/utils"
	"bloomcart-be/internal/wallet"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]checkout.Session
}

func newMemStore() *memStore {
	return &memStore{sessions: map[uuid.UUID]checkout.Session{}}
}

func (m *memStore) Save(_ context.Context, s *checkout.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*checkout.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, checkout.ErrSessionNotFound
	}
	return &s, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

type fakeStorefront struct {
	districts []storefront.District
	channels  []storefront.PaymentChannel
	err       error
}

func newFakeStorefront() *fakeStorefront {
	return &fakeStorefront{
		districts: []storefront.District{
			{ID: "miraflores", Name: "Miraflores", ShippingCost: decimal.NewFromInt(10), EstimatedTime: "2h"},
		},
		channels: []storefront.PaymentChannel{
			{Method: "wallet_a", Label: "Wallet A", AccountName: "Bloomcart SAC", AccountNumber: "987654321"},
			{Method: "wallet_b", Label: "Wallet B", AccountName: "Bloomcart SAC"},
		},
	}
}

func (f *fakeStorefront) Districts(context.Context) ([]storefront.District, error) {
	return f.districts, f.err
}

func (f *fakeStorefront) District(_ context.Context, id string) (*storefront.District, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.districts {
		if f.districts[i].ID == id {
			d := f.districts[i]
			return &d, nil
		}
	}
	return nil, storefront.ErrDistrictNotFound
}

func (f *fakeStorefront) StoreInfo(context.Context) (*storefront.StoreInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &storefront.StoreInfo{Name: "Bloomcart", Address: "Av. Larco 123"}, nil
}

func (f *fakeStorefront) PaymentChannels(context.Context) ([]storefront.PaymentChannel, error) {
	return f.channels, f.err
}

func (f *fakeStorefront) PaymentChannel(_ context.Context, method string) (*storefront.PaymentChannel, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.channels {
		if f.channels[i].Method == method {
			ch := f.channels[i]
			return &ch, nil
		}
	}
	return nil, storefront.ErrChannelNotFound
}

type fakeDrafts struct {
	mu     sync.Mutex
	drafts map[uuid.UUID]*order.Draft
	err    error
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{drafts: map[uuid.UUID]*order.Draft{}}
}

func (f *fakeDrafts) CreateDraft(_ context.Context, s *checkout.Session) (*order.DraftResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, d := range f.drafts {
		if d.IdempotencyKey == s.IdempotencyKey && d.Status == order.DraftAwaitingPayment {
			return result(d), nil
		}
	}
	d := &order.Draft{
		ID:             uuid.New(),
		DraftNumber:    utils.FormatDraftNumber(int64(len(f.drafts) + 1)),
		IdempotencyKey: s.IdempotencyKey,
		CheckoutID:     s.ID,
		Total:          s.Totals.Total,
		Currency:       "PEN",
		IntentID:       "pi_" + s.ID.String()[:8],
		ClientToken:    "secret_" + s.ID.String()[:8],
		Status:         order.DraftAwaitingPayment,
	}
	f.drafts[d.ID] = d
	return result(d), nil
}

func (f *fakeDrafts) Status(_ context.Context, id uuid.UUID) (*order.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[id]
	if !ok {
		return nil, apperr.NotFound("draft not found")
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDrafts) set(id uuid.UUID, status order.DraftStatus, orderNumber string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts[id].Status = status
	f.drafts[id].OrderNumber = orderNumber
}

func result(d *order.Draft) *order.DraftResult {
	return &order.DraftResult{
		DraftID:     d.ID,
		DraftNumber: d.DraftNumber,
		IntentID:    d.IntentID,
		ClientToken: d.ClientToken,
		Total:       d.Total,
		Currency:    d.Currency,
		Status:      d.Status,
	}
}

type fakeFinalizer struct {
	drafts    *fakeDrafts
	discarded []uuid.UUID
}

func (f *fakeFinalizer) Discard(_ context.Context, id uuid.UUID, _ string) error {
	f.drafts.mu.Lock()
	defer f.drafts.mu.Unlock()
	d, ok := f.drafts.drafts[id]
	if !ok {
		return apperr.NotFound("draft not found")
	}
	switch d.Status {
	case order.DraftPromoted:
		return apperr.Conflict("draft already promoted to order " + d.OrderNumber)
	case order.DraftPaymentConfirmed:
		return apperr.Conflict("draft payment already confirmed")
	}
	d.Status = order.DraftDiscarded
	f.discarded = append(f.discarded, id)
	return nil
}

type fakeWallet struct {
	mu        sync.Mutex
	orders    map[string]*order.Order
	proofs    map[string]*order.PaymentProof
	cancelled []string
	tokens    map[string]string
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		orders: map[string]*order.Order{},
		proofs: map[string]*order.PaymentProof{},
		tokens: map[string]string{"good-token": "ORD-000001"},
	}
}

func (f *fakeWallet) CreateOrder(_ context.Context, s *checkout.Session) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.IdempotencyKey == s.IdempotencyKey {
			return o, nil
		}
	}
	o := &order.Order{
		OrderNumber:       utils.FormatOrderNumber(int64(len(f.orders) + 1)),
		IdempotencyKey:    s.IdempotencyKey,
		CheckoutID:        s.ID,
		Snapshot:          order.SnapshotFromSession(s, s.Totals),
		Total:             s.Totals.Total,
		Currency:          "PEN",
		Method:            s.Method,
		PaymentStatus:     order.PaymentPending,
		FulfillmentStatus: order.FulfillmentReceived,
		CreatedAt:         time.Now(),
	}
	f.orders[o.OrderNumber] = o
	return o, nil
}

func (f *fakeWallet) AttachProof(_ context.Context, number string, u wallet.Upload) (*order.PaymentProof, error) {
	contentType, err := wallet.ValidateUpload(u, wallet.DefaultMaxProofBytes)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[number]; !ok {
		return nil, apperr.NotFound("order not found")
	}
	p := &order.PaymentProof{
		OrderNumber: number,
		URL:         "https://res.cloudinary.com/demo/proof_" + number + ".jpg",
		ContentType: contentType,
		Size:        int64(len(u.Data)),
		UploadedAt:  time.Now(),
	}
	f.proofs[number] = p
	return p, nil
}

func (f *fakeWallet) NotifyAndFinalize(_ context.Context, number string) (*wallet.Dispatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.proofs[number]; !ok {
		return nil, apperr.Conflict(wallet.ErrProofRequired.Error())
	}
	return &wallet.Dispatch{OrderNumber: number, DeepLink: "https://wa.me/51987654321?text=" + number, ClearCart: true}, nil
}

func (f *fakeWallet) Review(_ context.Context, token string) (*order.Order, *order.PaymentProof, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	number, ok := f.tokens[token]
	if !ok {
		return nil, nil, apperr.Validation("token", "review link is invalid or expired")
	}
	o, ok := f.orders[number]
	if !ok {
		return nil, nil, apperr.NotFound("order not found")
	}
	return o, f.proofs[number], nil
}

func (f *fakeWallet) VerifyPayment(_ context.Context, token string, approved bool) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	number, ok := f.tokens[token]
	if !ok {
		return nil, apperr.Validation("token", "review link is invalid or expired")
	}
	o, ok := f.orders[number]
	if !ok {
		return nil, apperr.NotFound("order not found")
	}
	to := order.PaymentFailed
	if approved {
		to = order.PaymentPaid
	}
	if o.PaymentStatus != order.PaymentPending && o.PaymentStatus != to {
		return nil, apperr.Conflict("payment already " + string(o.PaymentStatus))
	}
	o.PaymentStatus = to
	return o, nil
}

func (f *fakeWallet) Cancel(number string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, number)
	return true
}

var errBackendDown = errors.New("backend down")

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
