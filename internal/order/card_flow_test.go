package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"bloomcart-be/internal/apperr"
	"bloomcart-be/internal/checkout"
	"bloomcart-be/internal/payment"
	"bloomcart-be/internal/storefront"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway behaves like the card processor: creation is idempotent per key
// and intents change status when the test says the customer paid.
type fakeGateway struct {
	mu          sync.Mutex
	seq         int
	intents     map[string]payment.Intent
	byKey       map[string]string
	createCalls int
	cancelled   []string
	failCreate  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		intents: map[string]payment.Intent{},
		byKey:   map[string]string{},
	}
}

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if g.failCreate != nil {
		return nil, g.failCreate
	}
	if id, ok := g.byKey[req.IdempotencyKey]; ok {
		in := g.intents[id]
		return &in, nil
	}
	g.seq++
	id := fmt.Sprintf("pi_%d", g.seq)
	in := payment.Intent{
		ID:          id,
		Amount:      req.Amount,
		Currency:    req.Currency,
		ClientToken: "tok_" + id,
		Status:      payment.IntentCreated,
	}
	g.intents[id] = in
	g.byKey[req.IdempotencyKey] = id
	return &in, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, intentID string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[intentID]
	if !ok {
		return nil, payment.ErrIntentNotFound
	}
	return &in, nil
}

func (g *fakeGateway) CancelIntent(_ context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, intentID)
	in := g.intents[intentID]
	in.Status = payment.IntentExpired
	g.intents[intentID] = in
	return nil
}

func (g *fakeGateway) VerifySignature(*http.Request) error { return nil }

func (g *fakeGateway) setStatus(intentID string, status payment.IntentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in := g.intents[intentID]
	in.Status = status
	g.intents[intentID] = in
}

type districtTable map[string]storefront.District

func (t districtTable) District(_ context.Context, id string) (*storefront.District, error) {
	d, ok := t[id]
	if !ok {
		return nil, storefront.ErrDistrictNotFound
	}
	return &d, nil
}

type harness struct {
	repo    *memRepository
	gw      *fakeGateway
	drafts  *DraftService
	fin     *Finalizer
	adapter *payment.Adapter
}

func newHarness() *harness {
	repo := newMemRepository()
	gw := newFakeGateway()
	fin := NewFinalizer(repo, gw)
	hooks := NewPaymentHooks(repo, fin)
	adapter := payment.NewAdapter(gw, hooks, hooks)
	pricer := checkout.NewPricer(districtTable{
		"miraflores": {ID: "miraflores", Name: "Miraflores", ShippingCost: decimal.RequireFromString("10.00")},
		"surco":      {ID: "surco", Name: "Santiago de Surco", ShippingCost: decimal.RequireFromString("25.00")},
	})

	return &harness{
		repo:    repo,
		gw:      gw,
		drafts:  NewDraftService(repo, adapter, pricer, "PEN", 30*time.Minute),
		fin:     fin,
		adapter: adapter,
	}
}

// cardSession is a checkout at the payment step: 150.00 of flowers delivered
// to a district with 10.00 shipping.
func cardSession() *checkout.Session {
	return &checkout.Session{
		ID:             uuid.New(),
		IdempotencyKey: uuid.New(),
		Step:           checkout.StepPayment,
		Mode:           checkout.ModeDelivery,
		Method:         checkout.MethodCard,
		Customer: checkout.CustomerInfo{
			FullName:   "Rosa Quispe",
			Email:      "rosa@example.com",
			Phone:      "987654321",
			NationalID: "44556677",
		},
		Delivery: checkout.DeliveryInfo{
			Mode:       checkout.ModeDelivery,
			DistrictID: "miraflores",
			Address:    "Av. Larco 123",
			Date:       "2026-02-14",
			TimeSlot:   checkout.SlotMorning,
			Dedication: "Feliz aniversario",
		},
		Cart: checkout.CartSnapshot{Lines: []checkout.CartLine{
			{Kind: checkout.KindFlower, ProductID: "rose-box", Name: "Rose box", UnitPrice: decimal.RequireFromString("120.00"), Quantity: 1},
			{Kind: checkout.KindComplement, ProductID: "card", Name: "Greeting card", UnitPrice: decimal.RequireFromString("15.00"), Quantity: 2},
		}},
		Totals: checkout.Totals{
			Subtotal: decimal.RequireFromString("150.00"),
			Shipping: decimal.RequireFromString("10.00"),
			Total:    decimal.RequireFromString("160.00"),
		},
	}
}

func TestCardCheckout_HappyPath(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	res, err := h.drafts.CreateDraft(ctx, cardSession())
	require.NoError(t, err)
	assert.Equal(t, "DRF-000001", res.DraftNumber)
	assert.Equal(t, "tok_"+res.IntentID, res.ClientToken)
	assert.Equal(t, "160.00", res.Total.StringFixed(2))
	assert.Equal(t, 0, h.repo.orderCount(), "a draft is not an order")

	h.gw.setStatus(res.IntentID, payment.IntentCaptured)

	confirm, err := h.adapter.ConfirmCallback(ctx, res.IntentID)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomePromoted, confirm.Outcome)
	assert.Equal(t, "ORD-000001", confirm.OrderNumber)

	o, err := h.repo.GetOrder(ctx, confirm.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.Equal(t, FulfillmentReceived, o.FulfillmentStatus)
	assert.Equal(t, "160.00", o.Total.StringFixed(2))
	assert.Equal(t, checkout.MethodCard, o.Method)
	assert.Equal(t, "Feliz aniversario", o.Dedication)
	require.NotNil(t, o.DraftID)
	assert.Equal(t, res.DraftID, *o.DraftID)
	assert.Len(t, o.Snapshot.Lines, 2)

	d, _ := h.repo.GetDraft(ctx, res.DraftID)
	assert.Equal(t, DraftPromoted, d.Status)
	assert.Equal(t, o.OrderNumber, d.OrderNumber)

	t.Run("RepeatedCallbackIsNoop", func(t *testing.T) {
		again, err := h.adapter.ConfirmCallback(ctx, res.IntentID)
		require.NoError(t, err)
		assert.Equal(t, payment.OutcomeAlreadyPromoted, again.Outcome)
		assert.Equal(t, confirm.OrderNumber, again.OrderNumber)
		assert.Equal(t, 1, h.repo.orderCount())
	})
}

func TestCardCheckout_ConcurrentCallbacks(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	res, err := h.drafts.CreateDraft(ctx, cardSession())
	require.NoError(t, err)
	h.gw.setStatus(res.IntentID, payment.IntentAuthorized)

	const n = 8
	numbers := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := h.adapter.ConfirmCallback(ctx, res.IntentID)
			errs[i] = err
			if r != nil {
				numbers[i] = r.OrderNumber
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, numbers[0], numbers[i])
	}
	assert.Equal(t, 1, h.repo.orderCount())
}

func TestFinalizer_ConcurrentPromote(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	res, err := h.drafts.CreateDraft(ctx, cardSession())
	require.NoError(t, err)
	require.NoError(t, h.fin.ConfirmPayment(ctx, res.DraftID))

	const n = 10
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		succeeded  int
		violations int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.fin.Promote(ctx, res.DraftID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.Is(err, apperr.KindConsistency):
				violations++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, violations)
	assert.Equal(t, 1, h.repo.orderCount())

	d, _ := h.repo.GetDraft(ctx, res.DraftID)
	assert.Equal(t, DraftPromoted, d.Status)
}

func TestCardCheckout_DeadIntentNeverPromotes(t *testing.T) {
	for _, status := range []payment.IntentStatus{payment.IntentFailed, payment.IntentExpired} {
		t.Run(string(status), func(t *testing.T) {
			ctx := context.Background()
			h := newHarness()

			res, err := h.drafts.CreateDraft(ctx, cardSession())
			require.NoError(t, err)

			h.gw.setStatus(res.IntentID, status)
			confirm, err := h.adapter.ConfirmCallback(ctx, res.IntentID)
			require.NoError(t, err)
			assert.Equal(t, payment.OutcomeDiscarded, confirm.Outcome)

			d, _ := h.repo.GetDraft(ctx, res.DraftID)
			assert.Equal(t, DraftDiscarded, d.Status)
			assert.Equal(t, 0, h.repo.orderCount())

			// a late success report for the same intent cannot revive it
			h.gw.setStatus(res.IntentID, payment.IntentCaptured)
			_, err = h.adapter.ConfirmCallback(ctx, res.IntentID)
			assert.True(t, apperr.Is(err, apperr.KindExpired))
			assert.Equal(t, 0, h.repo.orderCount())
		})
	}
}

func TestCardCheckout_AbandonedDraft(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	res, err := h.drafts.CreateDraft(ctx, cardSession())
	require.NoError(t, err)

	swept, err := h.fin.DiscardExpired(ctx, time.Now().Add(31*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Contains(t, h.gw.cancelled, res.IntentID)

	h.gw.setStatus(res.IntentID, payment.IntentCaptured)
	_, err = h.adapter.ConfirmCallback(ctx, res.IntentID)
	assert.True(t, apperr.Is(err, apperr.KindExpired))
	assert.Equal(t, 0, h.repo.orderCount())

	_, err = h.fin.Promote(ctx, res.DraftID)
	assert.True(t, apperr.Is(err, apperr.KindExpired))
}

func TestCardCheckout_ConfirmAfterExpiryBeforeSweep(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	res, err := h.drafts.CreateDraft(ctx, cardSession())
	require.NoError(t, err)

	h.fin.now = func() time.Time { return time.Now().Add(time.Hour) }
	h.gw.setStatus(res.IntentID, payment.IntentCaptured)

	_, err = h.adapter.ConfirmCallback(ctx, res.IntentID)
	assert.True(t, apperr.Is(err, apperr.KindExpired))

	d, _ := h.repo.GetDraft(ctx, res.DraftID)
	assert.Equal(t, DraftDiscarded, d.Status)
	assert.Equal(t, "expired", d.FailureReason)
	assert.Equal(t, 0, h.repo.orderCount())
}

func TestDraftService_CreateDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("IdempotentPerCheckout", func(t *testing.T) {
		h := newHarness()
		s := cardSession()

		first, err := h.drafts.CreateDraft(ctx, s)
		require.NoError(t, err)
		second, err := h.drafts.CreateDraft(ctx, s)
		require.NoError(t, err)

		assert.Equal(t, first.DraftID, second.DraftID)
		assert.Equal(t, first.IntentID, second.IntentID)
		assert.Equal(t, 1, h.gw.createCalls)
		assert.Len(t, h.repo.draftsFor(s.IdempotencyKey), 1)
	})

	t.Run("ConcurrentCallsShareOneDraft", func(t *testing.T) {
		h := newHarness()
		s := cardSession()

		const n = 6
		var wg sync.WaitGroup
		results := make([]*DraftResult, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = h.drafts.CreateDraft(ctx, s)
			}(i)
		}
		wg.Wait()

		var draftID uuid.UUID
		for i := 0; i < n; i++ {
			if errs[i] != nil {
				assert.True(t, apperr.Is(errs[i], apperr.KindConflict), "unexpected error: %v", errs[i])
				continue
			}
			if draftID == uuid.Nil {
				draftID = results[i].DraftID
			}
			assert.Equal(t, draftID, results[i].DraftID)
		}
		assert.NotEqual(t, uuid.Nil, draftID)
		assert.Len(t, h.repo.draftsFor(s.IdempotencyKey), 1)
		assert.Equal(t, 1, h.gw.createCalls)
	})

	t.Run("ServerComputesTotal", func(t *testing.T) {
		h := newHarness()
		s := cardSession()
		s.Totals.Total = decimal.NewFromInt(1)

		res, err := h.drafts.CreateDraft(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, "160.00", res.Total.StringFixed(2))

		in, _ := h.gw.GetIntent(ctx, res.IntentID)
		assert.Equal(t, "160.00", in.Amount.StringFixed(2))
	})

	t.Run("GatewayRejectionDiscardsDraft", func(t *testing.T) {
		h := newHarness()
		s := cardSession()
		h.gw.failCreate = errors.New("card gateway error (status 402)")

		_, err := h.drafts.CreateDraft(ctx, s)
		assert.True(t, apperr.Is(err, apperr.KindGateway))
		assert.Contains(t, err.Error(), "payment initiation failed")

		drafts := h.repo.draftsFor(s.IdempotencyKey)
		require.Len(t, drafts, 1)
		assert.Equal(t, DraftDiscarded, drafts[0].Status)

		// the customer can retry once the processor recovers
		h.gw.failCreate = nil
		res, err := h.drafts.CreateDraft(ctx, s)
		require.NoError(t, err)
		assert.NotEqual(t, drafts[0].ID, res.DraftID)
	})

	t.Run("ChangedDeliveryReplacesDraft", func(t *testing.T) {
		h := newHarness()
		s := cardSession()

		first, err := h.drafts.CreateDraft(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, "160.00", first.Total.StringFixed(2))

		s.Delivery.DistrictID = "surco"
		second, err := h.drafts.CreateDraft(ctx, s)
		require.NoError(t, err)

		assert.NotEqual(t, first.DraftID, second.DraftID)
		assert.NotEqual(t, first.IntentID, second.IntentID)
		assert.Equal(t, "175.00", second.Total.StringFixed(2))
		assert.Contains(t, h.gw.cancelled, first.IntentID)

		old, _ := h.repo.GetDraft(ctx, first.DraftID)
		assert.Equal(t, DraftDiscarded, old.Status)
		assert.Equal(t, "checkout changed", old.FailureReason)

		fresh, _ := h.repo.GetDraft(ctx, second.DraftID)
		assert.Equal(t, "surco", fresh.Snapshot.Delivery.DistrictID)
		in, _ := h.gw.GetIntent(ctx, second.IntentID)
		assert.Equal(t, "175.00", in.Amount.StringFixed(2))
	})

	t.Run("ChangedRecipientReplacesDraft", func(t *testing.T) {
		h := newHarness()
		s := cardSession()

		first, err := h.drafts.CreateDraft(ctx, s)
		require.NoError(t, err)

		s.Delivery.Address = "Jr. Tacna 456"
		second, err := h.drafts.CreateDraft(ctx, s)
		require.NoError(t, err)

		assert.NotEqual(t, first.DraftID, second.DraftID)
		assert.Equal(t, "160.00", second.Total.StringFixed(2))
	})

	t.Run("PaidDraftIsNotReplaced", func(t *testing.T) {
		h := newHarness()
		s := cardSession()

		first, err := h.drafts.CreateDraft(ctx, s)
		require.NoError(t, err)
		ok, err := h.repo.ConfirmDraftPayment(ctx, first.DraftID, time.Now())
		require.NoError(t, err)
		require.True(t, ok)

		s.Delivery.DistrictID = "surco"
		second, err := h.drafts.CreateDraft(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, first.DraftID, second.DraftID)
		assert.Empty(t, h.gw.cancelled)
	})

	t.Run("AttachFailureReleasesIntent", func(t *testing.T) {
		h := newHarness()
		s := cardSession()
		h.repo.attachErr = errors.New("db blip")

		_, err := h.drafts.CreateDraft(ctx, s)
		require.Error(t, err)

		drafts := h.repo.draftsFor(s.IdempotencyKey)
		require.Len(t, drafts, 1)
		assert.Equal(t, DraftDiscarded, drafts[0].Status)
		require.Len(t, h.gw.cancelled, 1)

		// the retry is not locked out by the failed attempt
		res, err := h.drafts.CreateDraft(ctx, s)
		require.NoError(t, err)
		assert.NotEqual(t, drafts[0].ID, res.DraftID)
		assert.NotEmpty(t, res.IntentID)
	})

	t.Run("StrandedDraftRecoversIntent", func(t *testing.T) {
		h := newHarness()
		s := cardSession()

		// a draft whose creating call died before it recorded the intent
		stranded := &Draft{
			ID:             uuid.New(),
			DraftNumber:    "DRF-000099",
			IdempotencyKey: s.IdempotencyKey,
			CheckoutID:     s.ID,
			Snapshot:       SnapshotFromSession(s, s.Totals),
			Total:          s.Totals.Total,
			Currency:       "PEN",
			Status:         DraftAwaitingPayment,
			ExpiresAt:      time.Now().Add(30 * time.Minute),
		}
		require.NoError(t, h.repo.InsertDraft(ctx, stranded))
		orphan, err := h.gw.CreateIntent(ctx, payment.IntentRequest{
			Amount:         stranded.Total,
			Currency:       "PEN",
			IdempotencyKey: stranded.ID.String(),
		})
		require.NoError(t, err)

		_, err = h.drafts.CreateDraft(ctx, s)
		assert.True(t, apperr.Is(err, apperr.KindConflict))

		h.drafts.now = func() time.Time { return time.Now().Add(time.Minute) }
		res, err := h.drafts.CreateDraft(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, stranded.ID, res.DraftID)
		assert.Equal(t, orphan.ID, res.IntentID)

		// once attached, the sweep can release it
		swept, err := h.fin.DiscardExpired(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, swept)
		assert.Contains(t, h.gw.cancelled, orphan.ID)
	})

	t.Run("UnknownDistrict", func(t *testing.T) {
		h := newHarness()
		s := cardSession()
		s.Delivery.DistrictID = "atlantis"

		_, err := h.drafts.CreateDraft(ctx, s)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Equal(t, 0, h.gw.createCalls)
	})

	t.Run("RejectsWalletSession", func(t *testing.T) {
		h := newHarness()
		s := cardSession()
		s.Method = checkout.MethodWalletA

		_, err := h.drafts.CreateDraft(ctx, s)
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})

	t.Run("RejectsWrongStep", func(t *testing.T) {
		h := newHarness()
		s := cardSession()
		s.Step = checkout.StepAddress

		_, err := h.drafts.CreateDraft(ctx, s)
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})

	t.Run("RejectsWhenOrderExists", func(t *testing.T) {
		h := newHarness()
		s := cardSession()
		require.NoError(t, h.repo.CreateOrder(ctx, &Order{ID: uuid.New(), IdempotencyKey: s.IdempotencyKey}))

		_, err := h.drafts.CreateDraft(ctx, s)
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})
}

func TestFinalizer_Discard(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	res, err := h.drafts.CreateDraft(ctx, cardSession())
	require.NoError(t, err)

	require.NoError(t, h.fin.Discard(ctx, res.DraftID, "customer switched to wallet"))
	// discarding twice is harmless
	require.NoError(t, h.fin.Discard(ctx, res.DraftID, "customer switched to wallet"))

	t.Run("PromotedDraftCannotBeDiscarded", func(t *testing.T) {
		res, err := h.drafts.CreateDraft(ctx, cardSession())
		require.NoError(t, err)
		h.gw.setStatus(res.IntentID, payment.IntentCaptured)
		_, err = h.adapter.ConfirmCallback(ctx, res.IntentID)
		require.NoError(t, err)

		err = h.fin.Discard(ctx, res.DraftID, "late")
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})

	t.Run("Unknown", func(t *testing.T) {
		err := h.fin.Discard(ctx, uuid.New(), "x")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}
