package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type IntentStatus string

const (
	IntentCreated    IntentStatus = "created"
	IntentAuthorized IntentStatus = "authorized"
	IntentCaptured   IntentStatus = "captured"
	IntentFailed     IntentStatus = "failed"
	IntentExpired    IntentStatus = "expired"
)

// Paid reports whether the processor has taken the customer's money.
func (s IntentStatus) Paid() bool {
	return s == IntentAuthorized || s == IntentCaptured
}

// Dead reports whether the intent can never be paid.
func (s IntentStatus) Dead() bool {
	return s == IntentFailed || s == IntentExpired
}

// Intent is a card processor payment intent. It is exclusively owned by one draft.
type Intent struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ClientToken string          `json:"client_token"`
	Status      IntentStatus    `json:"status"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type IntentRequest struct {
	Amount    decimal.Decimal
	Currency  string
	Customer  Customer
	Reference string
	// IdempotencyKey is sent to the processor so a retried creation returns
	// the same intent instead of a second chargeable one.
	IdempotencyKey string
	ExpiresAt      time.Time
}

type Outcome string

const (
	OutcomePending         Outcome = "pending"
	OutcomePromoted        Outcome = "promoted"
	OutcomeAlreadyPromoted Outcome = "already_promoted"
	OutcomeDiscarded       Outcome = "discarded"
)

type ConfirmResult struct {
	IntentID    string
	DraftID     uuid.UUID
	Status      IntentStatus
	Outcome     Outcome
	OrderNumber string
}

// DraftRef is what confirmation needs to know about the draft owning an intent.
type DraftRef struct {
	ID          uuid.UUID
	Total       decimal.Decimal
	Currency    string
	Promoted    bool
	OrderNumber string
}
