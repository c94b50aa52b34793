package notify

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindWalletProof Kind = "wallet_proof"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Message describes a wallet order that staff must verify by hand.
type Message struct {
	OrderNumber  string
	Kind         Kind
	// Reference tells apart notifications of the same kind for one order,
	// e.g. one per uploaded proof.
	Reference    string
	CustomerName string
	Phone        string
	Method       string
	Total        decimal.Decimal
	Currency     string
	ProofURL     string
	DeliveryDate string
	TimeSlot     string
}

// Notification is one outbox row. There is at most one per order, kind and
// reference.
type Notification struct {
	ID          int64
	OrderNumber string
	Kind        Kind
	Reference   string
	Recipient   string
	Subject     string
	Body        string
	DeepLink    string
	Status      Status
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	SentAt      *time.Time
}
