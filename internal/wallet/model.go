package wallet

import (
	"time"
)

// Upload is a proof image as received from the customer.
type Upload struct {
	Filename string
	Data     []byte
}

// Dispatch confirms that staff were notified about a wallet payment.
type Dispatch struct {
	OrderNumber string `json:"orderNumber"`
	DeepLink    string `json:"deepLink"`
	ClearCart   bool   `json:"clearCart"`
}

// StoredProof is where a proof image ended up in the media store.
type StoredProof struct {
	URL      string
	PublicID string
	Bytes    int64
	StoredAt time.Time
}
