package checkout

import "bloomcart-be/internal/apperr"

type Method string

const (
	MethodCard    Method = "card"
	MethodWalletA Method = "wallet_a"
	MethodWalletB Method = "wallet_b"
)

// Payment is the payment choice made at the payment step. Card and wallet
// payments run structurally different workflows, so callers switch on the
// concrete type once instead of branching on the method string.
type Payment interface {
	Method() Method
	isPayment()
}

// CardPayment is pre-committed as a draft and confirmed by the gateway.
type CardPayment struct{}

func (CardPayment) Method() Method { return MethodCard }
func (CardPayment) isPayment()     {}

// WalletPayment is committed as an order and verified by a human from an uploaded proof.
type WalletPayment struct {
	Wallet Method
}

func (w WalletPayment) Method() Method { return w.Wallet }
func (WalletPayment) isPayment()       {}

func ParsePayment(method string) (Payment, error) {
	switch Method(method) {
	case MethodCard:
		return CardPayment{}, nil
	case MethodWalletA, MethodWalletB:
		return WalletPayment{Wallet: Method(method)}, nil
	}
	return nil, apperr.Validation("paymentMethod", "must be one of: card wallet_a wallet_b")
}
