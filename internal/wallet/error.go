package wallet

import "errors"

var (
	ErrNotWalletOrder = errors.New("order is not paid by wallet transfer")
	ErrProofRequired  = errors.New("payment proof has not been uploaded")
	ErrProofRejected  = errors.New("media store rejected the proof")

	ErrNoAccountNumber = errors.New("payment channel has no account number")
)
