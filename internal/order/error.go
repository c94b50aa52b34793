package order

import "errors"

var (
	ErrDraftNotFound       = errors.New("draft not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrDraftExists         = errors.New("a live draft already exists for this checkout")
	ErrOrderExists         = errors.New("an order already exists for this checkout")
	ErrAlreadyPromoted     = errors.New("draft already promoted")
	ErrDraftDiscarded      = errors.New("draft discarded")
	ErrPaymentNotConfirmed = errors.New("draft payment not confirmed")
)
