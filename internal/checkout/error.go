package checkout

import "errors"

var (
	ErrSessionNotFound = errors.New("checkout session not found")
	ErrEmptyCart       = errors.New("cart is empty")
)
