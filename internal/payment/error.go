package payment

import "errors"

var (
	ErrDraftNotFound    = errors.New("no draft owns this payment intent")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrIntentNotFound   = errors.New("payment intent not found")
)
