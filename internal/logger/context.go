package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey  ctxKey = "request_id"
	checkoutIDKey ctxKey = "checkout_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithCheckoutID tags every log line of a checkout attempt, including the
// headless gateway callback path once the draft is resolved.
func WithCheckoutID(ctx context.Context, checkoutID string) context.Context {
	return context.WithValue(ctx, checkoutIDKey, checkoutID)
}

func CheckoutIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(checkoutIDKey).(string); ok {
		return v
	}
	return ""
}

// FromCtx returns logger with request_id and checkout_id automatically added
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if checkoutID := CheckoutIDFrom(ctx); checkoutID != "" {
		l = l.With(zap.String("checkout_id", checkoutID))
	}
	return l
}
