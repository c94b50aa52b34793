package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type Kind string

const (
	KindValidation           Kind = "VALIDATION"
	KindGateway              Kind = "GATEWAY"
	KindUpload               Kind = "UPLOAD"
	KindNotificationDispatch Kind = "NOTIFICATION_DISPATCH"
	KindConsistency          Kind = "CONSISTENCY_VIOLATION"
	KindNotFound             Kind = "NOT_FOUND"
	KindConflict             Kind = "CONFLICT"
	KindExpired              Kind = "EXPIRED"
)

// UploadReason narrows an upload failure.
type UploadReason string

const (
	UploadMissing     UploadReason = "MISSING_FILE"
	UploadTooLarge    UploadReason = "PAYLOAD_TOO_LARGE"
	UploadUnsupported UploadReason = "UNSUPPORTED_MEDIA_TYPE"
)

// FieldErrors maps a field path (e.g. "delivery.recipientPhone") to a message.
type FieldErrors map[string]string

func (f FieldErrors) Add(field, msg string) {
	if _, exists := f[field]; !exists {
		f[field] = msg
	}
}

func (f FieldErrors) Empty() bool { return len(f) == 0 }

// Err returns a validation error carrying the fields, or nil when there are none.
func (f FieldErrors) Err() error {
	if f.Empty() {
		return nil
	}
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: f}
}

func (f FieldErrors) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return strings.Join(parts, "; ")
}

type Error struct {
	Kind    Kind
	Reason  UploadReason
	Message string
	Fields  FieldErrors
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, e.Fields.String())
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(field, msg string) error {
	return FieldErrors{field: msg}.Err()
}

func Gateway(msg string, err error) error {
	return &Error{Kind: KindGateway, Message: msg, Err: err}
}

func Upload(reason UploadReason, msg string) error {
	return &Error{Kind: KindUpload, Reason: reason, Message: msg}
}

func NotificationDispatch(err error) error {
	return &Error{Kind: KindNotificationDispatch, Message: "notification dispatch failed", Err: err}
}

func Consistency(msg string) error {
	return &Error{Kind: KindConsistency, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Expired(msg string) error {
	return &Error{Kind: KindExpired, Message: msg}
}

// KindOf returns the taxonomy kind of err, or "" for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindGateway:
		return http.StatusBadGateway
	case KindUpload:
		switch e.Reason {
		case UploadTooLarge:
			return http.StatusRequestEntityTooLarge
		case UploadUnsupported:
			return http.StatusUnsupportedMediaType
		}
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindConsistency:
		return http.StatusConflict
	case KindExpired:
		return http.StatusGone
	}
	return http.StatusInternalServerError
}
