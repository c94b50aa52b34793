package notify

import "errors"

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidReviewLink    = errors.New("invalid or expired review link")
	ErrMailerNotConfigured  = errors.New("smtp host is not configured")
)
