package domain

import "context"

// NotificationService defines the interface for notification services
type NotificationService interface {
	// SendCollected announces a record added to the collection
	SendCollected(ctx context.Context, record Record) error

	// SendError sends an error notification with error details
	SendError(ctx context.Context, err error) error
}
