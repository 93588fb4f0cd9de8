package domain

import (
	"context"
)

// RecordPath is a file holding an exported record list.
type RecordPath string

// RecordRepository defines the interface for exported record lists
type RecordRepository interface {
	Get(ctx context.Context, path RecordPath) ([]Record, error)
	Store(ctx context.Context, path RecordPath, records []Record) error
}
