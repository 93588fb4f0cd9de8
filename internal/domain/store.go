package domain

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrAlreadyCollected = errors.New("record is already collected")
	ErrNotCollected     = errors.New("record is not collected")
	ErrDocumentNotFound = errors.New("document not found")
)

// Document is one entry in a document collection.
type Document struct {
	ID         string
	Database   string
	Collection string
	Data       map[string]any
	CreatedAt  time.Time
}

// String returns a data field as a string, or "" when missing.
func (d Document) String(key string) string {
	if v, ok := d.Data[key].(string); ok {
		return v
	}
	return ""
}

// Float returns a numeric data field, or def when missing.
func (d Document) Float(key string, def float64) float64 {
	switch v := d.Data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// DocumentStore is the persistence collaborator the collection service needs.
// Filters are equality matches on top-level data fields.
type DocumentStore interface {
	ListDocuments(ctx context.Context, database, collection string, filters map[string]any) ([]Document, error)
	CreateDocument(ctx context.Context, database, collection string, data map[string]any) (Document, error)
	DeleteDocument(ctx context.Context, database, collection, id string) error
}

// CollectedItem is a collection entry joined with its media document.
type CollectedItem struct {
	DocumentID  string     `json:"id" yaml:"id"`
	MediaID     string     `json:"media_id" yaml:"media_id"`
	SourceType  SourceType `json:"source_type,omitempty" yaml:"source_type,omitempty"`
	SourceID    string     `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	Title       string     `json:"title" yaml:"title"`
	MediaType   MediaType  `json:"media_type" yaml:"media_type"`
	ReleaseDate string     `json:"release_date,omitempty" yaml:"release_date,omitempty"`
	PosterURL   string     `json:"poster_url,omitempty" yaml:"poster_url,omitempty"`
	WatchStatus string     `json:"watch_status" yaml:"watch_status"`
	Notes       string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	AddedAt     time.Time  `json:"added_at" yaml:"added_at"`
}
