package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/varoOP/mediahub/internal/domain"
	"gopkg.in/yaml.v3"
)

// FileRepository implements domain.RecordRepository using file storage.
// Files ending in .yaml or .yml hold YAML; anything else holds JSON.
type FileRepository struct {
	log zerolog.Logger
}

func NewFileRepository(log zerolog.Logger) *FileRepository {
	return &FileRepository{
		log: log.With().Str("module", "repository").Logger(),
	}
}

var _ domain.RecordRepository = (*FileRepository)(nil)

func isYAML(path domain.RecordPath) bool {
	switch strings.ToLower(filepath.Ext(string(path))) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Get reads a record list from a file.
func (r *FileRepository) Get(ctx context.Context, path domain.RecordPath) ([]domain.Record, error) {
	records := []domain.Record{}

	info, err := os.Stat(string(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	body, err := os.ReadFile(string(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(body, &records)
	} else {
		err = json.Unmarshal(body, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return records, nil
}

// Store writes records to a file, creating its directory.
func (r *FileRepository) Store(ctx context.Context, path domain.RecordPath, records []domain.Record) error {
	if records == nil {
		records = []domain.Record{}
	}

	var (
		b   []byte
		err error
	)
	if isYAML(path) {
		b, err = yaml.Marshal(records)
	} else {
		b, err = json.MarshalIndent(records, "", "   ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	dir := filepath.Dir(string(path))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(string(path), b, 0644); err != nil {
		return fmt.Errorf("failed to write to file %s: %w", path, err)
	}

	r.log.Debug().Str("path", string(path)).Int("count", len(records)).Msg("stored records")
	return nil
}
