package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/mediahub/internal/domain"
)

func sample() []domain.Record {
	return []domain.Record{
		{
			SourceType:     domain.SourceBangumi,
			SourceID:       "253",
			SourceURL:      "https://bgm.tv/subject/253",
			MediaType:      domain.MediaAnime,
			TitleLocalized: "星际牛仔",
			TitleOriginal:  "カウボーイビバップ",
			ReleaseDate:    "1998-04-03",
			Year:           "1998",
			Duration:       "26",
			RatingDouban:   domain.NoRating(),
			RatingIMDb:     domain.NoRating(),
			RatingBangumi:  domain.NewRating(9.1),
		},
		{
			SourceType:     domain.SourceBangumi,
			SourceID:       "4019",
			MediaType:      domain.MediaAnime,
			TitleLocalized: "星际牛仔 天国之门",
			RatingDouban:   domain.NoRating(),
			RatingIMDb:     domain.NoRating(),
			RatingBangumi:  domain.ParseRating("--"),
		},
	}
}

func TestFileRepository_RoundTrip(t *testing.T) {
	repo := NewFileRepository(zerolog.Nop())
	dir := t.TempDir()

	for _, name := range []string{"out/records.json", "out/records.yaml", "records.YML"} {
		t.Run(name, func(t *testing.T) {
			path := domain.RecordPath(filepath.Join(dir, name))

			require.NoError(t, repo.Store(context.Background(), path, sample()))

			got, err := repo.Get(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, sample(), got)
		})
	}
}

func TestFileRepository_Format(t *testing.T) {
	repo := NewFileRepository(zerolog.Nop())
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "r.json")
	yamlPath := filepath.Join(dir, "r.yaml")
	require.NoError(t, repo.Store(context.Background(), domain.RecordPath(jsonPath), sample()[:1]))
	require.NoError(t, repo.Store(context.Background(), domain.RecordPath(yamlPath), sample()[:1]))

	b, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"source_id": "253"`)

	b, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), `source_id: "253"`)
}

func TestFileRepository_StoreEmpty(t *testing.T) {
	repo := NewFileRepository(zerolog.Nop())
	path := domain.RecordPath(filepath.Join(t.TempDir(), "empty.json"))

	require.NoError(t, repo.Store(context.Background(), path, nil))

	got, err := repo.Get(context.Background(), path)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFileRepository_GetErrors(t *testing.T) {
	repo := NewFileRepository(zerolog.Nop())
	dir := t.TempDir()

	_, err := repo.Get(context.Background(), domain.RecordPath(filepath.Join(dir, "missing.json")))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = repo.Get(context.Background(), domain.RecordPath(dir))
	assert.ErrorContains(t, err, "is a directory")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	_, err = repo.Get(context.Background(), domain.RecordPath(bad))
	assert.ErrorContains(t, err, "failed to unmarshal")
}
