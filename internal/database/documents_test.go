package database

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/mediahub/internal/domain"
)

func newTestRepo(t *testing.T) domain.DocumentStore {
	t.Helper()

	db, err := NewDB(Memory, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewDocumentRepo(zerolog.Nop(), db)
}

func TestNewDB_Migrates(t *testing.T) {
	db, err := NewDB(Memory, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	version, err := db.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)

	require.NoError(t, db.Migrate(), "migrating twice is a no-op")
	require.NoError(t, db.Ping())
}

func TestNewDB_File(t *testing.T) {
	dir := t.TempDir()

	db, err := NewDB(dir, zerolog.Nop())
	require.NoError(t, err)

	repo := NewDocumentRepo(zerolog.Nop(), db)
	_, err = repo.CreateDocument(context.Background(), "mediahub", "media", map[string]any{"title_zh": "盗梦空间"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(dir, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	docs, err := NewDocumentRepo(zerolog.Nop(), db).ListDocuments(context.Background(), "mediahub", "media", nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "盗梦空间", docs[0].String("title_zh"))
}

func TestDocumentRepo_CreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.CreateDocument(ctx, "mediahub", "media", map[string]any{
		"title_zh":     "星际牛仔",
		"release_date": "1998-10-23",
		"year":         1998,
		"rating":       9.1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "media", created.Collection)
	assert.Equal(t, float64(1998), created.Data["year"])

	_, err = repo.CreateDocument(ctx, "mediahub", "media", map[string]any{"title_zh": "攻壳机动队", "year": 1995})
	require.NoError(t, err)
	_, err = repo.CreateDocument(ctx, "other", "media", map[string]any{"title_zh": "星际牛仔"})
	require.NoError(t, err)

	docs, err := repo.ListDocuments(ctx, "mediahub", "media", nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, created.ID, docs[0].ID)
	assert.Equal(t, 9.1, docs[0].Float("rating", -1))
	assert.False(t, docs[0].CreatedAt.IsZero())

	docs, err = repo.ListDocuments(ctx, "mediahub", "media", map[string]any{
		"title_zh":     "星际牛仔",
		"release_date": "1998-10-23",
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, created.ID, docs[0].ID)

	docs, err = repo.ListDocuments(ctx, "mediahub", "media", map[string]any{"year": 1995})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "攻壳机动队", docs[0].String("title_zh"))

	docs, err = repo.ListDocuments(ctx, "mediahub", "media", map[string]any{"title_zh": "none"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDocumentRepo_InvalidFilter(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.ListDocuments(context.Background(), "mediahub", "media", map[string]any{"a') OR 1=1 --": "x"})
	assert.ErrorContains(t, err, "invalid filter field")
}

func TestDocumentRepo_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	doc, err := repo.CreateDocument(ctx, "mediahub", "collection", map[string]any{"user_id": "local"})
	require.NoError(t, err)

	err = repo.DeleteDocument(ctx, "mediahub", "media", doc.ID)
	assert.True(t, errors.Is(err, domain.ErrDocumentNotFound), "collection must match")

	require.NoError(t, repo.DeleteDocument(ctx, "mediahub", "collection", doc.ID))

	docs, err := repo.ListDocuments(ctx, "mediahub", "collection", nil)
	require.NoError(t, err)
	assert.Empty(t, docs)

	err = repo.DeleteDocument(ctx, "mediahub", "collection", doc.ID)
	assert.True(t, errors.Is(err, domain.ErrDocumentNotFound))
}
