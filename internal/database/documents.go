package database

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/mediahub/internal/domain"
)

// fixed width so created_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DocumentRepo implements domain.DocumentStore
type DocumentRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewDocumentRepo(log zerolog.Logger, db *DB) domain.DocumentStore {
	return &DocumentRepo{
		log: log.With().Str("repo", "documents").Logger(),
		db:  db,
	}
}

// ListDocuments returns the documents of a collection whose top-level data
// fields equal every filter value, oldest first.
func (r *DocumentRepo) ListDocuments(ctx context.Context, database, collection string, filters map[string]any) ([]domain.Document, error) {
	where := sq.And{
		sq.Eq{"database_id": database},
		sq.Eq{"collection_id": collection},
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !fieldName.MatchString(k) {
			return nil, errors.Errorf("invalid filter field %q", k)
		}
		where = append(where, sq.Expr("json_extract(data, ?) = ?", "$."+k, filters[k]))
	}

	queryBuilder := r.db.squirrel.
		Select("id", "database_id", "collection_id", "data", "created_at").
		From("documents").
		Where(where).
		OrderBy("created_at ASC", "rowid ASC")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("ListDocuments")

	r.db.lock.RLock()
	defer r.db.lock.RUnlock()

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			doc       domain.Document
			data      string
			createdAt string
		)
		if err := rows.Scan(&doc.ID, &doc.Database, &doc.Collection, &data, &createdAt); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		if err := json.Unmarshal([]byte(data), &doc.Data); err != nil {
			return nil, errors.Wrapf(err, "error decoding document %s", doc.ID)
		}
		doc.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, errors.Wrapf(err, "error parsing created_at of document %s", doc.ID)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return docs, nil
}

func (r *DocumentRepo) CreateDocument(ctx context.Context, database, collection string, data map[string]any) (domain.Document, error) {
	if data == nil {
		data = map[string]any{}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return domain.Document{}, errors.Wrap(err, "error encoding document")
	}

	doc := domain.Document{
		ID:         uuid.NewString(),
		Database:   database,
		Collection: collection,
		CreatedAt:  time.Now().UTC(),
	}
	// store what a later read returns
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return domain.Document{}, errors.Wrap(err, "error decoding document")
	}

	queryBuilder := r.db.squirrel.
		Insert("documents").
		Columns("id", "database_id", "collection_id", "data", "created_at").
		Values(doc.ID, database, collection, string(raw), doc.CreatedAt.Format(timeLayout))

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return domain.Document{}, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("CreateDocument")

	r.db.lock.RLock()
	defer r.db.lock.RUnlock()

	if _, err := r.db.handler.ExecContext(ctx, query, args...); err != nil {
		return domain.Document{}, errors.Wrap(err, "error executing query")
	}

	return doc, nil
}

func (r *DocumentRepo) DeleteDocument(ctx context.Context, database, collection, id string) error {
	queryBuilder := r.db.squirrel.
		Delete("documents").
		Where(sq.Eq{"id": id, "database_id": database, "collection_id": collection})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building delete query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("DeleteDocument")

	r.db.lock.RLock()
	defer r.db.lock.RUnlock()

	res, err := r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing delete query")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "error reading affected rows")
	}
	if n == 0 {
		return errors.Wrapf(domain.ErrDocumentNotFound, "document %s", id)
	}

	return nil
}
