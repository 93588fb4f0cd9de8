package collection

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/mediahub/internal/domain"
)

// Collection names inside the document store.
const (
	Media       = "media"
	MediaSource = "media_source"
	Collection  = "collection"
)

const DefaultWatchStatus = "planned"

type Service interface {
	IsCollected(ctx context.Context, userID, sourceID string) (bool, error)
	MarkCollected(ctx context.Context, userID string, records []domain.Record) ([]domain.Record, error)
	Add(ctx context.Context, userID string, record domain.Record, watchStatus, notes string) (domain.CollectedItem, error)
	Remove(ctx context.Context, userID, sourceID string) error
	List(ctx context.Context, userID string) ([]domain.CollectedItem, error)
}

type service struct {
	log      zerolog.Logger
	store    domain.DocumentStore
	database string
	now      func() time.Time
}

func NewService(log zerolog.Logger, store domain.DocumentStore, database string) Service {
	return &service{
		log:      log.With().Str("module", "collection").Logger(),
		store:    store,
		database: database,
		now:      time.Now,
	}
}

// mediaID resolves a source id to its media document id, or "" when the
// source was never stored.
func (s *service) mediaID(ctx context.Context, sourceID string) (string, error) {
	docs, err := s.store.ListDocuments(ctx, s.database, MediaSource, map[string]any{"source_id": sourceID})
	if err != nil {
		return "", errors.Wrapf(err, "could not look up source %s", sourceID)
	}
	if len(docs) == 0 {
		return "", nil
	}
	return docs[0].String("media_id"), nil
}

func (s *service) entries(ctx context.Context, userID, mediaID string) ([]domain.Document, error) {
	docs, err := s.store.ListDocuments(ctx, s.database, Collection, map[string]any{
		"user_id":  userID,
		"media_id": mediaID,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not look up collection of %s", userID)
	}
	return docs, nil
}

func (s *service) IsCollected(ctx context.Context, userID, sourceID string) (bool, error) {
	mediaID, err := s.mediaID(ctx, sourceID)
	if err != nil || mediaID == "" {
		return false, err
	}

	docs, err := s.entries(ctx, userID, mediaID)
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

func (s *service) MarkCollected(ctx context.Context, userID string, records []domain.Record) ([]domain.Record, error) {
	out := make([]domain.Record, len(records))
	for i, r := range records {
		collected, err := s.IsCollected(ctx, userID, r.SourceID)
		if err != nil {
			return nil, err
		}
		out[i] = r.WithCollected(collected)
	}
	return out, nil
}

// Add stores record for userID. The media document is shared by records with
// the same localized title and release date.
func (s *service) Add(ctx context.Context, userID string, record domain.Record, watchStatus, notes string) (domain.CollectedItem, error) {
	if record.SourceID == "" {
		return domain.CollectedItem{}, domain.NewUserInputError("source_id", "required")
	}
	if watchStatus == "" {
		watchStatus = DefaultWatchStatus
	}

	media, err := s.media(ctx, record)
	if err != nil {
		return domain.CollectedItem{}, err
	}

	if err := s.source(ctx, media.ID, record); err != nil {
		return domain.CollectedItem{}, err
	}

	existing, err := s.entries(ctx, userID, media.ID)
	if err != nil {
		return domain.CollectedItem{}, err
	}
	if len(existing) > 0 {
		return domain.CollectedItem{}, errors.Wrapf(domain.ErrAlreadyCollected, "%s", record.Key())
	}

	added := s.now().UTC().Truncate(time.Second)
	doc, err := s.store.CreateDocument(ctx, s.database, Collection, map[string]any{
		"user_id":      userID,
		"media_id":     media.ID,
		"added_time":   added.Format(time.RFC3339),
		"watch_status": watchStatus,
		"notes":        notes,
	})
	if err != nil {
		return domain.CollectedItem{}, errors.Wrap(err, "could not create collection entry")
	}

	s.log.Info().Str("user", userID).Str("record", record.Key().String()).Str("media", media.ID).Msg("added to collection")

	return item(doc, media, mediaSourceOf(record)), nil
}

func (s *service) media(ctx context.Context, record domain.Record) (domain.Document, error) {
	title := record.Title()
	docs, err := s.store.ListDocuments(ctx, s.database, Media, map[string]any{
		"title_zh":     title,
		"release_date": record.ReleaseDate,
	})
	if err != nil {
		return domain.Document{}, errors.Wrap(err, "could not look up media")
	}
	if len(docs) > 0 {
		s.log.Debug().Str("media", docs[0].ID).Str("title", title).Msg("reusing media")
		return docs[0], nil
	}

	doc, err := s.store.CreateDocument(ctx, s.database, Media, mediaData(record))
	if err != nil {
		return domain.Document{}, errors.Wrap(err, "could not create media")
	}
	return doc, nil
}

func (s *service) source(ctx context.Context, mediaID string, record domain.Record) error {
	existing, err := s.mediaID(ctx, record.SourceID)
	if err != nil {
		return err
	}
	if existing != "" {
		return nil
	}

	_, err = s.store.CreateDocument(ctx, s.database, MediaSource, map[string]any{
		"media_id":    mediaID,
		"source_type": string(record.SourceType),
		"source_id":   record.SourceID,
		"source_url":  record.SourceURL,
	})
	return errors.Wrap(err, "could not create media source")
}

func (s *service) Remove(ctx context.Context, userID, sourceID string) error {
	mediaID, err := s.mediaID(ctx, sourceID)
	if err != nil {
		return err
	}
	if mediaID == "" {
		return errors.Wrapf(domain.ErrNotCollected, "source %s", sourceID)
	}

	docs, err := s.entries(ctx, userID, mediaID)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return errors.Wrapf(domain.ErrNotCollected, "source %s", sourceID)
	}

	for _, doc := range docs {
		if err := s.store.DeleteDocument(ctx, s.database, Collection, doc.ID); err != nil {
			return errors.Wrapf(err, "could not delete collection entry %s", doc.ID)
		}
	}

	s.log.Info().Str("user", userID).Str("source", sourceID).Int("entries", len(docs)).Msg("removed from collection")

	return nil
}

// List returns the user's collection joined with media, newest first.
func (s *service) List(ctx context.Context, userID string) ([]domain.CollectedItem, error) {
	entries, err := s.store.ListDocuments(ctx, s.database, Collection, map[string]any{"user_id": userID})
	if err != nil {
		return nil, errors.Wrapf(err, "could not list collection of %s", userID)
	}
	if len(entries) == 0 {
		return []domain.CollectedItem{}, nil
	}

	mediaDocs, err := s.store.ListDocuments(ctx, s.database, Media, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not list media")
	}
	media := make(map[string]domain.Document, len(mediaDocs))
	for _, d := range mediaDocs {
		media[d.ID] = d
	}

	sourceDocs, err := s.store.ListDocuments(ctx, s.database, MediaSource, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not list media sources")
	}
	sources := make(map[string]domain.Document, len(sourceDocs))
	for _, d := range sourceDocs {
		if _, ok := sources[d.String("media_id")]; !ok {
			sources[d.String("media_id")] = d
		}
	}

	items := make([]domain.CollectedItem, 0, len(entries))
	for _, e := range entries {
		m, ok := media[e.String("media_id")]
		if !ok {
			s.log.Warn().Str("entry", e.ID).Str("media", e.String("media_id")).Msg("collection entry without media")
			continue
		}
		items = append(items, item(e, m, sources[m.ID]))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].AddedAt.After(items[j].AddedAt)
	})

	return items, nil
}

func mediaData(r domain.Record) map[string]any {
	return map[string]any{
		"title_zh":       r.Title(),
		"title_original": r.TitleOriginal,
		"release_date":   r.ReleaseDate,
		"year":           r.Year,
		"media_type":     string(r.MediaType),
		"duration":       nullable(r.Duration),
		"poster_url":     r.PosterURL,
		"summary":        nullable(r.Summary),
		"staff":          nullable(r.StaffCredits),
		"rating_douban":  score(r.RatingDouban),
		"rating_imdb":    score(r.RatingIMDb),
		"rating_bangumi": score(r.RatingBangumi),
	}
}

func mediaSourceOf(r domain.Record) domain.Document {
	return domain.Document{Data: map[string]any{
		"source_type": string(r.SourceType),
		"source_id":   r.SourceID,
	}}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func score(r domain.Rating) any {
	if !r.InScale() {
		return nil
	}
	return r.Score
}

func item(entry, media, source domain.Document) domain.CollectedItem {
	added, err := time.Parse(time.RFC3339, entry.String("added_time"))
	if err != nil {
		added = entry.CreatedAt
	}
	return domain.CollectedItem{
		DocumentID:  entry.ID,
		MediaID:     media.ID,
		SourceType:  domain.SourceType(source.String("source_type")),
		SourceID:    source.String("source_id"),
		Title:       media.String("title_zh"),
		MediaType:   domain.MediaType(media.String("media_type")),
		ReleaseDate: media.String("release_date"),
		PosterURL:   media.String("poster_url"),
		WatchStatus: entry.String("watch_status"),
		Notes:       entry.String("notes"),
		AddedAt:     added,
	}
}
