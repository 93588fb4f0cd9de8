package aggregate

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/varoOP/mediahub/internal/dedupe"
	"github.com/varoOP/mediahub/internal/domain"
	"github.com/varoOP/mediahub/internal/source"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultTTL                = 5 * time.Minute
	DefaultQuickSearchTimeout = 15 * time.Second
)

// routes lists the sources tried for each media type, in fallback order.
var routes = map[domain.MediaType][]domain.SourceType{
	domain.MediaAnime: {domain.SourceBangumi},
	domain.MediaMovie: {domain.SourceTMDb, domain.SourceDouban},
	domain.MediaTV:    {domain.SourceTMDb, domain.SourceDouban},
}

// Key identifies one cached result set.
type Key struct {
	Keyword   string
	MediaType domain.MediaType
}

func (k Key) String() string {
	return string(k.MediaType) + ":" + k.Keyword
}

type Service interface {
	Search(ctx context.Context, keyword string, mediaType domain.MediaType) ([]domain.Record, error)
	SearchPage(ctx context.Context, keyword string, mediaType domain.MediaType, page, limit int) ([]domain.Record, error)
	GetTotalCount(ctx context.Context, keyword string, mediaType domain.MediaType) (int, error)
	QuickSearch(ctx context.Context, keyword string) map[domain.SourceType]domain.Record
}

type service struct {
	log          zerolog.Logger
	dedupe       dedupe.Service
	adapters     map[domain.SourceType]source.Adapter
	order        []domain.SourceType
	cache        *TTLCache[Key, []domain.Record]
	group        singleflight.Group
	quickTimeout time.Duration
}

type Option func(*service)

func WithTTL(ttl time.Duration) Option {
	return func(s *service) {
		if ttl > 0 {
			s.cache = NewTTLCache[Key, []domain.Record](ttl)
		}
	}
}

// WithQuickSearchTimeout bounds each source during QuickSearch.
func WithQuickSearchTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.quickTimeout = d
		}
	}
}

// WithCache shares an existing cache (for testing).
func WithCache(c *TTLCache[Key, []domain.Record]) Option {
	return func(s *service) {
		s.cache = c
	}
}

func NewService(log zerolog.Logger, dedupeSvc dedupe.Service, adapters []source.Adapter, opts ...Option) Service {
	s := &service{
		log:          log.With().Str("module", "aggregate").Logger(),
		dedupe:       dedupeSvc,
		adapters:     make(map[domain.SourceType]source.Adapter, len(adapters)),
		cache:        NewTTLCache[Key, []domain.Record](DefaultTTL),
		quickTimeout: DefaultQuickSearchTimeout,
	}
	for _, a := range adapters {
		if _, ok := s.adapters[a.Name()]; !ok {
			s.order = append(s.order, a.Name())
		}
		s.adapters[a.Name()] = a
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeKeyword trims keyword and folds compatibility forms such as
// full-width Latin letters.
func NormalizeKeyword(keyword string) string {
	return strings.TrimSpace(norm.NFKC.String(strings.TrimSpace(keyword)))
}

func (s *service) key(keyword string, mediaType domain.MediaType) (Key, error) {
	kw := NormalizeKeyword(keyword)
	if kw == "" {
		return Key{}, domain.NewUserInputError("keyword", "required")
	}
	if !mediaType.Valid() {
		return Key{}, domain.NewUserInputError("type", "unknown media type "+string(mediaType))
	}
	return Key{Keyword: kw, MediaType: mediaType}, nil
}

// Search returns every match for keyword from the sources serving mediaType.
// Results are cached per (keyword, mediaType) and concurrent identical
// queries share one upstream fetch.
func (s *service) Search(ctx context.Context, keyword string, mediaType domain.MediaType) ([]domain.Record, error) {
	key, err := s.key(keyword, mediaType)
	if err != nil {
		return nil, err
	}

	if records, ok := s.cache.Get(key); ok {
		s.log.Trace().Str("key", key.String()).Msg("cache hit")
		return slices.Clone(records), nil
	}

	ch := s.group.DoChan(key.String(), func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx), key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.log.Trace().Str("key", key.String()).Msg("joined in-flight search")
		}
		return slices.Clone(res.Val.([]domain.Record)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *service) fetch(ctx context.Context, key Key) ([]domain.Record, error) {
	if records, ok := s.cache.Get(key); ok {
		return records, nil
	}

	var (
		records   []domain.Record
		errs      []error
		attempted int
	)
	for _, st := range routes[key.MediaType] {
		a, ok := s.adapters[st]
		if !ok {
			continue
		}
		attempted++

		res, err := a.Search(ctx, key.Keyword)
		if err != nil {
			s.log.Warn().Err(err).Str("source", string(st)).Str("keyword", key.Keyword).Msg("source search failed")
			errs = append(errs, err)
			continue
		}
		if len(res) > 0 {
			records = res
			break
		}
		s.log.Debug().Str("source", string(st)).Str("keyword", key.Keyword).Msg("no results")
	}

	if attempted == 0 {
		return nil, errors.Errorf("no source configured for %s", key.MediaType)
	}
	if records == nil && len(errs) == attempted {
		return nil, &domain.AggregateError{Errors: errs}
	}

	_, records = s.dedupe.Records(records)
	if len(records) == 0 && len(errs) > 0 {
		// Empty results after a source failure are not cached.
		return records, nil
	}
	s.cache.Put(key, records)

	s.log.Debug().Str("key", key.String()).Int("results", len(records)).Msg("search cached")

	return records, nil
}

// SearchPage slices the cached result set. A page past the end is empty.
func (s *service) SearchPage(ctx context.Context, keyword string, mediaType domain.MediaType, page, limit int) ([]domain.Record, error) {
	if page <= 0 {
		return nil, domain.NewUserInputError("page", fmt.Sprintf("must be positive, got %d", page))
	}
	if limit <= 0 {
		return nil, domain.NewUserInputError("limit", fmt.Sprintf("must be positive, got %d", limit))
	}

	records, err := s.Search(ctx, keyword, mediaType)
	if err != nil {
		return nil, err
	}

	start := (page - 1) * limit
	if start >= len(records) {
		return []domain.Record{}, nil
	}
	end := min(start+limit, len(records))
	return records[start:end], nil
}

func (s *service) GetTotalCount(ctx context.Context, keyword string, mediaType domain.MediaType) (int, error) {
	records, err := s.Search(ctx, keyword, mediaType)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

type quickHit struct {
	source domain.SourceType
	record domain.Record
	ok     bool
}

// QuickSearch asks every source at once and keeps the first usable record
// from each. Failing or slow sources are left out; it never fails.
func (s *service) QuickSearch(ctx context.Context, keyword string) map[domain.SourceType]domain.Record {
	out := make(map[domain.SourceType]domain.Record)

	kw := NormalizeKeyword(keyword)
	if kw == "" {
		return out
	}

	p := pool.NewWithResults[quickHit]()
	for _, st := range s.order {
		a := s.adapters[st]
		p.Go(func() quickHit {
			return s.quick(ctx, a, kw)
		})
	}

	for _, h := range p.Wait() {
		if h.ok {
			out[h.source] = h.record
		}
	}

	s.log.Debug().Str("keyword", kw).Int("sources", len(out)).Msg("quick search")

	return out
}

func (s *service) quick(ctx context.Context, a source.Adapter, keyword string) (hit quickHit) {
	hit.source = a.Name()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("source", string(hit.source)).Msg("source panicked during quick search")
			hit.ok = false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.quickTimeout)
	defer cancel()

	records, err := a.Search(ctx, keyword)
	if err != nil {
		s.log.Warn().Err(err).Str("source", string(hit.source)).Msg("quick search source failed")
		return hit
	}

	for _, r := range records {
		if hit.source == domain.SourceTMDb && r.MediaType != domain.MediaMovie && r.MediaType != domain.MediaTV {
			continue
		}
		hit.record = r
		hit.ok = true
		return hit
	}
	return hit
}
