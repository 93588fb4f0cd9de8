package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/varoOP/mediahub/internal/domain"
	"github.com/varoOP/mediahub/internal/fetch"
	"github.com/varoOP/mediahub/internal/source"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	defaultImageURL = "https://image.tmdb.org/t/p/w500"
	siteURL         = "https://www.themoviedb.org"
	language        = "zh-CN"
	maxCast         = 5
	enrichWorkers   = 4
)

type Service interface {
	source.Adapter
	TopRated(ctx context.Context, mediaType domain.MediaType, page int) ([]domain.Record, int, error)
	Details(ctx context.Context, mediaType domain.MediaType, id int64) (domain.Record, error)
}

type service struct {
	log      zerolog.Logger
	client   *fetch.Client
	apiKey   string
	baseURL  string
	imageURL string
}

// Option configures the service.
type Option func(*service)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(s *service) {
		s.baseURL = u
	}
}

// WithImageURL sets the poster base URL including the size segment.
func WithImageURL(u string) Option {
	return func(s *service) {
		s.imageURL = u
	}
}

func NewService(log zerolog.Logger, apiKey string, client *fetch.Client, opts ...Option) Service {
	s := &service{
		log:      log.With().Str("module", "tmdb").Logger(),
		client:   client,
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		imageURL: defaultImageURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ source.Adapter = (*service)(nil)

func (s *service) Name() domain.SourceType {
	return domain.SourceTMDb
}

// Search runs a multi search, keeps movies and series, and enriches each
// hit with details and credits. A failed detail lookup keeps the search hit.
func (s *service) Search(ctx context.Context, keyword string) ([]domain.Record, error) {
	u := s.buildURL("/search/multi", url.Values{
		"query":         {keyword},
		"include_adult": {"false"},
		"page":          {"1"},
	})

	resp, err := s.list(ctx, u)
	if err != nil {
		return nil, err
	}

	hits := make([]result, 0, len(resp))
	for _, r := range resp {
		if mediaTypeOf(r.MediaType) != "" {
			hits = append(hits, r)
		}
	}

	s.log.Debug().Str("keyword", keyword).Int("results", len(resp)).Int("kept", len(hits)).Msg("multi search")

	records := make([]domain.Record, len(hits))
	ok := make([]bool, len(hits))

	p := pool.New().WithMaxGoroutines(enrichWorkers)
	for i, hit := range hits {
		p.Go(func() {
			mt := mediaTypeOf(hit.MediaType)
			rec, err := s.Details(ctx, mt, hit.ID)
			if err != nil {
				s.log.Warn().Err(err).Int64("id", hit.ID).Str("media_type", string(mt)).Msg("failed to fetch details, keeping search result")
				rec, err = s.toRecord(details{result: hit}, mt)
				if err != nil {
					s.log.Warn().Err(err).Int64("id", hit.ID).Msg("dropping result")
					return
				}
			}
			records[i] = rec
			ok[i] = true
		})
	}
	p.Wait()

	out := make([]domain.Record, 0, len(records))
	for i, rec := range records {
		if ok[i] {
			out = append(out, rec)
		}
	}
	return out, nil
}

// TopRated returns one page of the top rated movie or tv list and the total
// page count reported upstream.
func (s *service) TopRated(ctx context.Context, mediaType domain.MediaType, page int) ([]domain.Record, int, error) {
	if mediaType != domain.MediaMovie && mediaType != domain.MediaTV {
		return nil, 0, domain.NewUserInputError("media_type", "top rated lists exist for movie and tv only")
	}

	u := s.buildURL("/"+string(mediaType)+"/top_rated", url.Values{"page": {strconv.Itoa(page)}})

	var resp searchResponse
	if err := s.client.JSON(ctx, u, &resp); err != nil {
		return nil, 0, err
	}
	if resp.Results == nil {
		return nil, 0, &domain.ParseError{Source: domain.SourceTMDb, URL: s.client.SafeURL(u), Err: errors.New("missing results")}
	}

	records := make([]domain.Record, 0, len(*resp.Results))
	for _, r := range *resp.Results {
		rec, err := s.toRecord(details{result: r}, mediaType)
		if err != nil {
			s.log.Warn().Err(err).Int64("id", r.ID).Msg("skipping top rated item")
			continue
		}
		records = append(records, rec)
	}

	s.log.Debug().Str("media_type", string(mediaType)).Int("page", page).Int("total_pages", resp.TotalPages).Int("items", len(records)).Msg("top rated")

	return records, resp.TotalPages, nil
}

// Details fetches one movie or series with its credits.
func (s *service) Details(ctx context.Context, mediaType domain.MediaType, id int64) (domain.Record, error) {
	if mediaType != domain.MediaMovie && mediaType != domain.MediaTV {
		return domain.Record{}, domain.NewUserInputError("media_type", "details exist for movie and tv only")
	}

	u := s.buildURL(fmt.Sprintf("/%s/%d", mediaType, id), url.Values{"append_to_response": {"credits"}})

	var d details
	if err := s.client.JSON(ctx, u, &d); err != nil {
		return domain.Record{}, err
	}
	if d.ID == 0 {
		d.ID = id
	}
	return s.toRecord(d, mediaType)
}

func (s *service) list(ctx context.Context, u string) ([]result, error) {
	var resp searchResponse
	if err := s.client.JSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return nil, &domain.ParseError{Source: domain.SourceTMDb, URL: s.client.SafeURL(u), Err: errors.New("missing results")}
	}
	return *resp.Results, nil
}

func (s *service) toRecord(d details, mediaType domain.MediaType) (domain.Record, error) {
	id := strconv.FormatInt(d.ID, 10)

	b := domain.NewRecordBuilder(domain.SourceTMDb, id).
		MediaType(mediaType).
		SourceURL(fmt.Sprintf("%s/%s/%s", siteURL, mediaType, id)).
		Summary(d.Overview)

	switch mediaType {
	case domain.MediaTV:
		b.TitleLocalized(d.Name).TitleOriginal(d.OriginalName).ReleaseDate(d.FirstAirDate)
		if d.NumberOfEpisodes > 0 {
			b.Duration(strconv.Itoa(d.NumberOfEpisodes))
		}
	default:
		b.TitleLocalized(d.Title).TitleOriginal(d.OriginalTitle).ReleaseDate(d.ReleaseDate)
		if d.Runtime > 0 {
			b.Duration(strconv.Itoa(d.Runtime))
		}
	}

	if d.PosterPath != "" {
		b.Poster(s.imageURL + d.PosterPath)
	}

	if d.VoteAverage != nil && (*d.VoteAverage > 0 || d.VoteCount > 0) {
		b.RatingIMDb(domain.NewRating(*d.VoteAverage))
	}

	var directors []string
	for _, c := range d.Credits.Crew {
		if c.Job == "Director" {
			directors = append(directors, c.Name)
		}
	}

	cast := d.Credits.Cast
	sort.SliceStable(cast, func(i, j int) bool {
		return cast[i].Order < cast[j].Order
	})
	actors := make([]string, 0, maxCast)
	for _, c := range cast {
		if len(actors) == maxCast {
			break
		}
		actors = append(actors, c.Name)
	}

	b.Staff(source.FormatStaff(
		source.Credit{Role: "导演", Names: directors},
		source.Credit{Role: "主演", Names: actors},
	))

	return b.Build()
}

func (s *service) buildURL(path string, params url.Values) string {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("api_key", s.apiKey)
	query.Set("language", language)
	return s.baseURL + path + "?" + query.Encode()
}

func mediaTypeOf(t string) domain.MediaType {
	switch t {
	case "movie":
		return domain.MediaMovie
	case "tv":
		return domain.MediaTV
	}
	return ""
}
