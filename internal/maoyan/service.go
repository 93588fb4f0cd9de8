package maoyan

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/varoOP/mediahub/internal/domain"
	"github.com/varoOP/mediahub/internal/fetch"
	"github.com/varoOP/mediahub/internal/source"
)

const (
	defaultBaseURL = "https://m.maoyan.com"
	siteURL        = "https://www.maoyan.com/films/"
	imageBaseURL   = "https://p0.meituan.net/movie/"
	comingLimit    = 10
	enrichWorkers  = 3
)

type Service interface {
	source.Adapter
	NowShowing(ctx context.Context) ([]domain.Record, error)
	ComingSoon(ctx context.Context) ([]domain.Record, error)
	Detail(ctx context.Context, id int64) (domain.Record, error)
}

type service struct {
	log     zerolog.Logger
	client  *fetch.Client
	baseURL string
}

type Option func(*service)

// WithBaseURL sets a custom feed base URL (for testing).
func WithBaseURL(u string) Option {
	return func(s *service) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

func NewService(log zerolog.Logger, client *fetch.Client, opts ...Option) Service {
	s := &service{
		log:     log.With().Str("module", "maoyan").Logger(),
		client:  client,
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() domain.SourceType {
	return domain.SourceMaoyan
}

// Search matches keyword against the titles of films now showing. The feed
// has no keyword endpoint.
func (s *service) Search(ctx context.Context, keyword string) ([]domain.Record, error) {
	showing, err := s.NowShowing(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(keyword))
	var matches []domain.Record
	for _, r := range showing {
		if strings.Contains(strings.ToLower(r.TitleLocalized), needle) ||
			strings.Contains(strings.ToLower(r.TitleOriginal), needle) {
			matches = append(matches, r)
		}
	}

	s.log.Debug().Str("keyword", keyword).Int("showing", len(showing)).Int("matches", len(matches)).Msg("search")

	p := pool.New().WithMaxGoroutines(enrichWorkers)
	for i := range matches {
		if matches[i].Summary != "" {
			continue
		}
		id, err := strconv.ParseInt(matches[i].SourceID, 10, 64)
		if err != nil {
			continue
		}
		p.Go(func() {
			d, err := s.Detail(ctx, id)
			if err != nil {
				s.log.Warn().Err(err).Int64("id", id).Msg("failed to fetch detail, keeping list entry")
				return
			}
			matches[i] = merge(matches[i], d)
		})
	}
	p.Wait()

	return matches, nil
}

func (s *service) NowShowing(ctx context.Context) ([]domain.Record, error) {
	u := s.baseURL + "/ajax/movieOnInfoList"

	var resp onInfoResponse
	if err := s.client.JSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.MovieList == nil {
		return nil, &domain.ParseError{Source: domain.SourceMaoyan, URL: u, Err: errors.New("missing movieList")}
	}

	return s.toRecords(*resp.MovieList), nil
}

func (s *service) ComingSoon(ctx context.Context) ([]domain.Record, error) {
	q := url.Values{
		"ci":    {"1"},
		"token": {""},
		"limit": {strconv.Itoa(comingLimit)},
	}
	u := s.baseURL + "/ajax/comingList?" + q.Encode()

	var resp comingResponse
	if err := s.client.JSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.Coming == nil {
		return nil, &domain.ParseError{Source: domain.SourceMaoyan, URL: u, Err: errors.New("missing coming")}
	}

	return s.toRecords(*resp.Coming), nil
}

func (s *service) Detail(ctx context.Context, id int64) (domain.Record, error) {
	u := s.baseURL + "/ajax/detailmovie?movieId=" + strconv.FormatInt(id, 10)

	var resp detailResponse
	if err := s.client.JSON(ctx, u, &resp); err != nil {
		return domain.Record{}, err
	}
	if resp.DetailMovie == nil {
		return domain.Record{}, &domain.ParseError{Source: domain.SourceMaoyan, URL: u, Err: errors.New("missing detailMovie")}
	}
	if resp.DetailMovie.ID == 0 {
		resp.DetailMovie.ID = id
	}

	rec, err := s.toRecord(*resp.DetailMovie)
	if err != nil {
		return domain.Record{}, &domain.ParseError{Source: domain.SourceMaoyan, URL: u, Err: err}
	}
	return rec, nil
}

func (s *service) toRecords(movies []movie) []domain.Record {
	records := make([]domain.Record, 0, len(movies))
	for _, m := range movies {
		rec, err := s.toRecord(m)
		if err != nil {
			s.log.Debug().Err(err).Int64("id", m.ID).Msg("skipping movie")
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (s *service) toRecord(m movie) (domain.Record, error) {
	id := strconv.FormatInt(m.ID, 10)
	if m.ID == 0 {
		id = ""
	}

	b := domain.NewRecordBuilder(domain.SourceMaoyan, id).
		MediaType(domain.MediaMovie).
		SourceURL(siteURL + id).
		TitleLocalized(m.Name).
		TitleOriginal(m.EnName).
		ReleaseDate(m.Rt).
		Poster(PosterURL(m.Img)).
		Summary(source.CleanSummary(m.Dra)).
		Staff(source.FormatStaff(
			source.Credit{Role: "导演", Names: splitNames(m.Dir)},
			source.Credit{Role: "主演", Names: splitNames(m.Star)},
		))

	if m.Dur > 0 {
		b.Duration(strconv.Itoa(m.Dur))
	}
	// A zero score means the film has not been rated yet.
	if m.Score > 0 {
		b.RatingDouban(domain.NewRating(m.Score))
	}

	return b.Build()
}

// PosterURL makes a feed image path absolute and drops the "/w.h/" size
// placeholder the feed leaves for clients to fill in.
func PosterURL(img string) string {
	img = strings.TrimSpace(img)
	if img == "" {
		return ""
	}
	img = strings.Replace(img, "/w.h/", "/", 1)
	if !strings.HasPrefix(img, "http") && !strings.HasPrefix(img, "//") {
		img = imageBaseURL + strings.TrimLeft(img, "/")
	}
	return img
}

func splitNames(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '，' || r == '/'
	})
}

func merge(entry, detail domain.Record) domain.Record {
	rec, err := domain.From(entry).
		TitleOriginal(detail.TitleOriginal).
		ReleaseDate(detail.ReleaseDate).
		Duration(detail.Duration).
		Poster(detail.PosterURL).
		Summary(detail.Summary).
		Staff(detail.StaffCredits).
		RatingDouban(detail.RatingDouban).
		Build()
	if err != nil {
		return entry
	}
	return rec
}
