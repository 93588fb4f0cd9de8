package douban

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"github.com/gocolly/colly/extensions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/varoOP/mediahub/internal/domain"
	"github.com/varoOP/mediahub/internal/fetch"
	"github.com/varoOP/mediahub/internal/source"
)

const (
	defaultSearchURL = "https://www.douban.com/search"
	defaultDetailURL = "https://movie.douban.com/subject/"
	movieCategory    = "1002"
	maxCast          = 5
	enrichWorkers    = 3
)

var (
	sidPattern      = regexp.MustCompile(`(\d+),`)
	datePattern     = regexp.MustCompile(`\s*\(.*\)\s*$`)
	yearSuffix      = regexp.MustCompile(`\s*\(\d{4}\)\s*$`)
	digits          = regexp.MustCompile(`\d+`)
	episodesPattern = regexp.MustCompile(`集数:\s*(\d+)`)
	titleMarks      = strings.NewReplacer("《", "", "》", "")
)

type Service interface {
	source.Adapter
	Detail(ctx context.Context, id string) (domain.Record, error)
}

type service struct {
	log       zerolog.Logger
	client    *fetch.Client
	searchURL string
	detailURL string
	randomUA  bool
	delay     time.Duration
}

type Option func(*service)

// WithSearchURL sets the search page URL (for testing).
func WithSearchURL(u string) Option {
	return func(s *service) {
		s.searchURL = u
	}
}

// WithDetailURL sets the subject URL prefix; the id and a trailing slash are appended.
func WithDetailURL(u string) Option {
	return func(s *service) {
		s.detailURL = u
	}
}

func WithRandomUserAgent(enabled bool) Option {
	return func(s *service) {
		s.randomUA = enabled
	}
}

// WithDelay spaces out requests made by one collector.
func WithDelay(d time.Duration) Option {
	return func(s *service) {
		s.delay = d
	}
}

func NewService(log zerolog.Logger, client *fetch.Client, opts ...Option) Service {
	s := &service{
		log:       log.With().Str("module", "douban").Logger(),
		client:    client,
		searchURL: defaultSearchURL,
		detailURL: defaultDetailURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() domain.SourceType {
	return domain.SourceDouban
}

func (s *service) newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(colly.UserAgent(s.client.UserAgent()))
	c.WithTransport(s.client.Transport(ctx))
	c.SetRequestTimeout(2 * s.client.Timeout())

	if s.randomUA {
		extensions.RandomUserAgent(c)
	}
	extensions.Referer(c)

	if s.delay > 0 {
		if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: s.delay}); err != nil {
			s.log.Warn().Err(err).Msg("failed to set limit rule")
		}
	}

	return c
}

// visit runs one page through c and maps collector failures onto the domain
// error types. The page must be HTML.
func (s *service) visit(c *colly.Collector, u string) error {
	var (
		status  int
		visitOK bool
		kindErr error
	)

	c.OnResponse(func(r *colly.Response) {
		visitOK = true
		ct := strings.ToLower(r.Headers.Get("Content-Type"))
		if !strings.Contains(ct, "html") {
			kindErr = errors.Errorf("expected html, got %q", ct)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(u); err != nil {
		return &domain.TransportError{Source: domain.SourceDouban, URL: u, StatusCode: status, Err: err}
	}
	if !visitOK {
		return &domain.TransportError{Source: domain.SourceDouban, URL: u, Err: errors.New("no response")}
	}
	if kindErr != nil {
		return &domain.ParseError{Source: domain.SourceDouban, URL: u, Err: kindErr}
	}
	return nil
}

// Search scrapes the movie tab of the site search. Non-movie hits (books,
// music) are skipped. Each hit is then completed from its subject page.
func (s *service) Search(ctx context.Context, keyword string) ([]domain.Record, error) {
	u := s.searchURL + "?cat=" + movieCategory + "&q=" + fetch.QueryEscape(keyword)

	var records []domain.Record
	c := s.newCollector(ctx)
	c.OnHTML(".result-list .result", func(e *colly.HTMLElement) {
		rec, ok := s.parseResult(e)
		if ok {
			records = append(records, rec)
		}
	})

	if err := s.visit(c, u); err != nil {
		return nil, err
	}

	s.log.Debug().Str("keyword", keyword).Int("results", len(records)).Msg("search")

	p := pool.New().WithMaxGoroutines(enrichWorkers)
	for i := range records {
		if !needsDetail(records[i]) {
			continue
		}
		p.Go(func() {
			d, err := s.Detail(ctx, records[i].SourceID)
			if err != nil {
				s.log.Warn().Err(err).Str("id", records[i].SourceID).Msg("failed to fetch subject, keeping search result")
				return
			}
			records[i] = merge(records[i], d)
		})
	}
	p.Wait()

	return records, nil
}

func (s *service) parseResult(e *colly.HTMLElement) (domain.Record, bool) {
	link := e.DOM.Find("h3 a").First()
	onclick, _ := link.Attr("onclick")
	if !strings.Contains(onclick, "movie") {
		return domain.Record{}, false
	}

	m := sidPattern.FindStringSubmatch(onclick)
	if len(m) < 2 {
		s.log.Debug().Str("onclick", onclick).Msg("no subject id in result")
		return domain.Record{}, false
	}
	id := m[1]

	mediaType := domain.MediaMovie
	if strings.Contains(e.ChildText("h3 span"), "电视剧") {
		mediaType = domain.MediaTV
	}

	original, staff, year := splitCast(source.CleanText(e.ChildText(".subject-cast")))

	rec, err := domain.NewRecordBuilder(domain.SourceDouban, id).
		MediaType(mediaType).
		SourceURL(s.subjectURL(id)).
		BaseURL(e.Request.URL.String()).
		TitleLocalized(titleMarks.Replace(source.CleanText(link.Text()))).
		TitleOriginal(original).
		Year(year).
		Staff(staff).
		Summary(source.CleanSummary(e.ChildText(".content p"))).
		Poster(e.ChildAttr(".pic img", "src")).
		RatingDouban(domain.ParseRating(e.ChildText(".rating_nums"))).
		Build()
	if err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("skipping result")
		return domain.Record{}, false
	}
	return rec, true
}

// splitCast breaks "原名:X / director / actor / 1994" into its parts.
func splitCast(cast string) (original, staff, year string) {
	var rest []string
	for _, part := range strings.Split(cast, " / ") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case strings.HasPrefix(part, "原名:"):
			original = strings.TrimSpace(strings.TrimPrefix(part, "原名:"))
		default:
			rest = append(rest, part)
		}
	}
	if n := len(rest); n > 0 && len(rest[n-1]) == 4 && domain.ExtractYear(rest[n-1]) == rest[n-1] {
		year = rest[n-1]
		rest = rest[:n-1]
	}
	return original, strings.Join(rest, " / "), year
}

// Detail scrapes one subject page.
func (s *service) Detail(ctx context.Context, id string) (domain.Record, error) {
	u := s.subjectURL(id)

	var (
		rec      domain.Record
		found    bool
		buildErr error
	)
	c := s.newCollector(ctx)
	c.OnHTML("#content", func(e *colly.HTMLElement) {
		if found {
			return
		}
		found = true
		rec, buildErr = s.parseSubject(id, e.DOM, e.Request.URL.String())
	})

	if err := s.visit(c, u); err != nil {
		return domain.Record{}, err
	}
	if !found {
		return domain.Record{}, &domain.ParseError{Source: domain.SourceDouban, URL: u, Err: errors.New("missing #content")}
	}
	if buildErr != nil {
		return domain.Record{}, &domain.ParseError{Source: domain.SourceDouban, URL: u, Err: buildErr}
	}
	return rec, nil
}

func (s *service) parseSubject(id string, doc *goquery.Selection, pageURL string) (domain.Record, error) {
	b := domain.NewRecordBuilder(domain.SourceDouban, id).
		MediaType(domain.MediaMovie).
		SourceURL(s.subjectURL(id)).
		BaseURL(pageURL)

	title := source.CleanText(doc.Find("h1 span[property='v:itemreviewed']").First().Text())
	if title == "" {
		title = yearSuffix.ReplaceAllString(source.CleanText(doc.Find("h1").First().Text()), "")
	}
	localized, original, _ := strings.Cut(title, " ")
	b.TitleLocalized(localized).TitleOriginal(original)
	b.Year(doc.Find("h1 .year").First().Text())

	score := doc.Find("strong[property='v:average']").First().Text()
	if strings.TrimSpace(score) == "" {
		score = doc.Find(".rating_num").First().Text()
	}
	b.RatingDouban(domain.ParseRating(score))

	summary := doc.Find("span[property='v:summary']").First().Text()
	if strings.TrimSpace(summary) == "" {
		summary = doc.Find(".related-info .indent span").First().Text()
	}
	b.Summary(source.CleanSummary(strings.ReplaceAll(summary, "(展开全部)", "")))

	date := doc.Find("span[property='v:initialReleaseDate']").First().Text()
	b.ReleaseDate(datePattern.ReplaceAllString(strings.TrimSpace(date), ""))

	runtime := doc.Find("span[property='v:runtime']").First()
	if content, ok := runtime.Attr("content"); ok && strings.TrimSpace(content) != "" {
		b.Duration(content)
	} else {
		b.Duration(numberOrRaw(runtime.Text()))
	}

	if m := episodesPattern.FindStringSubmatch(doc.Find("#info").Text()); len(m) == 2 {
		b.MediaType(domain.MediaTV).Duration(m[1])
	}

	poster, _ := doc.Find("img[rel='v:image']").First().Attr("src")
	if poster == "" {
		poster, _ = doc.Find("#mainpic img").First().Attr("src")
	}
	b.Poster(poster)

	b.Staff(source.FormatStaff(
		source.Credit{Role: "导演", Names: texts(doc.Find("a[rel='v:directedBy']"))},
		source.Credit{Role: "主演", Names: source.FirstN(texts(doc.Find("a[rel='v:starring']")), maxCast)},
	))

	return b.Build()
}

func (s *service) subjectURL(id string) string {
	return s.detailURL + id + "/"
}

func needsDetail(r domain.Record) bool {
	return r.Summary == "" || r.ReleaseDate == "" || r.Duration == ""
}

// merge lays subject page fields over a search hit. Blank subject fields
// keep the search value.
func merge(hit, subject domain.Record) domain.Record {
	b := domain.From(hit).
		MediaType(subject.MediaType).
		TitleLocalized(subject.TitleLocalized).
		TitleOriginal(subject.TitleOriginal).
		ReleaseDate(subject.ReleaseDate).
		Year(subject.Year).
		Duration(subject.Duration).
		Poster(subject.PosterURL).
		Summary(subject.Summary).
		Staff(subject.StaffCredits).
		RatingDouban(subject.RatingDouban)

	rec, err := b.Build()
	if err != nil {
		return hit
	}
	return rec
}

func numberOrRaw(s string) string {
	s = strings.TrimSpace(s)
	if d := digits.FindString(s); d != "" {
		return d
	}
	return s
}

func texts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, el *goquery.Selection) {
		if t := source.CleanText(el.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}
