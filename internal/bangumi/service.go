// Package bangumi scrapes anime entries from bgm.tv and reads the weekly
// airing calendar from its public API.
package bangumi

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/varoOP/mediahub/internal/domain"
	"github.com/varoOP/mediahub/internal/fetch"
	"github.com/varoOP/mediahub/internal/source"
)

const (
	defaultSiteURL = "https://bgm.tv"
	defaultAPIURL  = "https://api.bgm.tv"
	animeCategory  = "2"
	enrichWorkers  = 3
)

var (
	datePattern     = regexp.MustCompile(`^(\d{4})年(?:(\d{1,2})月)?(?:(\d{1,2})日)?`)
	episodesPattern = regexp.MustCompile(`^(\d+)话$`)
	staffRoles      = []string{"导演", "脚本", "音乐", "原作"}
	releaseKeys     = []string{"放送开始", "上映年度", "发售日", "开始"}
)

type Service interface {
	source.Adapter
	Detail(ctx context.Context, id string) (domain.Record, error)
	Calendar(ctx context.Context) (domain.WeeklySchedule, error)
}

type service struct {
	log     zerolog.Logger
	client  *fetch.Client
	siteURL string
	apiURL  string
}

type Option func(*service)

func WithSiteURL(u string) Option {
	return func(s *service) {
		s.siteURL = strings.TrimRight(u, "/")
	}
}

func WithAPIURL(u string) Option {
	return func(s *service) {
		s.apiURL = strings.TrimRight(u, "/")
	}
}

func NewService(log zerolog.Logger, client *fetch.Client, opts ...Option) Service {
	s := &service{
		log:     log.With().Str("module", "bangumi").Logger(),
		client:  client,
		siteURL: defaultSiteURL,
		apiURL:  defaultAPIURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() domain.SourceType {
	return domain.SourceBangumi
}

// Search reads the anime tab of the subject search and completes each hit
// from its subject page.
func (s *service) Search(ctx context.Context, keyword string) ([]domain.Record, error) {
	u := s.siteURL + "/subject_search/" + fetch.PathEscape(keyword) + "?cat=" + animeCategory

	doc, err := s.client.Document(ctx, u)
	if err != nil {
		return nil, err
	}

	var records []domain.Record
	doc.Find("#browserItemList .item").Each(func(_ int, item *goquery.Selection) {
		rec, err := s.parseItem(item)
		if err != nil {
			s.log.Debug().Err(err).Msg("skipping item")
			return
		}
		records = append(records, rec)
	})

	s.log.Debug().Str("keyword", keyword).Int("results", len(records)).Msg("search")

	p := pool.New().WithMaxGoroutines(enrichWorkers)
	for i := range records {
		if records[i].Summary != "" {
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

func (s *service) parseItem(item *goquery.Selection) (domain.Record, error) {
	link := item.Find("h3 a").First()
	href, _ := link.Attr("href")
	id := path.Base(strings.TrimRight(href, "/"))
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		if itemID, ok := item.Attr("id"); ok {
			id = strings.TrimPrefix(itemID, "item_")
		}
	}

	b := domain.NewRecordBuilder(domain.SourceBangumi, id).
		MediaType(domain.MediaAnime).
		SourceURL(s.subjectURL(id)).
		BaseURL(s.siteURL).
		TitleLocalized(source.CleanText(link.Text())).
		TitleOriginal(source.CleanText(item.Find("h3 small.grey").First().Text()))

	date, episodes, staff := splitInfo(source.CleanText(item.Find(".info").First().Text()))
	b.ReleaseDate(date).Duration(episodes).Staff(staff)

	poster, _ := item.Find("img.cover").First().Attr("src")
	b.Poster(poster)

	score := item.Find(".fade").First().Text()
	if strings.TrimSpace(score) == "" {
		score = item.Find(".rateInfo .fade").First().Text()
	}
	b.RatingBangumi(domain.ParseRating(score))

	return b.Build()
}

// splitInfo breaks "26话 / 1998年10月23日 / staff / staff" into its parts.
func splitInfo(info string) (date, episodes, staff string) {
	var rest []string
	for _, part := range strings.Split(info, " / ") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case date == "" && datePattern.MatchString(part):
			date = NormalizeDate(part)
		case episodes == "" && episodesPattern.MatchString(part):
			episodes = episodesPattern.FindStringSubmatch(part)[1]
		default:
			rest = append(rest, part)
		}
	}
	return date, episodes, strings.Join(rest, " / ")
}

// NormalizeDate turns "1998年10月3日" into "1998-10-03". Partial dates keep
// the parts they have; text that is not a date is returned unchanged.
func NormalizeDate(s string) string {
	m := datePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return strings.TrimSpace(s)
	}
	out := m[1]
	for _, p := range m[2:] {
		if p == "" {
			break
		}
		n, _ := strconv.Atoi(p)
		out += fmt.Sprintf("-%02d", n)
	}
	return out
}

// Detail reads one subject page.
func (s *service) Detail(ctx context.Context, id string) (domain.Record, error) {
	u := s.subjectURL(id)

	doc, err := s.client.Document(ctx, u)
	if err != nil {
		return domain.Record{}, err
	}

	info := infobox(doc.Selection)

	b := domain.NewRecordBuilder(domain.SourceBangumi, id).
		MediaType(domain.MediaAnime).
		SourceURL(u).
		BaseURL(s.siteURL).
		TitleLocalized(info["中文名"])

	original := info["原名"]
	if original == "" {
		original = source.CleanText(doc.Find("h1.nameSingle a").First().Text())
	}
	b.TitleOriginal(original)

	for _, k := range releaseKeys {
		if v := info[k]; v != "" {
			b.ReleaseDate(NormalizeDate(v))
			break
		}
	}
	b.Duration(info["话数"])

	b.Summary(source.CleanSummary(doc.Find("#subject_summary").First().Text()))
	b.RatingBangumi(domain.ParseRating(doc.Find(".global_score .number").First().Text()))

	poster, _ := doc.Find("#bangumiInfo img.cover, #bangumiInfo .cover img").First().Attr("src")
	b.Poster(poster)

	credits := make([]source.Credit, 0, len(staffRoles))
	for _, role := range staffRoles {
		credits = append(credits, source.Credit{Role: role, Names: []string{info[role]}})
	}
	b.Staff(source.FormatStaff(credits...))

	rec, err := b.Build()
	if err != nil {
		return domain.Record{}, &domain.ParseError{Source: domain.SourceBangumi, URL: u, Err: err}
	}
	return rec, nil
}

// infobox maps "#infobox li" labels to their text.
func infobox(doc *goquery.Selection) map[string]string {
	out := map[string]string{}
	doc.Find("#infobox li").Each(func(_ int, li *goquery.Selection) {
		label := li.Find("span.tip").First().Text()
		key := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(label), ":："))
		if key == "" {
			return
		}
		value := source.CleanText(strings.Replace(li.Text(), label, "", 1))
		if _, ok := out[key]; !ok && value != "" {
			out[key] = value
		}
	})
	return out
}

// Calendar returns this season's airing anime grouped by weekday.
func (s *service) Calendar(ctx context.Context) (domain.WeeklySchedule, error) {
	var days []calendarDay
	if err := s.client.JSON(ctx, s.apiURL+"/calendar", &days); err != nil {
		return domain.WeeklySchedule{}, err
	}

	schedule := domain.NewWeeklySchedule()
	for _, d := range days {
		if d.Weekday.ID < 1 || d.Weekday.ID > 7 {
			s.log.Warn().Int("weekday", d.Weekday.ID).Msg("unknown weekday")
			continue
		}
		day := schedule.Day(time.Weekday(d.Weekday.ID % 7))
		for _, it := range d.Items {
			rec, err := s.calendarRecord(it)
			if err != nil {
				s.log.Debug().Err(err).Int64("id", it.ID).Msg("skipping calendar item")
				continue
			}
			day.Records = append(day.Records, rec)
		}
	}

	return schedule, nil
}

func (s *service) calendarRecord(it calendarItem) (domain.Record, error) {
	id := strconv.FormatInt(it.ID, 10)
	b := domain.NewRecordBuilder(domain.SourceBangumi, id).
		MediaType(domain.MediaAnime).
		SourceURL(s.subjectURL(id)).
		BaseURL(s.siteURL).
		TitleLocalized(it.NameCN).
		TitleOriginal(it.Name).
		ReleaseDate(it.AirDate).
		Summary(it.Summary)

	if it.Images != nil {
		poster := it.Images.Large
		if poster == "" {
			poster = it.Images.Common
		}
		b.Poster(poster)
	}
	if it.Rating != nil && (it.Rating.Score > 0 || it.Rating.Total > 0) {
		b.RatingBangumi(domain.NewRating(it.Rating.Score))
	}

	return b.Build()
}

func (s *service) subjectURL(id string) string {
	return s.siteURL + "/subject/" + id
}

func merge(hit, subject domain.Record) domain.Record {
	rec, err := domain.From(hit).
		TitleLocalized(subject.TitleLocalized).
		TitleOriginal(subject.TitleOriginal).
		ReleaseDate(subject.ReleaseDate).
		Year(subject.Year).
		Duration(subject.Duration).
		Poster(subject.PosterURL).
		Summary(subject.Summary).
		Staff(subject.StaffCredits).
		RatingBangumi(subject.RatingBangumi).
		Build()
	if err != nil {
		return hit
	}
	return rec
}
