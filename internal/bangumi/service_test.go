package bangumi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/mediahub/internal/domain"
	"github.com/varoOP/mediahub/internal/fetch"
)

func serveFixture(t *testing.T, w http.ResponseWriter, name, contentType string) {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(b)
}

func newTestService(t *testing.T) (Service, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/subject_search/星际牛仔":
			assert.Equal(t, "2", r.URL.Query().Get("cat"))
			serveFixture(t, w, "search.html", "text/html; charset=UTF-8")
		case "/subject/253":
			serveFixture(t, w, "subject_253.html", "text/html; charset=UTF-8")
		case "/calendar":
			serveFixture(t, w, "calendar.json", "application/json; charset=utf-8")
		case "/broken/calendar":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"title":"Not Found"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client := fetch.NewClient(domain.SourceBangumi, zerolog.Nop(), fetch.WithRetry(1, time.Millisecond))
	return NewService(zerolog.Nop(), client, WithSiteURL(server.URL), WithAPIURL(server.URL)), server
}

func TestService_Search(t *testing.T) {
	svc, server := newTestService(t)

	records, err := svc.Search(context.Background(), "星际牛仔")
	require.NoError(t, err)
	require.Len(t, records, 2)

	bebop := records[0]
	assert.Equal(t, domain.SourceBangumi, bebop.SourceType)
	assert.Equal(t, "253", bebop.SourceID)
	assert.Equal(t, server.URL+"/subject/253", bebop.SourceURL)
	assert.Equal(t, domain.MediaAnime, bebop.MediaType)
	assert.Equal(t, "星际牛仔", bebop.TitleLocalized)
	assert.Equal(t, "カウボーイビバップ", bebop.TitleOriginal)
	assert.Equal(t, "1998-10-23", bebop.ReleaseDate)
	assert.Equal(t, "1998", bebop.Year)
	assert.Equal(t, "26", bebop.Duration)
	assert.Equal(t, 9.1, bebop.RatingBangumi.Score)
	assert.False(t, bebop.RatingDouban.Present())
	assert.Equal(t, "https://lain.bgm.tv/r/400/pic/cover/l/c9/f0/253_t3XWd.jpg", bebop.PosterURL)
	assert.Equal(t, "2071年，人类已经走出地球，移居到太阳系的各个角落。\n斯派克和杰特驾驶着宇宙飞船Bebop号，以赏金猎人为业。", bebop.Summary)
	assert.Equal(t, "导演: 渡辺信一郎 | 脚本: 信本敬子、渡辺信一郎 | 音乐: 菅野よう子 | 原作: 矢立肇", bebop.StaffCredits)

	// Subject page 404s: list fields only, the non-numeric score is kept raw.
	movie := records[1]
	assert.Equal(t, "4019", movie.SourceID)
	assert.Equal(t, "星际牛仔 天国之门", movie.TitleLocalized)
	assert.Equal(t, "2001-09-01", movie.ReleaseDate)
	assert.Equal(t, "渡辺信一郎", movie.StaffCredits)
	assert.False(t, movie.RatingBangumi.Present())
	assert.Equal(t, "--", movie.RatingBangumi.Raw)
	assert.Equal(t, server.URL+"/img/no_icon_subject.png", movie.PosterURL)
	assert.Empty(t, movie.Summary)
}

func TestService_Search_NoResults(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Search(context.Background(), "不存在")
	require.Error(t, err, "404 search page is a transport failure")
	assert.True(t, domain.IsTransport(err))
}

func TestService_Calendar(t *testing.T) {
	svc, server := newTestService(t)

	schedule, err := svc.Calendar(context.Background())
	require.NoError(t, err)
	assert.False(t, schedule.Empty())

	monday := schedule.Day(time.Monday)
	assert.Equal(t, "星期一", monday.Label)
	require.Len(t, monday.Records, 1)
	frieren := monday.Records[0]
	assert.Equal(t, "400602", frieren.SourceID)
	assert.Equal(t, "葬送的芙莉莲", frieren.TitleLocalized)
	assert.Equal(t, "葬送のフリーレン", frieren.TitleOriginal)
	assert.Equal(t, "2023", frieren.Year)
	assert.Equal(t, 8.9, frieren.RatingBangumi.Score)
	assert.Equal(t, "http://lain.bgm.tv/pic/cover/l/13/c5/400602_ZI8Y9.jpg", frieren.PosterURL)

	sunday := schedule.Day(time.Sunday)
	require.Len(t, sunday.Records, 1)
	assert.Equal(t, "ダンジョン飯", sunday.Records[0].Title())
	assert.Equal(t, server.URL+"/subject/464376", sunday.Records[0].SourceURL)
	assert.False(t, sunday.Records[0].RatingBangumi.Present())
	assert.Empty(t, sunday.Records[0].PosterURL)

	assert.Empty(t, schedule.Day(time.Wednesday).Records)
}

func TestService_Calendar_UnexpectedShape(t *testing.T) {
	svc, server := newTestService(t)
	svc = NewService(zerolog.Nop(), fetch.NewClient(domain.SourceBangumi, zerolog.Nop(), fetch.WithRetry(1, 0)), WithAPIURL(server.URL+"/broken"))

	_, err := svc.Calendar(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsParse(err))
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"1998年10月23日":     "1998-10-23",
		"2001年9月1日":       "2001-09-01",
		"2024年4月":         "2024-04",
		"2010年":           "2010",
		"2023-09-29":      "2023-09-29",
		" 1998年1月2日(日本) ": "1998-01-02",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeDate(in), in)
	}
}

func TestSplitInfo(t *testing.T) {
	date, episodes, staff := splitInfo("26话 / 1998年10月23日 / 渡辺信一郎 / 矢立肇")
	assert.Equal(t, "1998-10-23", date)
	assert.Equal(t, "26", episodes)
	assert.Equal(t, "渡辺信一郎 / 矢立肇", staff)

	date, episodes, staff = splitInfo("")
	assert.Empty(t, date)
	assert.Empty(t, episodes)
	assert.Empty(t, staff)
}
