package tmdb

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

func serveFixture(t *testing.T, w http.ResponseWriter, name string) {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	_, _ = w.Write(b)
}

func newTestService(t *testing.T) (Service, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "zh-CN", r.URL.Query().Get("language"))

		switch r.URL.Path {
		case "/search/multi":
			assert.Equal(t, "Inception", r.URL.Query().Get("query"))
			assert.Equal(t, "false", r.URL.Query().Get("include_adult"))
			serveFixture(t, w, "search_multi.json")
		case "/movie/27205":
			assert.Equal(t, "credits", r.URL.Query().Get("append_to_response"))
			serveFixture(t, w, "movie_27205.json")
		case "/tv/top_rated":
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			serveFixture(t, w, "top_rated_tv.json")
		case "/movie/top_rated":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status_code":7,"status_message":"Invalid API key"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client := fetch.NewClient(domain.SourceTMDb, zerolog.Nop(), fetch.WithRetry(1, time.Millisecond), fetch.WithRedactedParams("api_key"))
	return NewService(zerolog.Nop(), "test-key", client, WithBaseURL(server.URL)), server
}

func TestService_Search(t *testing.T) {
	svc, _ := newTestService(t)

	records, err := svc.Search(context.Background(), "Inception")
	require.NoError(t, err)
	require.Len(t, records, 2, "person results are skipped")

	movie := records[0]
	assert.Equal(t, domain.SourceTMDb, movie.SourceType)
	assert.Equal(t, "27205", movie.SourceID)
	assert.Equal(t, domain.MediaMovie, movie.MediaType)
	assert.Equal(t, "盗梦空间", movie.TitleLocalized)
	assert.Equal(t, "Inception", movie.TitleOriginal)
	assert.Equal(t, "2010-07-15", movie.ReleaseDate)
	assert.Equal(t, "2010", movie.Year)
	assert.Equal(t, "148", movie.Duration)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/lQEjWasu07JbQHdfFI5VnEUfId2.jpg", movie.PosterURL)
	assert.Equal(t, "https://www.themoviedb.org/movie/27205", movie.SourceURL)
	assert.InDelta(t, 8.369, movie.RatingIMDb.Score, 0.0001)
	assert.Equal(t, domain.RatingAbsent, movie.RatingDouban.Score)
	assert.Equal(t, "导演: 克里斯托弗·诺兰 | 主演: 莱昂纳多·迪卡普里奥, 约瑟夫·高登-莱维特, 艾利奥特·佩吉, 汤姆·哈迪, 渡边谦", movie.StaffCredits)

	// The tv detail request 404s, so the search hit is used as-is.
	tv := records[1]
	assert.Equal(t, "64956", tv.SourceID)
	assert.Equal(t, domain.MediaTV, tv.MediaType)
	assert.Equal(t, "Inception: The Cobol Job", tv.TitleOriginal)
	assert.Empty(t, tv.PosterURL)
	assert.False(t, tv.RatingIMDb.Present(), "unrated items have no score")
	assert.Empty(t, tv.Duration)
}

func TestService_TopRated(t *testing.T) {
	svc, _ := newTestService(t)

	records, total, err := NewTopRatedBrowser(svc, domain.MediaTV).FetchPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 108, total)
	require.Len(t, records, 2)
	assert.Equal(t, "绝命毒师", records[0].TitleLocalized)
	assert.Equal(t, domain.MediaTV, records[0].MediaType)
	assert.Equal(t, "2008", records[0].Year)
}

func TestService_TopRated_MissingResults(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.TopRated(context.Background(), domain.MediaMovie, 1)
	require.Error(t, err)
	assert.True(t, domain.IsParse(err))
	assert.NotContains(t, err.Error(), "test-key")
}

func TestService_TopRated_RejectsAnime(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.TopRated(context.Background(), domain.MediaAnime, 1)
	assert.True(t, domain.IsUserInput(err))
}

func TestService_Details(t *testing.T) {
	svc, _ := newTestService(t)

	rec, err := svc.Details(context.Background(), domain.MediaMovie, 27205)
	require.NoError(t, err)
	assert.Equal(t, "27205", rec.SourceID)

	_, err = svc.Details(context.Background(), domain.MediaAnime, 27205)
	assert.True(t, domain.IsUserInput(err))
}

func TestService_Search_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := fetch.NewClient(domain.SourceTMDb, zerolog.Nop(), fetch.WithRetry(1, 0), fetch.WithRedactedParams("api_key"))
	svc := NewService(zerolog.Nop(), "secret", client, WithBaseURL(server.URL))

	_, err := svc.Search(context.Background(), "Inception")
	require.Error(t, err)
	assert.True(t, domain.IsTransport(err))
	assert.NotContains(t, err.Error(), "secret")
}
