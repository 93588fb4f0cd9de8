package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/mediahub/internal/domain"
	"github.com/varoOP/mediahub/internal/paging"
)

type fakeBackend struct {
	searchArgs struct {
		keyword     string
		mediaType   domain.MediaType
		page, limit int
	}
	records   []domain.Record
	searchErr error

	browsed   domain.Category
	collected map[string]domain.Record
}

func (f *fakeBackend) SearchPage(ctx context.Context, keyword string, mediaType domain.MediaType, page, limit int) ([]domain.Record, int, error) {
	f.searchArgs.keyword, f.searchArgs.mediaType = keyword, mediaType
	f.searchArgs.page, f.searchArgs.limit = page, limit
	if f.searchErr != nil {
		return nil, 0, f.searchErr
	}
	if strings.TrimSpace(keyword) == "" {
		return nil, 0, domain.NewUserInputError("keyword", "required")
	}
	return f.records, len(f.records) + 10, nil
}

func (f *fakeBackend) QuickSearch(ctx context.Context, keyword string) map[domain.SourceType]domain.Record {
	return map[domain.SourceType]domain.Record{domain.SourceDouban: f.records[0]}
}

func (f *fakeBackend) Browse(ctx context.Context, category domain.Category, page int) (paging.Page, error) {
	f.browsed = category
	if page <= 0 {
		return paging.Page{}, domain.NewUserInputError("page", "must be positive")
	}
	return paging.Page{Category: category, Number: page, Items: f.records, TotalPages: 3}, nil
}

func (f *fakeBackend) SwitchCategory(category domain.Category) (paging.View, error) {
	return paging.View{Category: category, CurrentPage: 2, TotalPages: 5}, nil
}

func (f *fakeBackend) Schedule(ctx context.Context) (domain.WeeklySchedule, error) {
	s := domain.NewWeeklySchedule()
	s.Day(time.Monday).Records = f.records
	return s, nil
}

func (f *fakeBackend) Collection(ctx context.Context) ([]domain.CollectedItem, error) {
	var items []domain.CollectedItem
	for id, r := range f.collected {
		items = append(items, domain.CollectedItem{SourceID: id, Title: r.Title()})
	}
	return items, nil
}

func (f *fakeBackend) IsCollected(ctx context.Context, sourceID string) (bool, error) {
	_, ok := f.collected[sourceID]
	return ok, nil
}

func (f *fakeBackend) Collect(ctx context.Context, record domain.Record, watchStatus, notes string) (domain.CollectedItem, error) {
	if _, ok := f.collected[record.SourceID]; ok {
		return domain.CollectedItem{}, errors.Wrap(domain.ErrAlreadyCollected, record.SourceID)
	}
	f.collected[record.SourceID] = record
	return domain.CollectedItem{SourceID: record.SourceID, Title: record.Title(), WatchStatus: watchStatus, Notes: notes}, nil
}

func (f *fakeBackend) Uncollect(ctx context.Context, sourceID string) error {
	if _, ok := f.collected[sourceID]; !ok {
		return errors.Wrap(domain.ErrNotCollected, sourceID)
	}
	delete(f.collected, sourceID)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeBackend) {
	t.Helper()

	backend := &fakeBackend{
		records: []domain.Record{{
			SourceType:     domain.SourceDouban,
			SourceID:       "1292052",
			MediaType:      domain.MediaMovie,
			TitleLocalized: "肖申克的救赎",
			RatingDouban:   domain.NewRating(9.7),
			RatingIMDb:     domain.NoRating(),
			RatingBangumi:  domain.NoRating(),
		}},
		collected: map[string]domain.Record{},
	}
	srv := httptest.NewServer(New(zerolog.Nop(), backend).Handler())
	t.Cleanup(srv.Close)
	return srv, backend
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Search(t *testing.T) {
	srv, backend := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/search?q=%E8%82%96%E7%94%B3%E5%85%8B&type=TV&page=2&limit=500", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, float64(11), body["total"])
	require.Len(t, body["items"], 1)

	assert.Equal(t, "肖申克", backend.searchArgs.keyword)
	assert.Equal(t, domain.MediaTV, backend.searchArgs.mediaType)
	assert.Equal(t, 2, backend.searchArgs.page)
	assert.Equal(t, maxLimit, backend.searchArgs.limit)
}

func TestServer_Search_Defaults(t *testing.T) {
	srv, backend := newTestServer(t)

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/search?q=x", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.MediaMovie, backend.searchArgs.mediaType)
	assert.Equal(t, 1, backend.searchArgs.page)
	assert.Equal(t, defaultLimit, backend.searchArgs.limit)
}

func TestServer_Search_Errors(t *testing.T) {
	srv, backend := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/search?q=", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "请输入搜索关键词", body["error"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/search?q=x&type=book", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/search?q=x&page=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	backend.searchErr = &domain.AggregateError{Errors: []error{&domain.TransportError{Source: domain.SourceTMDb, StatusCode: 503}}}
	resp, body = do(t, http.MethodGet, srv.URL+"/api/search?q=x", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "网络请求失败，请检查网络后重试", body["error"])
}

func TestServer_Quick(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/quick?q=shawshank", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "douban")

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/quick?q=+", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Browse(t *testing.T) {
	srv, backend := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/browse/tv/2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.CategoryTV, backend.browsed)
	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(3), body["total_pages"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/browse/books/1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/browse/all/0", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Switch(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/browse/movies/switch", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["current_page"])
	assert.Equal(t, float64(5), body["total_pages"])
	assert.Equal(t, false, body["is_loading"])
}

func TestServer_Schedule(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/schedule", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	days, ok := body["days"].([]any)
	require.True(t, ok)
	require.Len(t, days, 7)
	monday := days[1].(map[string]any)
	assert.Equal(t, "星期一", monday["label"])
	assert.Len(t, monday["records"], 1)
}

func TestServer_Collection(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/collection/1292052", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["collected"])

	payload := `{"record":{"source_type":"douban","source_id":"1292052","media_type":"movie","title_localized":"肖申克的救赎"},"watch_status":"watched","notes":"n"}`
	resp, body = do(t, http.MethodPost, srv.URL+"/api/collection", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "watched", body["watch_status"])
	assert.Equal(t, "肖申克的救赎", body["title"])

	resp, body = do(t, http.MethodPost, srv.URL+"/api/collection", payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "该条目已在收藏中", body["error"])

	resp, body = do(t, http.MethodGet, srv.URL+"/api/collection/1292052", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["collected"])

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/collection/1292052", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/collection/1292052", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/collection", "{broken")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_ListCollection(t *testing.T) {
	srv, backend := newTestServer(t)
	backend.collected["253"] = domain.Record{SourceID: "253", TitleLocalized: "星际牛仔"}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/collection", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var items []domain.CollectedItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "星际牛仔", items[0].Title)
}
