// Package paging re-chunks fixed-size upstream pages into display pages of a
// different size, caching pages per category.
package paging

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/mediahub/internal/domain"
	"github.com/varoOP/mediahub/internal/latch"
	"github.com/varoOP/mediahub/internal/source"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultUpstreamPageSize = 20
	DefaultDisplayPageSize  = 21
	defaultWorkers          = 4
)

var baseCategories = []domain.Category{domain.CategoryMovies, domain.CategoryTV}

// Page is one display page.
type Page struct {
	Category   domain.Category `json:"category"`
	Number     int             `json:"page"`
	Items      []domain.Record `json:"items"`
	TotalPages int             `json:"total_pages"`
	LastPage   bool            `json:"last_page"`
}

// View is the navigation state restored on a category switch.
type View struct {
	Category    domain.Category `json:"category"`
	CurrentPage int             `json:"current_page"`
	TotalPages  int             `json:"total_pages"`
	IsLoading   bool            `json:"is_loading"`
	IsLastPage  bool            `json:"is_last_page"`
}

type state struct {
	mu sync.Mutex

	currentPage   int
	totalPages    int
	upstreamTotal int
	nextUpstream  int
	exhausted     bool

	buffer      []domain.Record
	accumulated []domain.Record
	pages       map[int][]domain.Record

	loading  atomic.Bool
	lastPage atomic.Bool
}

func newState() *state {
	return &state{
		currentPage:  1,
		nextUpstream: 1,
		pages:        make(map[int][]domain.Record),
	}
}

type Engine struct {
	log          zerolog.Logger
	upstreamSize int
	displaySize  int
	fetchers     map[domain.Category]source.Browser
	states       map[domain.Category]*state
	sem          *semaphore.Weighted
}

type Option func(*Engine)

// WithPageSizes sets the upstream and display page sizes.
func WithPageSizes(upstream, display int) Option {
	return func(e *Engine) {
		if upstream > 0 {
			e.upstreamSize = upstream
		}
		if display > 0 {
			e.displaySize = display
		}
	}
}

// WithWorkers bounds concurrent asynchronous page loads.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

func NewEngine(log zerolog.Logger, movies, tv source.Browser, opts ...Option) *Engine {
	e := &Engine{
		log:          log.With().Str("module", "paging").Logger(),
		upstreamSize: DefaultUpstreamPageSize,
		displaySize:  DefaultDisplayPageSize,
		fetchers: map[domain.Category]source.Browser{
			domain.CategoryMovies: movies,
			domain.CategoryTV:     tv,
		},
		states: make(map[domain.Category]*state, len(domain.Categories())),
		sem:    semaphore.NewWeighted(defaultWorkers),
	}
	for _, c := range domain.Categories() {
		e.states[c] = newState()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SlicePages splits list into consecutive chunks of size; only the last may
// be shorter. The chunks are copies.
func SlicePages(list []domain.Record, size int) [][]domain.Record {
	if size <= 0 || len(list) == 0 {
		return nil
	}
	pages := make([][]domain.Record, 0, (len(list)+size-1)/size)
	for start := 0; start < len(list); start += size {
		end := min(start+size, len(list))
		pages = append(pages, slices.Clone(list[start:end]))
	}
	return pages
}

// Init populates the movie and tv categories concurrently, then derives ALL.
// A category that fails to load is left empty; Init fails only when every
// category failed.
func (e *Engine) Init(ctx context.Context) error {
	errs := make([]error, len(baseCategories))

	var g errgroup.Group
	for i, c := range baseCategories {
		g.Go(func() error {
			if _, err := e.loadBase(ctx, c, 1); err != nil {
				e.log.Warn().Err(err).Str("category", c.String()).Msg("failed to populate category")
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	all := e.states[domain.CategoryAll]
	all.mu.Lock()
	e.deriveAll(all)
	all.mu.Unlock()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == len(baseCategories) {
		return &domain.AggregateError{Errors: failed}
	}
	return nil
}

// Populate runs the initial load for one category.
func (e *Engine) Populate(ctx context.Context, c domain.Category) error {
	_, err := e.Page(ctx, c, 1)
	return err
}

// Switch returns the saved navigation state of c and clears its transient
// loading and last-page flags.
func (e *Engine) Switch(c domain.Category) (View, error) {
	st, err := e.state(c)
	if err != nil {
		return View{}, err
	}
	st.loading.Store(false)
	st.lastPage.Store(false)

	st.mu.Lock()
	defer st.mu.Unlock()
	return View{
		Category:    c,
		CurrentPage: st.currentPage,
		TotalPages:  st.totalPages,
	}, nil
}

// Page returns display page n of c. Cached pages return without fetching.
func (e *Engine) Page(ctx context.Context, c domain.Category, n int) (Page, error) {
	if err := e.validate(c, n); err != nil {
		return Page{}, err
	}
	if p, ok := e.cached(c, n); ok {
		return p, nil
	}
	return e.PageAsync(ctx, c, n, nil).Wait(ctx)
}

// PageAsync loads page n of c on the engine's worker pool. done, when set,
// is called with the outcome before the returned latch resolves. The load
// outlives ctx cancellation so abandoned callers do not discard fetched pages.
func (e *Engine) PageAsync(ctx context.Context, c domain.Category, n int, done func(Page, error)) *latch.Latch[Page] {
	l := latch.New[Page]()

	if err := e.validate(c, n); err != nil {
		if done != nil {
			done(Page{}, err)
		}
		l.Resolve(Page{}, err)
		return l
	}

	st := e.states[c]
	st.loading.Store(true)

	ctx = context.WithoutCancel(ctx)
	go func() {
		var (
			p   Page
			err error
		)
		if err = e.sem.Acquire(ctx, 1); err == nil {
			p, err = e.load(ctx, c, n)
			e.sem.Release(1)
		}
		st.loading.Store(false)
		if err == nil {
			st.lastPage.Store(p.LastPage)
		}
		if done != nil {
			done(p, err)
		}
		l.Resolve(p, err)
	}()

	return l
}

func (e *Engine) validate(c domain.Category, n int) error {
	if !c.Valid() {
		return domain.NewUserInputError("category", fmt.Sprintf("unknown category %d", c))
	}
	if n <= 0 {
		return domain.NewUserInputError("page", fmt.Sprintf("must be positive, got %d", n))
	}
	return nil
}

func (e *Engine) state(c domain.Category) (*state, error) {
	st, ok := e.states[c]
	if !ok {
		return nil, domain.NewUserInputError("category", fmt.Sprintf("unknown category %d", c))
	}
	return st, nil
}

func (e *Engine) cached(c domain.Category, n int) (Page, bool) {
	st := e.states[c]
	st.mu.Lock()
	defer st.mu.Unlock()
	if !e.ready(st, n) {
		return Page{}, false
	}
	p := e.pageOf(c, st, n)
	st.lastPage.Store(p.LastPage)
	return p, true
}

func (e *Engine) load(ctx context.Context, c domain.Category, n int) (Page, error) {
	if c.Derived() {
		return e.loadAll(ctx, n)
	}
	return e.loadBase(ctx, c, n)
}

func (e *Engine) loadBase(ctx context.Context, c domain.Category, n int) (Page, error) {
	st := e.states[c]
	fetcher := e.fetchers[c]

	st.mu.Lock()
	grew := false
	var err error
	for !e.ready(st, n) && !st.exhausted {
		before := len(st.accumulated)
		err = e.round(ctx, c, fetcher, st)
		grew = grew || len(st.accumulated) > before
		if err != nil {
			break
		}
	}
	var p Page
	if err == nil {
		p = e.pageOf(c, st, n)
	}
	st.mu.Unlock()

	if grew {
		all := e.states[domain.CategoryAll]
		all.mu.Lock()
		e.deriveAll(all)
		all.mu.Unlock()
	}

	return p, err
}

// loadAll backfills both base categories until page n of the combined list
// exists or both are exhausted.
func (e *Engine) loadAll(ctx context.Context, n int) (Page, error) {
	all := e.states[domain.CategoryAll]
	all.mu.Lock()
	defer all.mu.Unlock()

	e.deriveAll(all)
	for !e.ready(all, n) && !all.exhausted {
		err := e.backfillBases(ctx)
		e.deriveAll(all)
		if err != nil {
			if e.ready(all, n) {
				e.log.Warn().Err(err).Msg("partial backfill for all category")
				break
			}
			return Page{}, err
		}
	}

	return e.pageOf(domain.CategoryAll, all, n), nil
}

// backfillBases runs one backfill round on each base category that still
// has upstream data.
func (e *Engine) backfillBases(ctx context.Context) error {
	var g errgroup.Group
	for _, c := range baseCategories {
		st := e.states[c]
		fetcher := e.fetchers[c]
		g.Go(func() error {
			st.mu.Lock()
			defer st.mu.Unlock()
			if st.exhausted {
				return nil
			}
			return e.round(ctx, c, fetcher, st)
		})
	}
	return g.Wait()
}

// round fetches upstream pages in order until at least one display page of
// new items is buffered or upstream runs out, then re-slices the
// accumulated list. The caller holds st.mu.
func (e *Engine) round(ctx context.Context, c domain.Category, fetcher source.Browser, st *state) error {
	for !st.exhausted && len(st.buffer) < e.displaySize {
		if err := e.fetchNext(ctx, c, fetcher, st); err != nil {
			return err
		}
	}
	e.slice(st)
	return nil
}

func (e *Engine) fetchNext(ctx context.Context, c domain.Category, fetcher source.Browser, st *state) error {
	page := st.nextUpstream
	if st.upstreamTotal > 0 && page > st.upstreamTotal {
		st.exhausted = true
		return nil
	}

	items, total, err := fetcher.FetchPage(ctx, page)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch %s upstream page %d", c, page)
	}

	st.nextUpstream++
	if total > 0 {
		st.upstreamTotal = total
	}
	if len(items) == 0 {
		st.exhausted = true
	} else {
		st.buffer = append(st.buffer, items...)
		st.accumulated = append(st.accumulated, items...)
		if st.upstreamTotal > 0 && st.nextUpstream > st.upstreamTotal {
			st.exhausted = true
		}
	}

	e.log.Debug().
		Str("category", c.String()).
		Int("upstream_page", page).
		Int("upstream_total", st.upstreamTotal).
		Int("items", len(items)).
		Int("accumulated", len(st.accumulated)).
		Bool("exhausted", st.exhausted).
		Msg("fetched upstream page")

	return nil
}

// slice populates every display page of the accumulated list. A full page
// already cached is kept as is; a short trailing page is replaced.
func (e *Engine) slice(st *state) {
	for i, chunk := range SlicePages(st.accumulated, e.displaySize) {
		n := i + 1
		if old, ok := st.pages[n]; ok && len(old) == e.displaySize {
			continue
		}
		st.pages[n] = chunk
	}
	st.buffer = nil
	st.totalPages = e.totalPages(st)
}

// deriveAll rebuilds the combined category from the movie list followed by
// the tv list. The page map is replaced as a whole. The caller holds all.mu.
func (e *Engine) deriveAll(all *state) {
	var (
		list      []domain.Record
		expected  int
		exhausted = true
	)
	for _, c := range baseCategories {
		st := e.states[c]
		st.mu.Lock()
		list = append(list, st.accumulated...)
		expected += e.expectedItems(st)
		exhausted = exhausted && st.exhausted
		st.mu.Unlock()
	}

	pages := make(map[int][]domain.Record)
	for i, chunk := range SlicePages(list, e.displaySize) {
		pages[i+1] = chunk
	}

	all.accumulated = list
	all.pages = pages
	all.exhausted = exhausted
	all.totalPages = max(ceilDiv(expected, e.displaySize), len(pages))
}

// ready reports whether page n is cached in its final form.
func (e *Engine) ready(st *state, n int) bool {
	p, ok := st.pages[n]
	return ok && (len(p) == e.displaySize || st.exhausted)
}

func (e *Engine) pageOf(c domain.Category, st *state, n int) Page {
	items := slices.Clone(st.pages[n])
	if items == nil {
		items = []domain.Record{}
	}
	if len(items) > 0 {
		st.currentPage = n
	}
	return Page{
		Category:   c,
		Number:     n,
		Items:      items,
		TotalPages: st.totalPages,
		LastPage:   st.exhausted && n >= st.totalPages,
	}
}

// expectedItems estimates a category's size from the upstream page count
// until upstream is exhausted.
func (e *Engine) expectedItems(st *state) int {
	if st.exhausted {
		return len(st.accumulated)
	}
	return max(st.upstreamTotal*e.upstreamSize, len(st.accumulated))
}

func (e *Engine) totalPages(st *state) int {
	return max(ceilDiv(e.expectedItems(st), e.displaySize), len(st.pages))
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
