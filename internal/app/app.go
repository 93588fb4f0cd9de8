package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/mediahub/internal/aggregate"
	"github.com/varoOP/mediahub/internal/bangumi"
	"github.com/varoOP/mediahub/internal/collection"
	"github.com/varoOP/mediahub/internal/config"
	"github.com/varoOP/mediahub/internal/database"
	"github.com/varoOP/mediahub/internal/dedupe"
	"github.com/varoOP/mediahub/internal/domain"
	"github.com/varoOP/mediahub/internal/douban"
	"github.com/varoOP/mediahub/internal/fetch"
	"github.com/varoOP/mediahub/internal/logger"
	"github.com/varoOP/mediahub/internal/maoyan"
	"github.com/varoOP/mediahub/internal/notification"
	"github.com/varoOP/mediahub/internal/paging"
	"github.com/varoOP/mediahub/internal/repository"
	"github.com/varoOP/mediahub/internal/source"
	"github.com/varoOP/mediahub/internal/tmdb"
)

const retryDelay = 500 * time.Millisecond

// App represents the main application with all dependencies initialized
type App struct {
	log    zerolog.Logger
	config *domain.Config

	db                  *database.DB
	douban              douban.Service
	bangumi             bangumi.Service
	tmdb                tmdb.Service
	maoyan              maoyan.Service
	aggregate           aggregate.Service
	engine              *paging.Engine
	collection          collection.Service
	notificationService domain.NotificationService
	recordRepo          domain.RecordRepository
}

// NewApp loads configuration and builds the application.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return New(cfg, logger.NewLogger(cfg.LogLevel, cfg.LogPath))
}

// New builds the application from an already loaded configuration.
func New(cfg *domain.Config, log zerolog.Logger) (*App, error) {
	client := func(st domain.SourceType, opts ...fetch.Option) *fetch.Client {
		base := []fetch.Option{
			fetch.WithTimeout(cfg.RequestTimeout),
			fetch.WithRetry(cfg.RetryAttempts, retryDelay),
			fetch.WithRateLimit(cfg.RateLimit),
			fetch.WithUserAgent(cfg.UserAgent),
		}
		return fetch.NewClient(st, log, append(base, opts...)...)
	}

	doubanService := douban.NewService(log, client(domain.SourceDouban),
		douban.WithRandomUserAgent(cfg.RandomUserAgent))
	bangumiService := bangumi.NewService(log, client(domain.SourceBangumi))
	tmdbService := tmdb.NewService(log, cfg.TmdbApiKey,
		client(domain.SourceTMDb, fetch.WithRedactedParams("api_key")))
	maoyanService := maoyan.NewService(log, client(domain.SourceMaoyan,
		fetch.WithUserAgent(fetch.MobileUserAgent),
		fetch.WithHeader("Referer", "https://m.maoyan.com/")))

	adapters := []source.Adapter{doubanService, bangumiService, tmdbService, maoyanService}

	aggregateService := aggregate.NewService(log, dedupe.NewService(log), adapters,
		aggregate.WithTTL(cfg.CacheTTL),
		aggregate.WithQuickSearchTimeout(cfg.QuickSearchTimeout))

	engine := paging.NewEngine(log,
		tmdb.NewTopRatedBrowser(tmdbService, domain.MediaMovie),
		tmdb.NewTopRatedBrowser(tmdbService, domain.MediaTV),
		paging.WithPageSizes(cfg.UpstreamPageSize, cfg.DisplayPageSize))

	db, err := database.NewDB(cfg.DatabaseDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &App{
		log:                 log,
		config:              cfg,
		db:                  db,
		douban:              doubanService,
		bangumi:             bangumiService,
		tmdb:                tmdbService,
		maoyan:              maoyanService,
		aggregate:           aggregateService,
		engine:              engine,
		collection:          collection.NewService(log, database.NewDocumentRepo(log, db), cfg.DatabaseID),
		notificationService: notification.NewService(log, cfg.DiscordWebhookURL),
		recordRepo:          repository.NewFileRepository(log),
	}, nil
}

func (a *App) Logger() zerolog.Logger {
	return a.log
}

func (a *App) Config() *domain.Config {
	return a.config
}

func (a *App) Close() error {
	return a.db.Close()
}

// Search returns every match with the collected flag set.
func (a *App) Search(ctx context.Context, keyword string, mediaType domain.MediaType) ([]domain.Record, error) {
	records, err := a.aggregate.Search(ctx, keyword, mediaType)
	if err != nil {
		return nil, err
	}
	return a.collection.MarkCollected(ctx, a.config.UserID, records)
}

// SearchPage returns one page of matches and the total match count.
func (a *App) SearchPage(ctx context.Context, keyword string, mediaType domain.MediaType, page, limit int) ([]domain.Record, int, error) {
	records, err := a.aggregate.SearchPage(ctx, keyword, mediaType, page, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := a.aggregate.GetTotalCount(ctx, keyword, mediaType)
	if err != nil {
		return nil, 0, err
	}
	records, err = a.collection.MarkCollected(ctx, a.config.UserID, records)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (a *App) Count(ctx context.Context, keyword string, mediaType domain.MediaType) (int, error) {
	return a.aggregate.GetTotalCount(ctx, keyword, mediaType)
}

func (a *App) QuickSearch(ctx context.Context, keyword string) map[domain.SourceType]domain.Record {
	return a.aggregate.QuickSearch(ctx, keyword)
}

// Warmup populates every browse category ahead of the first request.
func (a *App) Warmup(ctx context.Context) error {
	return a.engine.Init(ctx)
}

func (a *App) Browse(ctx context.Context, category domain.Category, page int) (paging.Page, error) {
	p, err := a.engine.Page(ctx, category, page)
	if err != nil {
		return paging.Page{}, err
	}
	p.Items, err = a.collection.MarkCollected(ctx, a.config.UserID, p.Items)
	if err != nil {
		return paging.Page{}, err
	}
	return p, nil
}

func (a *App) SwitchCategory(category domain.Category) (paging.View, error) {
	return a.engine.Switch(category)
}

func (a *App) Schedule(ctx context.Context) (domain.WeeklySchedule, error) {
	return a.bangumi.Calendar(ctx)
}

func (a *App) NowShowing(ctx context.Context) ([]domain.Record, error) {
	return a.maoyan.NowShowing(ctx)
}

func (a *App) ComingSoon(ctx context.Context) ([]domain.Record, error) {
	return a.maoyan.ComingSoon(ctx)
}

// Lookup fetches one record by its source id. TMDb ids also need the
// media type.
func (a *App) Lookup(ctx context.Context, st domain.SourceType, mediaType domain.MediaType, id string) (domain.Record, error) {
	switch st {
	case domain.SourceDouban:
		return a.douban.Detail(ctx, id)
	case domain.SourceBangumi:
		return a.bangumi.Detail(ctx, id)
	case domain.SourceMaoyan:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return domain.Record{}, domain.NewUserInputError("id", "maoyan ids are numeric")
		}
		return a.maoyan.Detail(ctx, n)
	case domain.SourceTMDb:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return domain.Record{}, domain.NewUserInputError("id", "tmdb ids are numeric")
		}
		return a.tmdb.Details(ctx, mediaType, n)
	}
	return domain.Record{}, domain.NewUserInputError("source", "unknown source "+string(st))
}

func (a *App) IsCollected(ctx context.Context, sourceID string) (bool, error) {
	return a.collection.IsCollected(ctx, a.config.UserID, sourceID)
}

// Collect adds record to the collection and announces it.
func (a *App) Collect(ctx context.Context, record domain.Record, watchStatus, notes string) (item domain.CollectedItem, err error) {
	defer func() {
		if reportable(err) {
			a.notifyError(ctx, err)
		}
	}()

	item, err = a.collection.Add(ctx, a.config.UserID, record, watchStatus, notes)
	if err != nil {
		return domain.CollectedItem{}, err
	}

	if notifyErr := a.notificationService.SendCollected(ctx, record); notifyErr != nil {
		a.log.Warn().Err(notifyErr).Msg("Failed to send collected notification")
	}

	return item, nil
}

func (a *App) Uncollect(ctx context.Context, sourceID string) error {
	return a.collection.Remove(ctx, a.config.UserID, sourceID)
}

func (a *App) Collection(ctx context.Context) ([]domain.CollectedItem, error) {
	return a.collection.List(ctx, a.config.UserID)
}

// Export writes the full result set of a search to path as JSON or YAML.
func (a *App) Export(ctx context.Context, keyword string, mediaType domain.MediaType, path string) (int, error) {
	records, err := a.Search(ctx, keyword, mediaType)
	if err != nil {
		return 0, err
	}

	if err := a.recordRepo.Store(ctx, domain.RecordPath(path), records); err != nil {
		return 0, fmt.Errorf("failed to export records: %w", err)
	}

	stats := summarize(records)
	a.log.Info().
		Str("path", path).
		Int("records", len(records)).
		Int("collected", stats.collected).
		Int("rated", stats.rated).
		Msg("export complete")

	return len(records), nil
}

// reportable filters out failures caused by the request itself.
func reportable(err error) bool {
	switch {
	case err == nil, domain.IsUserInput(err):
		return false
	case errors.Is(err, domain.ErrAlreadyCollected), errors.Is(err, domain.ErrNotCollected):
		return false
	}
	return true
}

func (a *App) notifyError(ctx context.Context, err error) {
	if notifyErr := a.notificationService.SendError(ctx, err); notifyErr != nil {
		a.log.Warn().Err(notifyErr).Msg("Failed to send error notification")
	}
}

type exportStats struct {
	collected int
	rated     int
}

func summarize(records []domain.Record) exportStats {
	var s exportStats
	for _, r := range records {
		if r.Collected {
			s.collected++
		}
		if r.RatingDouban.Present() || r.RatingIMDb.Present() || r.RatingBangumi.Present() {
			s.rated++
		}
	}
	return s
}
