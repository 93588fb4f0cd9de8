package tmdb

import (
	"context"

	"github.com/varoOP/mediahub/internal/domain"
	"github.com/varoOP/mediahub/internal/source"
)

// TopRatedBrowser pages through the top rated list of one media type.
type TopRatedBrowser struct {
	svc       Service
	mediaType domain.MediaType
}

func NewTopRatedBrowser(svc Service, mediaType domain.MediaType) *TopRatedBrowser {
	return &TopRatedBrowser{svc: svc, mediaType: mediaType}
}

var _ source.Browser = (*TopRatedBrowser)(nil)

func (b *TopRatedBrowser) FetchPage(ctx context.Context, page int) ([]domain.Record, int, error) {
	return b.svc.TopRated(ctx, b.mediaType, page)
}
