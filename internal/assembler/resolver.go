package assembler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kriswu/inkstone/internal/proxy"
	"github.com/kriswu/inkstone/internal/storyboard"
)

// Resolver rewrites gallery URLs into data URIs through the image
// proxy. Fetches run concurrently but rate limited so a large gallery
// does not hammer the backend's static file host.
type Resolver struct {
	proxy   *proxy.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewResolver creates a resolver fetching at most two images per
// interval with a burst of two.
func NewResolver(p *proxy.Client, interval time.Duration, logger *slog.Logger) *Resolver {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		proxy:   p,
		limiter: rate.NewLimiter(rate.Every(interval), 2),
		logger:  logger,
	}
}

// ResolveAll returns a copy of images with remote URLs replaced by
// data URIs. A failed fetch keeps the original URL, so a partially
// broken gallery still renders what it can.
func (r *Resolver) ResolveAll(ctx context.Context, images []storyboard.ComicImage) []storyboard.ComicImage {
	out := make([]storyboard.ComicImage, len(images))
	copy(out, images)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range out {
		if strings.HasPrefix(out[i].URL, "data:") {
			continue
		}
		g.Go(func() error {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil
			}
			uri, err := r.proxy.Fetch(ctx, out[i].URL)
			if err != nil {
				r.logger.Warn("image resolve failed, keeping original URL",
					"id", out[i].ID, "error", err)
				return nil
			}
			out[i].URL = uri
			return nil
		})
	}
	g.Wait()
	return out
}
