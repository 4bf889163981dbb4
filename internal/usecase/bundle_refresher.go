package usecase

import (
	"context"
	"sync"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/pkg/logger"

	"golang.org/x/sync/errgroup"
)

type BundleBuilder interface {
	Build(ctx context.Context, symbol string) (*models.FeatureBundle, error)
}

// BundleRefresher builds the bundles of many instruments with bounded
// parallelism. A failed instrument is left out of the result.
type BundleRefresher struct {
	builder BundleBuilder
	limit   int
	logger  *logger.Logger
}

func NewBundleRefresher(b BundleBuilder, limit int, lgr *logger.Logger) *BundleRefresher {
	if limit <= 0 {
		limit = 1
	}
	return &BundleRefresher{builder: b, limit: limit, logger: lgr}
}

func (r *BundleRefresher) Refresh(ctx context.Context, symbols []string) (map[string]*models.FeatureBundle, []error) {
	var (
		mu       sync.Mutex
		bundles  = make(map[string]*models.FeatureBundle, len(symbols))
		failures []error
	)
	g := new(errgroup.Group)
	g.SetLimit(r.limit)
	for _, s := range symbols {
		s := s
		g.Go(func() error {
			b, err := r.build(ctx, s)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				r.logger.Warn("instrument skipped this cycle", logger.String("symbol", s), logger.Error(err))
				return nil
			}
			bundles[s] = b
			return nil
		})
	}
	_ = g.Wait()
	return bundles, failures
}

// build contains a panicking builder to its instrument.
func (r *BundleRefresher) build(ctx context.Context, symbol string) (b *models.FeatureBundle, err error) {
	defer func() {
		if v := recover(); v != nil {
			b, err = nil, &models.InstrumentCycleFailure{Symbol: symbol, Stage: "bundle", Err: &models.PanicError{Value: v}}
		}
	}()
	return r.builder.Build(ctx, symbol)
}
