package catalog

import (
	"context"
	"time"

	"storefront-service/models"
	aws_pkg "storefront-service/pkg/aws"

	"go.uber.org/zap"
)

// Service serves the product listing, reading through the cache when one is
// configured. Cache failures never fail a listing.
type Service struct {
	source  ProductSource
	cache   ProductCache
	metrics aws_pkg.MetricsRecorder
	logger  *zap.Logger
}

// NewService creates a Service. cache and metrics may be nil.
func NewService(source ProductSource, cache ProductCache, metrics aws_pkg.MetricsRecorder, logger *zap.Logger) *Service {
	return &Service{source: source, cache: cache, metrics: metrics, logger: logger}
}

// ListProducts returns every published product.
func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	if s.cache != nil {
		products, ok, err := s.cache.GetProducts(ctx)
		switch {
		case err != nil:
			s.logger.Warn("Product cache read failed, querying content store", zap.Error(err))
		case ok:
			s.record(ctx, aws_pkg.MetricCacheHits)
			return products, nil
		default:
			s.record(ctx, aws_pkg.MetricCacheMisses)
		}
	}

	products, err := s.source.FetchProducts(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch products", zap.Error(err))
		return nil, err
	}
	s.record(ctx, aws_pkg.MetricProductsListed)

	if s.cache != nil {
		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := s.cache.SetProducts(setCtx, products); err != nil {
			s.logger.Warn("Failed to cache product list", zap.Error(err))
		}
	}
	return products, nil
}

// Invalidate drops the cached listing, e.g. after a content publish.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Error("CRITICAL: Failed to invalidate product cache", zap.Error(err))
		return err
	}
	s.logger.Info("Product cache invalidated")
	return nil
}

func (s *Service) record(ctx context.Context, metric string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	if err := s.metrics.RecordCount(ctx, metric, map[string]string{"Component": "catalog"}); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}
