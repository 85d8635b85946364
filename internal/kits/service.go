package kits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-retail/meridian-retail/internal/catalog"
)

// CatalogPort abstracts catalog reads used by the service.
type CatalogPort interface {
	GetKitComponents(ctx context.Context, kitID int64) ([]catalog.KitComponent, error)
	ListKitIDsAt(ctx context.Context, locationID int64) ([]int64, error)
	ListLocationIDs(ctx context.Context) ([]int64, error)
}

// StockPort abstracts the stock reads used to derive availability.
type StockPort interface {
	StockMap(ctx context.Context, locationID int64, productIDs []int64) (map[int64]int, error)
}

// Service derives and caches buildable quantities.
type Service struct {
	catalog CatalogPort
	stock   StockPort
	cache   *Cache
	logger  *slog.Logger
}

// NewService builds Service.
func NewService(catalogPort CatalogPort, stockPort StockPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{catalog: catalogPort, stock: stockPort, cache: cache, logger: logger}
}

// Buildable computes the live buildable quantity from current stock.
func (s *Service) Buildable(ctx context.Context, kitID, locationID int64) (int, error) {
	if kitID == 0 || locationID == 0 {
		return 0, errors.New("kits: kit and location required")
	}
	components, err := s.catalog.GetKitComponents(ctx, kitID)
	if err != nil {
		return 0, fmt.Errorf("kits: load components: %w", err)
	}
	if len(components) == 0 {
		return 0, nil
	}
	productIDs := make([]int64, 0, len(components))
	for _, c := range components {
		productIDs = append(productIDs, c.ProductID)
	}
	stockMap, err := s.stock.StockMap(ctx, locationID, productIDs)
	if err != nil {
		return 0, fmt.Errorf("kits: load stock: %w", err)
	}
	return MaxBuildable(components, stockMap), nil
}

// CachedBuildable serves the materialized quantity, falling back to a live
// computation (and backfilling the cache) on a miss.
func (s *Service) CachedBuildable(ctx context.Context, kitID, locationID int64) (int, error) {
	qty, ok, err := s.cache.Get(ctx, kitID, locationID)
	if err != nil {
		s.logger.Warn("kit availability cache read", slog.Any("error", err))
	}
	if ok {
		return qty, nil
	}
	qty, err = s.Buildable(ctx, kitID, locationID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.Put(ctx, locationID, kitID, qty); err != nil {
		s.logger.Warn("kit availability cache write", slog.Any("error", err))
	}
	return qty, nil
}

// RefreshLocation recomputes every kit offered at the location and overwrites
// the cached view in one shot.
func (s *Service) RefreshLocation(ctx context.Context, locationID int64) error {
	kitIDs, err := s.catalog.ListKitIDsAt(ctx, locationID)
	if err != nil {
		return fmt.Errorf("kits: list kits at location %d: %w", locationID, err)
	}
	quantities := make(map[int64]int, len(kitIDs))
	for _, kitID := range kitIDs {
		qty, err := s.Buildable(ctx, kitID, locationID)
		if err != nil {
			return err
		}
		quantities[kitID] = qty
	}
	if err := s.cache.ReplaceLocation(ctx, locationID, quantities); err != nil {
		return fmt.Errorf("kits: replace cache for location %d: %w", locationID, err)
	}
	return nil
}

// RefreshAll recomputes every location, a few at a time.
func (s *Service) RefreshAll(ctx context.Context) error {
	locationIDs, err := s.catalog.ListLocationIDs(ctx)
	if err != nil {
		return fmt.Errorf("kits: list locations: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, locationID := range locationIDs {
		locationID := locationID
		g.Go(func() error {
			return s.RefreshLocation(ctx, locationID)
		})
	}
	return g.Wait()
}
