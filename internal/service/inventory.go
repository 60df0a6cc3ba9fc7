package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"shortage-service/internal/models"
	"shortage-service/internal/util"

	"go.uber.org/zap"
)

// StordInventoryAPI looks up network-wide on-hand stock for one SKU.
type StordInventoryAPI interface {
	LookupInventory(ctx context.Context, sku string) (int, error)
}

// ShipbobInventoryAPI looks up per-location on-hand stock for one SKU.
type ShipbobInventoryAPI interface {
	LookupInventory(ctx context.Context, sku string) (fontana, other int, err error)
}

// InventoryCache fronts the live lookups; a nil cache disables caching.
type InventoryCache interface {
	GetSkuInventory(ctx context.Context, sku string) (*models.SkuInventory, error)
	SetSkuInventory(ctx context.Context, inv *models.SkuInventory, ttl time.Duration) error
}

// InventoryService joins live per-SKU inventory from both platforms.
// Lookups for a batch of SKUs run concurrently, bounded by batchSize
// with a cooldown between batches so the platforms' rate limits hold.
// A failed sub-lookup degrades to zero for that platform only.
type InventoryService struct {
	stord     StordInventoryAPI
	shipbob   ShipbobInventoryAPI
	cache     InventoryCache
	batchSize int
	cooldown  time.Duration
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(
	stord StordInventoryAPI,
	shipbob ShipbobInventoryAPI,
	cache InventoryCache,
	batchSize int,
	cooldown time.Duration,
	cacheTTL time.Duration,
) *InventoryService {
	if batchSize < 1 {
		batchSize = 1
	}
	return &InventoryService{
		stord:     stord,
		shipbob:   shipbob,
		cache:     cache,
		batchSize: batchSize,
		cooldown:  cooldown,
		cacheTTL:  cacheTTL,
		logger:    util.GetLogger(),
	}
}

// BulkLookup resolves inventory for a list of SKUs. The result map is
// keyed by the normalized (trimmed, lowercased) SKU. Input duplicates
// collapse to one lookup.
func (s *InventoryService) BulkLookup(ctx context.Context, skus []string) (map[string]models.SkuInventory, error) {
	unique := make([]string, 0, len(skus))
	seen := make(map[string]struct{}, len(skus))
	for _, sku := range skus {
		key := strings.ToLower(strings.TrimSpace(sku))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, sku)
	}

	results := make([]models.SkuInventory, len(unique))

	for offset := 0; offset < len(unique); offset += s.batchSize {
		end := offset + s.batchSize
		if end > len(unique) {
			end = len(unique)
		}

		var wg sync.WaitGroup
		for i := offset; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = s.lookupOne(ctx, unique[i])
			}(i)
		}
		wg.Wait()

		if end < len(unique) && s.cooldown > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.cooldown):
			}
		}
	}

	out := make(map[string]models.SkuInventory, len(results))
	for _, inv := range results {
		out[strings.ToLower(strings.TrimSpace(inv.SKU))] = inv
	}
	return out, nil
}

// lookupOne fans out to both platforms concurrently. Either side
// failing degrades that side to zero; the sibling result survives.
func (s *InventoryService) lookupOne(ctx context.Context, sku string) models.SkuInventory {
	if s.cache != nil {
		cached, err := s.cache.GetSkuInventory(ctx, sku)
		if err != nil {
			s.logger.Warn("Inventory cache read failed", zap.String("sku", sku), zap.Error(err))
		} else if cached != nil {
			return *cached
		}
	}

	inv := models.SkuInventory{SKU: sku}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		util.InventoryLookupsTotal.WithLabelValues("stord").Inc()
		stock, err := s.stord.LookupInventory(ctx, sku)
		if err != nil {
			util.InventoryLookupFailures.WithLabelValues("stord").Inc()
			s.logger.Warn("Stord inventory lookup degraded to zero",
				zap.String("sku", sku), zap.Error(err))
			return
		}
		inv.StordStock = stock
	}()

	go func() {
		defer wg.Done()
		util.InventoryLookupsTotal.WithLabelValues("shipbob").Inc()
		fontana, other, err := s.shipbob.LookupInventory(ctx, sku)
		if err != nil {
			util.InventoryLookupFailures.WithLabelValues("shipbob").Inc()
			s.logger.Warn("Shipbob inventory lookup degraded to zero",
				zap.String("sku", sku), zap.Error(err))
			return
		}
		inv.ShipbobFontanaStock = fontana
		inv.ShipbobOtherStock = other
	}()

	wg.Wait()

	if s.cache != nil {
		if err := s.cache.SetSkuInventory(ctx, &inv, s.cacheTTL); err != nil {
			s.logger.Warn("Inventory cache write failed", zap.String("sku", sku), zap.Error(err))
		}
	}
	return inv
}
