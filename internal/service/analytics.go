package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"shortage-service/internal/classifier"
	"shortage-service/internal/models"
	"shortage-service/internal/util"

	"go.uber.org/zap"
)

const (
	topSKUs            = 10
	topRepeatCustomers = 5
	topFacilities      = 5
)

// HistoryStore is the slice of the store the aggregator reads.
type HistoryStore interface {
	QueryByWindow(ctx context.Context, start, end time.Time) ([]json.RawMessage, error)
}

// AnalyticsService derives cross-source analytics from the accumulated
// exception history. Snapshots are computed on demand and never
// persisted.
type AnalyticsService struct {
	store  HistoryStore
	logger *zap.Logger
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(historyStore HistoryStore) *AnalyticsService {
	return &AnalyticsService{
		store:  historyStore,
		logger: util.GetLogger(),
	}
}

// counter accumulates totals per key while remembering the order keys
// first appeared, so top-N selection is deterministic under ties.
type counter struct {
	totals map[string]float64
	keys   []string
}

func newCounter() *counter {
	return &counter{totals: make(map[string]float64)}
}

func (c *counter) add(key string, delta float64) {
	if _, seen := c.totals[key]; !seen {
		c.keys = append(c.keys, key)
	}
	c.totals[key] += delta
}

type rankedEntry struct {
	key   string
	total float64
}

// top returns up to n (key, total) pairs sorted by total descending;
// ties keep first-encountered order. keep filters entries first.
func (c *counter) top(n int, keep func(total float64) bool) []rankedEntry {
	ranked := make([]rankedEntry, 0, len(c.keys))
	for _, key := range c.keys {
		if keep == nil || keep(c.totals[key]) {
			ranked = append(ranked, rankedEntry{key: key, total: c.totals[key]})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].total > ranked[j].total
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func (c *counter) size(keep func(total float64) bool) int {
	if keep == nil {
		return len(c.keys)
	}
	count := 0
	for _, key := range c.keys {
		if keep(c.totals[key]) {
			count++
		}
	}
	return count
}

// ComputeSnapshot aggregates every exception record whose first_seen_at
// falls inside [start, end]. Per-order corruption is skipped silently
// (reduced data); only a store-level failure aborts the aggregation.
func (s *AnalyticsService) ComputeSnapshot(ctx context.Context, start, end time.Time) (*models.AnalyticsSnapshot, error) {
	ctx, span := util.StartSpan(ctx, "AnalyticsService.ComputeSnapshot")
	defer span.End()

	began := time.Now()
	defer func() {
		util.AnalyticsDuration.Observe(time.Since(began).Seconds())
	}()

	payloads, err := s.store.QueryByWindow(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load historical exceptions: %w", err)
	}
	s.logger.Info("Computing analytics snapshot",
		zap.Int("orders", len(payloads)),
		zap.Time("start", start),
		zap.Time("end", end))

	skuFrequency := newCounter()
	customerImpact := newCounter()
	facilityHotspots := newCounter()
	partnerCounts := map[models.Source]int{}
	resolutionHours := map[models.Source][]float64{}

	for _, raw := range payloads {
		if len(raw) == 0 {
			continue
		}
		switch models.DetectSource(raw) {
		case models.SourceStord:
			s.aggregateStord(raw, skuFrequency, customerImpact, facilityHotspots, partnerCounts, resolutionHours)
		case models.SourceShipbob:
			s.aggregateShipbob(raw, skuFrequency, customerImpact, facilityHotspots, partnerCounts, resolutionHours)
		}
	}

	skuCounts := make([]models.SKUCount, 0, topSKUs)
	for _, entry := range skuFrequency.top(topSKUs, nil) {
		skuCounts = append(skuCounts, models.SKUCount{SKU: entry.key, Quantity: entry.total})
	}

	snapshot := &models.AnalyticsSnapshot{
		SKUAnalytics: models.SKUAnalytics{
			SKUFrequency: skuCounts,
		},
		CustomerAnalytics:    buildCustomerAnalytics(customerImpact),
		FulfillmentAnalytics: buildFulfillmentAnalytics(facilityHotspots, partnerCounts),
		OperationalAnalytics: buildOperationalAnalytics(resolutionHours),
	}
	return snapshot, nil
}

func (s *AnalyticsService) aggregateStord(
	raw json.RawMessage,
	skuFrequency, customerImpact, facilityHotspots *counter,
	partnerCounts map[models.Source]int,
	resolutionHours map[models.Source][]float64,
) {
	var order models.StordOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		s.logger.Warn("Skipping unparseable stord payload", zap.Error(err))
		return
	}

	oos := classifier.StordOOSSKUs(&order)
	for _, sol := range order.SalesOrderLines {
		for _, item := range sol.OrderLineItems {
			if !oos.Contains(item.ItemSKU) {
				continue
			}
			if item.ItemQuantity.Valid {
				skuFrequency.add(item.ItemSKU, item.ItemQuantity.Value)
			}
		}
	}

	partnerCounts[models.SourceStord]++

	identifier := ""
	if order.DestinationAddress != nil {
		identifier = order.DestinationAddress.Name
	}
	if identifier == "" {
		if id := firstNonEmpty(order.OrderID, order.OrderNumber); id != "" {
			identifier = fmt.Sprintf("stord_order_%s", id)
		}
	}
	if identifier != "" {
		customerImpact.add(strings.ToLower(identifier), 1)
	}

	if facility := order.Facility(); facility != "" {
		facilityHotspots.add(fmt.Sprintf("%s (%s)", facility, models.SourceStord), 1)
	}

	recordResolution(models.SourceStord, order.FirstSeenTimestamp, order.ResolvedTimestamp, resolutionHours)
}

func (s *AnalyticsService) aggregateShipbob(
	raw json.RawMessage,
	skuFrequency, customerImpact, facilityHotspots *counter,
	partnerCounts map[models.Source]int,
	resolutionHours map[models.Source][]float64,
) {
	var order models.ShipbobOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		s.logger.Warn("Skipping unparseable shipbob payload", zap.Error(err))
		return
	}

	oos := classifier.ShipbobOOSSKUs(&order)
	for _, product := range order.Products {
		if !oos.Contains(product.SKU) || product.Quantity == nil {
			continue
		}
		skuFrequency.add(product.SKU, float64(*product.Quantity))
	}

	partnerCounts[models.SourceShipbob]++

	identifier := ""
	if order.Recipient != nil {
		identifier = order.Recipient.Email
	}
	if identifier == "" && order.ID != "" {
		identifier = fmt.Sprintf("shipbob_order_%s", order.ID)
	}
	if identifier != "" {
		customerImpact.add(strings.ToLower(identifier), 1)
	}

	if facility := order.Facility(); facility != "" {
		facilityHotspots.add(fmt.Sprintf("%s (%s)", facility, models.SourceShipbob), 1)
	}

	recordResolution(models.SourceShipbob, order.FirstSeenTimestamp, order.ResolvedTimestamp, resolutionHours)
}

// recordResolution reads the epoch pair carried in the raw payload and
// appends the resolution latency in hours.
func recordResolution(source models.Source, firstSeen, resolved *float64, resolutionHours map[models.Source][]float64) {
	if firstSeen == nil || resolved == nil || *firstSeen == 0 || *resolved == 0 {
		return
	}
	resolutionHours[source] = append(resolutionHours[source], (*resolved-*firstSeen)/3600)
}

func buildCustomerAnalytics(customerImpact *counter) models.CustomerAnalytics {
	repeat := func(total float64) bool { return total > 1 }

	topRepeat := customerImpact.top(topRepeatCustomers, repeat)
	customers := make([]models.CustomerCount, 0, len(topRepeat))
	for _, entry := range topRepeat {
		customers = append(customers, models.CustomerCount{
			Customer: entry.key,
			Count:    int(entry.total),
		})
	}

	return models.CustomerAnalytics{
		TotalCustomersAffected:  customerImpact.size(nil),
		RepeatCustomersAffected: customerImpact.size(repeat),
		TopRepeatCustomers:      customers,
	}
}

func buildFulfillmentAnalytics(facilityHotspots *counter, partnerCounts map[models.Source]int) models.FulfillmentAnalytics {
	topHotspots := facilityHotspots.top(topFacilities, nil)
	facilities := make([]models.FacilityCount, 0, len(topHotspots))
	for _, entry := range topHotspots {
		facilities = append(facilities, models.FacilityCount{
			Facility: entry.key,
			OOSCount: int(entry.total),
		})
	}

	return models.FulfillmentAnalytics{
		FacilityHotspots: facilities,
		PartnerPerformance: models.PartnerPerformance{
			StordOOSCount:   partnerCounts[models.SourceStord],
			ShipbobOOSCount: partnerCounts[models.SourceShipbob],
			TotalOOSCount:   partnerCounts[models.SourceStord] + partnerCounts[models.SourceShipbob],
		},
	}
}

func buildOperationalAnalytics(resolutionHours map[models.Source][]float64) models.OperationalAnalytics {
	averages := make(map[models.Source]float64, len(models.Sources()))
	for _, source := range models.Sources() {
		samples := resolutionHours[source]
		if len(samples) == 0 {
			averages[source] = 0
			continue
		}
		sum := 0.0
		for _, h := range samples {
			sum += h
		}
		averages[source] = math.Round(sum/float64(len(samples))*100) / 100
	}
	return models.OperationalAnalytics{AverageResolutionTimeHours: averages}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
