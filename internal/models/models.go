package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Source identifies which fulfillment platform an order came from.
type Source string

const (
	// SourceStord is the warehouse-network platform.
	SourceStord Source = "stord"
	// SourceShipbob is the direct-to-consumer platform.
	SourceShipbob Source = "shipbob"
)

// ErrInvalidSource signals a contract violation: the caller named a
// source this service does not know about. Not retryable.
var ErrInvalidSource = errors.New("invalid source")

// ParseSource validates a source name (case-insensitive).
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(s)) {
	case SourceStord:
		return SourceStord, nil
	case SourceShipbob:
		return SourceShipbob, nil
	default:
		return "", fmt.Errorf("%w: %q (must be 'stord' or 'shipbob')", ErrInvalidSource, s)
	}
}

// Sources lists every known source.
func Sources() []Source {
	return []Source{SourceStord, SourceShipbob}
}

// ExceptionRecord is the durable point-in-time state of one exceptional
// order, keyed by (source, identity). first_seen_at is written once at
// insertion and never modified afterwards.
type ExceptionRecord struct {
	Identity    string          `db:"identity" json:"identity"`
	Source      Source          `db:"source" json:"source"`
	RawPayload  json.RawMessage `db:"raw_payload" json:"raw_payload,omitempty"`
	FirstSeenAt time.Time       `db:"first_seen_at" json:"first_seen_at"`
	LastSeenAt  time.Time       `db:"last_seen_at" json:"last_seen_at"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	ResolvedAt  *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
}

// SkuInventory holds live per-source on-hand counts for one SKU.
type SkuInventory struct {
	SKU                 string `json:"sku"`
	StordStock          int    `json:"stord_stock"`
	ShipbobFontanaStock int    `json:"shipbob_fontana_stock"`
	ShipbobOtherStock   int    `json:"shipbob_other_stock"`
}

// SKUCount is one entry of the sku-frequency ranking.
type SKUCount struct {
	SKU      string  `json:"sku"`
	Quantity float64 `json:"quantity"`
}

// CustomerCount is one entry of the repeat-customer ranking.
type CustomerCount struct {
	Customer string `json:"customer"`
	Count    int    `json:"count"`
}

// FacilityCount is one entry of the facility hotspot ranking. The
// facility key carries the source suffix, e.g. "Fontana (shipbob)".
type FacilityCount struct {
	Facility string `json:"facility"`
	OOSCount int    `json:"oos_count"`
}

// SKUAnalytics ranks SKUs by total out-of-stock quantity.
type SKUAnalytics struct {
	SKUFrequency []SKUCount `json:"sku_frequency"`
}

// CustomerAnalytics summarizes how many distinct customers were hit.
type CustomerAnalytics struct {
	TotalCustomersAffected  int             `json:"total_customers_affected"`
	RepeatCustomersAffected int             `json:"repeat_customers_affected"`
	TopRepeatCustomers      []CustomerCount `json:"top_repeat_customers"`
}

// PartnerPerformance counts exceptions per source.
type PartnerPerformance struct {
	StordOOSCount   int `json:"stord_oos_count"`
	ShipbobOOSCount int `json:"shipbob_oos_count"`
	TotalOOSCount   int `json:"total_oos_count"`
}

// FulfillmentAnalytics ranks facilities and counts per partner.
type FulfillmentAnalytics struct {
	FacilityHotspots   []FacilityCount    `json:"facility_hotspots"`
	PartnerPerformance PartnerPerformance `json:"partner_performance"`
}

// OperationalAnalytics reports mean resolution latency in hours per
// source, rounded to two decimals. Sources with no resolved samples
// report 0.
type OperationalAnalytics struct {
	AverageResolutionTimeHours map[Source]float64 `json:"average_resolution_time_hours"`
}

// AnalyticsSnapshot is computed on demand over a first_seen_at window;
// it is never persisted.
type AnalyticsSnapshot struct {
	SKUAnalytics         SKUAnalytics         `json:"sku_analytics"`
	CustomerAnalytics    CustomerAnalytics    `json:"customer_analytics"`
	FulfillmentAnalytics FulfillmentAnalytics `json:"fulfillment_analytics"`
	OperationalAnalytics OperationalAnalytics `json:"operational_analytics"`
}
