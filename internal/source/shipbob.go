package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"shortage-service/config"
	"shortage-service/internal/models"
	"shortage-service/internal/util"

	"go.uber.org/zap"
)

// fontanaLocationID is the DTC platform's location id for the Fontana
// fulfillment center, reported separately from all other locations.
const fontanaLocationID = 250

// ShipbobClient talks to the DTC fulfillment API.
type ShipbobClient struct {
	cfg    config.ShipbobConfig
	client *http.Client
	logger *zap.Logger
}

// NewShipbobClient creates a new DTC API client.
func NewShipbobClient(cfg config.ShipbobConfig) *ShipbobClient {
	return &ShipbobClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: util.GetLogger(),
	}
}

func (c *ShipbobClient) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build shipbob request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shipbob request failed: %w", err)
	}
	return resp, nil
}

func (c *ShipbobClient) get(ctx context.Context, rawURL string, out interface{}) error {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("shipbob request failed: status=%d body=%s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode shipbob response: %w", err)
	}
	return nil
}

// FetchExceptionOrders pages through all orders and keeps the ones that
// are DTC, in order status Exception, and have at least one shipment
// simultaneously in status Exception with an OutOfStock status detail.
// Pagination stops on an empty page or after MaxPages; a short page is
// NOT a stop condition, the next page is still requested. The batch is
// deduplicated by order identity.
func (c *ShipbobClient) FetchExceptionOrders(ctx context.Context) ([]json.RawMessage, error) {
	c.logger.Info("Fetching shipbob orders",
		zap.Int("page_size", c.cfg.PageSize),
		zap.Int("max_pages", c.cfg.MaxPages))

	var fetched []json.RawMessage
	for page := 1; ; page++ {
		if page > c.cfg.MaxPages {
			c.logger.Warn("Shipbob max page limit reached, stopping pagination",
				zap.Int("max_pages", c.cfg.MaxPages))
			break
		}

		pageURL := fmt.Sprintf("%s/order?page=%d&limit=%d", c.cfg.BaseURL, page, c.cfg.PageSize)
		var items []json.RawMessage
		if err := c.get(ctx, pageURL, &items); err != nil {
			return nil, fmt.Errorf("shipbob page %d: %w", page, err)
		}

		if len(items) == 0 {
			c.logger.Debug("Shipbob page empty, stopping pagination", zap.Int("page", page))
			break
		}

		fetched = append(fetched, items...)
		util.SourcePagesFetchedTotal.WithLabelValues("shipbob").Inc()
		c.logger.Debug("Fetched shipbob page",
			zap.Int("page", page),
			zap.Int("items", len(items)),
			zap.Int("total_so_far", len(fetched)))
	}

	filtered := filterShipbobExceptions(fetched)
	c.logger.Info("Fetched shipbob orders",
		zap.Int("fetched", len(fetched)),
		zap.Int("exception_orders", len(filtered)))
	return filtered, nil
}

// filterShipbobExceptions applies the local OOS heuristic and dedupes
// by order identity within the batch.
func filterShipbobExceptions(raw []json.RawMessage) []json.RawMessage {
	var out []json.RawMessage
	seen := make(map[string]struct{})

	for _, item := range raw {
		var order models.ShipbobOrder
		if err := json.Unmarshal(item, &order); err != nil {
			continue
		}
		if order.Type != "DTC" || order.Status != "Exception" {
			continue
		}

		hasOOS := false
		for _, shipment := range order.Shipments {
			if shipment.Status != "Exception" {
				continue
			}
			for _, detail := range shipment.StatusDetails {
				if detail.Name == "OutOfStock" {
					hasOOS = true
					break
				}
			}
			if hasOOS {
				break
			}
		}
		if !hasOOS {
			continue
		}

		if identity := order.Identity(); identity != "" {
			if _, dup := seen[identity]; dup {
				continue
			}
			seen[identity] = struct{}{}
		}
		out = append(out, item)
	}
	return out
}

// GetOrderByID fetches one order live. Returns (nil, nil) on 404.
func (c *ShipbobClient) GetOrderByID(ctx context.Context, orderID string) (json.RawMessage, error) {
	resp, err := c.do(ctx, fmt.Sprintf("%s/order/%s", c.cfg.BaseURL, url.PathEscape(orderID)))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("shipbob order lookup %s: status=%d body=%s", orderID, resp.StatusCode, body)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("shipbob order lookup %s: %w", orderID, err)
	}
	return json.RawMessage(raw), nil
}

type shipbobInventoryPage struct {
	Items []struct {
		Locations []struct {
			LocationID     int `json:"location_id"`
			OnHandQuantity int `json:"on_hand_quantity"`
		} `json:"locations"`
	} `json:"items"`
}

// LookupInventory returns the on-hand counts for one SKU, split into
// the Fontana fulfillment center and all other locations. Unknown SKUs
// report (0, 0).
func (c *ShipbobClient) LookupInventory(ctx context.Context, sku string) (fontana, other int, err error) {
	params := url.Values{}
	params.Set("SearchBy", sku)

	var pageData shipbobInventoryPage
	if err := c.get(ctx, c.cfg.BaseURL+"/inventory-level/locations?"+params.Encode(), &pageData); err != nil {
		return 0, 0, fmt.Errorf("shipbob inventory lookup %s: %w", sku, err)
	}
	if len(pageData.Items) == 0 {
		return 0, 0, nil
	}

	for _, location := range pageData.Items[0].Locations {
		if location.LocationID == fontanaLocationID {
			fontana += location.OnHandQuantity
		} else {
			other += location.OnHandQuantity
		}
	}
	return fontana, other, nil
}
