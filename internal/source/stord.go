// Package source holds the HTTP clients for the two fulfillment
// platforms. Both expose the same surface: fetch the complete current
// exception set (paginated), look up one order live, and look up live
// inventory for a SKU. Any transport failure aborts the whole fetch;
// pages already retrieved are discarded.
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
	"shortage-service/internal/util"

	"go.uber.org/zap"
)

// StordClient talks to the warehouse network API.
type StordClient struct {
	cfg    config.StordConfig
	client *http.Client
	logger *zap.Logger
}

// NewStordClient creates a new warehouse API client.
func NewStordClient(cfg config.StordConfig) *StordClient {
	return &StordClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: util.GetLogger(),
	}
}

type stordPage struct {
	Data     []json.RawMessage `json:"data"`
	Metadata struct {
		After      string `json:"after"`
		TotalCount int    `json:"total_count"`
	} `json:"metadata"`
}

func (c *StordClient) salesOrdersURL(after string) string {
	base := fmt.Sprintf("%s/organizations/%s/oms/networks/%s/orders/sales",
		c.cfg.BaseURL, c.cfg.OrgID, c.cfg.NetworkID)

	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", c.cfg.PageSize))
	for _, cid := range c.cfg.ChannelIDs {
		params.Add("channel_id[]", cid)
	}
	for _, s := range c.cfg.Statuses {
		params.Add("status[]", s)
	}
	if after != "" {
		params.Set("after", after)
	}
	return base + "?" + params.Encode()
}

func (c *StordClient) get(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build stord request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("stord request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("stord request failed: status=%d body=%s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode stord response: %w", err)
	}
	return nil
}

// FetchExceptionOrders retrieves every sales order matching the
// configured channel and status filters, following the opaque "after"
// cursor until it runs out or PageLimit pages have been fetched.
func (c *StordClient) FetchExceptionOrders(ctx context.Context) ([]json.RawMessage, error) {
	c.logger.Info("Fetching stord sales orders",
		zap.Int("page_size", c.cfg.PageSize),
		zap.Strings("statuses", c.cfg.Statuses))

	var orders []json.RawMessage
	after := ""
	for page := 1; ; page++ {
		if page > c.cfg.PageLimit {
			c.logger.Warn("Stord page limit reached, stopping pagination",
				zap.Int("page_limit", c.cfg.PageLimit))
			break
		}

		var pageData stordPage
		if err := c.get(ctx, c.salesOrdersURL(after), &pageData); err != nil {
			return nil, fmt.Errorf("stord page %d: %w", page, err)
		}

		orders = append(orders, pageData.Data...)
		util.SourcePagesFetchedTotal.WithLabelValues("stord").Inc()
		c.logger.Debug("Fetched stord page",
			zap.Int("page", page),
			zap.Int("items", len(pageData.Data)),
			zap.Int("total_so_far", len(orders)))

		if pageData.Metadata.After == "" {
			break
		}
		after = pageData.Metadata.After
	}

	c.logger.Info("Fetched stord sales orders", zap.Int("count", len(orders)))
	return orders, nil
}

// GetOrderByID searches for a single sales order by order id. Returns
// (nil, nil) when the platform has no such order.
func (c *StordClient) GetOrderByID(ctx context.Context, orderID string) (json.RawMessage, error) {
	base := fmt.Sprintf("%s/organizations/%s/oms/networks/%s/orders/sales",
		c.cfg.BaseURL, c.cfg.OrgID, c.cfg.NetworkID)

	params := url.Values{}
	params.Set("limit", "1")
	params.Set("search_field", "order_id")
	params.Set("search_term", orderID)

	var pageData stordPage
	if err := c.get(ctx, base+"?"+params.Encode(), &pageData); err != nil {
		return nil, fmt.Errorf("stord order lookup %s: %w", orderID, err)
	}
	if len(pageData.Data) == 0 {
		return nil, nil
	}
	return pageData.Data[0], nil
}

type stordInventoryPage struct {
	Data []struct {
		ItemSKU        string `json:"item_sku"`
		OnHandQuantity int    `json:"on_hand_quantity"`
	} `json:"data"`
}

// LookupInventory returns the network-wide on-hand count for one SKU,
// 0 when the SKU is unknown.
func (c *StordClient) LookupInventory(ctx context.Context, sku string) (int, error) {
	base := fmt.Sprintf("%s/organizations/%s/oms/networks/%s/inventory/reports/network",
		c.cfg.BaseURL, c.cfg.OrgID, c.cfg.NetworkID)

	params := url.Values{}
	params.Set("limit", "1")
	params.Set("sku", sku)

	var pageData stordInventoryPage
	if err := c.get(ctx, base+"?"+params.Encode(), &pageData); err != nil {
		return 0, fmt.Errorf("stord inventory lookup %s: %w", sku, err)
	}

	total := 0
	for _, item := range pageData.Data {
		total += item.OnHandQuantity
	}
	return total, nil
}
