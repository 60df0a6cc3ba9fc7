package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"shortage-service/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shipbobTestConfig(baseURL string) config.ShipbobConfig {
	return config.ShipbobConfig{
		BaseURL:  baseURL,
		APIToken: "test-token",
		PageSize: 3,
		MaxPages: 25,
	}
}

const shipbobOOSOrder = `{
	"id": %d,
	"type": "DTC",
	"status": "Exception",
	"shipments": [{
		"status": "Exception",
		"status_details": [{"name": "OutOfStock", "inventory_id": 1}]
	}]
}`

func TestShipbobFetchStopsOnEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		switch page {
		case 1:
			fmt.Fprintf(w, "[%s,%s,%s]",
				fmt.Sprintf(shipbobOOSOrder, 1),
				fmt.Sprintf(shipbobOOSOrder, 2),
				fmt.Sprintf(shipbobOOSOrder, 3))
		case 2:
			fmt.Fprint(w, `[]`)
		default:
			t.Errorf("unexpected page %d", page)
		}
	}))
	defer server.Close()

	client := NewShipbobClient(shipbobTestConfig(server.URL))
	orders, err := client.FetchExceptionOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}

func TestShipbobFetchShortPageContinues(t *testing.T) {
	// a page with fewer items than the page size is not the end; only
	// an empty page stops the loop
	var pagesServed []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pagesServed = append(pagesServed, page)
		switch page {
		case 1:
			fmt.Fprintf(w, "[%s]", fmt.Sprintf(shipbobOOSOrder, 1))
		case 2:
			fmt.Fprintf(w, "[%s]", fmt.Sprintf(shipbobOOSOrder, 2))
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer server.Close()

	client := NewShipbobClient(shipbobTestConfig(server.URL))
	orders, err := client.FetchExceptionOrders(context.Background())
	require.NoError(t, err)

	assert.Len(t, orders, 2)
	assert.Equal(t, []int{1, 2, 3}, pagesServed)
}

func TestShipbobFetchStopsAtMaxPages(t *testing.T) {
	pages := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		fmt.Fprintf(w, "[%s]", fmt.Sprintf(shipbobOOSOrder, pages))
	}))
	defer server.Close()

	cfg := shipbobTestConfig(server.URL)
	cfg.MaxPages = 4
	client := NewShipbobClient(cfg)

	orders, err := client.FetchExceptionOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 4)
	assert.Equal(t, 4, pages)
}

func TestShipbobFetchAbortsOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewShipbobClient(shipbobTestConfig(server.URL))
	orders, err := client.FetchExceptionOrders(context.Background())
	assert.Error(t, err)
	assert.Nil(t, orders)
}

func TestFilterShipbobExceptions(t *testing.T) {
	batch := []json.RawMessage{
		// keep: DTC, Exception order, OOS shipment
		json.RawMessage(fmt.Sprintf(shipbobOOSOrder, 1)),
		// drop: not DTC
		json.RawMessage(`{"id": 2, "type": "B2B", "status": "Exception", "shipments": [{"status": "Exception", "status_details": [{"name": "OutOfStock"}]}]}`),
		// drop: order not in Exception status
		json.RawMessage(`{"id": 3, "type": "DTC", "status": "Processing", "shipments": [{"status": "Exception", "status_details": [{"name": "OutOfStock"}]}]}`),
		// drop: exception shipment but no OutOfStock detail
		json.RawMessage(`{"id": 4, "type": "DTC", "status": "Exception", "shipments": [{"status": "Exception", "status_details": [{"name": "PickException"}]}]}`),
		// drop: OutOfStock detail on a non-exception shipment
		json.RawMessage(`{"id": 5, "type": "DTC", "status": "Exception", "shipments": [{"status": "Cleared", "status_details": [{"name": "OutOfStock"}]}]}`),
		// drop: duplicate of id 1
		json.RawMessage(fmt.Sprintf(shipbobOOSOrder, 1)),
		// drop: unparseable
		json.RawMessage(`{`),
	}

	filtered := filterShipbobExceptions(batch)
	require.Len(t, filtered, 1)
	assert.JSONEq(t, fmt.Sprintf(shipbobOOSOrder, 1), string(filtered[0]))
}

func TestShipbobGetOrderByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order/9001", r.URL.Path)
		fmt.Fprint(w, `{"id": 9001, "status": "Exception"}`)
	}))
	defer server.Close()

	client := NewShipbobClient(shipbobTestConfig(server.URL))
	raw, err := client.GetOrderByID(context.Background(), "9001")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 9001, "status": "Exception"}`, string(raw))
}

func TestShipbobGetOrderByIDNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewShipbobClient(shipbobTestConfig(server.URL))
	raw, err := client.GetOrderByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestShipbobLookupInventorySplitsFontana(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SKU-A", r.URL.Query().Get("SearchBy"))
		fmt.Fprint(w, `{"items": [{"locations": [
			{"location_id": 250, "on_hand_quantity": 8},
			{"location_id": 101, "on_hand_quantity": 3},
			{"location_id": 102, "on_hand_quantity": 4}
		]}]}`)
	}))
	defer server.Close()

	client := NewShipbobClient(shipbobTestConfig(server.URL))
	fontana, other, err := client.LookupInventory(context.Background(), "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, 8, fontana)
	assert.Equal(t, 7, other)
}

func TestShipbobLookupInventoryUnknownSKU(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	}))
	defer server.Close()

	client := NewShipbobClient(shipbobTestConfig(server.URL))
	fontana, other, err := client.LookupInventory(context.Background(), "SKU-Z")
	require.NoError(t, err)
	assert.Zero(t, fontana)
	assert.Zero(t, other)
}
