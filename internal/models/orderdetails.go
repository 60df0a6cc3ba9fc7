package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OrderLineItem is one normalized line of an order detail view.
type OrderLineItem struct {
	SKU      string `json:"sku,omitempty"`
	Quantity *int   `json:"quantity,omitempty"`
	Status   string `json:"status,omitempty"`
}

// OrderCustomer is the normalized customer contact of an order.
type OrderCustomer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// OrderDetails is the normalized view served by the order lookup
// endpoints. Both source schemas convert into it so the API surface is
// uniform regardless of where the order came from.
type OrderDetails struct {
	OrderID         string          `json:"order_id"`
	OrderNumber     string          `json:"order_number,omitempty"`
	Status          string          `json:"status,omitempty"`
	Source          Source          `json:"source"`
	PurchaseDate    *time.Time      `json:"purchase_date,omitempty"`
	Priority        string          `json:"priority,omitempty"`
	Facility        string          `json:"facility,omitempty"`
	Channel         string          `json:"channel,omitempty"`
	ChannelCategory string          `json:"channel_category,omitempty"`
	ShipmentType    string          `json:"shipment_type,omitempty"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty"`
	Customer        OrderCustomer   `json:"customer"`
	CustomReference string          `json:"custom_reference,omitempty"`
	LineItems       []OrderLineItem `json:"line_items"`
	RawData         json.RawMessage `json:"raw_data,omitempty"`
	LastUpdatedAt   time.Time       `json:"last_updated_at"`
}

// parseSourceTime accepts the RFC3339-ish timestamps both platforms
// emit; unparseable values become nil rather than an error.
func parseSourceTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ConvertStordOrder normalizes a warehouse order. Line items carry
// their parent sub-order's status; quantities are truncated to whole
// units here, at presentation time only.
func ConvertStordOrder(raw json.RawMessage, includeRaw bool) (*OrderDetails, error) {
	var o StordOrder
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}

	items := make([]OrderLineItem, 0)
	for _, sol := range o.SalesOrderLines {
		for _, oli := range sol.OrderLineItems {
			item := OrderLineItem{SKU: oli.ItemSKU, Status: sol.Status}
			if oli.ItemQuantity.Valid {
				qty := int(oli.ItemQuantity.Value)
				item.Quantity = &qty
			}
			items = append(items, item)
		}
	}

	orderID := o.OrderNumber
	if orderID == "" {
		orderID = o.OrderID
	}
	if orderID == "" {
		orderID = uuid.New().String()
	}

	shippedAt := parseSourceTime(o.ShippedAt)
	if shippedAt == nil {
		shippedAt = parseSourceTime(o.ExternalPostedAt)
	}

	details := &OrderDetails{
		OrderID:         orderID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		Source:          SourceStord,
		Priority:        o.Priority,
		Facility:        o.Facility(),
		Channel:         o.Channel,
		ChannelCategory: o.ChannelCategory,
		ShipmentType:    o.ShipmentType,
		ShippedAt:       shippedAt,
		PurchaseDate:    shippedAt,
		Customer:        OrderCustomer{Name: o.CustomerName()},
		CustomReference: o.CustomReference,
		LineItems:       items,
		LastUpdatedAt:   time.Now().UTC(),
	}
	if includeRaw {
		details.RawData = raw
	}
	return details, nil
}

// ConvertShipbobOrder normalizes a DTC order. Line items come from the
// shipments and carry the shipment status.
func ConvertShipbobOrder(raw json.RawMessage, includeRaw bool) (*OrderDetails, error) {
	var o ShipbobOrder
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}

	items := make([]OrderLineItem, 0)
	for _, shipment := range o.Shipments {
		for _, product := range shipment.Products {
			items = append(items, OrderLineItem{SKU: product.SKU, Status: shipment.Status})
		}
	}

	orderID := string(o.ID)
	if orderID == "" {
		orderID = uuid.New().String()
	}

	var channel string
	if o.Channel != nil {
		channel = o.Channel.Name
	}
	var customer OrderCustomer
	if o.Recipient != nil {
		customer = OrderCustomer{Name: o.Recipient.Name, Email: o.Recipient.Email}
	}

	createdDate := parseSourceTime(o.CreatedDate)

	details := &OrderDetails{
		OrderID:         orderID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		Source:          SourceShipbob,
		Facility:        o.Facility(),
		Channel:         channel,
		ChannelCategory: o.Type,
		ShipmentType:    o.ShippingMethod,
		ShippedAt:       createdDate,
		PurchaseDate:    createdDate,
		Customer:        customer,
		CustomReference: o.ReferenceID,
		LineItems:       items,
		LastUpdatedAt:   time.Now().UTC(),
	}
	if includeRaw {
		details.RawData = raw
	}
	return details, nil
}

// ConvertOrder dispatches on source.
func ConvertOrder(source Source, raw json.RawMessage, includeRaw bool) (*OrderDetails, error) {
	if source == SourceStord {
		return ConvertStordOrder(raw, includeRaw)
	}
	return ConvertShipbobOrder(raw, includeRaw)
}
