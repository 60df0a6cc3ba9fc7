package models

import "encoding/json"

// ShipbobOrder is the raw order schema returned by the DTC fulfillment
// API. As with StordOrder, every field is optional and consumers must
// tolerate missing collections.
type ShipbobOrder struct {
	ID             FlexID            `json:"id,omitempty"`
	OrderNumber    string            `json:"order_number,omitempty"`
	Type           string            `json:"type,omitempty"`
	Status         string            `json:"status,omitempty"`
	CreatedDate    string            `json:"created_date,omitempty"`
	ReferenceID    string            `json:"reference_id,omitempty"`
	ShippingMethod string            `json:"shipping_method,omitempty"`
	Channel        *ShipbobChannel   `json:"channel,omitempty"`
	Recipient      *ShipbobRecipient `json:"recipient,omitempty"`
	Products       []ShipbobProduct  `json:"products,omitempty"`
	Shipments      []ShipbobShipment `json:"shipments,omitempty"`

	FirstSeenTimestamp *float64 `json:"first_seen_timestamp,omitempty"`
	ResolvedTimestamp  *float64 `json:"resolved_timestamp,omitempty"`
}

// ShipbobChannel names the sales channel the order came through.
type ShipbobChannel struct {
	Name string `json:"name,omitempty"`
}

// ShipbobRecipient is the order's recipient contact.
type ShipbobRecipient struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// ShipbobProduct is an order-level line item; quantity lives here, not
// on the shipment-level product entries.
type ShipbobProduct struct {
	SKU      string `json:"sku,omitempty"`
	Quantity *int   `json:"quantity,omitempty"`
}

// ShipbobShipment is one shipment with its status detail entries and
// the products it carries.
type ShipbobShipment struct {
	Status        string                   `json:"status,omitempty"`
	StatusDetails []ShipbobStatusDetail    `json:"status_details,omitempty"`
	Products      []ShipbobShipmentProduct `json:"products,omitempty"`
	Location      *ShipbobLocation         `json:"location,omitempty"`
}

// ShipbobStatusDetail flags a shipment condition; name "OutOfStock"
// carries the inventory id that is short.
type ShipbobStatusDetail struct {
	Name        string `json:"name,omitempty"`
	InventoryID FlexID `json:"inventory_id,omitempty"`
}

// ShipbobShipmentProduct maps a sku to its inventory items within one
// shipment.
type ShipbobShipmentProduct struct {
	SKU            string                 `json:"sku,omitempty"`
	InventoryItems []ShipbobInventoryItem `json:"inventory_items,omitempty"`
}

// ShipbobInventoryItem is one physical inventory unit backing a product.
type ShipbobInventoryItem struct {
	ID FlexID `json:"id,omitempty"`
}

// ShipbobLocation names the fulfillment center handling a shipment.
type ShipbobLocation struct {
	Name string `json:"name,omitempty"`
}

// Identity returns the source-specific unique key: the numeric order id
// as a string. Empty means the row must be skipped during
// reconciliation.
func (o *ShipbobOrder) Identity() string {
	return string(o.ID)
}

// Facility returns the first shipment's location name, if any.
func (o *ShipbobOrder) Facility() string {
	if len(o.Shipments) == 0 || o.Shipments[0].Location == nil {
		return ""
	}
	return o.Shipments[0].Location.Name
}

// DetectSource decides which schema family a stored raw payload belongs
// to: orders carrying a sales_order_lines key are warehouse orders,
// everything else is treated as DTC.
func DetectSource(raw json.RawMessage) Source {
	var probe struct {
		SalesOrderLines json.RawMessage `json:"sales_order_lines"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.SalesOrderLines != nil {
		return SourceStord
	}
	return SourceShipbob
}
