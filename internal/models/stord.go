package models

import "encoding/json"

// StordOrder is the raw sales-order schema returned by the warehouse
// network API. Every field is optional: the classifier and analytics
// code treat missing collections as empty and missing scalars as
// absent, never as an error.
type StordOrder struct {
	OrderID            string                  `json:"order_id,omitempty"`
	OrderNumber        string                  `json:"order_number,omitempty"`
	Status             string                  `json:"status,omitempty"`
	Priority           string                  `json:"priority,omitempty"`
	Channel            string                  `json:"channel,omitempty"`
	ChannelCategory    string                  `json:"channel_category,omitempty"`
	ShipmentType       string                  `json:"shipment_type,omitempty"`
	ShippedAt          string                  `json:"shipped_at,omitempty"`
	ExternalPostedAt   string                  `json:"external_posted_at,omitempty"`
	CustomReference    string                  `json:"custom_reference,omitempty"`
	Customer           json.RawMessage         `json:"customer,omitempty"`
	DestinationAddress *StordAddress           `json:"destination_address,omitempty"`
	SalesOrderLines    []StordSalesOrderLine   `json:"sales_order_lines,omitempty"`
	FacilityActivities []StordFacilityActivity `json:"facility_activities,omitempty"`

	// Epoch fields carried through from the exception table for
	// resolution-latency analytics.
	FirstSeenTimestamp *float64 `json:"first_seen_timestamp,omitempty"`
	ResolvedTimestamp  *float64 `json:"resolved_timestamp,omitempty"`
}

// StordSalesOrderLine is one sub-order; its status field marks the
// whole line as backordered, shipped, etc.
type StordSalesOrderLine struct {
	Status         string               `json:"status,omitempty"`
	OrderLineItems []StordOrderLineItem `json:"order_line_items,omitempty"`
}

// StordOrderLineItem is one sku/quantity pair within a sub-order.
// item_quantity arrives as a numeric string more often than not.
type StordOrderLineItem struct {
	ItemSKU      string   `json:"item_sku,omitempty"`
	ItemQuantity Quantity `json:"item_quantity,omitempty"`
}

// StordAddress is the destination address; only the name is consumed.
type StordAddress struct {
	Name string `json:"name,omitempty"`
}

// StordFacilityActivity records which facility touched the order.
type StordFacilityActivity struct {
	FacilityAlias string `json:"facility_alias,omitempty"`
}

// Identity returns the source-specific unique key: the order number.
// Empty means the row must be skipped during reconciliation.
func (o *StordOrder) Identity() string {
	return o.OrderNumber
}

// CustomerName extracts the customer name; the source encodes customer
// either as a bare string or as an object with a name field.
func (o *StordOrder) CustomerName() string {
	if len(o.Customer) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(o.Customer, &s); err == nil {
		return s
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(o.Customer, &obj); err == nil {
		return obj.Name
	}
	return ""
}

// Facility returns the first facility-activity alias, if any.
func (o *StordOrder) Facility() string {
	if len(o.FacilityActivities) == 0 {
		return ""
	}
	return o.FacilityActivities[0].FacilityAlias
}
