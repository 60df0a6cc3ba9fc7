// Package classifier identifies which SKUs within a raw order are
// genuinely out of stock, as opposed to merely belonging to an order
// that has some exception. The two source schemas encode this very
// differently, so each gets its own walk.
package classifier

import "shortage-service/internal/models"

// SKUSet is an unordered set of SKUs.
type SKUSet map[string]struct{}

// Contains reports whether sku is in the set.
func (s SKUSet) Contains(sku string) bool {
	_, ok := s[sku]
	return ok
}

// stordOOSStatus is the only sub-order status that marks its line items
// as out of stock. Order-level "Exception" statuses exist in the data
// but do not grant SKU-level attribution; the two notions stay separate.
const stordOOSStatus = "backordered"

// shipbobOOSDetail is the status-detail name that marks an inventory id
// as out of stock within a shipment.
const shipbobOOSDetail = "OutOfStock"

// StordOOSSKUs returns the SKUs across all backordered sub-orders of a
// warehouse order. Comparison is case-sensitive; missing collections
// contribute nothing.
func StordOOSSKUs(order *models.StordOrder) SKUSet {
	skus := make(SKUSet)
	if order == nil {
		return skus
	}
	for _, sol := range order.SalesOrderLines {
		if sol.Status != stordOOSStatus {
			continue
		}
		for _, oli := range sol.OrderLineItems {
			if oli.ItemSKU != "" {
				skus[oli.ItemSKU] = struct{}{}
			}
		}
	}
	return skus
}

// ShipbobOOSSKUs returns the SKUs of a DTC order whose inventory items
// are flagged OutOfStock. A product is out of stock as soon as one of
// its inventory items matches an OutOfStock detail in the same
// shipment; remaining items of that product are not inspected.
func ShipbobOOSSKUs(order *models.ShipbobOrder) SKUSet {
	skus := make(SKUSet)
	if order == nil {
		return skus
	}
	for _, shipment := range order.Shipments {
		oosInventoryIDs := make(map[models.FlexID]struct{})
		for _, detail := range shipment.StatusDetails {
			if detail.Name == shipbobOOSDetail && detail.InventoryID != "" {
				oosInventoryIDs[detail.InventoryID] = struct{}{}
			}
		}
		if len(oosInventoryIDs) == 0 {
			continue
		}
		for _, product := range shipment.Products {
			if product.SKU == "" {
				continue
			}
			for _, item := range product.InventoryItems {
				if _, ok := oosInventoryIDs[item.ID]; ok {
					skus[product.SKU] = struct{}{}
					break
				}
			}
		}
	}
	return skus
}
