package shopify

import "time"

// Product represents a Shopify product
type Product struct {
	ID          int64       `json:"id,omitempty"`
	Title       string      `json:"title,omitempty"`
	BodyHTML    string      `json:"body_html,omitempty"`
	Vendor      string      `json:"vendor,omitempty"`
	ProductType string      `json:"product_type,omitempty"`
	Handle      string      `json:"handle,omitempty"`
	Status      string      `json:"status,omitempty"`
	Tags        string      `json:"tags,omitempty"`
	Variants    []Variant   `json:"variants,omitempty"`
	Images      []Image     `json:"images,omitempty"`
	Metafields  []Metafield `json:"metafields,omitempty"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
}

// Variant represents a product variant
type Variant struct {
	ID                  int64  `json:"id,omitempty"`
	ProductID           int64  `json:"product_id,omitempty"`
	Title               string `json:"title,omitempty"`
	Price               string `json:"price,omitempty"`
	Sku                 string `json:"sku,omitempty"`
	Position            int    `json:"position,omitempty"`
	InventoryPolicy     string `json:"inventory_policy,omitempty"`
	InventoryManagement string `json:"inventory_management,omitempty"`
	InventoryItemID     int64  `json:"inventory_item_id,omitempty"`
	InventoryQuantity   int    `json:"inventory_quantity,omitempty"`
	RequiresShipping    bool   `json:"requires_shipping"`
	Taxable             bool   `json:"taxable"`
}

// Image represents a product image
type Image struct {
	ID  int64  `json:"id,omitempty"`
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

type Metafield struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

type Location struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// PrimaryVariant returns the variant at position 1, or the first one.
func (p *Product) PrimaryVariant() *Variant {
	for i := range p.Variants {
		if p.Variants[i].Position == 1 {
			return &p.Variants[i]
		}
	}
	if len(p.Variants) > 0 {
		return &p.Variants[0]
	}
	return nil
}

type productsResponse struct {
	Products []Product `json:"products"`
}

type productEnvelope struct {
	Product Product `json:"product"`
}

type variantEnvelope struct {
	Variant Variant `json:"variant"`
}

type locationsResponse struct {
	Locations []Location `json:"locations"`
}

type orderUpdate struct {
	ID         int64       `json:"id"`
	Note       string      `json:"note"`
	Metafields []Metafield `json:"metafields,omitempty"`
}

type orderEnvelope struct {
	Order orderUpdate `json:"order"`
}

type inventoryLevelRequest struct {
	LocationID      int64 `json:"location_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       int   `json:"available"`
}
