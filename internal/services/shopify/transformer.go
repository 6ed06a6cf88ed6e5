package shopify

import (
	"strings"

	"esimsync/internal/models"
)

type Transformer struct {
	namespace string
}

func NewTransformer() *Transformer {
	return &Transformer{namespace: "esim"}
}

// TransformToShopify converts a canonical catalog item to a Shopify product
// ready to be created.
func (t *Transformer) TransformToShopify(item *models.CatalogItem) *Product {
	images := make([]Image, 0, len(item.Images))
	for _, src := range item.Images {
		if src != "" {
			images = append(images, Image{Src: src, Alt: item.Title})
		}
	}

	metafields := make([]Metafield, 0, len(item.Metadata))
	for _, m := range item.Metadata {
		if m.Value == "" {
			continue
		}
		typ := m.Type
		if typ == "" {
			typ = "single_line_text_field"
		}
		metafields = append(metafields, Metafield{Namespace: t.namespace, Key: m.Key, Value: m.Value, Type: typ})
	}

	inventoryManagement := ""
	if item.InventoryQuantity > 0 {
		inventoryManagement = "shopify"
	}

	return &Product{
		Title:       item.Title,
		BodyHTML:    item.DescriptionHTML,
		Vendor:      item.Vendor,
		ProductType: item.ProductType,
		Handle:      item.Handle,
		Status:      "active",
		Tags:        strings.Join(item.Tags, ", "),
		Variants: []Variant{{
			Title:               item.Title,
			Price:               item.Price,
			Sku:                 item.SKU,
			Position:            1,
			InventoryPolicy:     "deny",
			InventoryManagement: inventoryManagement,
			RequiresShipping:    false,
			Taxable:             true,
		}},
		Images:     images,
		Metafields: metafields,
	}
}
