package models

import (
	"fmt"
	"strings"
)

// HandlePrefix namespaces every storefront listing created from the provider
// catalog, so prune never touches listings it did not create.
const HandlePrefix = "mobimatter-"

// CatalogItem is the canonical listing derived from one provider product.
type CatalogItem struct {
	Handle            string
	ProviderProductID string
	Title             string
	DescriptionHTML   string
	Vendor            string
	ProductType       string
	SKU               string
	Price             string
	Currency          string
	InventoryQuantity int
	Images            []string
	Tags              []string
	Metadata          []CatalogMetadata
}

type CatalogMetadata struct {
	Key   string
	Value string
	Type  string
}

// HandleFor derives the stable storefront handle of a provider product id.
func HandleFor(providerProductID string) string {
	id := strings.ToLower(strings.TrimSpace(providerProductID))
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return fmt.Sprintf("%s%s", HandlePrefix, b.String())
}

// IsProviderHandle reports whether handle was produced by HandleFor.
func IsProviderHandle(handle string) bool {
	return strings.HasPrefix(handle, HandlePrefix)
}
