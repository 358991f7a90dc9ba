// Package catalog owns product metadata: creation, point lookups and
// filtered listings. It never mutates stock — that path belongs exclusively
// to the order coordinator, which reuses the key scheme and codec exported
// here.
package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/dawidbera/secure-serverless-marketplace/internal/kvstore"
)

const (
	productPrefix = "PROD#"
	metadataSort  = "METADATA"

	// IndexCatalog files every product under one key so full listings need
	// no table scan; IndexCategory files products by their category.
	IndexCatalog  = "catalog"
	IndexCategory = "category"
	CatalogAllKey = "all"
)

// Product is a marketplace product. StockQuantity and Version are read and
// written together, only ever through a successful purchase transaction;
// Version starts at 1 and increments exactly once per stock mutation.
//
// SupplierEmail is sensitive: it is stored encrypted and is opaque to every
// component except the catalog, which holds the cipher.
type Product struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stockQuantity"`
	Version       int64   `json:"version"`
	SupplierEmail string  `json:"supplierEmail,omitempty"`
}

// ProductPartition returns the partition holding a product's metadata and
// its orders.
func ProductPartition(id string) string {
	return productPrefix + id
}

// ProductKey is the composite key of the product metadata record.
func ProductKey(id string) kvstore.Key {
	return kvstore.Key{Partition: ProductPartition(id), Sort: metadataSort}
}

// Encode marshals a product for storage.
func Encode(p Product) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("catalog: encode product %s: %w", p.ID, err)
	}
	return b, nil
}

// Decode unmarshals a stored product record.
func Decode(b []byte) (Product, error) {
	var p Product
	if err := json.Unmarshal(b, &p); err != nil {
		return Product{}, fmt.Errorf("catalog: decode product: %w", err)
	}
	return p, nil
}
