// Package orders contains the order placement engine: the Coordinator,
// which owns the invariant that stock never goes negative under concurrent
// purchases, and the Ledger, the read-only view over committed orders.
package orders

import (
	"github.com/dawidbera/secure-serverless-marketplace/internal/catalog"
	"github.com/dawidbera/secure-serverless-marketplace/internal/kvstore"
)

const (
	orderPrefix = "ORDER#"

	// IndexUser files each order under its purchaser so the ledger can list
	// a user's orders without touching product partitions. The primary
	// access path is the product partition itself: orders live next to the
	// product they reference.
	IndexUser = "user"
)

// Order is a committed purchase. Orders are created exactly once, atomically
// with the matching stock decrement, and are immutable afterwards.
type Order struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	UserID    string `json:"userId"`
	Quantity  int    `json:"quantity"`
	// Timestamp is the creation time in Unix seconds.
	Timestamp int64 `json:"timestamp"`
}

func orderKey(productID, orderID string) kvstore.Key {
	return kvstore.Key{
		Partition: catalog.ProductPartition(productID),
		Sort:      orderPrefix + orderID,
	}
}

func userIndexKey(userID string) string {
	return "USER#" + userID
}
