package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dawidbera/secure-serverless-marketplace/internal/apperr"
	"github.com/dawidbera/secure-serverless-marketplace/internal/catalog"
	"github.com/dawidbera/secure-serverless-marketplace/internal/kvstore"
)

// Ledger is the read-only view over the append-only order records the
// coordinator commits. It has no mutation path.
type Ledger struct {
	store kvstore.Store
}

// NewLedger wires the ledger to the store shared with the coordinator.
func NewLedger(store kvstore.Store) *Ledger {
	return &Ledger{store: store}
}

// ListForUser returns the user's orders, newest first. A user with no
// orders gets an empty slice, not an error.
//
// The by-user path is a secondary index over the same records, so it
// reflects commits once the store's consistency model makes them visible;
// the primary by-product path is read-after-write.
func (l *Ledger) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	if userID == "" {
		return nil, apperr.Validationf("userId is required")
	}
	raws, err := l.store.QueryIndex(ctx, IndexUser, userIndexKey(userID), true)
	if err != nil {
		return nil, fmt.Errorf("ledger: list orders for user %s: %w: %v", userID, apperr.ErrUnavailable, err)
	}
	return decodeOrders(raws)
}

// ListForProduct returns every order placed against a product, in order-id
// order. This is the primary access path: order records live in the
// product's partition.
func (l *Ledger) ListForProduct(ctx context.Context, productID string) ([]Order, error) {
	if productID == "" {
		return nil, apperr.Validationf("productId is required")
	}
	raws, err := l.store.QueryPrefix(ctx, catalog.ProductPartition(productID), orderPrefix)
	if err != nil {
		return nil, fmt.Errorf("ledger: list orders for product %s: %w: %v", productID, apperr.ErrUnavailable, err)
	}
	return decodeOrders(raws)
}

func decodeOrders(raws [][]byte) ([]Order, error) {
	out := make([]Order, 0, len(raws))
	for _, raw := range raws {
		var o Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("ledger: decode order: %w", err)
		}
		out = append(out, o)
	}
	return out, nil
}
