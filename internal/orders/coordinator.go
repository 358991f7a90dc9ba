package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dawidbera/secure-serverless-marketplace/internal/apperr"
	"github.com/dawidbera/secure-serverless-marketplace/internal/catalog"
	"github.com/dawidbera/secure-serverless-marketplace/internal/kvstore"
	"github.com/dawidbera/secure-serverless-marketplace/internal/orderlog"
)

// Coordinator places orders using optimistic concurrency. It holds no locks
// and no mutable state of its own; every invocation is an independent
// read-validate-commit cycle against the store's conditional transaction
// primitive, so it is safe to call from any number of goroutines.
//
// The coordinator never retries a lost race. Conflicts surface as
// apperr.ErrConflict and the retry decision belongs to the caller, which
// keeps contention behavior predictable.
type Coordinator struct {
	store kvstore.Store
	audit orderlog.Repository // nil-safe: auditing skipped if nil

	newID func() string
	now   func() time.Time
}

// NewCoordinator wires the coordinator to its store. audit may be nil, in
// which case placement attempts are not recorded in the audit log.
func NewCoordinator(store kvstore.Store, audit orderlog.Repository) *Coordinator {
	return &Coordinator{
		store: store,
		audit: audit,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// PlaceOrder attempts to purchase quantity units of productID for userID.
//
// The algorithm:
//  1. Snapshot the product's (stock, version).
//  2. Fail fast when the observed stock is already insufficient. This is an
//     optimization only — the correctness guard is step 3.
//  3. Submit one atomic transaction: decrement stock and bump version,
//     guarded by "version unchanged AND stock still sufficient", together
//     with the insertion of the new order record. Both apply or neither.
//
// Outcomes map onto the apperr taxonomy: ErrNotFound for an unknown
// product, a ValidationError for bad input or insufficient stock,
// ErrConflict when the transaction aborts or its result is unknown, and
// ErrUnavailable for store faults. On any non-nil error no partial state is
// observable: stock, version and the ledger are exactly as before the call.
func (c *Coordinator) PlaceOrder(ctx context.Context, productID string, quantity int, userID string) (*Order, error) {
	if productID == "" {
		return nil, apperr.Validationf("productId is required")
	}
	if userID == "" {
		return nil, apperr.Validationf("userId is required")
	}
	if quantity <= 0 {
		return nil, apperr.Validationf("quantity must be a positive integer")
	}

	raw, err := c.store.Get(ctx, catalog.ProductKey(productID))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		c.record(ctx, "", productID, userID, quantity, orderlog.OutcomeRejected, "product not found")
		return nil, fmt.Errorf("product %s: %w", productID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, c.storeFault(ctx, "", productID, userID, quantity, err)
	}

	product, err := catalog.Decode(raw)
	if err != nil {
		return nil, c.storeFault(ctx, "", productID, userID, quantity, err)
	}

	if quantity > product.StockQuantity {
		c.record(ctx, "", productID, userID, quantity, orderlog.OutcomeRejected, "insufficient stock")
		return nil, apperr.Validationf("insufficient stock")
	}

	observedVersion := product.Version
	next := product
	next.StockQuantity -= quantity
	next.Version++

	nextValue, err := catalog.Encode(next)
	if err != nil {
		return nil, c.storeFault(ctx, "", productID, userID, quantity, err)
	}

	order := Order{
		OrderID:   c.newID(),
		ProductID: productID,
		UserID:    userID,
		Quantity:  quantity,
		Timestamp: c.now().Unix(),
	}
	orderValue, err := json.Marshal(order)
	if err != nil {
		return nil, c.storeFault(ctx, order.OrderID, productID, userID, quantity, err)
	}

	outcome, err := c.store.Apply(ctx,
		kvstore.UpdateIf{
			Key:          catalog.ProductKey(productID),
			Value:        nextValue,
			Precondition: stockGuard(observedVersion, quantity),
		},
		kvstore.InsertIfAbsent{
			Key:   orderKey(productID, order.OrderID),
			Value: orderValue,
			Indexes: []kvstore.IndexEntry{
				{Index: IndexUser, IndexKey: userIndexKey(userID), Score: float64(c.now().UnixNano())},
			},
		},
	)
	if err != nil {
		if ctx.Err() != nil {
			// The transaction outcome is unknown: it may or may not have
			// committed before the cancellation. Treated as a conflict; the
			// caller must consult the ledger before resubmitting, or a
			// duplicate purchase is possible.
			c.record(ctx, order.OrderID, productID, userID, quantity, orderlog.OutcomeConflict, "outcome unknown: "+ctx.Err().Error())
			return nil, fmt.Errorf("order outcome unknown for product %s: %w", productID, apperr.ErrConflict)
		}
		return nil, c.storeFault(ctx, order.OrderID, productID, userID, quantity, err)
	}
	if outcome == kvstore.Aborted {
		c.record(ctx, order.OrderID, productID, userID, quantity, orderlog.OutcomeConflict, "concurrent update or insufficient stock")
		return nil, fmt.Errorf("product %s changed concurrently: %w", productID, apperr.ErrConflict)
	}

	c.record(ctx, order.OrderID, productID, userID, quantity, orderlog.OutcomeCommitted, "")
	return &order, nil
}

// stockGuard is the commit-time precondition of the purchase transaction:
// the product version must still be the one observed and the stock must
// still cover the purchase. Evaluated by the store against the value as
// stored, not as read.
func stockGuard(observedVersion int64, quantity int) kvstore.Condition {
	return func(current []byte) (bool, error) {
		p, err := catalog.Decode(current)
		if err != nil {
			return false, err
		}
		return p.Version == observedVersion && p.StockQuantity >= quantity, nil
	}
}

func (c *Coordinator) storeFault(ctx context.Context, orderID, productID, userID string, quantity int, err error) error {
	slog.ErrorContext(ctx, "order placement failed",
		"product_id", productID,
		"user_id", userID,
		"quantity", quantity,
		"error", err,
	)
	c.record(ctx, orderID, productID, userID, quantity, orderlog.OutcomeFailed, err.Error())
	return fmt.Errorf("place order for product %s: %w: %v", productID, apperr.ErrUnavailable, err)
}

func (c *Coordinator) record(ctx context.Context, orderID, productID, userID string, quantity int, outcome orderlog.Outcome, detail string) {
	if c.audit == nil {
		return
	}
	entry := &orderlog.Entry{
		OrderID:   orderID,
		ProductID: productID,
		UserID:    userID,
		Quantity:  quantity,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: c.now().UTC(),
	}
	orderlog.Annotate(ctx, entry)
	if err := c.audit.Save(ctx, entry); err != nil {
		slog.WarnContext(ctx, "order audit write failed",
			"order_id", orderID,
			"product_id", productID,
			"error", err,
		)
	}
}
