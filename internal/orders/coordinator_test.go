package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dawidbera/secure-serverless-marketplace/internal/apperr"
	"github.com/dawidbera/secure-serverless-marketplace/internal/catalog"
	"github.com/dawidbera/secure-serverless-marketplace/internal/kvstore"
	"github.com/dawidbera/secure-serverless-marketplace/internal/kvstore/memory"
	"github.com/dawidbera/secure-serverless-marketplace/internal/orderlog"
)

// capturingAudit records every audit entry handed to it.
type capturingAudit struct {
	mu      sync.Mutex
	entries []orderlog.Entry
}

func (c *capturingAudit) Save(_ context.Context, e *orderlog.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, *e)
	return nil
}

func (c *capturingAudit) outcomes() []orderlog.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]orderlog.Outcome, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Outcome
	}
	return out
}

// hookedStore lets a test interleave a racing write between the
// coordinator's read and its commit.
type hookedStore struct {
	kvstore.Store
	beforeApply func()
}

func (h *hookedStore) Apply(ctx context.Context, ops ...kvstore.Op) (kvstore.Outcome, error) {
	if h.beforeApply != nil {
		h.beforeApply()
		h.beforeApply = nil
	}
	return h.Store.Apply(ctx, ops...)
}

func seedProduct(t *testing.T, store kvstore.Store, id string, stock int) {
	t.Helper()
	value, err := catalog.Encode(catalog.Product{
		ID:            id,
		Name:          "Widget",
		Category:      "tools",
		Price:         9.99,
		StockQuantity: stock,
		Version:       1,
	})
	require.NoError(t, err)
	outcome, err := store.Apply(context.Background(), kvstore.InsertIfAbsent{
		Key:   catalog.ProductKey(id),
		Value: value,
	})
	require.NoError(t, err)
	require.Equal(t, kvstore.Committed, outcome)
}

func loadProduct(t *testing.T, store kvstore.Store, id string) catalog.Product {
	t.Helper()
	raw, err := store.Get(context.Background(), catalog.ProductKey(id))
	require.NoError(t, err)
	p, err := catalog.Decode(raw)
	require.NoError(t, err)
	return p
}

func TestPlaceOrderSuccess(t *testing.T) {
	store := memory.New()
	seedProduct(t, store, "p1", 10)
	audit := &capturingAudit{}
	c := NewCoordinator(store, audit)
	c.newID = func() string { return "order-1" }
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	order, err := c.PlaceOrder(context.Background(), "p1", 3, "alice")
	require.NoError(t, err)

	assert.Equal(t, "order-1", order.OrderID)
	assert.Equal(t, "p1", order.ProductID)
	assert.Equal(t, "alice", order.UserID)
	assert.Equal(t, 3, order.Quantity)
	assert.Equal(t, int64(1700000000), order.Timestamp)

	p := loadProduct(t, store, "p1")
	assert.Equal(t, 7, p.StockQuantity)
	assert.Equal(t, int64(2), p.Version, "version bumps exactly once per purchase")

	assert.Equal(t, []orderlog.Outcome{orderlog.OutcomeCommitted}, audit.outcomes())
}

func TestPlaceOrderValidation(t *testing.T) {
	store := memory.New()
	seedProduct(t, store, "p1", 10)
	c := NewCoordinator(store, nil)

	cases := []struct {
		name      string
		productID string
		quantity  int
		userID    string
	}{
		{"empty product", "", 1, "alice"},
		{"empty user", "p1", 1, ""},
		{"zero quantity", "p1", 0, "alice"},
		{"negative quantity", "p1", -2, "alice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.PlaceOrder(context.Background(), tc.productID, tc.quantity, tc.userID)
			assert.True(t, apperr.IsValidation(err), "want validation error, got %v", err)
		})
	}

	p := loadProduct(t, store, "p1")
	assert.Equal(t, 10, p.StockQuantity)
	assert.Equal(t, int64(1), p.Version)
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	store := memory.New()
	audit := &capturingAudit{}
	c := NewCoordinator(store, audit)

	_, err := c.PlaceOrder(context.Background(), "ghost", 1, "alice")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, []orderlog.Outcome{orderlog.OutcomeRejected}, audit.outcomes())
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	store := memory.New()
	seedProduct(t, store, "p1", 2)
	c := NewCoordinator(store, nil)

	_, err := c.PlaceOrder(context.Background(), "p1", 3, "alice")
	assert.True(t, apperr.IsValidation(err), "want validation error, got %v", err)

	p := loadProduct(t, store, "p1")
	assert.Equal(t, 2, p.StockQuantity)
	assert.Equal(t, int64(1), p.Version)

	ledger := NewLedger(store)
	got, err := ledger.ListForProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPlaceOrderLostRaceIsConflict(t *testing.T) {
	store := memory.New()
	seedProduct(t, store, "p1", 10)
	audit := &capturingAudit{}

	racer := NewCoordinator(store, nil)
	hooked := &hookedStore{Store: store}
	c := NewCoordinator(hooked, audit)

	// Between c's read and commit, the racer buys 4 units, bumping the
	// version and invalidating c's snapshot.
	hooked.beforeApply = func() {
		_, err := racer.PlaceOrder(context.Background(), "p1", 4, "bob")
		require.NoError(t, err)
	}

	_, err := c.PlaceOrder(context.Background(), "p1", 2, "alice")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// The loser left no trace: only the racer's commit is visible.
	p := loadProduct(t, store, "p1")
	assert.Equal(t, 6, p.StockQuantity)
	assert.Equal(t, int64(2), p.Version)

	ledger := NewLedger(store)
	aliceOrders, err := ledger.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, aliceOrders, "aborted transaction must not insert an order")

	assert.Equal(t, []orderlog.Outcome{orderlog.OutcomeConflict}, audit.outcomes())
}

func TestPlaceOrderConcurrentContention(t *testing.T) {
	store := memory.New()
	seedProduct(t, store, "p1", 10)
	c := NewCoordinator(store, nil)

	const buyers = 5
	results := make(chan error, buyers)
	var wg sync.WaitGroup
	wg.Add(buyers)
	for i := 0; i < buyers; i++ {
		go func() {
			defer wg.Done()
			_, err := c.PlaceOrder(context.Background(), "p1", 5, "user")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var committed, refused int
	for err := range results {
		switch {
		case err == nil:
			committed++
		case apperr.IsValidation(err) || errors.Is(err, apperr.ErrConflict):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.LessOrEqual(t, committed, 2, "10 units cannot cover more than two 5-unit purchases")
	assert.Equal(t, buyers, committed+refused)

	p := loadProduct(t, store, "p1")
	assert.Equal(t, 10-5*committed, p.StockQuantity)
	assert.GreaterOrEqual(t, p.StockQuantity, 0, "stock must never go negative")
	assert.Equal(t, int64(1+committed), p.Version)

	ledger := NewLedger(store)
	got, err := ledger.ListForProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, got, committed, "exactly one order record per committed purchase")
}

func TestPlaceOrderNeverOversells(t *testing.T) {
	store := memory.New()
	const initialStock = 20
	seedProduct(t, store, "p1", initialStock)
	c := NewCoordinator(store, nil)

	const buyers = 40
	var wg sync.WaitGroup
	wg.Add(buyers)
	var mu sync.Mutex
	sold := 0
	for i := 0; i < buyers; i++ {
		qty := i%3 + 1
		go func() {
			defer wg.Done()
			// Callers own the retry decision; this one retries conflicts.
			for {
				_, err := c.PlaceOrder(context.Background(), "p1", qty, "user")
				if err == nil {
					mu.Lock()
					sold += qty
					mu.Unlock()
					return
				}
				if errors.Is(err, apperr.ErrConflict) {
					continue
				}
				if apperr.IsValidation(err) {
					return // out of stock
				}
				t.Errorf("unexpected error: %v", err)
				return
			}
		}()
	}
	wg.Wait()

	p := loadProduct(t, store, "p1")
	assert.Equal(t, initialStock-sold, p.StockQuantity)
	assert.GreaterOrEqual(t, p.StockQuantity, 0, "stock must never go negative")
}

func TestLedgerListForUserNewestFirst(t *testing.T) {
	store := memory.New()
	seedProduct(t, store, "p1", 100)
	c := NewCoordinator(store, nil)

	base := time.Unix(1700000000, 0)
	ids := []string{"o-first", "o-second", "o-third"}
	for i, id := range ids {
		id := id
		tick := base.Add(time.Duration(i) * time.Second)
		c.newID = func() string { return id }
		c.now = func() time.Time { return tick }
		_, err := c.PlaceOrder(context.Background(), "p1", 1, "alice")
		require.NoError(t, err)
	}

	ledger := NewLedger(store)
	got, err := ledger.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "o-third", got[0].OrderID)
	assert.Equal(t, "o-second", got[1].OrderID)
	assert.Equal(t, "o-first", got[2].OrderID)

	// Reads are idempotent.
	again, err := ledger.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestLedgerEmptyAndInvalid(t *testing.T) {
	ledger := NewLedger(memory.New())

	got, err := ledger.ListForUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = ledger.ListForUser(context.Background(), "")
	assert.True(t, apperr.IsValidation(err))

	_, err = ledger.ListForProduct(context.Background(), "")
	assert.True(t, apperr.IsValidation(err))
}

func TestLedgerListForProduct(t *testing.T) {
	store := memory.New()
	seedProduct(t, store, "p1", 10)
	seedProduct(t, store, "p2", 10)
	c := NewCoordinator(store, nil)

	_, err := c.PlaceOrder(context.Background(), "p1", 1, "alice")
	require.NoError(t, err)
	_, err = c.PlaceOrder(context.Background(), "p1", 2, "bob")
	require.NoError(t, err)
	_, err = c.PlaceOrder(context.Background(), "p2", 3, "alice")
	require.NoError(t, err)

	ledger := NewLedger(store)
	got, err := ledger.ListForProduct(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, o := range got {
		assert.Equal(t, "p1", o.ProductID)
	}
}
