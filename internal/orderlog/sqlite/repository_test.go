package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dawidbera/secure-serverless-marketplace/internal/orderlog"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSaveAndReadBack(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	entry := &orderlog.Entry{
		OrderID:   "o-1",
		ProductID: "p-1",
		UserID:    "alice",
		Quantity:  3,
		Outcome:   orderlog.OutcomeCommitted,
		TraceID:   "4bf92f3577b34da6a3ce929d0e0e4736",
		SpanID:    "00f067aa0ba902b7",
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 123456789, time.UTC),
	}
	require.NoError(t, repo.Save(ctx, entry))

	got, err := repo.RecentForProduct(ctx, "p-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, entry.OrderID, got[0].OrderID)
	assert.Equal(t, entry.UserID, got[0].UserID)
	assert.Equal(t, entry.Quantity, got[0].Quantity)
	assert.Equal(t, orderlog.OutcomeCommitted, got[0].Outcome)
	assert.Equal(t, entry.TraceID, got[0].TraceID)
	assert.Equal(t, entry.SpanID, got[0].SpanID)
	assert.True(t, got[0].CreatedAt.Equal(entry.CreatedAt))
}

func TestRecentForProductOrderAndLimit(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	outcomes := []orderlog.Outcome{
		orderlog.OutcomeConflict,
		orderlog.OutcomeRejected,
		orderlog.OutcomeCommitted,
	}
	for i, outcome := range outcomes {
		require.NoError(t, repo.Save(ctx, &orderlog.Entry{
			OrderID:   "o-" + string(rune('a'+i)),
			ProductID: "p-1",
			UserID:    "alice",
			Quantity:  1,
			Outcome:   outcome,
			Detail:    "detail",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	// Another product's rows must not bleed in.
	require.NoError(t, repo.Save(ctx, &orderlog.Entry{
		OrderID: "o-x", ProductID: "p-2", UserID: "bob", Quantity: 1,
		Outcome: orderlog.OutcomeCommitted, CreatedAt: base,
	}))

	got, err := repo.RecentForProduct(ctx, "p-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, orderlog.OutcomeCommitted, got[0].Outcome, "newest first")
	assert.Equal(t, orderlog.OutcomeRejected, got[1].Outcome)
}

func TestRecentForProductEmpty(t *testing.T) {
	repo := openTestRepo(t)
	got, err := repo.RecentForProduct(context.Background(), "nothing", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(context.Background(), &orderlog.Entry{
		OrderID: "o-1", ProductID: "p-1", UserID: "alice", Quantity: 1,
		Outcome: orderlog.OutcomeCommitted, CreatedAt: time.Now(),
	}))
	require.NoError(t, first.Close())

	// Reopening applies the schema again without clobbering existing rows.
	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.RecentForProduct(context.Background(), "p-1", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
