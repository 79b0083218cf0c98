package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-market-maker/internal/domain"
	"solana-market-maker/internal/storage"
	postgres "solana-market-maker/internal/storage/postgres"
)

func TestTradeJournal_InsertAndRecentByWallet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	journal := postgres.NewTradeJournal(pool)
	ctx := context.Background()

	records := []*domain.TradeRecord{
		{Wallet: "walletA", Action: domain.ActionBuy, AmountIn: 500_000_000, Signature: "sig1", Succeeded: true, ExecutedAt: 1000},
		{Wallet: "walletA", Action: domain.ActionSell, AmountIn: 250_000, Signature: "sig2", Succeeded: true, ExecutedAt: 2000},
		{Wallet: "walletA", Action: domain.ActionBuy, AmountIn: 100_000_000, Succeeded: false, ErrorText: ptr("confirmation timeout"), ExecutedAt: 3000},
		{Wallet: "walletB", Action: domain.ActionBuy, AmountIn: 900_000_000, Signature: "sig3", Succeeded: true, ExecutedAt: 4000},
	}
	for _, r := range records {
		require.NoError(t, journal.Insert(ctx, r))
		assert.NotZero(t, r.ID, "Insert must assign the row ID")
		assert.NotZero(t, r.CreatedAt, "Insert must fill created_at")
	}

	got, err := journal.RecentByWallet(ctx, "walletA", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	assert.Equal(t, int64(3000), got[0].ExecutedAt)
	assert.Equal(t, int64(2000), got[1].ExecutedAt)
	assert.Equal(t, int64(1000), got[2].ExecutedAt)

	// Failure round-trips with its error text and empty signature.
	assert.False(t, got[0].Succeeded)
	require.NotNil(t, got[0].ErrorText)
	assert.Equal(t, "confirmation timeout", *got[0].ErrorText)
	assert.Empty(t, got[0].Signature)

	// Success round-trips without error text.
	assert.True(t, got[1].Succeeded)
	assert.Nil(t, got[1].ErrorText)
	assert.Equal(t, "sig2", got[1].Signature)
	assert.Equal(t, uint64(250_000), got[1].AmountIn)

	// Limit applies after ordering.
	limited, err := journal.RecentByWallet(ctx, "walletA", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, int64(3000), limited[0].ExecutedAt)
}

func TestTradeJournal_CountByAction(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	journal := postgres.NewTradeJournal(pool)
	ctx := context.Background()

	buys, sells, err := journal.CountByAction(ctx)
	require.NoError(t, err)
	assert.Zero(t, buys)
	assert.Zero(t, sells)

	records := []*domain.TradeRecord{
		{Wallet: "walletA", Action: domain.ActionBuy, AmountIn: 1, Succeeded: true, ExecutedAt: 1000},
		{Wallet: "walletA", Action: domain.ActionBuy, AmountIn: 2, Succeeded: true, ExecutedAt: 2000},
		{Wallet: "walletB", Action: domain.ActionSell, AmountIn: 3, Succeeded: true, ExecutedAt: 3000},
		// Failed trades do not count.
		{Wallet: "walletB", Action: domain.ActionSell, AmountIn: 4, Succeeded: false, ErrorText: ptr("submit failed"), ExecutedAt: 4000},
	}
	for _, r := range records {
		require.NoError(t, journal.Insert(ctx, r))
	}

	buys, sells, err = journal.CountByAction(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), buys)
	assert.Equal(t, int64(1), sells)
}

func TestTradeJournal_InvalidInput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	journal := postgres.NewTradeJournal(pool)
	ctx := context.Background()

	assert.ErrorIs(t, journal.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, journal.Insert(ctx, &domain.TradeRecord{Action: domain.ActionBuy}), storage.ErrInvalidInput)

	_, err := journal.RecentByWallet(ctx, "walletA", 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
