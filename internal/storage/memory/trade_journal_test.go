package memory

import (
	"context"
	"testing"

	"solana-market-maker/internal/domain"
	"solana-market-maker/internal/storage"
)

func record(wallet string, action domain.TradeAction, executedAt int64, succeeded bool) *domain.TradeRecord {
	return &domain.TradeRecord{
		Wallet:     wallet,
		Action:     action,
		AmountIn:   100,
		Succeeded:  succeeded,
		ExecutedAt: executedAt,
	}
}

func TestTradeJournal_InsertAssignsIDs(t *testing.T) {
	j := NewTradeJournal()
	ctx := context.Background()

	r1 := record("walletA", domain.ActionBuy, 1000, true)
	r2 := record("walletA", domain.ActionSell, 2000, true)
	if err := j.Insert(ctx, r1); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := j.Insert(ctx, r2); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if r1.ID != 1 || r2.ID != 2 {
		t.Errorf("IDs (%d, %d), want (1, 2)", r1.ID, r2.ID)
	}

	if err := j.Insert(ctx, nil); err != storage.ErrInvalidInput {
		t.Errorf("nil record: got %v, want ErrInvalidInput", err)
	}
	if err := j.Insert(ctx, record("", domain.ActionBuy, 0, true)); err != storage.ErrInvalidInput {
		t.Errorf("empty wallet: got %v, want ErrInvalidInput", err)
	}
}

func TestTradeJournal_RecentByWallet(t *testing.T) {
	j := NewTradeJournal()
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		if err := j.Insert(ctx, record("walletA", domain.ActionBuy, i*1000, true)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := j.Insert(ctx, record("walletB", domain.ActionSell, 9000, true)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := j.RecentByWallet(ctx, "walletA", 3)
	if err != nil {
		t.Fatalf("RecentByWallet failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	// Newest first.
	if got[0].ExecutedAt != 5000 || got[1].ExecutedAt != 4000 || got[2].ExecutedAt != 3000 {
		t.Errorf("unexpected order: %d, %d, %d", got[0].ExecutedAt, got[1].ExecutedAt, got[2].ExecutedAt)
	}

	if _, err := j.RecentByWallet(ctx, "walletA", 0); err != storage.ErrInvalidInput {
		t.Errorf("zero limit: got %v, want ErrInvalidInput", err)
	}
}

func TestTradeJournal_CountByAction(t *testing.T) {
	j := NewTradeJournal()
	ctx := context.Background()

	j.Insert(ctx, record("walletA", domain.ActionBuy, 1000, true))
	j.Insert(ctx, record("walletA", domain.ActionBuy, 2000, true))
	j.Insert(ctx, record("walletA", domain.ActionSell, 3000, true))
	// Failed trades are journaled but do not count as volume.
	j.Insert(ctx, record("walletA", domain.ActionBuy, 4000, false))

	buys, sells, err := j.CountByAction(ctx)
	if err != nil {
		t.Fatalf("CountByAction failed: %v", err)
	}
	if buys != 2 || sells != 1 {
		t.Errorf("counts (%d, %d), want (2, 1)", buys, sells)
	}
}

func TestTradeJournal_CopySemantics(t *testing.T) {
	j := NewTradeJournal()
	ctx := context.Background()

	r := record("walletA", domain.ActionBuy, 1000, true)
	j.Insert(ctx, r)
	r.Wallet = "mutated"

	got, err := j.RecentByWallet(ctx, "walletA", 1)
	if err != nil {
		t.Fatalf("RecentByWallet failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatal("mutating the caller's record must not affect the journal")
	}
	got[0].Wallet = "also mutated"

	again, _ := j.RecentByWallet(ctx, "walletA", 1)
	if len(again) != 1 || again[0].Wallet != "walletA" {
		t.Error("mutating a returned record must not affect the journal")
	}
}
