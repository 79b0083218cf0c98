package wallet

import (
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
)

func newHandles(n int) []*Handle {
	handles := make([]*Handle, n)
	for i := range handles {
		handles[i] = NewHandle(solanago.NewWallet().PrivateKey)
	}
	return handles
}

func TestNewPool(t *testing.T) {
	if _, err := NewPool(nil, 2, 0); err != ErrNoWallets {
		t.Errorf("expected ErrNoWallets for empty pool, got %v", err)
	}

	pool, err := NewPool(newHandles(5), 2, 3)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	if pool.Len() != 3 {
		t.Errorf("active size must cap the pool, got %d wallets", pool.Len())
	}

	// Granularity below 1 is clamped, not rejected.
	pool, err = NewPool(newHandles(1), 0, 0)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	pool.CompleteTrade(pool.Current())
	if pool.Rotations() != 1 {
		t.Error("clamped granularity of 1 must rotate after a single trade")
	}
}

func TestPool_RotatesEveryGranularityTrades(t *testing.T) {
	handles := newHandles(3)
	pool, err := NewPool(handles, 2, 0)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	var order []*Handle
	for i := 0; i < 6; i++ {
		h := pool.Current()
		order = append(order, h)
		pool.CompleteTrade(h)
	}

	want := []*Handle{handles[0], handles[0], handles[1], handles[1], handles[2], handles[2]}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("trade %d on wallet %s, want %s", i, order[i].PublicKey(), want[i].PublicKey())
		}
	}

	if pool.Rotations() != 3 {
		t.Errorf("expected 3 rotations, got %d", pool.Rotations())
	}
	if pool.Current() != handles[0] {
		t.Error("cursor must wrap back to the first wallet")
	}
}

func TestPool_AdvanceResetsTradeCount(t *testing.T) {
	handles := newHandles(2)
	pool, err := NewPool(handles, 2, 0)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	pool.CompleteTrade(handles[0]) // one trade in, cursor stays
	if pool.Current() != handles[0] {
		t.Fatal("cursor moved before granularity was reached")
	}

	pool.Advance() // external skip, e.g. wallet went broke
	if handles[0].TradesSinceRotation() != 0 {
		t.Error("advance must reset the skipped wallet's trade count")
	}
	if pool.Current() != handles[1] {
		t.Error("cursor must move to the next wallet")
	}
}

func TestHandle_FailureCooldownEscalates(t *testing.T) {
	h := NewHandle(solanago.NewWallet().PrivateKey)
	now := time.Unix(1000, 0)
	base := 30 * time.Minute

	// Below the threshold nothing happens.
	if h.RecordFailure(now, 3, base) || h.RecordFailure(now, 3, base) {
		t.Fatal("cooldown before the threshold")
	}
	if h.State(now) != StateActive {
		t.Fatal("wallet must stay active below the threshold")
	}

	if !h.RecordFailure(now, 3, base) {
		t.Fatal("third consecutive failure must trigger cooldown")
	}
	if h.State(now) != StateCooling {
		t.Error("wallet must be cooling after the threshold")
	}
	if h.State(now.Add(base+time.Second)) != StateActive {
		t.Error("wallet must be re-admitted after the cooldown")
	}

	// A second cooldown doubles the exclusion window.
	later := now.Add(base + time.Minute)
	h.RecordFailure(later, 3, base)
	h.RecordFailure(later, 3, base)
	h.RecordFailure(later, 3, base)
	if h.State(later.Add(base+time.Second)) != StateCooling {
		t.Error("second cooldown must last longer than the first")
	}
	if h.State(later.Add(2*base+time.Second)) != StateActive {
		t.Error("second cooldown must end after twice the base")
	}
}

func TestHandle_CooldownCapped(t *testing.T) {
	h := NewHandle(solanago.NewWallet().PrivateKey)
	now := time.Unix(1000, 0)
	base := 30 * time.Minute
	maxCooldown := base << maxCooldownShift

	// A wallet that failed its way through many cooldowns must still get a
	// positive, bounded exclusion window rather than a shifted-out duration.
	h.coolings = 40
	if !h.RecordFailure(now, 1, base) {
		t.Fatal("failure at the threshold must trigger cooldown")
	}
	if h.State(now.Add(maxCooldown-time.Second)) != StateCooling {
		t.Error("capped cooldown must still exclude the wallet")
	}
	if h.State(now.Add(maxCooldown+time.Second)) != StateActive {
		t.Error("capped cooldown must end after base<<maxCooldownShift")
	}
}

func TestHandle_SuccessClearsFailureStreak(t *testing.T) {
	h := NewHandle(solanago.NewWallet().PrivateKey)
	now := time.Unix(1000, 0)

	h.RecordFailure(now, 3, time.Minute)
	h.RecordFailure(now, 3, time.Minute)
	h.RecordSuccess(true, 100)
	if h.RecordFailure(now, 3, time.Minute) {
		t.Error("success must reset the consecutive failure count")
	}

	h.RecordSuccess(false, 40)
	buy, sell := h.Volumes()
	if buy != 100 || sell != 40 {
		t.Errorf("volumes (%d, %d), want (100, 40)", buy, sell)
	}
}
