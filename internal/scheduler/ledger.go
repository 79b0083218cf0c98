package scheduler

import (
	"sync"
	"time"

	"solana-market-maker/internal/domain"
)

// Ledger accumulates activity counters for the periodic report. The report
// goroutine reads it concurrently with the trade loop, so access is locked.
type Ledger struct {
	mu sync.Mutex

	buys       uint64
	sells      uint64
	failed     uint64
	buyVolume  uint64
	sellVolume uint64
	rotations  uint64
	startedAt  time.Time
}

func NewLedger(startedAt time.Time) *Ledger {
	return &Ledger{startedAt: startedAt}
}

func (l *Ledger) RecordTrade(action domain.TradeAction, amountIn uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if action == domain.ActionBuy {
		l.buys++
		l.buyVolume += amountIn
	} else {
		l.sells++
		l.sellVolume += amountIn
	}
}

func (l *Ledger) RecordFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed++
}

func (l *Ledger) SetRotations(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rotations = n
}

func (l *Ledger) Snapshot(now time.Time) domain.ActivityReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	return domain.ActivityReport{
		TotalBuys:    l.buys,
		TotalSells:   l.sells,
		FailedTrades: l.failed,
		BuyVolume:    l.buyVolume,
		SellVolume:   l.sellVolume,
		Rotations:    l.rotations,
		StartedAt:    l.startedAt,
		GeneratedAt:  now,
	}
}
