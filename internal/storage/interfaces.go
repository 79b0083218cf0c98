// Package storage defines the persistence interfaces for the trade journal.
// Implementations: postgres (production) and memory (tests, journal-less runs).
package storage

import (
	"context"

	"solana-market-maker/internal/domain"
)

// TradeJournal is an append-only record of every executed or attempted trade.
type TradeJournal interface {
	// Insert appends one trade record.
	Insert(ctx context.Context, record *domain.TradeRecord) error

	// RecentByWallet returns the latest records for one wallet,
	// newest first, up to limit.
	RecentByWallet(ctx context.Context, wallet string, limit int) ([]*domain.TradeRecord, error)

	// CountByAction returns the total number of successful buys and sells.
	CountByAction(ctx context.Context) (buys, sells int64, err error)
}
