package memory

import (
	"context"
	"sync"

	"solana-market-maker/internal/domain"
	"solana-market-maker/internal/storage"
)

// TradeJournal is an in-memory implementation of storage.TradeJournal.
type TradeJournal struct {
	mu      sync.RWMutex
	records []*domain.TradeRecord
	nextID  int64
}

// NewTradeJournal creates a new in-memory trade journal.
func NewTradeJournal() *TradeJournal {
	return &TradeJournal{nextID: 1}
}

// Compile-time interface check.
var _ storage.TradeJournal = (*TradeJournal)(nil)

// Insert appends one trade record, assigning its ID.
func (j *TradeJournal) Insert(_ context.Context, record *domain.TradeRecord) error {
	if record == nil || record.Wallet == "" {
		return storage.ErrInvalidInput
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	// Store a copy to prevent external mutation
	recordCopy := *record
	recordCopy.ID = j.nextID
	j.nextID++
	j.records = append(j.records, &recordCopy)
	record.ID = recordCopy.ID
	return nil
}

// RecentByWallet returns the latest records for one wallet, newest first.
func (j *TradeJournal) RecentByWallet(_ context.Context, wallet string, limit int) ([]*domain.TradeRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []*domain.TradeRecord
	for i := len(j.records) - 1; i >= 0 && len(result) < limit; i-- {
		if j.records[i].Wallet == wallet {
			recordCopy := *j.records[i]
			result = append(result, &recordCopy)
		}
	}
	return result, nil
}

// CountByAction returns the total number of successful buys and sells.
func (j *TradeJournal) CountByAction(_ context.Context) (buys, sells int64, err error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	for _, r := range j.records {
		if !r.Succeeded {
			continue
		}
		switch r.Action {
		case domain.ActionBuy:
			buys++
		case domain.ActionSell:
			sells++
		}
	}
	return buys, sells, nil
}
