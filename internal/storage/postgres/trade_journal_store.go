package postgres

import (
	"context"
	"fmt"

	"solana-market-maker/internal/domain"
	"solana-market-maker/internal/storage"
)

// TradeJournal implements storage.TradeJournal using PostgreSQL.
type TradeJournal struct {
	pool *Pool
}

// NewTradeJournal creates a new TradeJournal.
func NewTradeJournal(pool *Pool) *TradeJournal {
	return &TradeJournal{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeJournal = (*TradeJournal)(nil)

// Insert appends one trade record and fills in its assigned ID.
func (j *TradeJournal) Insert(ctx context.Context, record *domain.TradeRecord) error {
	if record == nil || record.Wallet == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_records (
			wallet, action, amount_in, signature, succeeded, error_text, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	var createdAt int64
	err := j.pool.QueryRow(ctx, query,
		record.Wallet, string(record.Action), int64(record.AmountIn),
		record.Signature, record.Succeeded, record.ErrorText, record.ExecutedAt,
	).Scan(&record.ID, &createdAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	record.CreatedAt = createdAt
	return nil
}

// RecentByWallet returns the latest records for one wallet, newest first.
func (j *TradeJournal) RecentByWallet(ctx context.Context, wallet string, limit int) ([]*domain.TradeRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, wallet, action, amount_in, signature, succeeded, error_text, executed_at, created_at
		FROM trade_records
		WHERE wallet = $1
		ORDER BY executed_at DESC, id DESC
		LIMIT $2
	`

	rows, err := j.pool.Query(ctx, query, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("query trade records: %w", err)
	}
	defer rows.Close()

	var result []*domain.TradeRecord
	for rows.Next() {
		var r domain.TradeRecord
		var action string
		var amountIn int64
		if err := rows.Scan(&r.ID, &r.Wallet, &action, &amountIn, &r.Signature,
			&r.Succeeded, &r.ErrorText, &r.ExecutedAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade record: %w", err)
		}
		r.Action = domain.TradeAction(action)
		r.AmountIn = uint64(amountIn)
		result = append(result, &r)
	}
	return result, rows.Err()
}

// CountByAction returns the total number of successful buys and sells.
func (j *TradeJournal) CountByAction(ctx context.Context) (buys, sells int64, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE action = 'BUY'),
			COUNT(*) FILTER (WHERE action = 'SELL')
		FROM trade_records
		WHERE succeeded
	`

	if err := j.pool.QueryRow(ctx, query).Scan(&buys, &sells); err != nil {
		return 0, 0, fmt.Errorf("count trade records: %w", err)
	}
	return buys, sells, nil
}
