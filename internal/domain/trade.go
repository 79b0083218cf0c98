package domain

// TradeAction is the direction of a swap against the pool.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// TradeDecision is the (wallet, action, amount) tuple produced by the scheduler
// for a single cycle. It is ephemeral: built fresh each cycle, handed to the
// executor, never persisted.
type TradeDecision struct {
	Wallet       string      // base58 pubkey of the acting wallet
	Action       TradeAction // BUY | SELL
	AmountIn     uint64      // input amount in the token's smallest unit
	MinAmountOut uint64      // always 0: any nonzero output is accepted
}

// TradeRecord is one executed (or attempted) trade.
// Corresponds to trade_records table in PostgreSQL.
type TradeRecord struct {
	ID         int64       // BIGSERIAL primary key
	Wallet     string      // base58 pubkey of the acting wallet
	Action     TradeAction // BUY | SELL
	AmountIn   uint64      // input amount in smallest units
	Signature  string      // transaction signature, empty on failure
	Succeeded  bool
	ErrorText  *string // failure reason, NULL on success
	ExecutedAt int64   // Unix timestamp in milliseconds
	CreatedAt  int64   // record creation timestamp (ms)
}
