package wallet

import (
	"errors"
)

// ErrNoWallets is returned when a pool is created without any wallets.
var ErrNoWallets = errors.New("no wallets in pool")

// Pool is an ordered collection of wallets with a rotation cursor.
// The cursor stays on one wallet for granularity trades, then advances.
// Pool is not safe for concurrent use; the scheduler owns it exclusively.
type Pool struct {
	handles     []*Handle
	cursor      int
	granularity int
	rotations   uint64
}

// NewPool creates a rotation pool. granularity is the number of trades one
// wallet performs before the cursor advances; values below 1 are clamped to 1.
// activeSize caps how many of the loaded wallets participate in rotation
// (zero or negative means all).
func NewPool(handles []*Handle, granularity, activeSize int) (*Pool, error) {
	if activeSize > 0 && activeSize < len(handles) {
		handles = handles[:activeSize]
	}
	if len(handles) == 0 {
		return nil, ErrNoWallets
	}
	if granularity < 1 {
		granularity = 1
	}
	return &Pool{handles: handles, granularity: granularity}, nil
}

// Len returns the number of wallets in rotation.
func (p *Pool) Len() int {
	return len(p.handles)
}

// Current returns the wallet under the rotation cursor.
func (p *Pool) Current() *Handle {
	return p.handles[p.cursor]
}

// Advance moves the cursor to the next wallet and resets the current wallet's
// rotation trade count. Rotations only ever increase within a pool lifetime.
func (p *Pool) Advance() {
	p.handles[p.cursor].tradesSinceRotation = 0
	p.cursor = (p.cursor + 1) % len(p.handles)
	p.rotations++
}

// CompleteTrade counts one finished trade (success or failure) on h and
// advances the cursor once h has performed granularity trades.
func (p *Pool) CompleteTrade(h *Handle) {
	h.tradesSinceRotation++
	if h == p.handles[p.cursor] && h.tradesSinceRotation >= p.granularity {
		p.Advance()
	}
}

// Rotations returns the monotonic rotation count.
func (p *Pool) Rotations() uint64 {
	return p.rotations
}

// Handles returns the wallets in rotation order.
func (p *Pool) Handles() []*Handle {
	return p.handles
}
