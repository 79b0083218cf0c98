// Package wallet manages the pool of signing identities the scheduler
// rotates through: key material loading, per-wallet trade counters, and
// failure cooldown state.
package wallet

import (
	"time"

	solanago "github.com/gagliardetto/solana-go"
)

// State tags a wallet's availability for selection.
type State int

const (
	// StateActive means the wallet may be selected.
	StateActive State = iota
	// StateCooling means the wallet is temporarily excluded after repeated
	// consecutive failures.
	StateCooling
)

// Handle is one signing identity plus its scheduler-owned mutable state.
// A Handle is owned exclusively by the scheduler: at most one trade is in
// flight per wallet and no field is mutated concurrently.
type Handle struct {
	key solanago.PrivateKey
	pub solanago.PublicKey

	tradesSinceRotation int
	buyVolume           uint64 // funding token spent across all buys
	sellVolume          uint64 // traded token sold across all sells

	consecutiveFailures int
	coolingUntil        time.Time
	coolings            int // times this wallet entered cooling, drives escalation
}

// NewHandle wraps a private key as a pool member.
func NewHandle(key solanago.PrivateKey) *Handle {
	return &Handle{key: key, pub: key.PublicKey()}
}

// PublicKey returns the wallet's public identifier.
func (h *Handle) PublicKey() solanago.PublicKey {
	return h.pub
}

// PrivateKey returns the signing key.
func (h *Handle) PrivateKey() solanago.PrivateKey {
	return h.key
}

// TradesSinceRotation is the number of trades completed since the rotation
// cursor last moved onto this wallet.
func (h *Handle) TradesSinceRotation() int {
	return h.tradesSinceRotation
}

// Volumes returns the realized buy and sell volume tallies.
func (h *Handle) Volumes() (buy, sell uint64) {
	return h.buyVolume, h.sellVolume
}

// State reports whether the wallet is selectable at now.
func (h *Handle) State(now time.Time) State {
	if now.Before(h.coolingUntil) {
		return StateCooling
	}
	return StateActive
}

// RecordSuccess tallies a completed trade and clears the failure streak.
func (h *Handle) RecordSuccess(buy bool, amount uint64) {
	if buy {
		h.buyVolume += amount
	} else {
		h.sellVolume += amount
	}
	h.consecutiveFailures = 0
}

// maxCooldownShift caps the escalation at 64x the base cooldown; shifting
// further would overflow time.Duration for any realistic base.
const maxCooldownShift = 6

// RecordFailure counts a failed trade. Once threshold consecutive failures
// accumulate the wallet enters cooling for base doubled per prior cooldown,
// capped at base<<maxCooldownShift, and the streak resets so re-admission
// starts a fresh count. Reports whether the wallet just entered cooling.
func (h *Handle) RecordFailure(now time.Time, threshold int, base time.Duration) bool {
	h.consecutiveFailures++
	if threshold <= 0 || h.consecutiveFailures < threshold {
		return false
	}

	shift := h.coolings
	if shift > maxCooldownShift {
		shift = maxCooldownShift
	}
	h.coolingUntil = now.Add(base << shift)
	h.coolings++
	h.consecutiveFailures = 0
	return true
}
