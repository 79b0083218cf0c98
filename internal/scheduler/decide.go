package scheduler

import (
	"math/rand"
	"time"

	"solana-market-maker/internal/domain"
)

// The decision functions below are pure: all randomness comes through the
// injected *rand.Rand so policy can be tested deterministically.

// ChooseAction draws Buy with probability buyProbability. A wallet holding no
// traded token cannot sell, so the draw is forced to Buy; one that cannot
// fund a buy is forced to Sell. Returns ok=false when neither side is
// possible.
func ChooseAction(r *rand.Rand, buyProbability float64, canBuy, canSell bool) (domain.TradeAction, bool) {
	switch {
	case !canBuy && !canSell:
		return "", false
	case !canSell:
		return domain.ActionBuy, true
	case !canBuy:
		return domain.ActionSell, true
	}
	if r.Float64() < buyProbability {
		return domain.ActionBuy, true
	}
	return domain.ActionSell, true
}

// BuyAmount picks a uniform fraction in [fracMin, fracMax] of the available
// funding balance, capped so the wallet always retains feeReserve for fees.
// ok=false means no affordable buy exists.
func BuyAmount(r *rand.Rand, available, feeReserve uint64, fracMin, fracMax float64) (uint64, bool) {
	if available <= feeReserve {
		return 0, false
	}

	frac := fracMin + r.Float64()*(fracMax-fracMin)
	amount := uint64(frac * float64(available))

	if max := available - feeReserve; amount > max {
		amount = max
	}
	if amount == 0 {
		return 0, false
	}
	return amount, true
}

// SellAmount is the wallet's entire traded-token balance: exposure is fully
// rotated out before the next buy.
func SellAmount(tokenBalance uint64) uint64 {
	return tokenBalance
}

// Delay picks a uniform duration in [min, max]. Applied after every cycle,
// failed or not, so failures leave no fast-retry signature.
func Delay(r *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(r.Int63n(int64(max-min)+1))
}
