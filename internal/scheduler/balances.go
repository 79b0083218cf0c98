package scheduler

import (
	"context"

	solanago "github.com/gagliardetto/solana-go"

	"solana-market-maker/internal/solana"
)

// Balances reads wallet balances from chain. The funding side is held as a
// wrapped-SOL token account, so both sides go through token accounts; a
// missing account reads as zero.
type Balances struct {
	Client      solana.Client
	FundingMint solanago.PublicKey
	TradedMint  solanago.PublicKey
}

var _ BalanceSource = (*Balances)(nil)

func (b *Balances) FundingBalance(ctx context.Context, owner solanago.PublicKey) (uint64, error) {
	return solana.TokenBalanceForOwner(ctx, b.Client, owner, b.FundingMint)
}

func (b *Balances) TokenBalance(ctx context.Context, owner solanago.PublicKey) (uint64, error) {
	return solana.TokenBalanceForOwner(ctx, b.Client, owner, b.TradedMint)
}
