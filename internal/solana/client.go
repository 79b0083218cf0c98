// Package solana wraps the Solana JSON-RPC and WebSocket APIs behind small
// interfaces the rest of the system consumes, adding retry with exponential
// backoff on transient failures.
package solana

import (
	"context"
	"errors"

	solanago "github.com/gagliardetto/solana-go"
)

// ErrAccountNotFound is returned when a queried account does not exist on chain.
var ErrAccountNotFound = errors.New("account not found")

// TokenAccount is a parsed SPL token account owned by some wallet.
type TokenAccount struct {
	Pubkey solanago.PublicKey // token account address
	Mint   solanago.PublicKey
	Amount uint64 // raw amount in smallest units
}

// SignatureStatus is the confirmation state of a submitted transaction.
type SignatureStatus struct {
	Confirmed bool
	Err       error // on-chain execution error, nil if none
}

// Client is the RPC surface the scheduler, executor and cache layers consume.
type Client interface {
	LatestBlockhash(ctx context.Context) (solanago.Hash, error)
	Balance(ctx context.Context, pubkey solanago.PublicKey) (uint64, error)
	TokenAccountBalance(ctx context.Context, account solanago.PublicKey) (uint64, error)
	TokenAccountsByOwner(ctx context.Context, owner solanago.PublicKey) ([]TokenAccount, error)
	AccountData(ctx context.Context, pubkey solanago.PublicKey) ([]byte, error)
	SendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)
	SignatureStatus(ctx context.Context, sig solanago.Signature) (*SignatureStatus, error)
}

// TokenBalanceForOwner returns the owner's balance of mint via its associated
// token account. A missing account reads as a zero balance.
func TokenBalanceForOwner(ctx context.Context, c Client, owner, mint solanago.PublicKey) (uint64, error) {
	ata, _, err := solanago.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, err
	}
	amount, err := c.TokenAccountBalance(ctx, ata)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	return amount, err
}
