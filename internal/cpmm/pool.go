// Package cpmm builds swap instructions for Raydium CPMM (constant product)
// pools and parses their on-chain pool state.
package cpmm

import (
	"context"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	"solana-market-maker/internal/solana"
)

// ProgramID is the Raydium CPMM (CP-Swap) program.
var ProgramID = solanago.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")

// authoritySeed derives the pool vault authority PDA.
const authoritySeed = "vault_and_lp_mint_auth_seed"

// PoolKeys holds every account needed to build a swap against one pool.
// Fixed at startup; never mutated.
type PoolKeys struct {
	Pool           solanago.PublicKey
	AmmConfig      solanago.PublicKey
	Authority      solanago.PublicKey
	Token0Vault    solanago.PublicKey
	Token1Vault    solanago.PublicKey
	Token0Mint     solanago.PublicKey
	Token1Mint     solanago.PublicKey
	Token0Program  solanago.PublicKey
	Token1Program  solanago.PublicKey
	ObservationKey solanago.PublicKey
}

// Pool state layout after the 8-byte anchor discriminator: ten consecutive
// pubkeys (amm_config, pool_creator, token_0_vault, token_1_vault, lp_mint,
// token_0_mint, token_1_mint, token_0_program, token_1_program,
// observation_key).
const poolStateMinLen = 8 + 10*32

// ParsePoolState parses a CPMM pool state account.
func ParsePoolState(pool solanago.PublicKey, data []byte) (*PoolKeys, error) {
	if len(data) < poolStateMinLen {
		return nil, fmt.Errorf("pool state data too short: %d", len(data))
	}

	pk := func(i int) solanago.PublicKey {
		off := 8 + i*32
		return solanago.PublicKeyFromBytes(data[off : off+32])
	}

	authority, _, err := solanago.FindProgramAddress(
		[][]byte{[]byte(authoritySeed)}, ProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive pool authority: %w", err)
	}

	return &PoolKeys{
		Pool:           pool,
		AmmConfig:      pk(0),
		Authority:      authority,
		Token0Vault:    pk(2),
		Token1Vault:    pk(3),
		Token0Mint:     pk(5),
		Token1Mint:     pk(6),
		Token0Program:  pk(7),
		Token1Program:  pk(8),
		ObservationKey: pk(9),
	}, nil
}

// LoadPoolKeys fetches and parses the pool state account. A missing or
// malformed account is a configuration error surfaced before trading starts.
func LoadPoolKeys(ctx context.Context, client solana.Client, pool solanago.PublicKey) (*PoolKeys, error) {
	data, err := client.AccountData(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("fetch pool state %s: %w", pool, err)
	}
	keys, err := ParsePoolState(pool, data)
	if err != nil {
		return nil, fmt.Errorf("parse pool state %s: %w", pool, err)
	}
	return keys, nil
}

// HasMint reports whether mint is one side of the pool.
func (k *PoolKeys) HasMint(mint solanago.PublicKey) bool {
	return mint.Equals(k.Token0Mint) || mint.Equals(k.Token1Mint)
}
