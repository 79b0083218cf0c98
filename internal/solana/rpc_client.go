package solana

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Default configuration values.
const (
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// RPCClient implements Client over the Solana HTTP JSON-RPC API.
type RPCClient struct {
	rpc         *rpc.Client
	commitment  rpc.CommitmentType
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures RPCClient.
type ClientOption func(*RPCClient)

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *RPCClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.maxDelay = d
	}
}

// WithCommitment sets the commitment level used for queries.
func WithCommitment(commitment rpc.CommitmentType) ClientOption {
	return func(c *RPCClient) {
		c.commitment = commitment
	}
}

// NewRPCClient creates a new Solana RPC client.
func NewRPCClient(endpoint string, opts ...ClientOption) *RPCClient {
	c := &RPCClient{
		rpc:         rpc.New(endpoint),
		commitment:  rpc.CommitmentConfirmed,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*RPCClient)(nil)

// withRetry runs fn with exponential backoff. Not-found and context errors
// are surfaced immediately; everything else is treated as transient.
func (c *RPCClient) withRetry(ctx context.Context, fn func() error) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrAccountNotFound) || ctx.Err() != nil {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// mapNotFound normalizes the various "account does not exist" shapes the RPC
// service produces into ErrAccountNotFound.
func mapNotFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return ErrAccountNotFound
	}
	if strings.Contains(err.Error(), "could not find account") {
		return ErrAccountNotFound
	}
	return err
}

// LatestBlockhash fetches the most recent blockhash.
func (c *RPCClient) LatestBlockhash(ctx context.Context) (solanago.Hash, error) {
	var out solanago.Hash
	err := c.withRetry(ctx, func() error {
		result, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
		if err != nil {
			return err
		}
		out = result.Value.Blockhash
		return nil
	})
	return out, err
}

// Balance returns the native lamport balance of pubkey.
func (c *RPCClient) Balance(ctx context.Context, pubkey solanago.PublicKey) (uint64, error) {
	var out uint64
	err := c.withRetry(ctx, func() error {
		result, err := c.rpc.GetBalance(ctx, pubkey, c.commitment)
		if err != nil {
			return err
		}
		out = result.Value
		return nil
	})
	return out, err
}

// TokenAccountBalance returns the raw amount held by a token account.
func (c *RPCClient) TokenAccountBalance(ctx context.Context, account solanago.PublicKey) (uint64, error) {
	var out uint64
	err := c.withRetry(ctx, func() error {
		result, err := c.rpc.GetTokenAccountBalance(ctx, account, c.commitment)
		if err != nil {
			return mapNotFound(err)
		}
		if result.Value == nil {
			return ErrAccountNotFound
		}
		amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
		if err != nil {
			return fmt.Errorf("parse token amount %q: %w", result.Value.Amount, err)
		}
		out = amount
		return nil
	})
	return out, err
}

// TokenAccountsByOwner lists all SPL token accounts owned by owner.
func (c *RPCClient) TokenAccountsByOwner(ctx context.Context, owner solanago.PublicKey) ([]TokenAccount, error) {
	var out []TokenAccount
	err := c.withRetry(ctx, func() error {
		tokenProgram := solanago.TokenProgramID
		result, err := c.rpc.GetTokenAccountsByOwner(ctx, owner,
			&rpc.GetTokenAccountsConfig{ProgramId: &tokenProgram},
			&rpc.GetTokenAccountsOpts{
				Commitment: c.commitment,
				Encoding:   solanago.EncodingBase64,
			},
		)
		if err != nil {
			return err
		}

		accounts := make([]TokenAccount, 0, len(result.Value))
		for _, item := range result.Value {
			parsed, err := ParseTokenAccount(item.Account.Data.GetBinary())
			if err != nil {
				continue // not a token account layout we understand
			}
			parsed.Pubkey = item.Pubkey
			accounts = append(accounts, parsed)
		}
		out = accounts
		return nil
	})
	return out, err
}

// AccountData fetches raw account data, or ErrAccountNotFound.
func (c *RPCClient) AccountData(ctx context.Context, pubkey solanago.PublicKey) ([]byte, error) {
	var out []byte
	err := c.withRetry(ctx, func() error {
		result, err := c.rpc.GetAccountInfo(ctx, pubkey)
		if err != nil {
			return mapNotFound(err)
		}
		if result.Value == nil {
			return ErrAccountNotFound
		}
		out = result.Value.Data.GetBinary()
		return nil
	})
	return out, err
}

// SendTransaction submits a signed transaction. Never retried: a resubmit of
// the same transaction could double-spend if the first submit landed.
func (c *RPCClient) SendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	return c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: c.commitment,
	})
}

// SignatureStatus returns the confirmation state of a submitted signature.
func (c *RPCClient) SignatureStatus(ctx context.Context, sig solanago.Signature) (*SignatureStatus, error) {
	var out *SignatureStatus
	err := c.withRetry(ctx, func() error {
		result, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			return err
		}
		status := &SignatureStatus{}
		if len(result.Value) > 0 && result.Value[0] != nil {
			v := result.Value[0]
			if v.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				v.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				status.Confirmed = true
			}
			if v.Err != nil {
				status.Err = fmt.Errorf("transaction failed: %v", v.Err)
			}
		}
		out = status
		return nil
	})
	return out, err
}

// SPL token account layout: mint(32) | owner(32) | amount(8 LE) | ...
const tokenAccountMinLen = 72

// ParseTokenAccount parses raw SPL token account data.
func ParseTokenAccount(data []byte) (TokenAccount, error) {
	if len(data) < tokenAccountMinLen {
		return TokenAccount{}, fmt.Errorf("token account data too short: %d", len(data))
	}
	return TokenAccount{
		Mint:   solanago.PublicKeyFromBytes(data[0:32]),
		Amount: binary.LittleEndian.Uint64(data[64:72]),
	}, nil
}
