// Package executor turns a trade decision into a signed, submitted, confirmed
// swap transaction. It never retries; retry policy belongs to the scheduler.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"

	"solana-market-maker/internal/accountcache"
	"solana-market-maker/internal/blockhash"
	"solana-market-maker/internal/domain"
	"solana-market-maker/internal/solana"
	"solana-market-maker/internal/wallet"
)

// Typed failures surfaced to the scheduler.
var (
	// ErrStaleBlockhash means the cached blockhash aged past the hard
	// ceiling; the transaction was never built.
	ErrStaleBlockhash = errors.New("stale blockhash, refusing to build transaction")
	// ErrSubmitFailed means the ledger rejected the submission.
	ErrSubmitFailed = errors.New("transaction submit failed")
	// ErrConfirmationTimeout means the transaction was submitted but not
	// confirmed within the configured window.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

// InstructionBuilder builds the pool swap instruction. Implemented by the
// CPMM builder; kept as an interface so the executor stays pool-agnostic.
type InstructionBuilder interface {
	Swap(owner, inputMint, outputMint solanago.PublicKey, amountIn, minAmountOut uint64) (solanago.Instruction, error)
}

// BlockhashSource yields the current replay-protection blockhash, failing
// closed when it is too stale to use.
type BlockhashSource interface {
	Current() (solanago.Hash, error)
}

// Confirmer is an optional push-based confirmation channel. On any error the
// executor falls back to polling.
type Confirmer interface {
	WaitForSignature(ctx context.Context, sig solanago.Signature) error
}

// Default configuration values.
const (
	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = 400 * time.Millisecond
)

// Config fixes the pool/token identifiers and confirmation behavior.
type Config struct {
	FundingMint    solanago.PublicKey // consumed on Buy, received on Sell
	TradedMint     solanago.PublicKey // received on Buy, consumed on Sell
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Executor builds, signs, submits and confirms swap transactions.
type Executor struct {
	client    solana.Client
	blockhash BlockhashSource
	accounts  *accountcache.Cache
	builder   InstructionBuilder
	confirmer Confirmer // may be nil
	cfg       Config
	logger    *log.Logger
}

// New creates an Executor. confirmer and logger may be nil.
func New(client solana.Client, bh BlockhashSource, accounts *accountcache.Cache, builder InstructionBuilder, confirmer Confirmer, cfg Config, logger *log.Logger) *Executor {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[executor] ", log.LstdFlags)
	}
	return &Executor{
		client:    client,
		blockhash: bh,
		accounts:  accounts,
		builder:   builder,
		confirmer: confirmer,
		cfg:       cfg,
		logger:    logger,
	}
}

// Execute runs one trade decision on wallet h: ensures the receiving token
// account exists, builds and signs the swap, submits it and waits for
// confirmation. Returns the signature on success or a typed failure.
func (e *Executor) Execute(ctx context.Context, h *wallet.Handle, dec domain.TradeDecision) (solanago.Signature, error) {
	owner := h.PublicKey()

	var inputMint, outputMint solanago.PublicKey
	switch dec.Action {
	case domain.ActionBuy:
		inputMint, outputMint = e.cfg.FundingMint, e.cfg.TradedMint
	case domain.ActionSell:
		inputMint, outputMint = e.cfg.TradedMint, e.cfg.FundingMint
	default:
		return solanago.Signature{}, fmt.Errorf("unknown action %q", dec.Action)
	}

	var instructions []solanago.Instruction

	receiveATA, _, err := solanago.FindAssociatedTokenAddress(owner, outputMint)
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("derive receiving token account: %w", err)
	}

	createdATA := false
	if !e.accounts.Contains(receiveATA) {
		exists, err := e.accountExists(ctx, receiveATA)
		if err != nil {
			return solanago.Signature{}, fmt.Errorf("check receiving token account: %w", err)
		}
		if exists {
			e.accounts.Insert(receiveATA)
		} else {
			create := associatedtokenaccount.NewCreateInstruction(owner, owner, outputMint).Build()
			instructions = append(instructions, create)
			createdATA = true
		}
	}

	hash, err := e.blockhash.Current()
	if err != nil {
		if errors.Is(err, blockhash.ErrStale) {
			return solanago.Signature{}, fmt.Errorf("%w: %v", ErrStaleBlockhash, err)
		}
		return solanago.Signature{}, err
	}

	swap, err := e.builder.Swap(owner, inputMint, outputMint, dec.AmountIn, dec.MinAmountOut)
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("build swap instruction: %w", err)
	}
	instructions = append(instructions, swap)

	tx, err := solanago.NewTransaction(instructions, hash, solanago.TransactionPayer(owner))
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(pk solanago.PublicKey) *solanago.PrivateKey {
		if pk.Equals(owner) {
			key := h.PrivateKey()
			return &key
		}
		return nil
	}); err != nil {
		return solanago.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := e.client.SendTransaction(ctx, tx)
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	if err := e.confirm(ctx, sig); err != nil {
		return solanago.Signature{}, err
	}

	if createdATA {
		e.accounts.Insert(receiveATA)
	}
	return sig, nil
}

// accountExists checks on chain whether an account exists.
func (e *Executor) accountExists(ctx context.Context, account solanago.PublicKey) (bool, error) {
	_, err := e.client.AccountData(ctx, account)
	if errors.Is(err, solana.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// confirm waits for the signature to confirm, preferring the push channel
// and falling back to status polling.
func (e *Executor) confirm(ctx context.Context, sig solanago.Signature) error {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
	defer cancel()

	if e.confirmer != nil {
		err := e.confirmer.WaitForSignature(cctx, sig)
		if err == nil {
			return nil
		}
		if cctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
		}
		e.logger.Printf("ws confirmation failed for %s, falling back to polling: %v", sig, err)
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cctx.Done():
			return fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
		case <-ticker.C:
		}

		status, err := e.client.SignatureStatus(cctx, sig)
		if err != nil {
			continue
		}
		if status.Err != nil {
			return status.Err
		}
		if status.Confirmed {
			return nil
		}
	}
}
