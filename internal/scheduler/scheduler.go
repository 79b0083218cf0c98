// Package scheduler runs the trade loop: rotate wallets, draw an action and
// amount, execute one swap, record the outcome, sleep a randomized interval.
// No element of the schedule is deterministic except the rotation order.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"solana-market-maker/internal/domain"
	"solana-market-maker/internal/notify"
	"solana-market-maker/internal/observability"
	"solana-market-maker/internal/storage"
	"solana-market-maker/internal/wallet"

	solanago "github.com/gagliardetto/solana-go"
)

// TradeExecutor runs one trade decision to completion. Implemented by the
// executor package.
type TradeExecutor interface {
	Execute(ctx context.Context, h *wallet.Handle, dec domain.TradeDecision) (solanago.Signature, error)
}

// BalanceSource reports a wallet's spendable funding-token balance and its
// traded-token balance.
type BalanceSource interface {
	FundingBalance(ctx context.Context, owner solanago.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, owner solanago.PublicKey) (uint64, error)
}

// Config is the scheduling policy. Zero values are rejected by Validate;
// start from StealthDefaults and override.
type Config struct {
	BuyProbability float64 // chance an unconstrained draw is a buy

	BuyFractionMin float64 // lower bound of the spent fraction of funding balance
	BuyFractionMax float64 // upper bound
	FeeReserve     uint64  // funding units always held back for network fees

	RotationGranularity int // trades per wallet before advancing

	DelayMin time.Duration // inter-trade delay band
	DelayMax time.Duration

	ReportInterval time.Duration // 0 disables periodic reports

	FailureThreshold int           // consecutive failures before a wallet cools
	CooldownBase     time.Duration // first cooldown, doubled on repeat
	BrokeBackoff     time.Duration // sleep when no wallet can afford a trade
}

// StealthDefaults is the production trading profile.
func StealthDefaults() Config {
	return Config{
		BuyProbability:      0.70,
		BuyFractionMin:      0.50,
		BuyFractionMax:      0.90,
		FeeReserve:          10_000_000, // 0.01 SOL in lamport-denominated WSOL
		RotationGranularity: 2,
		DelayMin:            10 * time.Minute,
		DelayMax:            2 * time.Hour,
		ReportInterval:      30 * time.Minute,
		FailureThreshold:    3,
		CooldownBase:        30 * time.Minute,
		BrokeBackoff:        15 * time.Minute,
	}
}

func (c Config) Validate() error {
	if c.BuyProbability < 0 || c.BuyProbability > 1 {
		return fmt.Errorf("buy probability %v outside [0,1]", c.BuyProbability)
	}
	if c.BuyFractionMin <= 0 || c.BuyFractionMax > 1 || c.BuyFractionMin > c.BuyFractionMax {
		return fmt.Errorf("buy fraction band [%v,%v] invalid", c.BuyFractionMin, c.BuyFractionMax)
	}
	if c.RotationGranularity < 1 {
		return fmt.Errorf("rotation granularity %d must be at least 1", c.RotationGranularity)
	}
	if c.DelayMin <= 0 || c.DelayMax < c.DelayMin {
		return fmt.Errorf("delay band [%v,%v] invalid", c.DelayMin, c.DelayMax)
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold %d must be at least 1", c.FailureThreshold)
	}
	if c.CooldownBase <= 0 || c.BrokeBackoff <= 0 {
		return errors.New("cooldown base and broke backoff must be positive")
	}
	return nil
}

// Options wires a MarketMaker together. Pool, Executor and Balances are
// required; the rest default sensibly.
type Options struct {
	Config   Config
	Pool     *wallet.Pool
	Executor TradeExecutor
	Balances BalanceSource
	Journal  storage.TradeJournal // nil disables journaling
	Notifier notify.Notifier
	Rand     *rand.Rand
	Logger   *log.Logger
}

// MarketMaker owns the trade loop. Not safe for concurrent Run calls.
type MarketMaker struct {
	cfg      Config
	pool     *wallet.Pool
	exec     TradeExecutor
	balances BalanceSource
	journal  storage.TradeJournal
	notifier notify.Notifier
	ledger   *Ledger
	rng      *rand.Rand
	logger   *log.Logger
	now      func() time.Time
}

func New(opts Options) (*MarketMaker, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Pool == nil || opts.Executor == nil || opts.Balances == nil {
		return nil, errors.New("pool, executor and balances are required")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[scheduler] ", log.LstdFlags)
	}

	now := time.Now
	return &MarketMaker{
		cfg:      opts.Config,
		pool:     opts.Pool,
		exec:     opts.Executor,
		balances: opts.Balances,
		journal:  opts.Journal,
		notifier: opts.Notifier,
		ledger:   NewLedger(now()),
		rng:      opts.Rand,
		logger:   opts.Logger,
		now:      now,
	}, nil
}

// selection is one affordable wallet with its balances at selection time.
type selection struct {
	handle  *wallet.Handle
	funding uint64
	token   uint64
	canBuy  bool
	canSell bool
}

// Run executes trade cycles until ctx is cancelled. Returns nil on clean
// shutdown; any other return is fatal.
func (m *MarketMaker) Run(ctx context.Context) error {
	m.logger.Printf("starting: %d wallets, %d trades per rotation, buy probability %.2f, delay %s..%s",
		m.pool.Len(), m.cfg.RotationGranularity, m.cfg.BuyProbability, m.cfg.DelayMin, m.cfg.DelayMax)

	if m.cfg.ReportInterval > 0 {
		go m.reportLoop(ctx)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		sel := m.selectWallet(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if sel == nil {
			m.logger.Printf("no wallet can afford a trade, backing off %s", m.cfg.BrokeBackoff)
			m.dispatchNotification("warning: no wallet can afford a trade, backing off")
			if !m.sleep(ctx, m.cfg.BrokeBackoff) {
				return nil
			}
			continue
		}

		m.runCycle(ctx, sel)
		if ctx.Err() != nil {
			return nil
		}

		delay := Delay(m.rng, m.cfg.DelayMin, m.cfg.DelayMax)
		m.logger.Printf("next trade in %s", delay.Round(time.Second))
		if !m.sleep(ctx, delay) {
			return nil
		}
	}
}

// selectWallet walks the rotation order for the first wallet that is not
// cooling and can afford at least one side of a trade. Skipped wallets are
// advanced past, preserving the monotonic rotation order. Returns nil when a
// full pass finds nothing.
func (m *MarketMaker) selectWallet(ctx context.Context) *selection {
	cooling := 0
	for i := 0; i < m.pool.Len(); i++ {
		if ctx.Err() != nil {
			return nil
		}

		h := m.pool.Current()
		if h.State(m.now()) == wallet.StateCooling {
			cooling++
			m.pool.Advance()
			continue
		}

		funding, err := m.balances.FundingBalance(ctx, h.PublicKey())
		if err != nil {
			m.logger.Printf("funding balance for %s: %v, skipping", h.PublicKey(), err)
			m.pool.Advance()
			continue
		}
		token, err := m.balances.TokenBalance(ctx, h.PublicKey())
		if err != nil {
			m.logger.Printf("token balance for %s: %v, skipping", h.PublicKey(), err)
			m.pool.Advance()
			continue
		}

		canBuy := funding > m.cfg.FeeReserve
		canSell := token > 0
		if !canBuy && !canSell {
			m.pool.Advance()
			continue
		}

		observability.UpdateWalletsCooling(cooling)
		return &selection{handle: h, funding: funding, token: token, canBuy: canBuy, canSell: canSell}
	}
	observability.UpdateWalletsCooling(cooling)
	return nil
}

// runCycle executes one trade for the selected wallet and records the outcome.
// Failures are recorded and the loop continues; nothing here is fatal.
func (m *MarketMaker) runCycle(ctx context.Context, sel *selection) {
	action, ok := ChooseAction(m.rng, m.cfg.BuyProbability, sel.canBuy, sel.canSell)
	if !ok {
		return
	}

	var amount uint64
	switch action {
	case domain.ActionBuy:
		amount, ok = BuyAmount(m.rng, sel.funding, m.cfg.FeeReserve, m.cfg.BuyFractionMin, m.cfg.BuyFractionMax)
		if !ok {
			return
		}
	case domain.ActionSell:
		amount = SellAmount(sel.token)
	}

	dec := domain.TradeDecision{
		Wallet:       sel.handle.PublicKey().String(),
		Action:       action,
		AmountIn:     amount,
		MinAmountOut: 0,
	}

	start := m.now()
	sig, err := m.exec.Execute(ctx, sel.handle, dec)
	elapsed := m.now().Sub(start)

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Printf("trade failed wallet=%s action=%s amount=%d: %v", dec.Wallet, dec.Action, dec.AmountIn, err)
		m.ledger.RecordFailure()
		if sel.handle.RecordFailure(m.now(), m.cfg.FailureThreshold, m.cfg.CooldownBase) {
			m.logger.Printf("wallet %s entering cooldown after repeated failures", dec.Wallet)
		}
	} else {
		m.logger.Printf("trade confirmed wallet=%s action=%s amount=%d sig=%s", dec.Wallet, dec.Action, dec.AmountIn, sig)
		m.ledger.RecordTrade(action, amount)
		sel.handle.RecordSuccess(action == domain.ActionBuy, amount)
	}
	observability.RecordTrade(string(action), err == nil, amount, elapsed.Seconds())

	m.journalTrade(ctx, dec, sig, start, err)

	before := m.pool.Rotations()
	m.pool.CompleteTrade(sel.handle)
	if after := m.pool.Rotations(); after > before {
		observability.RecordRotation()
		m.ledger.SetRotations(after)
	}
}

// journalTrade persists the outcome. Journal errors are logged, never fatal.
func (m *MarketMaker) journalTrade(ctx context.Context, dec domain.TradeDecision, sig solanago.Signature, executedAt time.Time, tradeErr error) {
	if m.journal == nil {
		return
	}

	record := &domain.TradeRecord{
		Wallet:     dec.Wallet,
		Action:     dec.Action,
		AmountIn:   dec.AmountIn,
		Succeeded:  tradeErr == nil,
		ExecutedAt: executedAt.UnixMilli(),
	}
	if tradeErr != nil {
		text := tradeErr.Error()
		record.ErrorText = &text
	} else {
		record.Signature = sig.String()
	}

	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := m.journal.Insert(jctx, record); err != nil {
		m.logger.Printf("journal insert failed: %v", err)
		observability.RecordJournalError()
	}
}

// reportLoop emits a periodic activity summary via the notifier. Delivery is
// best effort and never blocks the trade loop.
func (m *MarketMaker) reportLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		report := m.ledger.Snapshot(m.now())
		m.logger.Printf("activity report: %s", report)
		m.dispatchNotification(report.String())
	}
}

// dispatchNotification sends one message in a detached goroutine so a slow
// notifier cannot stall scheduling.
func (m *MarketMaker) dispatchNotification(text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.notifier.Notify(ctx, text); err != nil {
			m.logger.Printf("notification failed: %v", err)
			return
		}
		observability.RecordReportSent()
	}()
}

// sleep waits for d or until ctx is cancelled. Returns false on cancellation.
func (m *MarketMaker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
