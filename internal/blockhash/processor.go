// Package blockhash keeps a recent blockhash cached so transaction builders
// never pay a fetch round-trip on the hot path. A single background loop owns
// the write side; readers take lock-free snapshots.
package blockhash

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"solana-market-maker/internal/observability"
)

// ErrStale is returned when the cached blockhash has aged past the hard
// ceiling. Builders must fail closed rather than submit with it.
var ErrStale = errors.New("cached blockhash too old")

// Default configuration values.
const (
	DefaultRefreshInterval = 400 * time.Millisecond
	DefaultMaxBackoff      = 10 * time.Second
	DefaultStaleCeiling    = 30 * time.Second
)

// Fetcher fetches the latest blockhash from the ledger.
type Fetcher interface {
	LatestBlockhash(ctx context.Context) (solanago.Hash, error)
}

// Config tunes the processor.
type Config struct {
	// RefreshInterval is the cadence of background fetches while healthy.
	RefreshInterval time.Duration
	// MaxBackoff caps the exponential backoff applied after failed fetches.
	MaxBackoff time.Duration
	// StaleCeiling is the hard age limit past which reads refuse.
	StaleCeiling time.Duration
}

// DefaultConfig returns the default processor configuration.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: DefaultRefreshInterval,
		MaxBackoff:      DefaultMaxBackoff,
		StaleCeiling:    DefaultStaleCeiling,
	}
}

// snapshot is the single-slot cell shared between writer and readers.
type snapshot struct {
	hash      solanago.Hash
	fetchedAt time.Time
}

// Processor maintains the cached blockhash. Single writer (the refresh loop),
// many readers.
type Processor struct {
	fetcher Fetcher
	cfg     Config
	logger  *log.Logger
	now     func() time.Time

	current atomic.Pointer[snapshot]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Processor. logger may be nil.
func New(fetcher Fetcher, cfg Config, logger *log.Logger) *Processor {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.StaleCeiling <= 0 {
		cfg.StaleCeiling = DefaultStaleCeiling
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[blockhash] ", log.LstdFlags)
	}
	return &Processor{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Start performs the initial blocking fetch and launches the refresh loop.
// An initial fetch failure is fatal: nothing can be signed without at least
// one valid blockhash.
func (p *Processor) Start(ctx context.Context) error {
	if err := p.Refresh(ctx); err != nil {
		return fmt.Errorf("initial blockhash fetch: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(loopCtx)
	return nil
}

// Stop cancels the refresh loop and waits for the in-flight fetch to finish.
func (p *Processor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// run refreshes on a fixed cadence, backing off exponentially while the
// external service is failing and continuing to serve the last good value.
func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	delay := p.cfg.RefreshInterval

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if err := p.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			observability.RecordBlockhashFetchError()
			delay *= 2
			if delay > p.cfg.MaxBackoff {
				delay = p.cfg.MaxBackoff
			}
			p.logger.Printf("refresh failed (retrying in %s): %v", delay, err)
			continue
		}
		delay = p.cfg.RefreshInterval

		if _, age, ok := p.Snapshot(); ok {
			observability.UpdateBlockhashAge(age.Seconds())
		}
	}
}

// Refresh fetches synchronously and replaces the cached value on success.
func (p *Processor) Refresh(ctx context.Context) error {
	hash, err := p.fetcher.LatestBlockhash(ctx)
	if err != nil {
		return err
	}
	p.current.Store(&snapshot{hash: hash, fetchedAt: p.now()})
	return nil
}

// Snapshot returns the cached blockhash and its age without blocking.
// ok is false before the first successful fetch.
func (p *Processor) Snapshot() (hash solanago.Hash, age time.Duration, ok bool) {
	s := p.current.Load()
	if s == nil {
		return solanago.Hash{}, 0, false
	}
	return s.hash, p.now().Sub(s.fetchedAt), true
}

// Current returns the cached blockhash, or ErrStale once its age exceeds the
// hard ceiling.
func (p *Processor) Current() (solanago.Hash, error) {
	hash, age, ok := p.Snapshot()
	if !ok {
		return solanago.Hash{}, ErrStale
	}
	if age > p.cfg.StaleCeiling {
		return solanago.Hash{}, fmt.Errorf("%w: age %s exceeds ceiling %s", ErrStale, age.Round(time.Millisecond), p.cfg.StaleCeiling)
	}
	return hash, nil
}
