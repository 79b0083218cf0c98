// Package main runs the market-making scheduler: many wallets trading one
// Raydium CPMM pool on a randomized buy/sell schedule, with a cached
// blockhash, a token-account existence cache and an optional trade journal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"

	"solana-market-maker/internal/accountcache"
	"solana-market-maker/internal/blockhash"
	"solana-market-maker/internal/cpmm"
	"solana-market-maker/internal/executor"
	"solana-market-maker/internal/notify"
	"solana-market-maker/internal/observability"
	"solana-market-maker/internal/scheduler"
	"solana-market-maker/internal/solana"
	"solana-market-maker/internal/storage"
	"solana-market-maker/internal/storage/memory"
	"solana-market-maker/internal/storage/migrations"
	pgstore "solana-market-maker/internal/storage/postgres"
	"solana-market-maker/internal/wallet"
)

func main() {
	// .env is optional; system env and flags take precedence.
	_ = godotenv.Load()

	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (optional, enables push confirmations)")
	walletDir := flag.String("wallet-dir", envOr("WALLET_DIR", "./wallet"), "Directory of base58 wallet key files")
	poolAddr := flag.String("pool", os.Getenv("CPMM_POOL"), "Raydium CPMM pool state address")
	tokenMint := flag.String("token-mint", os.Getenv("TOKEN_MINT"), "Traded token mint (default: the non-WSOL side of the pool)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL DSN for the trade journal (optional, in-memory if unset)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	telegramToken := flag.String("telegram-token", os.Getenv("TELEGRAM_BOT_TOKEN"), "Telegram bot token for reports (optional)")
	telegramChat := flag.String("telegram-chat", os.Getenv("TELEGRAM_CHAT_ID"), "Telegram chat id for reports")

	defaults := scheduler.StealthDefaults()
	buyProbability := flag.Float64("buy-probability", defaults.BuyProbability, "Probability an unconstrained trade is a buy")
	buyFractionMin := flag.Float64("buy-fraction-min", defaults.BuyFractionMin, "Minimum fraction of funding balance spent per buy")
	buyFractionMax := flag.Float64("buy-fraction-max", defaults.BuyFractionMax, "Maximum fraction of funding balance spent per buy")
	feeReserve := flag.Uint64("fee-reserve", defaults.FeeReserve, "Funding units held back for network fees")
	rotationGranularity := flag.Int("rotation-granularity", defaults.RotationGranularity, "Trades per wallet before rotating")
	activeWallets := flag.Int("active-wallets", 0, "Wallets in rotation, 0 for all loaded")
	delayMin := flag.Duration("delay-min", defaults.DelayMin, "Minimum inter-trade delay")
	delayMax := flag.Duration("delay-max", defaults.DelayMax, "Maximum inter-trade delay")
	reportInterval := flag.Duration("report-interval", defaults.ReportInterval, "Activity report interval, 0 disables")
	cacheTTL := flag.Duration("account-cache-ttl", accountcache.DefaultTTL, "Token-account existence cache TTL")

	flag.Parse()

	logger := log.New(os.Stdout, "[marketmaker] ", log.LstdFlags)

	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *poolAddr == "" {
		logger.Fatal("--pool is required")
	}
	pool, err := solanago.PublicKeyFromBase58(*poolAddr)
	if err != nil {
		logger.Fatalf("invalid --pool %q: %v", *poolAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down", sig)
		cancel()
	}()

	var notifier notify.Notifier = notify.Nop{}
	if *telegramToken != "" && *telegramChat != "" {
		notifier = notify.NewTelegram(*telegramToken, *telegramChat, logger)
	}

	if err := run(ctx, runConfig{
		rpcEndpoint:   *rpcEndpoint,
		wsEndpoint:    *wsEndpoint,
		walletDir:     *walletDir,
		pool:          pool,
		tokenMint:     *tokenMint,
		postgresDSN:   *postgresDSN,
		metricsAddr:   *metricsAddr,
		cacheTTL:      *cacheTTL,
		activeWallets: *activeWallets,
		scheduling: scheduler.Config{
			BuyProbability:      *buyProbability,
			BuyFractionMin:      *buyFractionMin,
			BuyFractionMax:      *buyFractionMax,
			FeeReserve:          *feeReserve,
			RotationGranularity: *rotationGranularity,
			DelayMin:            *delayMin,
			DelayMax:            *delayMax,
			ReportInterval:      *reportInterval,
			FailureThreshold:    defaults.FailureThreshold,
			CooldownBase:        defaults.CooldownBase,
			BrokeBackoff:        defaults.BrokeBackoff,
		},
		notifier: notifier,
		logger:   logger,
	}); err != nil && !errors.Is(err, context.Canceled) {
		notifyFatal(notifier, logger, err)
		logger.Fatalf("fatal: %v", err)
	}

	logger.Println("shutdown complete")
}

type runConfig struct {
	rpcEndpoint   string
	wsEndpoint    string
	walletDir     string
	pool          solanago.PublicKey
	tokenMint     string
	postgresDSN   string
	metricsAddr   string
	cacheTTL      time.Duration
	activeWallets int
	scheduling    scheduler.Config
	notifier      notify.Notifier
	logger        *log.Logger
}

func run(ctx context.Context, cfg runConfig) error {
	logger := cfg.logger

	handles, err := wallet.LoadDir(cfg.walletDir)
	if err != nil {
		return fmt.Errorf("load wallets from %s: %w", cfg.walletDir, err)
	}
	if len(handles) == 0 {
		return fmt.Errorf("no usable wallet keys in %s", cfg.walletDir)
	}
	logger.Printf("loaded %d wallets from %s", len(handles), cfg.walletDir)

	client := solana.NewRPCClient(cfg.rpcEndpoint)

	keys, err := cpmm.LoadPoolKeys(ctx, client, cfg.pool)
	if err != nil {
		return err
	}
	fundingMint := solanago.WrappedSol
	tradedMint, err := resolveTradedMint(keys, cfg.tokenMint)
	if err != nil {
		return err
	}
	if !keys.HasMint(fundingMint) {
		return fmt.Errorf("pool %s has no WSOL side", cfg.pool)
	}
	logger.Printf("trading pool %s, token mint %s", cfg.pool, tradedMint)

	journal, cleanup, err := openJournal(ctx, cfg.postgresDSN, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	processor := blockhash.New(client, blockhash.DefaultConfig(), nil)
	if err := processor.Start(ctx); err != nil {
		return err
	}
	defer processor.Stop()

	accounts := accountcache.New(cfg.cacheTTL)
	primeAccountCache(ctx, client, handles, accounts, logger)
	go accounts.RunMaintenance(ctx, time.Minute, logger)

	var confirmer executor.Confirmer
	if cfg.wsEndpoint != "" {
		ws, err := solana.NewWSConfirmer(ctx, cfg.wsEndpoint, nil)
		if err != nil {
			logger.Printf("websocket confirmer unavailable, polling only: %v", err)
		} else {
			defer ws.Close()
			confirmer = ws
		}
	}

	exec := executor.New(client, processor, accounts, cpmm.NewBuilder(keys), confirmer, executor.Config{
		FundingMint: fundingMint,
		TradedMint:  tradedMint,
	}, nil)

	walletPool, err := wallet.NewPool(handles, cfg.scheduling.RotationGranularity, cfg.activeWallets)
	if err != nil {
		return err
	}

	maker, err := scheduler.New(scheduler.Options{
		Config:   cfg.scheduling,
		Pool:     walletPool,
		Executor: exec,
		Balances: &scheduler.Balances{Client: client, FundingMint: fundingMint, TradedMint: tradedMint},
		Journal:  journal,
		Notifier: cfg.notifier,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	go serveMetrics(cfg.metricsAddr, logger)

	return maker.Run(ctx)
}

// resolveTradedMint picks the traded side of the pool: the explicit flag when
// given, otherwise the non-WSOL mint.
func resolveTradedMint(keys *cpmm.PoolKeys, flagValue string) (solanago.PublicKey, error) {
	if flagValue != "" {
		mint, err := solanago.PublicKeyFromBase58(flagValue)
		if err != nil {
			return solanago.PublicKey{}, fmt.Errorf("invalid --token-mint %q: %v", flagValue, err)
		}
		if !keys.HasMint(mint) {
			return solanago.PublicKey{}, fmt.Errorf("mint %s is not a side of pool %s", mint, keys.Pool)
		}
		return mint, nil
	}
	if keys.Token0Mint.Equals(solanago.WrappedSol) {
		return keys.Token1Mint, nil
	}
	if keys.Token1Mint.Equals(solanago.WrappedSol) {
		return keys.Token0Mint, nil
	}
	return solanago.PublicKey{}, fmt.Errorf("pool %s has no WSOL side, --token-mint required", keys.Pool)
}

// openJournal connects the postgres journal, running migrations, or falls
// back to in-memory when no DSN is configured.
func openJournal(ctx context.Context, dsn string, logger *log.Logger) (storage.TradeJournal, func(), error) {
	if dsn == "" {
		logger.Println("no postgres DSN, journaling trades in memory")
		return memory.NewTradeJournal(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return pgstore.NewTradeJournal(pool), pool.Close, nil
}

// primeAccountCache seeds the existence cache with every token account the
// wallets already hold, so the first trades skip the per-account lookups.
func primeAccountCache(ctx context.Context, client solana.Client, handles []*wallet.Handle, cache *accountcache.Cache, logger *log.Logger) {
	primed := 0
	for _, h := range handles {
		accounts, err := client.TokenAccountsByOwner(ctx, h.PublicKey())
		if err != nil {
			logger.Printf("prime cache for %s: %v", h.PublicKey(), err)
			continue
		}
		for _, acc := range accounts {
			cache.Insert(acc.Pubkey)
			primed++
		}
	}
	logger.Printf("primed account cache with %d token accounts", primed)
}

func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	logger.Printf("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("metrics server error: %v", err)
	}
}

func notifyFatal(notifier notify.Notifier, logger *log.Logger, fatal error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := notifier.Notify(ctx, "market maker stopped: "+fatal.Error()); err != nil {
		logger.Printf("fatal notification failed: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
