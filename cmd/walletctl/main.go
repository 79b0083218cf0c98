// Package main manages the trading wallet fleet: generating keys, funding
// wallets from a treasury, wrapping SOL into WSOL and collecting everything
// back. All subcommands except generate need PRIVATE_KEY (base58) for the
// treasury wallet and an RPC endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/joho/godotenv"

	"solana-market-maker/internal/solana"
	"solana-market-maker/internal/wallet"
)

const (
	// treasuryReserve is kept in the treasury for distribution fees.
	treasuryReserve = 100_000_000 // 0.1 SOL
	// rentReserve is left behind on collect so the account stays rent-exempt.
	rentReserve = 5_000
	// defaultWrapFraction of a wallet's SOL is wrapped into WSOL.
	defaultWrapFraction = 0.75
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger := log.New(os.Stdout, "[walletctl] ", log.LstdFlags)
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "generate":
		err = cmdGenerate(args, logger)
	case "distribute":
		err = cmdDistribute(args, logger)
	case "wrap":
		err = cmdWrap(args, logger)
	case "unwrap":
		err = cmdUnwrap(args, logger)
	case "collect":
		err = cmdCollect(args, logger)
	case "close":
		err = cmdClose(args, logger)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatalf("%s: %v", cmd, err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: walletctl <command> [flags]

commands:
  generate    create new wallet key files
  distribute  fund every wallet from the treasury and wrap a fraction to WSOL
  wrap        wrap a fraction of each wallet's SOL into WSOL
  unwrap      close every wallet's WSOL account back to SOL
  collect     close token accounts and return all SOL to the treasury
  close       close every wallet's token accounts to recover rent`)
}

func cmdGenerate(args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	walletDir := fs.String("wallet-dir", envOr("WALLET_DIR", "./wallet"), "Directory for wallet key files")
	count := fs.Int("count", 100, "Number of wallets to generate")
	fs.Parse(args)

	pubs, err := wallet.Generate(*walletDir, *count)
	if err != nil {
		return err
	}
	logger.Printf("generated %d wallets in %s", len(pubs), *walletDir)
	return nil
}

func cmdDistribute(args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("distribute", flag.ExitOnError)
	walletDir := fs.String("wallet-dir", envOr("WALLET_DIR", "./wallet"), "Directory of wallet key files")
	rpcEndpoint := fs.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wrapFraction := fs.Float64("wrap-fraction", defaultWrapFraction, "Fraction of each share wrapped into WSOL")
	fs.Parse(args)

	ctx, client, treasury, handles, err := setup(*rpcEndpoint, *walletDir)
	if err != nil {
		return err
	}

	balance, err := client.Balance(ctx, treasury.PublicKey())
	if err != nil {
		return fmt.Errorf("treasury balance: %w", err)
	}
	if balance <= treasuryReserve {
		return fmt.Errorf("treasury holds %d lamports, nothing to distribute", balance)
	}
	share := (balance - treasuryReserve) / uint64(len(handles))
	logger.Printf("distributing %d lamports to each of %d wallets", share, len(handles))

	for _, h := range handles {
		transfer := system.NewTransferInstruction(share, treasury.PublicKey(), h.PublicKey()).Build()
		sig, err := sendAndConfirm(ctx, client, []solanago.Instruction{transfer}, treasury, treasury)
		if err != nil {
			logger.Printf("fund %s failed: %v", h.PublicKey(), err)
			continue
		}
		logger.Printf("funded %s: %s", h.PublicKey(), sig)

		wrapAmount := uint64(*wrapFraction * float64(share))
		if err := wrapSOL(ctx, client, h.PrivateKey(), wrapAmount, true); err != nil {
			logger.Printf("wrap for %s failed: %v", h.PublicKey(), err)
		}
	}
	return nil
}

func cmdWrap(args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("wrap", flag.ExitOnError)
	walletDir := fs.String("wallet-dir", envOr("WALLET_DIR", "./wallet"), "Directory of wallet key files")
	rpcEndpoint := fs.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wrapFraction := fs.Float64("wrap-fraction", defaultWrapFraction, "Fraction of each wallet's SOL to wrap")
	fs.Parse(args)

	ctx := context.Background()
	client := solana.NewRPCClient(*rpcEndpoint)
	handles, err := loadHandles(*walletDir)
	if err != nil {
		return err
	}

	for _, h := range handles {
		balance, err := client.Balance(ctx, h.PublicKey())
		if err != nil {
			logger.Printf("balance for %s: %v", h.PublicKey(), err)
			continue
		}
		if balance <= rentReserve {
			continue
		}
		amount := uint64(*wrapFraction * float64(balance))
		if err := wrapSOL(ctx, client, h.PrivateKey(), amount, true); err != nil {
			logger.Printf("wrap for %s failed: %v", h.PublicKey(), err)
			continue
		}
		logger.Printf("wrapped %d lamports for %s", amount, h.PublicKey())
	}
	return nil
}

func cmdUnwrap(args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("unwrap", flag.ExitOnError)
	walletDir := fs.String("wallet-dir", envOr("WALLET_DIR", "./wallet"), "Directory of wallet key files")
	rpcEndpoint := fs.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	fs.Parse(args)

	ctx := context.Background()
	client := solana.NewRPCClient(*rpcEndpoint)
	handles, err := loadHandles(*walletDir)
	if err != nil {
		return err
	}

	for _, h := range handles {
		sig, err := closeWSOL(ctx, client, h.PrivateKey(), h.PublicKey())
		if err != nil {
			logger.Printf("unwrap for %s failed: %v", h.PublicKey(), err)
			continue
		}
		logger.Printf("unwrapped %s: %s", h.PublicKey(), sig)
	}
	return nil
}

func cmdCollect(args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	walletDir := fs.String("wallet-dir", envOr("WALLET_DIR", "./wallet"), "Directory of wallet key files")
	rpcEndpoint := fs.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	fs.Parse(args)

	ctx, client, treasury, handles, err := setup(*rpcEndpoint, *walletDir)
	if err != nil {
		return err
	}

	for _, h := range handles {
		// WSOL lamports land back on the wallet when the account closes.
		if _, err := closeWSOL(ctx, client, h.PrivateKey(), h.PublicKey()); err != nil {
			logger.Printf("close WSOL for %s: %v", h.PublicKey(), err)
		}
		// Remaining token accounts only hold rent worth recovering.
		if _, failed, err := closeTokenAccounts(ctx, client, h.PrivateKey(), logger); err != nil {
			logger.Printf("close token accounts for %s: %d failed: %v", h.PublicKey(), failed, err)
		}

		balance, err := client.Balance(ctx, h.PublicKey())
		if err != nil {
			logger.Printf("balance for %s: %v", h.PublicKey(), err)
			continue
		}
		if balance <= rentReserve {
			continue
		}
		transfer := system.NewTransferInstruction(balance-rentReserve, h.PublicKey(), treasury.PublicKey()).Build()
		key := h.PrivateKey()
		sig, err := sendAndConfirm(ctx, client, []solanago.Instruction{transfer}, payer{h.PublicKey(), key}, payer{h.PublicKey(), key})
		if err != nil {
			logger.Printf("collect from %s failed: %v", h.PublicKey(), err)
			continue
		}
		logger.Printf("collected %d lamports from %s: %s", balance-rentReserve, h.PublicKey(), sig)
	}
	return nil
}

func cmdClose(args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("close", flag.ExitOnError)
	walletDir := fs.String("wallet-dir", envOr("WALLET_DIR", "./wallet"), "Directory of wallet key files")
	rpcEndpoint := fs.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	fs.Parse(args)

	ctx := context.Background()
	client := solana.NewRPCClient(*rpcEndpoint)
	handles, err := loadHandles(*walletDir)
	if err != nil {
		return err
	}

	totalClosed, totalFailed := 0, 0
	for _, h := range handles {
		closed, failed, err := closeTokenAccounts(ctx, client, h.PrivateKey(), logger)
		if err != nil {
			logger.Printf("close for %s: %v", h.PublicKey(), err)
		}
		totalClosed += closed
		totalFailed += failed
	}
	logger.Printf("closed %d token accounts, %d failed", totalClosed, totalFailed)
	if totalFailed > 0 {
		return fmt.Errorf("failed to close %d token accounts", totalFailed)
	}
	return nil
}

// signer pairs a pubkey with its private key for transaction signing.
type signer interface {
	PublicKey() solanago.PublicKey
	PrivateKey() solanago.PrivateKey
}

type payer struct {
	pub solanago.PublicKey
	key solanago.PrivateKey
}

func (p payer) PublicKey() solanago.PublicKey   { return p.pub }
func (p payer) PrivateKey() solanago.PrivateKey { return p.key }

func setup(rpcEndpoint, walletDir string) (context.Context, *solana.RPCClient, signer, []*wallet.Handle, error) {
	if rpcEndpoint == "" {
		return nil, nil, nil, nil, fmt.Errorf("--rpc-endpoint is required")
	}
	encoded := os.Getenv("PRIVATE_KEY")
	if encoded == "" {
		return nil, nil, nil, nil, fmt.Errorf("PRIVATE_KEY environment variable is required")
	}
	key, err := solanago.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("invalid PRIVATE_KEY: %v", err)
	}
	handles, err := loadHandles(walletDir)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return context.Background(), solana.NewRPCClient(rpcEndpoint), payer{key.PublicKey(), key}, handles, nil
}

func loadHandles(dir string) ([]*wallet.Handle, error) {
	handles, err := wallet.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return nil, fmt.Errorf("no usable wallet keys in %s", dir)
	}
	return handles, nil
}

// wrapSOL moves amount lamports of owner's SOL into its WSOL associated
// account, creating the account first when asked.
func wrapSOL(ctx context.Context, client solana.Client, key solanago.PrivateKey, amount uint64, createATA bool) error {
	owner := key.PublicKey()
	ata, _, err := solanago.FindAssociatedTokenAddress(owner, solanago.WrappedSol)
	if err != nil {
		return fmt.Errorf("derive WSOL account: %w", err)
	}

	var instructions []solanago.Instruction
	if createATA {
		if _, err := client.AccountData(ctx, ata); err != nil {
			instructions = append(instructions,
				associatedtokenaccount.NewCreateInstruction(owner, owner, solanago.WrappedSol).Build())
		}
	}
	instructions = append(instructions,
		system.NewTransferInstruction(amount, owner, ata).Build(),
		token.NewSyncNativeInstruction(ata).Build(),
	)

	_, err = sendAndConfirm(ctx, client, instructions, payer{owner, key}, payer{owner, key})
	return err
}

// closeWSOL closes owner's WSOL associated account, returning its lamports to
// owner.
func closeWSOL(ctx context.Context, client solana.Client, key solanago.PrivateKey, owner solanago.PublicKey) (solanago.Signature, error) {
	ata, _, err := solanago.FindAssociatedTokenAddress(owner, solanago.WrappedSol)
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("derive WSOL account: %w", err)
	}
	if _, err := client.AccountData(ctx, ata); err != nil {
		return solanago.Signature{}, fmt.Errorf("no WSOL account: %w", err)
	}

	inst := token.NewCloseAccountInstruction(ata, owner, owner, []solanago.PublicKey{}).Build()
	return sendAndConfirm(ctx, client, []solanago.Instruction{inst}, payer{owner, key}, payer{owner, key})
}

// closeTokenAccounts closes every token account the wallet owns, returning
// rent lamports to the wallet. WSOL accounts still holding a balance are
// skipped; those need an unwrap first. One account failing does not stop the
// rest.
func closeTokenAccounts(ctx context.Context, client solana.Client, key solanago.PrivateKey, logger *log.Logger) (closed, failed int, err error) {
	owner := key.PublicKey()
	accounts, err := client.TokenAccountsByOwner(ctx, owner)
	if err != nil {
		return 0, 0, fmt.Errorf("list token accounts: %w", err)
	}
	if len(accounts) == 0 {
		return 0, 0, nil
	}

	for _, acc := range accounts {
		if acc.Mint.Equals(solanago.WrappedSol) && acc.Amount > 0 {
			logger.Printf("skipping WSOL account %s with balance %d", acc.Pubkey, acc.Amount)
			continue
		}
		inst := token.NewCloseAccountInstruction(acc.Pubkey, owner, owner, []solanago.PublicKey{}).Build()
		sig, err := sendAndConfirm(ctx, client, []solanago.Instruction{inst}, payer{owner, key}, payer{owner, key})
		if err != nil {
			logger.Printf("close %s failed: %v", acc.Pubkey, err)
			failed++
			continue
		}
		logger.Printf("closed token account %s: %s", acc.Pubkey, sig)
		closed++
	}
	if failed > 0 {
		return closed, failed, fmt.Errorf("failed to close %d token accounts", failed)
	}
	return closed, failed, nil
}

// sendAndConfirm builds a transaction from instructions, signs it with every
// provided signer, submits it and polls until it confirms.
func sendAndConfirm(ctx context.Context, client solana.Client, instructions []solanago.Instruction, feePayer signer, signers ...signer) (solanago.Signature, error) {
	hash, err := client.LatestBlockhash(ctx)
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("fetch blockhash: %w", err)
	}

	tx, err := solanago.NewTransaction(instructions, hash, solanago.TransactionPayer(feePayer.PublicKey()))
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(pk solanago.PublicKey) *solanago.PrivateKey {
		for _, s := range signers {
			if pk.Equals(s.PublicKey()) {
				key := s.PrivateKey()
				return &key
			}
		}
		return nil
	}); err != nil {
		return solanago.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := client.SendTransaction(ctx, tx)
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("submit transaction: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-cctx.Done():
			return sig, fmt.Errorf("confirmation timeout for %s", sig)
		case <-ticker.C:
		}

		status, err := client.SignatureStatus(cctx, sig)
		if err != nil {
			continue
		}
		if status.Err != nil {
			return sig, status.Err
		}
		if status.Confirmed {
			return sig, nil
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
