package main

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	solanago "github.com/gagliardetto/solana-go"

	"solana-market-maker/internal/solana"
)

type fakeClient struct {
	accounts []solana.TokenAccount
	sendErr  map[solanago.PublicKey]error // keyed by the account being closed
	sent     []solanago.PublicKey         // first writable account of each sent tx
}

func (f *fakeClient) LatestBlockhash(context.Context) (solanago.Hash, error) {
	return solanago.Hash{1}, nil
}

func (f *fakeClient) Balance(context.Context, solanago.PublicKey) (uint64, error) {
	return 0, nil
}

func (f *fakeClient) TokenAccountBalance(context.Context, solanago.PublicKey) (uint64, error) {
	return 0, nil
}

func (f *fakeClient) TokenAccountsByOwner(context.Context, solanago.PublicKey) ([]solana.TokenAccount, error) {
	return f.accounts, nil
}

func (f *fakeClient) AccountData(context.Context, solanago.PublicKey) ([]byte, error) {
	return nil, solana.ErrAccountNotFound
}

func (f *fakeClient) SendTransaction(_ context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	inst := tx.Message.Instructions[0]
	target := tx.Message.AccountKeys[inst.Accounts[0]]
	if err := f.sendErr[target]; err != nil {
		return solanago.Signature{}, err
	}
	f.sent = append(f.sent, target)
	return solanago.Signature{byte(len(f.sent))}, nil
}

func (f *fakeClient) SignatureStatus(context.Context, solanago.Signature) (*solana.SignatureStatus, error) {
	return &solana.SignatureStatus{Confirmed: true}, nil
}

func TestCloseTokenAccounts_SkipsFundedWSOL(t *testing.T) {
	key := solanago.NewWallet().PrivateKey
	fundedWSOL := solanago.NewWallet().PublicKey()
	emptyWSOL := solanago.NewWallet().PublicKey()
	traded := solanago.NewWallet().PublicKey()
	tradedMint := solanago.NewWallet().PublicKey()

	client := &fakeClient{accounts: []solana.TokenAccount{
		{Pubkey: fundedWSOL, Mint: solanago.WrappedSol, Amount: 500_000},
		{Pubkey: emptyWSOL, Mint: solanago.WrappedSol, Amount: 0},
		{Pubkey: traded, Mint: tradedMint, Amount: 42},
	}}
	logger := log.New(io.Discard, "", 0)

	closed, failed, err := closeTokenAccounts(context.Background(), client, key, logger)
	if err != nil {
		t.Fatalf("closeTokenAccounts: %v", err)
	}
	if closed != 2 || failed != 0 {
		t.Fatalf("closed=%d failed=%d, want 2/0", closed, failed)
	}
	if len(client.sent) != 2 {
		t.Fatalf("sent %d transactions, want 2", len(client.sent))
	}
	if !client.sent[0].Equals(emptyWSOL) || !client.sent[1].Equals(traded) {
		t.Fatalf("closed accounts %v, want [%s %s]", client.sent, emptyWSOL, traded)
	}
}

func TestCloseTokenAccounts_ContinuesAfterFailure(t *testing.T) {
	key := solanago.NewWallet().PrivateKey
	first := solanago.NewWallet().PublicKey()
	second := solanago.NewWallet().PublicKey()
	mint := solanago.NewWallet().PublicKey()

	client := &fakeClient{
		accounts: []solana.TokenAccount{
			{Pubkey: first, Mint: mint, Amount: 0},
			{Pubkey: second, Mint: mint, Amount: 0},
		},
		sendErr: map[solanago.PublicKey]error{first: errors.New("node unavailable")},
	}
	logger := log.New(io.Discard, "", 0)

	closed, failed, err := closeTokenAccounts(context.Background(), client, key, logger)
	if err == nil {
		t.Fatal("expected error when a close fails")
	}
	if closed != 1 || failed != 1 {
		t.Fatalf("closed=%d failed=%d, want 1/1", closed, failed)
	}
	if len(client.sent) != 1 || !client.sent[0].Equals(second) {
		t.Fatalf("closed accounts %v, want [%s]", client.sent, second)
	}
}

func TestCloseTokenAccounts_NoAccounts(t *testing.T) {
	key := solanago.NewWallet().PrivateKey
	client := &fakeClient{}
	logger := log.New(io.Discard, "", 0)

	closed, failed, err := closeTokenAccounts(context.Background(), client, key, logger)
	if err != nil || closed != 0 || failed != 0 {
		t.Fatalf("got closed=%d failed=%d err=%v, want zeros", closed, failed, err)
	}
}
