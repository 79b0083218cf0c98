package wallet

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"filippo.io/edwards25519"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

const keyFileExt = ".txt"

// minEncodedKeyLen filters out truncated or junk key files; a base58-encoded
// 64-byte keypair is at least this long.
const minEncodedKeyLen = 85

// LoadDir reads every wallet key file from dir, in filename order.
// Files are base58-encoded 64-byte keypairs named <n>_<pubkey>.txt.
// Invalid or truncated files are skipped.
func LoadDir(dir string) ([]*Handle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read wallet directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), keyFileExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var handles []*Handle
	for _, name := range names {
		encoded, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read wallet file %s: %w", name, err)
		}

		key, err := decodeKey(strings.TrimSpace(string(encoded)))
		if err != nil {
			continue
		}
		handles = append(handles, NewHandle(key))
	}

	if len(handles) == 0 {
		return nil, ErrNoWallets
	}
	return handles, nil
}

// decodeKey validates and decodes a base58 keypair string.
func decodeKey(encoded string) (solanago.PrivateKey, error) {
	if len(encoded) < minEncodedKeyLen {
		return nil, fmt.Errorf("key too short: %d chars", len(encoded))
	}
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("unexpected key length: %d", len(raw))
	}

	key := solanago.PrivateKey(raw)
	if !isOnCurve(key.PublicKey().Bytes()) {
		return nil, fmt.Errorf("public key not on curve")
	}
	return key, nil
}

// isOnCurve reports whether a 32-byte point is a valid ed25519 public key.
func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// Generate creates count new wallets under dir, one base58 key file each,
// named <n>_<pubkey>.txt. Returns the generated public keys.
func Generate(dir string, count int) ([]solanago.PublicKey, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create wallet directory: %w", err)
	}

	pubkeys := make([]solanago.PublicKey, 0, count)
	for i := 1; i <= count; i++ {
		account := solanago.NewWallet()
		pub := account.PublicKey()

		name := fmt.Sprintf("%d_%s%s", i, pub, keyFileExt)
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(account.PrivateKey.String()), 0o600); err != nil {
			return nil, fmt.Errorf("write wallet file %s: %w", name, err)
		}
		pubkeys = append(pubkeys, pub)
	}
	return pubkeys, nil
}
