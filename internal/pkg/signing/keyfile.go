// internal/pkg/signing/keyfile.go
package signing

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// LoadKeyPair reads a hex-encoded ed25519 seed from disk.
func LoadKeyPair(path string) (*KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("signing key is not valid hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key has wrong length %d", len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
}

// LoadOrCreateKeyPair loads the key at path, generating and persisting a
// fresh one on first run.
func LoadOrCreateKeyPair(path string) (*KeyPair, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadKeyPair(path)
	}

	keys, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	seed := keys.Private.Seed()
	if err := os.WriteFile(path, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist signing key: %w", err)
	}
	return keys, nil
}
