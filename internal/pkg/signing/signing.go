// internal/pkg/signing/signing.go
package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	xerrors "autopay-service/internal/pkg/errors"
)

// NonceSize is the byte length of a signing nonce (256 bits).
const NonceSize = 32

// KeyPair holds an ed25519 signing key. The hex-encoded public key doubles
// as the party's identity everywhere in the system.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh ed25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// PublicKeyHex returns the hex encoding of the public key.
func (k *KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(k.Public)
}

// ParsePublicKey decodes a hex-encoded ed25519 public key.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "public key is not valid hex")
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "public key has wrong length")
	}
	return ed25519.PublicKey(raw), nil
}

// CanonicalDigest serializes a payload deterministically and returns its
// SHA-256 digest. Struct fields marshal in declaration order, so two parties
// holding the same terms always produce the same bytes. Payloads carrying
// maps must not be signed through this function.
func CanonicalDigest(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

// NewNonce draws a fresh 256-bit random nonce.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to draw nonce: %w", err)
	}
	return nonce, nil
}

// Sign signs digest || nonce. The nonce binds the signature to a single
// use; verification with a consumed nonce is rejected by the ledger, not
// here.
func Sign(priv ed25519.PrivateKey, digest, nonce []byte) []byte {
	msg := make([]byte, 0, len(digest)+len(nonce))
	msg = append(msg, digest...)
	msg = append(msg, nonce...)
	return ed25519.Sign(priv, msg)
}

// Verify checks a signature over digest || nonce against the given public
// key. It returns ErrSignatureInvalid rather than a bare bool so callers
// propagate a uniform sentinel.
func Verify(pub ed25519.PublicKey, digest, nonce, sig []byte) error {
	msg := make([]byte, 0, len(digest)+len(nonce))
	msg = append(msg, digest...)
	msg = append(msg, nonce...)
	if !ed25519.Verify(pub, msg, sig) {
		return xerrors.ErrSignatureInvalid
	}
	return nil
}
