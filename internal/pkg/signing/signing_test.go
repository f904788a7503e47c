// internal/pkg/signing/signing_test.go
package signing

import (
	"testing"

	xerrors "autopay-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type terms struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method"`
}

func TestCanonicalDigestDeterministic(t *testing.T) {
	a := terms{Amount: 999, Currency: "USD", Method: "card"}
	b := terms{Amount: 999, Currency: "USD", Method: "card"}

	da, err := CanonicalDigest(a)
	require.NoError(t, err)
	db, err := CanonicalDigest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)

	c := terms{Amount: 1000, Currency: "USD", Method: "card"}
	dc, err := CanonicalDigest(c)
	require.NoError(t, err)
	assert.NotEqual(t, da, dc)
}

func TestSignAndVerify(t *testing.T) {
	keys, err := GenerateKeyPair()
	require.NoError(t, err)

	digest, err := CanonicalDigest(terms{Amount: 999, Currency: "USD", Method: "card"})
	require.NoError(t, err)
	nonce, err := NewNonce()
	require.NoError(t, err)
	require.Len(t, nonce, NonceSize)

	sig := Sign(keys.Private, digest, nonce)
	require.NoError(t, Verify(keys.Public, digest, nonce, sig))
}

func TestVerifyRejectsTampering(t *testing.T) {
	keys, err := GenerateKeyPair()
	require.NoError(t, err)

	digest, err := CanonicalDigest(terms{Amount: 999, Currency: "USD", Method: "card"})
	require.NoError(t, err)
	nonce, err := NewNonce()
	require.NoError(t, err)
	sig := Sign(keys.Private, digest, nonce)

	// Different terms.
	other, err := CanonicalDigest(terms{Amount: 1, Currency: "USD", Method: "card"})
	require.NoError(t, err)
	assert.ErrorIs(t, Verify(keys.Public, other, nonce, sig), xerrors.ErrSignatureInvalid)

	// Different nonce.
	otherNonce, err := NewNonce()
	require.NoError(t, err)
	assert.ErrorIs(t, Verify(keys.Public, digest, otherNonce, sig), xerrors.ErrSignatureInvalid)

	// Different signer.
	otherKeys, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.ErrorIs(t, Verify(otherKeys.Public, digest, nonce, sig), xerrors.ErrSignatureInvalid)

	// Corrupted signature bytes.
	sig[0] ^= 0xff
	assert.ErrorIs(t, Verify(keys.Public, digest, nonce, sig), xerrors.ErrSignatureInvalid)
}

func TestParsePublicKey(t *testing.T) {
	keys, err := GenerateKeyPair()
	require.NoError(t, err)

	pub, err := ParsePublicKey(keys.PublicKeyHex())
	require.NoError(t, err)
	assert.Equal(t, keys.Public, pub)

	_, err = ParsePublicKey("not-hex")
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)

	_, err = ParsePublicKey("abcd")
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)
}
