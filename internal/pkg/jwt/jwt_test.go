// internal/pkg/jwt/jwt_test.go
package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Secret:   "test-secret",
		Issuer:   "autopay-service",
		Audience: "autopay-api",
		TTL:      time.Hour,
	}
}

func TestGenerateVerifyRoundTrip(t *testing.T) {
	mgr, err := NewManager(testConfig())
	require.NoError(t, err)

	token, err := mgr.Generate("peer-key")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := mgr.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "peer-key", claims.PeerKey)
	assert.Equal(t, "peer-key", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	mgr, err := NewManager(testConfig())
	require.NoError(t, err)

	other := testConfig()
	other.Secret = "other-secret"
	otherMgr, err := NewManager(other)
	require.NoError(t, err)

	token, err := otherMgr.Generate("peer-key")
	require.NoError(t, err)

	_, err = mgr.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	mgr, err := NewManager(testConfig())
	require.NoError(t, err)

	other := testConfig()
	other.Audience = "another-api"
	otherMgr, err := NewManager(other)
	require.NoError(t, err)

	token, err := otherMgr.Generate("peer-key")
	require.NoError(t, err)

	_, err = mgr.Verify(token)
	assert.Error(t, err)
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager(Config{})
	assert.Error(t, err)
}

func TestGenerateDefaultsTTL(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = 0
	mgr, err := NewManager(cfg)
	require.NoError(t, err)

	token, err := mgr.Generate("peer-key")
	require.NoError(t, err)

	claims, err := mgr.Verify(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}
