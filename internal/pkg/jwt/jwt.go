// internal/pkg/jwt/jwt.go
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Claims identify the API caller by their signing public key.
type Claims struct {
	PeerKey string `json:"peer_key"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 access tokens for the HTTP surface.
type Manager struct {
	cfg Config
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Manager{cfg: cfg}, nil
}

// Generate mints an access token bound to a peer key.
func (m *Manager) Generate(peerKey string) (string, error) {
	now := time.Now()
	claims := Claims{
		PeerKey: peerKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Issuer:    m.cfg.Issuer,
			Audience:  jwt.ClaimStrings{m.cfg.Audience},
			Subject:   peerKey,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.cfg.Secret))
}

// Verify parses and validates an access token, returning its claims.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(m.cfg.Secret), nil
	}, jwt.WithIssuer(m.cfg.Issuer), jwt.WithAudience(m.cfg.Audience))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
