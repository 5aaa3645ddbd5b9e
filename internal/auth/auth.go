// Package auth guards the viewer API with Ed25519-signed JWTs and an
// optional shared API key.
//
// A server configured with only a public key verifies tokens; the token
// subcommand holds the private key and issues them.
package auth

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "kansoku"

// Role is what a viewer may do.
type Role string

const (
	// RoleViewer reads views.
	RoleViewer Role = "viewer"
	// RoleOperator also forces refreshes and changes UI state.
	RoleOperator Role = "operator"
)

var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants everything want grants.
func (r Role) AtLeast(want Role) bool {
	return roleRank[r] >= roleRank[want] && roleRank[r] > 0
}

// ErrVerifyOnly is returned by IssueToken when no private key is loaded.
var ErrVerifyOnly = errors.New("auth: no private key loaded, cannot issue tokens")

// MaxTokenTTL caps the lifetime of any issued token.
const MaxTokenTTL = 30 * 24 * time.Hour

// Claims extends jwt.RegisteredClaims with the viewer's name and role.
type Claims struct {
	jwt.RegisteredClaims
	Viewer string `json:"viewer"`
	Role   Role   `json:"role"`
}

// JWTManager issues and validates tokens.
type JWTManager struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	expiration time.Duration
}

// NewJWTManager loads keys from PEM files. With only a public key the
// manager verifies but cannot issue; with only a private key the public key
// is derived from it.
func NewJWTManager(privateKeyPath, publicKeyPath string, expiration time.Duration) (*JWTManager, error) {
	if privateKeyPath == "" && publicKeyPath == "" {
		return nil, errors.New("auth: no key configured")
	}
	m := &JWTManager{expiration: expiration}

	if privateKeyPath != "" {
		priv, err := readPrivateKey(privateKeyPath)
		if err != nil {
			return nil, err
		}
		m.privateKey = priv
		m.publicKey = priv.Public().(ed25519.PublicKey)
	}

	if publicKeyPath != "" {
		pub, err := readPublicKey(publicKeyPath)
		if err != nil {
			return nil, err
		}
		if m.publicKey != nil && !bytes.Equal(m.publicKey, pub) {
			return nil, errors.New("auth: public key does not match private key")
		}
		m.publicKey = pub
	}
	return m, nil
}

// NewJWTManagerFromKeys builds a manager from in-memory keys. priv may be nil.
func NewJWTManagerFromKeys(priv ed25519.PrivateKey, pub ed25519.PublicKey, expiration time.Duration) *JWTManager {
	if pub == nil && priv != nil {
		pub = priv.Public().(ed25519.PublicKey)
	}
	return &JWTManager{privateKey: priv, publicKey: pub, expiration: expiration}
}

func readPrivateKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from config, not request input
	if err != nil {
		return nil, fmt.Errorf("auth: read private key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("auth: decode private key PEM")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("auth: parse private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("auth: private key is not Ed25519")
	}
	return priv, nil
}

func readPublicKey(path string) (ed25519.PublicKey, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from config, not request input
	if err != nil {
		return nil, fmt.Errorf("auth: read public key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("auth: decode public key PEM")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("auth: public key is not Ed25519")
	}
	return pub, nil
}

// GenerateKeyPEM creates a fresh Ed25519 key pair encoded as PKCS#8 and
// PKIX PEM blocks.
func GenerateKeyPEM() (privPEM, pubPEM []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: generate key pair: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: marshal public key: %w", err)
	}
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM, nil
}

// CanIssue reports whether a private key is loaded.
func (m *JWTManager) CanIssue() bool {
	return m.privateKey != nil
}

// IssueToken signs a token for viewer. A non-positive ttl uses the
// manager's default expiration; ttl is capped at MaxTokenTTL.
func (m *JWTManager) IssueToken(viewer string, role Role, ttl time.Duration) (string, time.Time, error) {
	if m.privateKey == nil {
		return "", time.Time{}, ErrVerifyOnly
	}
	if viewer == "" {
		return "", time.Time{}, errors.New("auth: viewer name is required")
	}
	if !role.Valid() {
		return "", time.Time{}, fmt.Errorf("auth: unknown role %q", role)
	}
	if ttl <= 0 {
		ttl = m.expiration
	}
	if ttl <= 0 || ttl > MaxTokenTTL {
		ttl = MaxTokenTTL
	}

	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   viewer,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
		Viewer: viewer,
		Role:   role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(m.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (m *JWTManager) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return m.publicKey, nil
		},
		jwt.WithAudience(issuer),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: validate token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token claims")
	}
	if claims.Viewer == "" || claims.Viewer != claims.Subject {
		return nil, errors.New("auth: token subject does not name a viewer")
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("auth: unknown role %q", claims.Role)
	}
	return claims, nil
}
