// Package auth resolves wallet identities for incoming connections. The
// login service signs a short-lived HS256 token binding a wallet address to
// a session; this package verifies that binding at upgrade time.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/form3tech-oss/jwt-go"
)

// GuestID is the identity for connections without a wallet. Guests spectate:
// they receive snapshots, their intents are dropped.
const GuestID = "guest"

var (
	// ErrInvalidToken indicates the token is missing, unparseable, expired,
	// or bound to a different wallet.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrNoSecret indicates the verifier has no signing secret configured,
	// so wallet sessions cannot be verified at all.
	ErrNoSecret = errors.New("auth: no signing secret configured")
)

// Verifier checks wallet-session tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for tokens signed with secret. An empty
// secret yields a verifier that rejects every wallet connection (guests are
// unaffected).
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Identify resolves the identity for a connection. An empty wallet address
// is a guest. Otherwise the token must be a valid HS256 JWT whose
// walletAddress claim matches the supplied address, case-insensitively.
// The returned identity is the lowercased wallet address.
func (v *Verifier) Identify(walletAddress, token string) (string, error) {
	if walletAddress == "" {
		return GuestID, nil
	}
	if len(v.secret) == 0 {
		return "", ErrNoSecret
	}
	if token == "" {
		return "", ErrInvalidToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	claimed, _ := claims["walletAddress"].(string)

	wallet := strings.ToLower(walletAddress)
	if claimed == "" || strings.ToLower(claimed) != wallet {
		return "", ErrInvalidToken
	}
	return wallet, nil
}

// Mint signs a session token for walletAddress, valid for ttl. Used by the
// token CLI command and tests; in production the login service mints these.
func (v *Verifier) Mint(walletAddress string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrNoSecret
	}
	claims := jwt.MapClaims{
		"walletAddress": strings.ToLower(walletAddress),
		"exp":           time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
