// Package profilesync relays reservation changes to the external profile
// service that keeps each attendee's schedule.
package profilesync

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenLifetime = time.Hour
	refreshMargin = time.Minute
)

// Credential signs short-lived service-account tokens.  The key is parsed on
// first use and the token is reused until less than a minute of its lifetime
// remains.  A Credential is safe for concurrent use and is meant to be shared.
type Credential struct {
	email    string
	pemKey   string
	scope    string
	audience string
	now      func() time.Time

	mu      sync.Mutex
	key     *rsa.PrivateKey
	token   string
	expires time.Time
}

// NewCredential returns a credential for the service account email.  pemKey
// may contain literal "\n" sequences as found in env files.
func NewCredential(email, pemKey, scope, audience string) *Credential {
	return &Credential{
		email:    email,
		pemKey:   pemKey,
		scope:    scope,
		audience: audience,
		now:      time.Now,
	}
}

// Token returns a valid bearer token.
func (c *Credential) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && c.expires.Sub(now) >= refreshMargin {
		return c.token, nil
	}
	if c.key == nil {
		if c.pemKey == "" {
			return "", errors.New("profilesync: no private key configured")
		}
		key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(strings.ReplaceAll(c.pemKey, `\n`, "\n")))
		if err != nil {
			return "", fmt.Errorf("profilesync: parse private key: %w", err)
		}
		c.key = key
	}

	exp := now.Add(tokenLifetime)
	claims := jwt.MapClaims{
		"iss":   c.email,
		"sub":   c.email,
		"scope": c.scope,
		"aud":   c.audience,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("profilesync: sign token: %w", err)
	}
	c.token, c.expires = signed, exp
	return signed, nil
}
