// Package utils mints the HS256 access tokens accepted by middleware.JWTAuth.
package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token string    `json:"access_token"`
	Exp   time.Time `json:"expires_at"`
}

// NewAccessToken signs a token whose subject is the attendee id uid.  The
// id becomes a store path segment, so it may not contain "/".
func NewAccessToken(secret, uid, role string, ttl time.Duration) (AccessToken, error) {
	if uid == "" || strings.Contains(uid, "/") {
		return AccessToken{}, errors.New("utils: user id must be a non-empty path segment")
	}
	if ttl <= 0 {
		return AccessToken{}, errors.New("utils: token ttl must be positive")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  uid,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
