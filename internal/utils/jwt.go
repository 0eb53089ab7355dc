package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ConfirmationClaims carries the parameters of a confirmation view inside
// a signed token, so a confirmation link cannot be edited to show a
// booking that never happened.
type ConfirmationClaims struct {
	ReserverName   string `json:"reserverName"`
	Purpose        string `json:"purpose"`
	Room           string `json:"room"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	IsCancellation bool   `json:"isCancellation,omitempty"`
	jwt.RegisteredClaims
}

// ErrInvalidToken is returned for malformed, forged or expired tokens.
var ErrInvalidToken = errors.New("invalid confirmation token")

// NewConfirmationToken signs claims with HS256.  ttl sets the expiry; the
// subject is left to the caller.
func NewConfirmationToken(secret string, claims ConfirmationClaims, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseConfirmationToken verifies the signature and expiry of raw and
// returns its claims.
func ParseConfirmationToken(secret, raw string) (*ConfirmationClaims, error) {
	claims := &ConfirmationClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Reject anything that is not HMAC-signed.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
