package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const stateAudience = "oauth-state"

// ErrInvalidState marks an OAuth state that is forged, expired or unbound.
var ErrInvalidState = errors.New("invalid oauth state")

// SignState wraps nonce in a short-lived signed OAuth state parameter, so any
// instance can verify the callback without shared storage.
func SignState(nonce string, ttl time.Duration) (string, error) {
	secret, err := secretKey()
	if err != nil {
		return "", err
	}
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        nonce,
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}).SignedString(secret)
}

// VerifyState returns the nonce carried by a state from SignState.
func VerifyState(state string) (string, error) {
	secret, err := secretKey()
	if err != nil {
		return "", err
	}
	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(state, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.ID == "" {
		return "", ErrInvalidState
	}
	return claims.ID, nil
}
