package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the account identity carried by a session token. Exp and Iat are
// unix seconds; zero values are filled in at signing.
type Claims struct {
	Sub   string
	Email string
	Name  string
	Plan  string
	Exp   int64
	Iat   int64
}

// TokenTTL is the lifetime of tokens issued at login.
const TokenTTL = 7 * 24 * time.Hour

const issuer = "cv-tailor"

var (
	errMissingSecret = errors.New("jwt secret not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Plan  string `json:"plan,omitempty"`
	jwt.RegisteredClaims
}

// SignJWT signs claims with HS256 using JWT_SECRET.
func SignJWT(claims Claims) (string, error) {
	secret, err := secretKey()
	if err != nil {
		return "", err
	}
	if claims.Sub == "" {
		return "", errors.New("sub is required")
	}

	iat := claims.Iat
	if iat == 0 {
		iat = time.Now().UTC().Unix()
	}
	exp := claims.Exp
	if exp == 0 {
		exp = iat + int64(TokenTTL/time.Second)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Email: claims.Email,
		Name:  claims.Name,
		Plan:  claims.Plan,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Sub,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(time.Unix(iat, 0)),
			ExpiresAt: jwt.NewNumericDate(time.Unix(exp, 0)),
		},
	})
	return token.SignedString(secret)
}

// VerifyJWT checks signature, issuer and expiry and returns the claims.
func VerifyJWT(raw string) (Claims, error) {
	secret, err := secretKey()
	if err != nil {
		return Claims{}, err
	}

	var tc tokenClaims
	_, err = jwt.ParseWithClaims(raw, &tc, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tc.Subject == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		Sub:   tc.Subject,
		Email: tc.Email,
		Name:  tc.Name,
		Plan:  tc.Plan,
	}
	if tc.ExpiresAt != nil {
		out.Exp = tc.ExpiresAt.Unix()
	}
	if tc.IssuedAt != nil {
		out.Iat = tc.IssuedAt.Unix()
	}
	return out, nil
}

func secretKey() ([]byte, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret != "" {
		return []byte(secret), nil
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ENV"))) {
	case "production", "prod":
		return nil, fmt.Errorf("%w: JWT_SECRET required in production", errMissingSecret)
	}
	return []byte("dev-secret"), nil
}
