package rpc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	errMissingBearer = errors.New("missing bearer token")
	errAuthDisabled  = errors.New("faucet authentication not configured")
)

// FaucetAuth validates the HMAC-signed bearer tokens that gate token_faucet.
type FaucetAuth struct {
	secret    []byte
	issuer    string
	clockSkew time.Duration
}

// NewFaucetAuth returns nil for an empty secret, which keeps the faucet
// closed.
func NewFaucetAuth(secret, issuer string) *FaucetAuth {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil
	}
	return &FaucetAuth{secret: []byte(trimmed), issuer: strings.TrimSpace(issuer), clockSkew: 30 * time.Second}
}

// Authorize checks the Authorization header and returns the token subject.
func (a *FaucetAuth) Authorize(r *http.Request) (string, error) {
	if a == nil {
		return "", errAuthDisabled
	}
	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		return "", errMissingBearer
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.clockSkew),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token invalid")
	}
	return claims.Subject, nil
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
