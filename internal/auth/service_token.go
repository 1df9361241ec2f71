package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const serviceTokenIssuer = "linkgate"

// Service token scopes
const (
	ScopeLinksRead   = "links:read"
	ScopeLinksWrite  = "links:write"
	ScopeLinksReview = "links:review"
)

var (
	// ErrInvalidToken is returned for malformed, unsigned or foreign service tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for service tokens past their expiry.
	ErrExpiredToken = errors.New("token expired")
)

// ServiceClaims identifies a service client such as the chat bot
type ServiceClaims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether the claims grant scope
func (c *ServiceClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

// ServiceTokens issues and verifies HS256 bearer tokens for service clients
type ServiceTokens struct {
	secret []byte
}

// NewServiceTokens creates a token verifier for the shared secret
func NewServiceTokens(secret []byte) *ServiceTokens {
	return &ServiceTokens{secret: secret}
}

// Issue signs a token for subject with the given scopes
func (st *ServiceTokens) Issue(subject string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &ServiceClaims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    serviceTokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(st.secret)
}

// Verify parses and validates a token
func (st *ServiceTokens) Verify(tokenString string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return st.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(serviceTokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
