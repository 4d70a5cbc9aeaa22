// Package auth verifies the bearer credentials issued by the identity
// provider. Tokens are HS256 JWTs whose subject is the user id.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"skillswap/pkg/types"
)

// ContextUserKey is the gin context key holding the verified user id
const ContextUserKey = "userID"

// Claims accepts the subject either as "id" (legacy issuer) or the registered "sub"
type Claims struct {
	ID string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the user id carried by the claims
func (c *Claims) UserID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.RegisteredClaims.Subject
}

// Verifier checks HS256 tokens against a shared secret
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier creates a verifier for the given shared secret
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrSecretNotSet
	}
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(30*time.Second),
		),
	}, nil
}

// Verify parses a raw token and returns its subject
func (v *Verifier) Verify(raw string) (string, error) {
	if raw == "" {
		return "", ErrMissingToken
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedMethod, t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject := claims.UserID()
	if subject == "" {
		return "", ErrMissingSubject
	}
	if !types.IsValidUserID(subject) {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, types.ErrInvalidUserID)
	}
	return subject, nil
}

// Authenticate reads the credential from the Authorization header, falling
// back to the token query parameter browsers use for WebSocket upgrades
func (v *Verifier) Authenticate(r *http.Request) (string, error) {
	return v.Verify(TokenFromRequest(r))
}

// Sign issues a token for userID. Used by the call client and tests.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenFromRequest extracts a bearer token from the header or ?token=
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests without a valid bearer token and stores the subject
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := v.Authenticate(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(ContextUserKey, userID)
		c.Next()
	}
}

// UserID returns the verified caller stored by Middleware
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserKey)
}
