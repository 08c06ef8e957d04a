package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UserIDKey is the gin context key holding the authenticated user id
const UserIDKey = "user_id"

// TokenValidator resolves an Authorization header to a user id
type TokenValidator interface {
	ValidateToken(authHeader string) (uuid.UUID, bool)
}

// JWTVerifier handles HS256 bearer token verification
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Issue signs a token for userID valid for ttl
func (v *JWTVerifier) Issue(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ExtractUserFromToken verifies a token and returns its subject as a user id
func (v *JWTVerifier) ExtractUserFromToken(tokenString string) (uuid.UUID, error) {
	// Remove "Bearer " prefix if present
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to verify token: %w", err)
	}
	if !token.Valid {
		return uuid.Nil, fmt.Errorf("token is not valid")
	}

	if claims.Subject == "" {
		return uuid.Nil, fmt.Errorf("no sub claim in token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("sub is not a valid user id: %s", claims.Subject)
	}
	return userID, nil
}

// ValidateToken is a middleware-friendly function that validates a JWT token
func (v *JWTVerifier) ValidateToken(authHeader string) (uuid.UUID, bool) {
	if authHeader == "" {
		return uuid.Nil, false
	}

	userID, err := v.ExtractUserFromToken(authHeader)
	if err != nil {
		slog.Debug("JWT validation error", "error", err)
		return uuid.Nil, false
	}

	return userID, true
}

// Middleware rejects requests without a valid bearer token and stores the
// user id under UserIDKey
func Middleware(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := v.ValidateToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid bearer token"})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id, if any
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
