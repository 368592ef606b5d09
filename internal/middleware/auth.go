package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the auth middleware.
const (
	ContextClientID = "client_id"
	ContextScopes   = "client_scopes"
)

// ErrInvalidClaims is returned when a parsed token carries unusable claims.
var ErrInvalidClaims = errors.New("invalid token claims")

// JWTClaims identifies an API client calling the analytics endpoints.
type JWTClaims struct {
	ClientID string   `json:"client_id"`
	Scopes   []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware provides HMAC JWT authentication.
type AuthMiddleware struct {
	secretKey []byte
	now       func() time.Time
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(secretKey string) *AuthMiddleware {
	return &AuthMiddleware{
		secretKey: []byte(secretKey),
		now:       time.Now,
	}
}

// Enabled reports whether a signing secret is configured.
func (am *AuthMiddleware) Enabled() bool {
	return len(am.secretKey) > 0
}

// RequireAuth rejects requests without a valid Bearer token. With no secret
// configured it lets every request through.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		tokenString, ok := bearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		claims, err := am.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		setClient(c, claims)
		AddSpanAttribute(c, "client.id", claims.ClientID)
		c.Next()
	}
}

// OptionalAuth records the client of a valid token but never rejects.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.Enabled() {
			c.Next()
			return
		}
		if tokenString, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := am.ValidateToken(tokenString); err == nil {
				setClient(c, claims)
				AddSpanAttribute(c, "client.id", claims.ClientID)
			}
		}
		c.Next()
	}
}

// GenerateToken signs a token for clientID valid for duration.
func (am *AuthMiddleware) GenerateToken(clientID string, scopes []string, duration time.Duration) (string, error) {
	now := am.now()
	claims := &JWTClaims{
		ClientID: clientID,
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(am.secretKey)
}

// ValidateToken parses tokenString and returns its claims.
func (am *AuthMiddleware) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return am.secretKey, nil
	}, jwt.WithTimeFunc(am.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.ClientID == "" {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

func setClient(c *gin.Context, claims *JWTClaims) {
	c.Set(ContextClientID, claims.ClientID)
	c.Set(ContextScopes, claims.Scopes)
}
