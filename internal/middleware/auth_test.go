package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authRouter(am *AuthMiddleware, guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/forecast", guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"client": c.GetString(ContextClientID)})
	})
	return router
}

func TestAuthMiddleware_RequireAuth(t *testing.T) {
	am := NewAuthMiddleware("test-secret")
	valid, err := am.GenerateToken("dashboard", []string{"forecast"}, time.Hour)
	require.NoError(t, err)

	expiring := NewAuthMiddleware("test-secret")
	expiring.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiring.GenerateToken("dashboard", nil, time.Hour)
	require.NoError(t, err)

	foreign, err := NewAuthMiddleware("other-secret").GenerateToken("dashboard", nil, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, `"client":"dashboard"`},
		{"missing header", "", http.StatusUnauthorized, "Authorization header required"},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, "Invalid authorization header format"},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, "Token expired"},
		{"foreign signature", "Bearer " + foreign, http.StatusUnauthorized, "Invalid token"},
	}

	router := authRouter(am, am.RequireAuth())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/forecast", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestAuthMiddleware_DisabledWithoutSecret(t *testing.T) {
	am := NewAuthMiddleware("")
	router := authRouter(am, am.RequireAuth())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/forecast", nil))

	assert.False(t, am.Enabled())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_OptionalAuth(t *testing.T) {
	am := NewAuthMiddleware("test-secret")
	token, err := am.GenerateToken("batch-job", nil, time.Hour)
	require.NoError(t, err)
	router := authRouter(am, am.OptionalAuth())

	t.Run("valid token sets client", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/forecast", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "batch-job")
	})

	t.Run("garbage token is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/forecast", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"client":""`)
	})
}

func TestAuthMiddleware_ValidateToken(t *testing.T) {
	am := NewAuthMiddleware("test-secret")

	token, err := am.GenerateToken("dashboard", []string{"forecast", "compare"}, time.Hour)
	require.NoError(t, err)
	claims, err := am.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.ClientID)
	assert.Equal(t, "dashboard", claims.Subject)
	assert.Equal(t, []string{"forecast", "compare"}, claims.Scopes)

	t.Run("rejects missing client id", func(t *testing.T) {
		anonymous, err := am.GenerateToken("", nil, time.Hour)
		require.NoError(t, err)
		_, err = am.ValidateToken(anonymous)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("rejects non-HMAC algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaims{ClientID: "x"})
		s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = am.ValidateToken(s)
		assert.Error(t, err)
	})
}
