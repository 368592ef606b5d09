package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{"bounded", 50 * time.Millisecond, true},
		{"disabled", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hasDeadline bool
			var remaining time.Duration
			router := gin.New()
			router.Use(Timeout(tt.timeout))
			router.GET("/slow", func(c *gin.Context) {
				var deadline time.Time
				deadline, hasDeadline = c.Request.Context().Deadline()
				remaining = time.Until(deadline)
				c.Status(http.StatusNoContent)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

			assert.Equal(t, http.StatusNoContent, w.Code)
			assert.Equal(t, tt.wantDeadline, hasDeadline)
			if tt.wantDeadline {
				assert.LessOrEqual(t, remaining, tt.timeout)
			}
		})
	}
}

func TestTimeout_ExpiresContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Timeout(10 * time.Millisecond))
	router.GET("/wait", func(c *gin.Context) {
		<-c.Request.Context().Done()
		c.String(http.StatusGatewayTimeout, c.Request.Context().Err().Error())
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wait", nil))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "context deadline exceeded", w.Body.String())
}
