package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestPolicy(t *testing.T) *OriginPolicy {
	t.Helper()

	policy, err := NewOriginPolicy(
		[]string{"http://localhost:5173", " https://app.example "},
		[]string{`^https://auth-frontend-.*\.vercel\.app$`},
	)
	require.NoError(t, err)
	return policy
}

func TestOriginPolicyAllowed(t *testing.T) {
	policy := newTestPolicy(t)

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"https://app.example", true},
		{"https://auth-frontend-git-main.vercel.app", true},
		{"https://evil.example", false},
		{"http://localhost:5174", false},
		{"https://auth-frontend-x.vercel.app.evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Allowed(tt.origin))
		})
	}
}

func TestNewOriginPolicyRejectsBadPattern(t *testing.T) {
	_, err := NewOriginPolicy(nil, []string{"(unclosed"})
	assert.Error(t, err)
}

func newGatedRouter(t *testing.T, handlerCalled *bool) *gin.Engine {
	t.Helper()

	policy := newTestPolicy(t)
	router := gin.New()
	router.Use(OriginGate(policy), CORS(policy))
	router.POST("/api/auth/login", func(c *gin.Context) {
		*handlerCalled = true
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return router
}

func TestOriginGateRejectsUnknownOrigin(t *testing.T) {
	called := false
	router := newGatedRouter(t, &called)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.AddCookie(&http.Cookie{Name: "sid", Value: "whatever"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"message":"Not allowed by CORS"}`, w.Body.String())
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called, "handler must not run for a rejected origin")
}

func TestOriginGateAllowsMissingOrigin(t *testing.T) {
	called := false
	router := newGatedRouter(t, &called)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSHeadersForAllowedOrigin(t *testing.T) {
	called := false
	router := newGatedRouter(t, &called)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://auth-frontend-pr-7.vercel.app")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	assert.Equal(t, "https://auth-frontend-pr-7.vercel.app", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSPreflightDoesNotReachHandler(t *testing.T) {
	called := false
	router := newGatedRouter(t, &called)
	router.OPTIONS("/api/auth/login", func(c *gin.Context) {
		called = true
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, called)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSPreflightFromUnknownOriginIsRejected(t *testing.T) {
	called := false
	router := newGatedRouter(t, &called)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)
}
