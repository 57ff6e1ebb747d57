package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"destiny-server/internal/middleware"
	"destiny-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, userID string, ttl time.Duration) string {
	t.Helper()
	claims := models.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newRouter(auth *middleware.Authenticator, required bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	mw := auth.Optional()
	if required {
		mw = auth.Required()
	}
	r.GET("/me", mw, func(c *gin.Context) {
		c.String(http.StatusOK, middleware.UserID(c))
	})
	return r
}

func doGet(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticator(t *testing.T) {
	auth := middleware.NewAuthenticator(testSecret, zap.NewNop())

	t.Run("valid token sets user id", func(t *testing.T) {
		w := doGet(newRouter(auth, true), signToken(t, testSecret, "user-42", time.Hour))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-42", w.Body.String())
	})

	t.Run("missing token on required route", func(t *testing.T) {
		w := doGet(newRouter(auth, true), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing token on optional route", func(t *testing.T) {
		w := doGet(newRouter(auth, false), "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("expired token", func(t *testing.T) {
		w := doGet(newRouter(auth, false), signToken(t, testSecret, "user-42", -time.Minute))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), models.ErrCodeTokenExpired)
	})

	t.Run("wrong signature", func(t *testing.T) {
		w := doGet(newRouter(auth, true), signToken(t, "other-secret", "user-42", time.Hour))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), models.ErrCodeTokenInvalid)
	})
}

func TestAuthenticator_Disabled(t *testing.T) {
	auth := middleware.NewAuthenticator("", zap.NewNop())
	assert.False(t, auth.Enabled())

	w := doGet(newRouter(auth, true), "garbage")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGinZapLogger_RequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.GinZapLogger(zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.RequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get(middleware.RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, w.Header().Get(middleware.RequestIDHeader), w.Body.String())
}
