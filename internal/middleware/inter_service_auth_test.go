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

const interServiceSecret = "inter-service-secret"

func signServiceToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newInternalRouter(auth *middleware.InterServiceAuthenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/paid", auth.Required(), func(c *gin.Context) {
		c.String(http.StatusOK, middleware.SourceService(c))
	})
	return r
}

func doInternal(r http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/paid", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInterServiceAuthenticator(t *testing.T) {
	r := newInternalRouter(middleware.NewInterServiceAuthenticator(interServiceSecret, zap.NewNop()))

	t.Run("service token accepted", func(t *testing.T) {
		w := doInternal(r, map[string]string{middleware.InterServiceTokenHeader: signServiceToken(t, interServiceSecret, "payment-service", time.Hour)})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "payment-service", w.Body.String())
	})

	t.Run("user bearer token is forbidden", func(t *testing.T) {
		w := doInternal(r, map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, "user-42", time.Hour)})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("user token in service header is rejected", func(t *testing.T) {
		w := doInternal(r, map[string]string{middleware.InterServiceTokenHeader: signToken(t, testSecret, "user-42", time.Hour)})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired service token", func(t *testing.T) {
		w := doInternal(r, map[string]string{middleware.InterServiceTokenHeader: signServiceToken(t, interServiceSecret, "payment-service", -time.Minute)})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), models.ErrCodeTokenExpired)
	})
}

func TestInterServiceAuthenticator_NoSecretClosesRoute(t *testing.T) {
	r := newInternalRouter(middleware.NewInterServiceAuthenticator("", zap.NewNop()))
	w := doInternal(r, map[string]string{middleware.InterServiceTokenHeader: signServiceToken(t, interServiceSecret, "payment-service", time.Hour)})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
