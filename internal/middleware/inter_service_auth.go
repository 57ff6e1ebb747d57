package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"destiny-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	InterServiceTokenHeader = "X-Internal-Service-Token"
	sourceServiceKey        = "source_service"
)

// InterServiceAuthenticator проверяет межсервисные токены (например, от платежного сервиса).
// Секрет отличается от секрета пользовательских токенов. Без секрета все межсервисные маршруты закрыты.
type InterServiceAuthenticator struct {
	secret []byte
	logger *zap.Logger
}

func NewInterServiceAuthenticator(secret string, logger *zap.Logger) *InterServiceAuthenticator {
	return &InterServiceAuthenticator{secret: []byte(secret), logger: logger.Named("InterServiceAuth")}
}

// VerifyInterServiceToken проверяет HS256-токен и возвращает его claims. Subject - имя сервиса-источника.
func (a *InterServiceAuthenticator) VerifyInterServiceToken(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}

// Required пропускает только запросы с валидным X-Internal-Service-Token.
// Пользовательский Authorization здесь ничего не дает: без межсервисного токена ответ 403.
func (a *InterServiceAuthenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := a.logger.With(zap.String("path", c.Request.URL.Path))

		if len(a.secret) == 0 {
			log.Warn("Inter-service secret is not configured, rejecting request")
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{Code: models.ErrCodeForbidden, Message: "Inter-service access is disabled"})
			return
		}

		tokenString := c.GetHeader(InterServiceTokenHeader)
		if tokenString == "" {
			log.Warn("X-Internal-Service-Token header missing")
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{Code: models.ErrCodeForbidden, Message: "This operation is reserved for internal services"})
			return
		}

		claims, err := a.VerifyInterServiceToken(tokenString)
		if err != nil {
			code, msg := models.ErrCodeTokenInvalid, "Invalid inter-service token"
			if errors.Is(err, models.ErrTokenExpired) {
				code, msg = models.ErrCodeTokenExpired, "Inter-service token expired"
			}
			log.Warn("Inter-service token verification failed", zap.Error(err), zap.String("tokenSnippet", tokenSnippet(tokenString)))
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Code: code, Message: msg})
			return
		}

		c.Set(sourceServiceKey, claims.Subject)
		log.Debug("Inter-service request authorized", zap.String("source_service", claims.Subject))
		c.Next()
	}
}

// SourceService возвращает имя сервиса, вызвавшего межсервисный маршрут.
func SourceService(c *gin.Context) string {
	return c.GetString(sourceServiceKey)
}

func tokenSnippet(token string) string {
	if len(token) > 15 {
		return token[:15] + "..."
	}
	return token
}
