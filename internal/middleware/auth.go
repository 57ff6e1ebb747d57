package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"destiny-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

// Authenticator проверяет access-токены, выпущенные внешним сервисом аутентификации.
// С пустым секретом проверка отключена и все запросы анонимны.
type Authenticator struct {
	secret []byte
	logger *zap.Logger
}

func NewAuthenticator(secret string, logger *zap.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), logger: logger.Named("Auth")}
}

// Enabled сообщает, настроена ли проверка токенов.
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// VerifyToken разбирает и проверяет HS256-токен.
func (a *Authenticator) VerifyToken(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}

// Optional подставляет user_id, если передан валидный токен. Невалидный токен - 401.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return a.handler(false)
}

// Required требует валидный токен, когда проверка включена.
func (a *Authenticator) Required() gin.HandlerFunc {
	return a.handler(true)
}

func (a *Authenticator) handler(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}

		tokenString, ok := bearerToken(c)
		if !ok {
			if required {
				a.logger.Warn("Authorization header missing or malformed", zap.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "Missing or malformed token"})
				return
			}
			c.Next()
			return
		}

		claims, err := a.VerifyToken(tokenString)
		if err != nil {
			code, msg := models.ErrCodeTokenInvalid, "Token is invalid"
			if errors.Is(err, models.ErrTokenExpired) {
				code, msg = models.ErrCodeTokenExpired, "Token has expired"
			}
			a.logger.Warn("Token verification failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Code: code, Message: msg})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// UserID возвращает ID пользователя из контекста или пустую строку.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		// браузерный WebSocket не умеет слать заголовки
		if token := c.Query("access_token"); token != "" {
			return token, true
		}
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
