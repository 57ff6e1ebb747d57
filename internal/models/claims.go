package models

import "github.com/golang-jwt/jwt/v5"

// Claims - полезная нагрузка access-токена.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
