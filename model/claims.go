package model

import "github.com/golang-jwt/jwt/v5"

// AppClaims are carried by access tokens; Subject holds the login.
type AppClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}
