package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ModeratorSubject is the JWT subject of every moderator session.
const ModeratorSubject = "moderator"

// Claims defines the structure of the JWT claims.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest for POST /auth/login
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued session token
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
