package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccountKind distinguishes admin and student principals in tokens.
type AccountKind string

const (
	AccountKindAdmin   AccountKind = "admin"
	AccountKindStudent AccountKind = "student"
)

// LoginRequest holds credentials for authenticating an account.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens and account info.
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	Account      AccountInfo `json:"account"`
	IssuedAt     time.Time   `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// AccountInfo describes the authenticated account in responses.
type AccountInfo struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	FullName string      `json:"full_name"`
	Kind     AccountKind `json:"kind"`
	Roles    []Role      `json:"roles,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	AccountID string      `json:"account_id"`
	Kind      AccountKind `json:"kind"`
	Email     string      `json:"email"`
	Roles     []Role      `json:"roles,omitempty"`
	jwt.RegisteredClaims
}
