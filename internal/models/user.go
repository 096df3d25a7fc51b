package models

import "time"

// User represents a row in the PostgreSQL users table. Email users carry a
// password hash; wallet users carry only a wallet address.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username,omitempty"`
	Email         string    `json:"email,omitempty"`
	Password      string    `json:"-"` // never serialize
	WalletAddress string    `json:"walletAddress,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// RegisterRequest is the JSON body for POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the JSON body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by every successful login flow.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Challenge is a one-time message a wallet must sign.
type Challenge struct {
	WalletAddress string    `json:"walletAddress"`
	Challenge     string    `json:"challenge"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// ChallengeRequest is the JSON body for POST /api/auth/solana/challenge.
type ChallengeRequest struct {
	WalletAddress string `json:"walletAddress"`
}

// VerifyRequest is the JSON body for POST /api/auth/solana/verify. The
// signature arrives as a JSON array of byte values.
type VerifyRequest struct {
	WalletAddress string `json:"walletAddress"`
	Challenge     string `json:"challenge"`
	Signature     []int  `json:"signature"`
}
