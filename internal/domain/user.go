package domain

import (
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a login credential. Email is unique across the table (email-index GSI).
type User struct {
	UserID       string     `json:"id" dynamodbav:"user_id"`
	Name         string     `json:"name" dynamodbav:"name"`
	Email        string     `json:"email" dynamodbav:"email"`
	PasswordHash string     `json:"-" dynamodbav:"password_hash"`
	Role         string     `json:"role" dynamodbav:"role"`
	Verified     bool       `json:"verified" dynamodbav:"verified"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty" dynamodbav:"verified_at"`
	Enable       bool       `json:"enable" dynamodbav:"enable"`
	CreatedAt    time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// NormalizeEmail lowercases and trims an address so lookups and challenge keys agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
