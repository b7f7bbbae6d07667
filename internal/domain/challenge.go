package domain

import "time"

// Purpose scopes a challenge. At most one challenge exists per (email, purpose).
type Purpose string

const (
	PurposeEmailVerification Purpose = "email-verification"
	PurposeSignIn            Purpose = "sign-in"
	PurposeForgetPassword    Purpose = "forget-password"
)

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeEmailVerification, PurposeSignIn, PurposeForgetPassword:
		return true
	}
	return false
}

// Challenge is a single OTP issuance. Only the encrypted envelope is persisted.
// PK: email, SK: purpose. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type Challenge struct {
	Email       string    `json:"email" dynamodbav:"email"`
	Purpose     Purpose   `json:"purpose" dynamodbav:"purpose"`
	ChallengeID string    `json:"challenge_id" dynamodbav:"challenge_id"`
	Envelope    string    `json:"-" dynamodbav:"envelope"`
	IssuedAt    time.Time `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt   int64     `json:"expires_at" dynamodbav:"expires_at"`
	// Attempts counts wrong codes submitted against this challenge.
	Attempts int `json:"attempts" dynamodbav:"attempts"`
}

// Expired reports whether the challenge is past its expiry at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.Unix() >= c.ExpiresAt
}
