package domain

// ResetToken is a single-use password reset proof. The plaintext token only
// travels inside the emailed URL; the table is keyed by its SHA-256 hash.
type ResetToken struct {
	TokenHash string `json:"-" dynamodbav:"token_hash"`
	UserID    string `json:"user_id" dynamodbav:"user_id"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}
