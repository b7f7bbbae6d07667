package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable       = "enable"
	fieldUpdatedAt    = "updated_at"
	fieldVerified     = "verified"
	fieldVerifiedAt   = "verified_at"
	fieldPasswordHash = "password_hash"
	fieldChallengeID  = "challenge_id"
	fieldAttempts     = "attempts"
)
