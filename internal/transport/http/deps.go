package http

import (
	"github.com/go-marketplace-auth/internal/application/challenge"
	"github.com/go-marketplace-auth/internal/application/identity"
)

// Deps holds the infrastructure the router wires into the services. Each
// field is the narrow interface its consuming service declares, so main can
// choose DynamoDB or redis for challenges and SMTP or SNS for mail.
type Deps struct {
	Users       identity.UserStore
	Sessions    identity.SessionStore
	ResetTokens identity.ResetTokenStore
	Tokens      identity.TokenProvider
	Challenges  challenge.Store
	Cipher      challenge.Cipher
	Mailer      identity.Mailer
}
