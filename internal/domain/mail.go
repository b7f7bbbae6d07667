package domain

type MailTemplate string

const (
	TemplateOTPCode    MailTemplate = "otp-code"
	TemplateActionLink MailTemplate = "action-link"
)

// MailMessage is the contract handed to the mail transport.
// Payload is an OTPCodePayload or an ActionLinkPayload depending on Template.
type MailMessage struct {
	To       string       `json:"to"`
	Subject  string       `json:"subject"`
	Template MailTemplate `json:"template"`
	Payload  any          `json:"payload"`
}

type OTPCodePayload struct {
	Description string `json:"description"`
	Code        string `json:"code"`
	ExpiryLabel string `json:"expiry_label,omitempty"`
}

type ActionLinkPayload struct {
	Description string `json:"description"`
	URL         string `json:"url"`
	ExpiryLabel string `json:"expiry_label,omitempty"`
}
