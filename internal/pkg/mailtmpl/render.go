// Package mailtmpl renders the transactional mail templates into HTML bodies.
package mailtmpl

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/go-marketplace-auth/internal/domain"
)

const otpCodeHTML = `<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<p>{{.Description}}</p>
<p style="font-size:28px;letter-spacing:6px"><strong>{{.Code}}</strong></p>
{{if .ExpiryLabel}}<p>This code expires in {{.ExpiryLabel}}.</p>{{end}}
<p>If you did not request this, you can ignore this email.</p>
</body></html>`

const actionLinkHTML = `<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<p>{{.Description}}</p>
<p><a href="{{.URL}}">{{.URL}}</a></p>
{{if .ExpiryLabel}}<p>This link expires in {{.ExpiryLabel}}.</p>{{end}}
<p>If you did not request this, you can ignore this email.</p>
</body></html>`

var templates = map[domain.MailTemplate]*template.Template{
	domain.TemplateOTPCode:    template.Must(template.New(string(domain.TemplateOTPCode)).Parse(otpCodeHTML)),
	domain.TemplateActionLink: template.Must(template.New(string(domain.TemplateActionLink)).Parse(actionLinkHTML)),
}

// Render executes the template named by msg.Template against its payload.
// The payload type must match the template.
func Render(msg domain.MailMessage) (string, error) {
	tmpl, ok := templates[msg.Template]
	if !ok {
		return "", fmt.Errorf("unknown mail template %q", msg.Template)
	}
	switch msg.Template {
	case domain.TemplateOTPCode:
		if _, ok := msg.Payload.(domain.OTPCodePayload); !ok {
			return "", fmt.Errorf("template %s: unexpected payload %T", msg.Template, msg.Payload)
		}
	case domain.TemplateActionLink:
		if _, ok := msg.Payload.(domain.ActionLinkPayload); !ok {
			return "", fmt.Errorf("template %s: unexpected payload %T", msg.Template, msg.Payload)
		}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, msg.Payload); err != nil {
		return "", fmt.Errorf("render %s: %w", msg.Template, err)
	}
	return buf.String(), nil
}

// ExpiryLabel renders a duration for mail copy, e.g. "5 minutes" or "1 hour".
func ExpiryLabel(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d.Round(time.Second)/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
