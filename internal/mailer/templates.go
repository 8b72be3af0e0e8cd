package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"
)

const brand = "LexpertEase"

var resetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Password Reset - {{.Brand}}</title>
<style>
  body { font-family: 'Inter', -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #374151; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f9fafb; }
  .container { background-color: #ffffff; border-radius: 8px; padding: 40px; box-shadow: 0 1px 3px rgba(0, 0, 0, 0.1); }
  .logo h1 { color: #0F8BDB; font-size: 28px; text-align: center; margin: 0 0 32px; }
  .button { display: inline-block; background-color: #0F8BDB; color: #ffffff; padding: 12px 24px; text-decoration: none; border-radius: 6px; font-weight: 600; }
  .warning { background-color: #fef3c7; border: 1px solid #f59e0b; color: #92400e; padding: 16px; border-radius: 6px; margin: 16px 0; }
  .footer { margin-top: 32px; padding-top: 24px; border-top: 1px solid #e5e7eb; font-size: 14px; color: #6b7280; text-align: center; }
</style>
</head>
<body>
  <div class="container">
    <div class="logo"><h1>{{.Brand}}</h1></div>
    <h2 style="color: #111827;">Password Reset Request</h2>
    <p>Hello,</p>
    <p>We received a request to reset your password for your {{.Brand}} account. If you made this request, click the button below to choose a new password:</p>
    <div style="text-align: center; margin: 32px 0;"><a href="{{.ResetURL}}" class="button">Reset Password</a></div>
    <p>If the button doesn't work, copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: #0F8BDB;">{{.ResetURL}}</p>
    <div class="warning"><strong>Important:</strong> This password reset link will expire in {{.Expiry}} for security reasons.</div>
    <p>If you didn't request a password reset, please ignore this email. Your password will remain unchanged.</p>
    <div class="footer"><p>This email was sent by {{.Brand}}</p></div>
  </div>
</body>
</html>`))

var resetText = texttemplate.Must(texttemplate.New("reset").Parse(`Password Reset Request - {{.Brand}}

Hello,

We received a request to reset your password for your {{.Brand}} account.

Open the following link to reset your password:
{{.ResetURL}}

This link will expire in {{.Expiry}} for security reasons.

If you didn't request a password reset, please ignore this email.

Best regards,
{{.Brand}} Team
`))

type resetData struct {
	Brand    string
	ResetURL string
	Expiry   string
}

// ResetURL builds the link a user follows to choose a new password.
func ResetURL(appURL, token string) string {
	return strings.TrimRight(appURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

// PasswordResetMessage renders the reset email for to.
func PasswordResetMessage(appURL, to, token string, ttl time.Duration) (Message, error) {
	data := resetData{
		Brand:    brand,
		ResetURL: ResetURL(appURL, token),
		Expiry:   humanDuration(ttl),
	}

	var html, text bytes.Buffer
	if err := resetHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render reset html: %w", err)
	}
	if err := resetText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render reset text: %w", err)
	}

	return Message{
		To:      to,
		Subject: "Reset Your " + brand + " Password",
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// TestMessage is the probe sent by the admin email check.
func TestMessage(to string) Message {
	return Message{
		To:      to,
		Subject: brand + " - Email Test",
		HTML:    "<h1>Email Test Successful!</h1><p>Your email configuration is working correctly.</p>",
		Text:    "Email Test Successful! Your email configuration is working correctly.",
	}
}

func humanDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	m := int(d / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
