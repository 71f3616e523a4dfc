package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/mystery-message-api/internal/infrastructure/smtp"
	"github.com/mystery-message-api/internal/infrastructure/sns"
)

// Dispatcher delivers a verification code to a newly registered user.
type Dispatcher interface {
	SendVerification(ctx context.Context, email, username, code string) error
}

const verificationSubject = "Mystery Message | Verification Code"

var verificationText = texttemplate.Must(texttemplate.New("text").Parse(
	`Hello {{.Username}},

Thank you for registering. Please use the following verification code to complete your registration:

{{.Code}}

If you did not request this code, please ignore this email.
`))

var verificationHTML = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Verification Code</title></head>
<body style="font-family: Roboto, Verdana, sans-serif">
  <h2>Hello {{.Username}},</h2>
  <p>Thank you for registering. Please use the following verification code to complete your registration:</p>
  <p style="font-size: 24px; letter-spacing: 4px"><strong>{{.Code}}</strong></p>
  <p>If you did not request this code, please ignore this email.</p>
</body>
</html>
`))

type verificationData struct {
	Username string
	Code     string
}

func renderVerification(username, code string) (text, html string, err error) {
	data := verificationData{Username: username, Code: code}
	var tb, hb bytes.Buffer
	if err := verificationText.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("render text body: %w", err)
	}
	if err := verificationHTML.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("render html body: %w", err)
	}
	return tb.String(), hb.String(), nil
}

// EmailDispatcher sends the code as a multipart email over SMTP.
type EmailDispatcher struct {
	mailer smtp.Mailer
}

func NewEmailDispatcher(mailer smtp.Mailer) *EmailDispatcher {
	return &EmailDispatcher{mailer: mailer}
}

func (d *EmailDispatcher) SendVerification(_ context.Context, email, username, code string) error {
	text, html, err := renderVerification(username, code)
	if err != nil {
		return err
	}
	if err := d.mailer.SendEmail(email, verificationSubject, text, html); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

// EventVerificationCode is the event_type attribute of published verification events.
const EventVerificationCode = "verification_code"

// VerificationEvent is the SNS payload consumed by whatever delivers the code.
type VerificationEvent struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Code     string `json:"code"`
	Subject  string `json:"subject"`
}

// SNSDispatcher publishes the code to a topic instead of mailing it directly.
type SNSDispatcher struct {
	publisher sns.Publisher
}

func NewSNSDispatcher(publisher sns.Publisher) *SNSDispatcher {
	return &SNSDispatcher{publisher: publisher}
}

func (d *SNSDispatcher) SendVerification(ctx context.Context, email, username, code string) error {
	body, err := json.Marshal(VerificationEvent{Email: email, Username: username, Code: code, Subject: verificationSubject})
	if err != nil {
		return err
	}
	if err := d.publisher.Publish(ctx, EventVerificationCode, string(body)); err != nil {
		return fmt.Errorf("publish verification event: %w", err)
	}
	return nil
}
