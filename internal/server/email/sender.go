// Package email defines the outbound mail collaborator contract. Actual
// delivery (provider APIs, templates, retries) lives outside this core; the
// engine only depends on the Send contract.
package email

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/relativit/relativit/internal/logging"
)

// Sender delivers one message and returns the collaborator's message id.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) (id string, err error)
}

// LogSender is the development sender: it logs the message instead of
// delivering it, so verification codes are readable from the server log.
type LogSender struct {
	logger logging.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(l logging.Logger) *LogSender {
	return &LogSender{logger: l.With("module", "email")}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) (string, error) {
	id := uuid.NewString()
	s.logger.Info(ctx, "email (not delivered, dev sender)",
		"id", id, "to", to, "subject", subject, "body", body)
	return id, nil
}

// VerificationSubject renders the subject line for a verification code mail.
func VerificationSubject(purpose string) string {
	if purpose == "signup" {
		return "Confirm your email address"
	}
	return "Your sign-in code"
}

// VerificationBody renders the plain-text body for a verification code mail.
func VerificationBody(code string) string {
	return fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)
}

// WelcomeSubject and WelcomeBody render the post-registration mail.
func WelcomeSubject() string { return "Welcome to Relativit" }

func WelcomeBody(name string) string {
	return fmt.Sprintf("Hi %s, your account is ready.", name)
}
