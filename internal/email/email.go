package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs mail instead of sending it. Used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, _, subject, _ string) error {
	s.logger.InfoContext(ctx, "mail (local dev)", "subject", subject)
	return nil
}

// ResendSender sends mail via the Resend API. Used in staging/production.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger.With("component", "email")}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

const WelcomeSubject = "Your agent account is ready"

var welcomeTmpl = template.Must(template.New("welcome").Parse(
	`<p>Hi {{.Name}},</p><p>Your account ({{.Email}}) was created. Sign in to start a conversation with your agent.</p>`,
))

// WelcomeBody renders the post-signup mail with name and email escaped.
func WelcomeBody(name, addr string) (string, error) {
	var buf bytes.Buffer
	if err := welcomeTmpl.Execute(&buf, struct{ Name, Email string }{name, addr}); err != nil {
		return "", fmt.Errorf("render welcome mail: %w", err)
	}
	return buf.String(), nil
}
