package email_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ErlanBelekov/agentgate/internal/email"
)

func TestWelcomeBody_EscapesInput(t *testing.T) {
	body, err := email.WelcomeBody("<b>Ana</b>", "ana@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(body, "<b>Ana</b>") {
		t.Errorf("name not escaped: %s", body)
	}
	if !strings.Contains(body, "ana@example.com") {
		t.Errorf("email missing: %s", body)
	}
}

func TestNewSender_LocalLogs(t *testing.T) {
	s := email.NewSender("local", "", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, ok := s.(*email.LogSender); !ok {
		t.Fatalf("want *LogSender, got %T", s)
	}
	if err := s.Send(context.Background(), "a@b.co", email.WelcomeSubject, "body"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewSender_ProductionUsesResend(t *testing.T) {
	s := email.NewSender("production", "re_test", "noreply@example.com", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, ok := s.(*email.ResendSender); !ok {
		t.Fatalf("want *ResendSender, got %T", s)
	}
}
