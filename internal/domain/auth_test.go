package domain_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ErlanBelekov/agentgate/internal/domain"
)

func TestValidateSignupInput(t *testing.T) {
	valid := domain.SignupProfile{Name: "Ana", Email: "ana@x.com", Password: "secret1"}

	cases := []struct {
		name    string
		mutate  func(p *domain.SignupProfile)
		wantMsg string
	}{
		{"valid", func(*domain.SignupProfile) {}, ""},
		{"missing name", func(p *domain.SignupProfile) { p.Name = " " }, "name is required"},
		{"missing email", func(p *domain.SignupProfile) { p.Email = "" }, "email is required"},
		{"missing password", func(p *domain.SignupProfile) { p.Password = "" }, "password is required"},
		{"malformed email", func(p *domain.SignupProfile) { p.Email = "not-an-email" }, "invalid email"},
		{"short password", func(p *domain.SignupProfile) { p.Password = "abc" }, "password too short"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			err := domain.ValidateSignupInput(p)
			if tc.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if err.Error() != tc.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestValidateLoginInput(t *testing.T) {
	if err := domain.ValidateLoginInput(domain.Credentials{Email: "a@b.io", Password: "x"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := domain.ValidateLoginInput(domain.Credentials{Email: "not-an-email", Password: "whatever"})
	if !errors.Is(err, domain.ErrValidation) || err.Error() != "invalid email" {
		t.Errorf("malformed email: got %v", err)
	}

	// login does not enforce the signup minimum length
	if err := domain.ValidateLoginInput(domain.Credentials{Email: "a@b.io", Password: "abc"}); err != nil {
		t.Errorf("short login password rejected: %v", err)
	}
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("fetch: %w", domain.NewAuthError(domain.MsgSessionExpired))

	if !errors.Is(err, domain.ErrAuth) {
		t.Error("wrapped auth error must match ErrAuth")
	}
	if errors.Is(err, domain.ErrPermission) {
		t.Error("auth error must not match ErrPermission")
	}
	if k := domain.KindOf(err); k != domain.KindAuth {
		t.Errorf("KindOf = %q, want auth", k)
	}
	if k := domain.KindOf(errors.New("plain")); k != "" {
		t.Errorf("KindOf(plain) = %q, want empty", k)
	}
}

func TestKindForStatus(t *testing.T) {
	cases := map[int]domain.Kind{
		http.StatusUnprocessableEntity: domain.KindValidation,
		http.StatusUnauthorized:        domain.KindAuth,
		http.StatusForbidden:           domain.KindPermission,
		http.StatusConflict:            domain.KindConflict,
		http.StatusInternalServerError: domain.KindUpstream,
	}
	for status, want := range cases {
		if got := domain.KindForStatus(status); got != want {
			t.Errorf("KindForStatus(%d) = %q, want %q", status, got, want)
		}
	}
}
