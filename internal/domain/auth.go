package domain

import (
	"regexp"
	"strings"
)

const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Credentials struct {
	Email    string
	Password string
}

// SignupProfile is the account creation payload. Field names follow the
// upstream create_user contract.
type SignupProfile struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Password           string `json:"password"`
	Nickname           string `json:"nickname,omitempty"`
	PhoneNumber        string `json:"phone_number,omitempty"`
	GenderSlug         string `json:"gender_slug,omitempty"`
	AddressCountrySlug string `json:"address_country_slug,omitempty"`
	AddressStateSlug   string `json:"address_state_slug,omitempty"`
	AddressCity        string `json:"address_city,omitempty"`
	CellPhone          string `json:"cell_phone,omitempty"`
	Company            string `json:"company,omitempty"`
	CompanySite        string `json:"company_site,omitempty"`
	Position           string `json:"position,omitempty"`
}

func (p SignupProfile) Credentials() Credentials {
	return Credentials{Email: p.Email, Password: p.Password}
}

type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Nickname string `json:"nickname,omitempty"`
}

// SignupResult is the created user plus the raw Set-Cookie values the
// upstream attached to the response. Status is the upstream success status.
type SignupResult struct {
	User    User
	Status  int
	Cookies []string
}

type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserScope   string `json:"user_scope,omitempty"`
}

type AgentLink struct {
	SignedURL string `json:"signed_url"`
}

// RequireCredentials checks field presence only.
func RequireCredentials(email, password string) error {
	switch {
	case strings.TrimSpace(email) == "":
		return NewValidationError("email is required")
	case password == "":
		return NewValidationError("password is required")
	}
	return nil
}

// RequireProfile checks the fields create_user cannot do without.
func RequireProfile(p SignupProfile) error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name is required")
	}
	return RequireCredentials(p.Email, p.Password)
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateLoginInput is the local check run before a login submission.
func ValidateLoginInput(c Credentials) error {
	if err := RequireCredentials(c.Email, c.Password); err != nil {
		return err
	}
	if !ValidEmail(c.Email) {
		return NewValidationError("invalid email")
	}
	return nil
}

// ValidateSignupInput is the local check run before a signup submission.
func ValidateSignupInput(p SignupProfile) error {
	if err := RequireProfile(p); err != nil {
		return err
	}
	if !ValidEmail(p.Email) {
		return NewValidationError("invalid email")
	}
	if len([]rune(p.Password)) < MinPasswordLength {
		return NewValidationError("password too short")
	}
	return nil
}
