package domain

import (
	"errors"
	"net/http"
)

// Kind is the machine-readable class of a failure surfaced to callers.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindConflict   Kind = "conflict"
	KindPermission Kind = "permission"
	KindUpstream   Kind = "upstream"
	KindTransport  Kind = "transport"
)

// Error is the uniform failure shape shared by the proxies, the orchestrator
// and the local HTTP surface. Status is the upstream HTTP status when one was
// received, zero otherwise.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Details any
}

func (e *Error) Error() string { return e.Message }

// Is matches sentinels by kind, so errors.Is(err, ErrAuth) holds for every
// auth failure regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrPermission = &Error{Kind: KindPermission}
	ErrUpstream   = &Error{Kind: KindUpstream}
	ErrTransport  = &Error{Kind: KindTransport}
)

const (
	MsgInvalidCredentials = "invalid credentials"
	MsgAccountExists      = "account already exists"
	MsgSessionExpired     = "session expired"
	MsgFeatureDisabled    = "feature not enabled"
	MsgTokenRequired      = "authentication token required"
	MsgUserTimeRequired   = "user_time is required"
	MsgUpstreamFailed     = "upstream request failed"
	MsgUpstreamDown       = "upstream unreachable"
	MsgValidationFailed   = "validation failed"
	MsgAgentLinkFailed    = "failed to get agent link"
	MsgAgentLinkMissing   = "agent link missing from upstream response"
	MsgTokenMissing       = "access token missing from upstream response"
	MsgSessionInvalid     = "session invalid, retry login"
	MsgSignedUpNoLogin    = "account created, but sign-in failed"
	MsgStorageUnavailable = "session storage unavailable"
)

func NewValidationError(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func NewAuthError(msg string) *Error       { return &Error{Kind: KindAuth, Message: msg} }
func NewConflictError(msg string) *Error   { return &Error{Kind: KindConflict, Message: msg} }
func NewPermissionError(msg string) *Error { return &Error{Kind: KindPermission, Message: msg} }
func NewTransportError(msg string) *Error  { return &Error{Kind: KindTransport, Message: msg} }

func NewUpstreamError(msg string, status int, details any) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Status: status, Details: details}
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

// KindForStatus classifies an HTTP status returned by a proxy surface.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusForbidden:
		return KindPermission
	case http.StatusConflict:
		return KindConflict
	default:
		return KindUpstream
	}
}

// StatusForKind is the local status used when no upstream status is known.
func StatusForKind(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
