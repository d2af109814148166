package upstream

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ErlanBelekov/agentgate/internal/domain"
)

// linkFields are tried in order; the first non-empty string wins. The
// upstream contract does not say which one is authoritative.
var linkFields = []string{"signed_url", "link", "agent_link"}

func translateCredentialStatus(op string, status int, body []byte) *domain.Error {
	details := decodeDetails(body)

	switch {
	case status == http.StatusUnauthorized:
		return &domain.Error{Kind: domain.KindAuth, Message: domain.MsgInvalidCredentials, Status: status, Details: details}
	case status == http.StatusConflict && op == "signup":
		return &domain.Error{Kind: domain.KindConflict, Message: domain.MsgAccountExists, Status: status, Details: details}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &domain.Error{Kind: domain.KindValidation, Message: validationMessage(body), Status: status, Details: details}
	default:
		return domain.NewUpstreamError(upstreamMessage(body, domain.MsgUpstreamFailed), status, rawDetails(body, details))
	}
}

func translateAgentLinkStatus(status int, body []byte) *domain.Error {
	details := decodeDetails(body)

	switch status {
	case http.StatusUnauthorized:
		return &domain.Error{Kind: domain.KindAuth, Message: domain.MsgSessionExpired, Status: status, Details: details}
	case http.StatusForbidden:
		return &domain.Error{Kind: domain.KindPermission, Message: domain.MsgFeatureDisabled, Status: status, Details: details}
	default:
		return domain.NewUpstreamError(upstreamMessage(body, domain.MsgAgentLinkFailed), status, rawDetails(body, details))
	}
}

// validationMessage prefers the first structured message
// (detail[0].msg), then message, then error.
func validationMessage(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.MsgValidationFailed
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &items) == nil && len(items) > 0 && items[0].Msg != "" {
		return items[0].Msg
	}
	if payload.Message != "" {
		return payload.Message
	}
	if payload.Error != "" {
		return payload.Error
	}
	return domain.MsgValidationFailed
}

// upstreamMessage returns detail or message when the upstream sent them as
// plain strings, fallback otherwise.
func upstreamMessage(body []byte, fallback string) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}
	for _, key := range []string{"detail", "message"} {
		if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return fallback
}

func extractLink(body []byte) (string, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	for _, key := range linkFields {
		if s, ok := payload[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func decodeDetails(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	return v
}

// rawDetails keeps non-JSON bodies as text so diagnostics survive.
func rawDetails(body []byte, decoded any) any {
	if decoded != nil || len(body) == 0 {
		return decoded
	}
	return string(body)
}
