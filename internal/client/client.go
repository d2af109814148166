// Package client calls the local proxy surface of an agentgate server. It
// satisfies the bootstrap interfaces, so non-browser callers run the same
// flow as the web pages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ErlanBelekov/agentgate/internal/domain"
)

const maxBodyBytes = 1 << 20

type Client struct {
	base string
	http *http.Client
}

// New returns a client for the server at base, e.g. http://localhost:8080.
// A nil hc uses http.DefaultClient.
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func (c *Client) Signup(ctx context.Context, profile domain.SignupProfile) (*domain.SignupResult, error) {
	var user domain.User
	resp, err := c.do(ctx, http.MethodPost, "/signup", "", profile, &user)
	if err != nil {
		return nil, err
	}
	return &domain.SignupResult{
		User:    user,
		Status:  resp.StatusCode,
		Cookies: resp.Header.Values("Set-Cookie"),
	}, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	var sess domain.Session
	payload := map[string]string{"email": email, "password": password}
	if _, err := c.do(ctx, http.MethodPost, "/login", "", payload, &sess); err != nil {
		return nil, err
	}
	if sess.AccessToken == "" {
		return nil, domain.NewUpstreamError(domain.MsgTokenMissing, 0, nil)
	}
	if sess.TokenType == "" {
		sess.TokenType = "bearer"
	}
	return &sess, nil
}

func (c *Client) AgentLink(ctx context.Context, token, userTime string) (*domain.AgentLink, error) {
	var link domain.AgentLink
	path := "/get-agent-link?user_time=" + url.QueryEscape(userTime)
	if _, err := c.do(ctx, http.MethodGet, path, token, nil, &link); err != nil {
		return nil, err
	}
	if link.SignedURL == "" {
		return nil, domain.NewUpstreamError(domain.MsgAgentLinkMissing, 0, nil)
	}
	return &link, nil
}

func (c *Client) FetchAgentLink(ctx context.Context, sess domain.Session, userTime string) (*domain.AgentLink, error) {
	return c.AgentLink(ctx, sess.AccessToken, userTime)
}

func (c *Client) do(ctx context.Context, method, path, token string, payload, out any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewTransportError("server unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewTransportError("server unreachable")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp.StatusCode, raw)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, domain.NewUpstreamError("malformed server response", resp.StatusCode, string(raw))
		}
	}
	return resp, nil
}

func decodeError(status int, raw []byte) *domain.Error {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil || eb.Error == "" {
		eb.Error = http.StatusText(status)
	}
	return &domain.Error{
		Kind:    domain.KindForStatus(status),
		Message: eb.Error,
		Status:  status,
		Details: eb.Details,
	}
}
