// Package upstream talks to the hosted voice-agent API and translates its
// transport and status semantics into domain errors.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ErlanBelekov/agentgate/internal/domain"
	"github.com/ErlanBelekov/agentgate/internal/metrics"
	"golang.org/x/oauth2"
)

const maxBodyBytes = 1 << 20

type Options struct {
	// APIBase is the upstream base, e.g. https://api.example.com/specialist_consultant.
	APIBase string
	// AuthSuffix is stripped from APIBase to find the auth root.
	AuthSuffix string
	Tenant     string
	// Timeout of zero leaves the transport defaults in charge.
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	http     *http.Client
	apiBase  string
	authRoot string
	tenant   string
	logger   *slog.Logger
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	base := strings.TrimRight(opts.APIBase, "/")
	return &Client{
		http:     hc,
		apiBase:  base,
		authRoot: AuthRoot(base, opts.AuthSuffix),
		tenant:   opts.Tenant,
		logger:   logger.With("component", "upstream"),
	}
}

// AuthRoot removes the first occurrence of suffix from apiBase. Auth
// endpoints sit on a sibling path of the main API.
func AuthRoot(apiBase, suffix string) string {
	if suffix == "" {
		return apiBase
	}
	return strings.Replace(apiBase, suffix, "", 1)
}

func (c *Client) AuthRoot() string { return c.authRoot }

// Signup creates an account. Cookies set by the upstream are returned as raw
// Set-Cookie values so the caller can relay them unmodified.
func (c *Client) Signup(ctx context.Context, profile domain.SignupProfile) (*domain.SignupResult, error) {
	const op = "signup"
	start := time.Now()

	endpoint := c.apiBase + "/create_user/" + url.PathEscape(c.tenant)
	resp, body, err := c.postJSON(ctx, endpoint, "", profile)
	if err != nil {
		c.observe(op, start, err)
		return nil, err
	}

	if !success(resp.StatusCode) {
		err := translateCredentialStatus(op, resp.StatusCode, body)
		c.logger.WarnContext(ctx, "signup rejected", "status", resp.StatusCode, "kind", domain.KindOf(err))
		c.observe(op, start, err)
		return nil, err
	}

	var user domain.User
	if len(body) > 0 {
		if err := json.Unmarshal(body, &user); err != nil {
			uerr := domain.NewUpstreamError(domain.MsgUpstreamFailed, resp.StatusCode, string(body))
			c.observe(op, start, uerr)
			return nil, uerr
		}
	}

	c.observe(op, start, nil)
	return &domain.SignupResult{
		User:    user,
		Status:  resp.StatusCode,
		Cookies: resp.Header.Values("Set-Cookie"),
	}, nil
}

// Login runs the OAuth2 resource-owner password grant against
// {authRoot}/auth/login.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	const op = "login"
	start := time.Now()

	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.authRoot + "/auth/login",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	tok, err := conf.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		derr := c.translateTokenError(op, err)
		c.logger.WarnContext(ctx, "login rejected", "kind", derr.Kind, "status", derr.Status)
		c.observe(op, start, derr)
		return nil, derr
	}

	session := &domain.Session{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
	}
	if session.TokenType == "" {
		session.TokenType = "bearer"
	}
	if scope, ok := tok.Extra("user_scope").(string); ok {
		session.UserScope = scope
	}

	c.observe(op, start, nil)
	return session, nil
}

// AgentLink requests a signed agent session link. userTime is passed
// through verbatim.
func (c *Client) AgentLink(ctx context.Context, token, userTime string) (*domain.AgentLink, error) {
	const op = "agent_link"
	start := time.Now()

	endpoint := c.apiBase + "/get_agent_link/" + url.PathEscape(c.tenant)
	resp, body, err := c.postJSON(ctx, endpoint, token, map[string]string{"user_time": userTime})
	if err != nil {
		c.observe(op, start, err)
		return nil, err
	}

	if !success(resp.StatusCode) {
		err := translateAgentLinkStatus(resp.StatusCode, body)
		c.logger.WarnContext(ctx, "agent link rejected", "status", resp.StatusCode, "kind", domain.KindOf(err))
		c.observe(op, start, err)
		return nil, err
	}

	link, ok := extractLink(body)
	if !ok {
		err := domain.NewUpstreamError(domain.MsgAgentLinkMissing, resp.StatusCode, decodeDetails(body))
		c.observe(op, start, err)
		return nil, err
	}

	c.observe(op, start, nil)
	return &domain.AgentLink{SignedURL: link}, nil
}

// Ping reports whether the upstream answers at all. Any HTTP response
// counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authRoot, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) postJSON(ctx context.Context, endpoint, token string, payload any) (*http.Response, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "upstream unreachable", "url", endpoint, "error", err)
		return nil, nil, domain.NewTransportError(domain.MsgUpstreamDown)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, domain.NewTransportError(domain.MsgUpstreamDown)
	}
	return resp, body, nil
}

func (c *Client) translateTokenError(op string, err error) *domain.Error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		status := rerr.Response.StatusCode
		if success(status) {
			// 2xx carrying an OAuth "error" field.
			return domain.NewUpstreamError(upstreamMessage(rerr.Body, domain.MsgUpstreamFailed), status, decodeDetails(rerr.Body))
		}
		return translateCredentialStatus(op, status, rerr.Body)
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		return domain.NewTransportError(domain.MsgUpstreamDown)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTransportError(domain.MsgUpstreamDown)
	}

	// oauth2 rejects 2xx bodies without access_token with a plain error.
	return domain.NewUpstreamError(domain.MsgTokenMissing, http.StatusBadGateway, err.Error())
}

func (c *Client) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	metrics.UpstreamRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.UpstreamRequestsTotal.WithLabelValues(op, outcome).Inc()
}

func success(status int) bool { return status >= 200 && status < 300 }
