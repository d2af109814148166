package bootstrap_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ErlanBelekov/agentgate/internal/audit"
	"github.com/ErlanBelekov/agentgate/internal/bootstrap"
	"github.com/ErlanBelekov/agentgate/internal/email"
	"github.com/ErlanBelekov/agentgate/internal/upstream"
	"github.com/ErlanBelekov/agentgate/internal/usecase"
)

// Full signup flow through the real upstream client against a stub API.
func TestSubmit_SignupEndToEnd(t *testing.T) {
	var gotUserTime, gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /specialist_consultant/create_user/keune", func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p["name"] != "Ana" {
			t.Errorf("signup body = %v, err %v", p, err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 42, "name": "Ana", "email": "ana@x.com"})
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("username") != "ana@x.com" || r.PostForm.Get("password") != "secret1" {
			t.Errorf("login form = %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok123"})
	})
	mux.HandleFunc("POST /specialist_consultant/get_agent_link/keune", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode link body: %v", err)
		}
		gotUserTime = body["user_time"]
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"signed_url": "https://agent/abc"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := upstream.NewClient(upstream.Options{
		APIBase:    srv.URL + "/specialist_consultant",
		AuthSuffix: "/specialist_consultant",
		Tenant:     "keune",
	}, discard)
	trail := audit.NewTrail(audit.NewLogRepository(discard), discard)
	creds := usecase.NewCredentialUsecase(client, trail, email.NewSender("local", "", "", discard), discard)
	links := usecase.NewAgentLinkUsecase(client, trail)
	o := bootstrap.New(creds, links, discard, bootstrap.WithClock(func() time.Time { return fixedNow }))

	store := newStore()
	res, err := o.Submit(context.Background(), "browser-1", store, signupInput("Ana", "ana@x.com", "secret1"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.State != bootstrap.Complete {
		t.Fatalf("state = %s, want complete (err %v)", res.State, res.Err)
	}
	if !res.AccountCreated || res.User == nil || res.User.ID != 42 {
		t.Errorf("account created = %v, user = %+v", res.AccountCreated, res.User)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotUserTime != "13:05:07.123Z" {
		t.Errorf("user_time = %q", gotUserTime)
	}

	sess, ok := store.Load(context.Background())
	if !ok || sess.AccessToken != "tok123" {
		t.Errorf("stored session = %+v, %v", sess, ok)
	}
	link, ok := store.LoadLink(context.Background())
	if !ok || link.SignedURL != "https://agent/abc" {
		t.Errorf("stored link = %+v, %v", link, ok)
	}
}
