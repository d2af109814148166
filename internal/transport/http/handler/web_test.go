package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/agentgate/internal/bootstrap"
	"github.com/ErlanBelekov/agentgate/internal/domain"
	"github.com/ErlanBelekov/agentgate/internal/session"
	"github.com/ErlanBelekov/agentgate/internal/transport/http/handler"
	"github.com/ErlanBelekov/agentgate/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

type fakeFlows struct {
	submit    func(ctx context.Context, key string, store *session.Store, in bootstrap.Input) (*bootstrap.Result, error)
	retryLink func(ctx context.Context, key string, store *session.Store) (*bootstrap.Result, error)
	abandoned []string
}

func (f *fakeFlows) Submit(ctx context.Context, key string, store *session.Store, in bootstrap.Input) (*bootstrap.Result, error) {
	return f.submit(ctx, key, store, in)
}

func (f *fakeFlows) RetryLink(ctx context.Context, key string, store *session.Store) (*bootstrap.Result, error) {
	return f.retryLink(ctx, key, store)
}

func (f *fakeFlows) Abandon(key string) { f.abandoned = append(f.abandoned, key) }

type webClient struct {
	t      *testing.T
	engine *gin.Engine
	cookie *http.Cookie
}

func newWebClient(t *testing.T, flows *fakeFlows) *webClient {
	h := handler.NewWebHandler(flows, discard)
	r := gin.New()
	r.SetHTMLTemplate(handler.Templates())
	web := r.Group("/", middleware.Session(middleware.SessionConfig{
		Secret:     []byte("handler-test-secret-32-chars!!!!"),
		TTL:        time.Hour,
		CookieName: "agentgate_session",
		Provider:   session.NewMemoryProvider(),
	}, discard))
	web.GET("", h.Index)
	web.POST("/session", h.Submit)
	web.POST("/session/link", h.RetryLink)
	web.GET("/app", middleware.RequireToken("/"), h.App)
	web.POST("/logout", h.Logout)
	return &webClient{t: t, engine: r}
}

func (wc *webClient) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if wc.cookie != nil {
		req.AddCookie(wc.cookie)
	}
	w := httptest.NewRecorder()
	wc.engine.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == "agentgate_session" {
			wc.cookie = c
		}
	}
	return w
}

func completing(t *testing.T) *fakeFlows {
	return &fakeFlows{
		submit: func(ctx context.Context, _ string, store *session.Store, in bootstrap.Input) (*bootstrap.Result, error) {
			if in.Profile.Email != "ana@x.com" {
				t.Errorf("email = %q", in.Profile.Email)
			}
			_ = store.Save(ctx, domain.Session{AccessToken: "tok123"})
			_ = store.SaveLink(ctx, domain.AgentLink{SignedURL: "https://agent/abc"})
			return &bootstrap.Result{State: bootstrap.Complete, Mode: in.Mode}, nil
		},
	}
}

var anaForm = url.Values{"mode": {"signup"}, "name": {"Ana"}, "email": {"ana@x.com"}, "password": {"secret1"}}

func TestWeb_Index_RendersForm(t *testing.T) {
	wc := newWebClient(t, &fakeFlows{})
	w := wc.do(http.MethodGet, "/", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `action="/session"`) {
		t.Errorf("form missing: %s", w.Body.String())
	}
	if wc.cookie == nil {
		t.Error("session cookie not issued")
	}
}

func TestWeb_SubmitComplete_RedirectsToApp(t *testing.T) {
	wc := newWebClient(t, completing(t))
	wc.do(http.MethodGet, "/", nil)

	w := wc.do(http.MethodPost, "/session", anaForm)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/app" {
		t.Fatalf("status = %d location = %q", w.Code, w.Header().Get("Location"))
	}

	w = wc.do(http.MethodGet, "/app", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "https://agent/abc") {
		t.Errorf("app page: status = %d body = %s", w.Code, w.Body.String())
	}

	// authenticated visitors skip the form
	w = wc.do(http.MethodGet, "/", nil)
	if w.Code != http.StatusSeeOther {
		t.Errorf("index with token: status = %d, want 303", w.Code)
	}
}

func TestWeb_SubmitFailed_RendersMessage(t *testing.T) {
	flows := &fakeFlows{submit: func(_ context.Context, _ string, _ *session.Store, in bootstrap.Input) (*bootstrap.Result, error) {
		return &bootstrap.Result{
			State: bootstrap.Failed,
			Mode:  in.Mode,
			Err:   &domain.Error{Kind: domain.KindConflict, Message: domain.MsgAccountExists, Status: 409},
		}, nil
	}}
	wc := newWebClient(t, flows)

	w := wc.do(http.MethodPost, "/session", anaForm)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "account already exists") || !strings.Contains(body, `data-kind="conflict"`) {
		t.Errorf("body = %s", body)
	}
	if !strings.Contains(body, `value="ana@x.com"`) {
		t.Error("email should be kept in the form")
	}
}

func TestWeb_SubmitInFlight_Returns409(t *testing.T) {
	flows := &fakeFlows{submit: func(context.Context, string, *session.Store, bootstrap.Input) (*bootstrap.Result, error) {
		return nil, bootstrap.ErrInFlight
	}}
	w := newWebClient(t, flows).do(http.MethodPost, "/session", anaForm)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestWeb_LinkPending_OffersRetry(t *testing.T) {
	flows := &fakeFlows{
		submit: func(ctx context.Context, _ string, store *session.Store, in bootstrap.Input) (*bootstrap.Result, error) {
			_ = store.Save(ctx, domain.Session{AccessToken: "tok123"})
			return &bootstrap.Result{State: bootstrap.LinkPending, Mode: in.Mode, Err: domain.NewUpstreamError("failed to get agent link", 500, nil)}, nil
		},
		retryLink: func(ctx context.Context, _ string, store *session.Store) (*bootstrap.Result, error) {
			_ = store.SaveLink(ctx, domain.AgentLink{SignedURL: "https://agent/retry"})
			return &bootstrap.Result{State: bootstrap.Complete}, nil
		},
	}
	wc := newWebClient(t, flows)

	w := wc.do(http.MethodPost, "/session", anaForm)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `action="/session/link"`) {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	w = wc.do(http.MethodPost, "/session/link", url.Values{})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/app" {
		t.Errorf("retry: status = %d location = %q", w.Code, w.Header().Get("Location"))
	}
}

func TestWeb_App_RequiresToken(t *testing.T) {
	w := newWebClient(t, &fakeFlows{}).do(http.MethodGet, "/app", nil)

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Errorf("status = %d location = %q", w.Code, w.Header().Get("Location"))
	}
}

func TestWeb_Logout_AbandonsAndClears(t *testing.T) {
	flows := completing(t)
	wc := newWebClient(t, flows)
	wc.do(http.MethodPost, "/session", anaForm)

	w := wc.do(http.MethodPost, "/logout", url.Values{})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if len(flows.abandoned) != 1 || flows.abandoned[0] == "" {
		t.Errorf("abandoned = %v", flows.abandoned)
	}

	w = wc.do(http.MethodGet, "/app", nil)
	if w.Code != http.StatusSeeOther {
		t.Errorf("app after logout: status = %d, want 303", w.Code)
	}
}
