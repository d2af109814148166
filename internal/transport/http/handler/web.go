package handler

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/agentgate/internal/bootstrap"
	"github.com/ErlanBelekov/agentgate/internal/domain"
	"github.com/ErlanBelekov/agentgate/internal/session"
	"github.com/ErlanBelekov/agentgate/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded pages for gin's HTML renderer.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

type orchestrator interface {
	Submit(ctx context.Context, key string, store *session.Store, in bootstrap.Input) (*bootstrap.Result, error)
	RetryLink(ctx context.Context, key string, store *session.Store) (*bootstrap.Result, error)
	Abandon(key string)
}

type WebHandler struct {
	flows  orchestrator
	logger *slog.Logger
}

func NewWebHandler(flows orchestrator, logger *slog.Logger) *WebHandler {
	return &WebHandler{flows: flows, logger: logger.With("component", "web_handler")}
}

type formPage struct {
	Mode    string
	Name    string
	Email   string
	State   string
	Message string
	Kind    domain.Kind
}

type appPage struct {
	Link string
}

// GET /
func (h *WebHandler) Index(c *gin.Context) {
	if middleware.SessionStore(c).Authenticated(c.Request.Context()) {
		c.Redirect(http.StatusSeeOther, "/app")
		return
	}
	c.HTML(http.StatusOK, "index.html", formPage{Mode: string(bootstrap.ModeLogin)})
}

// POST /session
// Runs signup-or-login, token storage and link retrieval for this browser.
func (h *WebHandler) Submit(c *gin.Context) {
	mode, ok := bootstrap.ParseMode(c.PostForm("mode"))
	if !ok {
		mode = bootstrap.ModeLogin
	}
	in := bootstrap.Input{
		Mode: mode,
		Profile: domain.SignupProfile{
			Name:     c.PostForm("name"),
			Email:    c.PostForm("email"),
			Password: c.PostForm("password"),
			Nickname: c.PostForm("nickname"),
		},
	}
	page := formPage{Mode: string(mode), Name: in.Profile.Name, Email: in.Profile.Email}

	res, err := h.flows.Submit(c.Request.Context(), middleware.SessionID(c), middleware.SessionStore(c), in)
	h.render(c, page, res, err)
}

// POST /session/link
func (h *WebHandler) RetryLink(c *gin.Context) {
	res, err := h.flows.RetryLink(c.Request.Context(), middleware.SessionID(c), middleware.SessionStore(c))
	h.render(c, formPage{Mode: string(bootstrap.ModeLogin)}, res, err)
}

// GET /app (guarded by RequireToken)
func (h *WebHandler) App(c *gin.Context) {
	page := appPage{}
	if link, ok := middleware.SessionStore(c).LoadLink(c.Request.Context()); ok {
		page.Link = link.SignedURL
	}
	c.HTML(http.StatusOK, "app.html", page)
}

// POST /logout
// Abandons any running flow first so it cannot write a token back.
func (h *WebHandler) Logout(c *gin.Context) {
	h.flows.Abandon(middleware.SessionID(c))
	if err := middleware.SessionStore(c).Clear(c.Request.Context()); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "clear session", "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *WebHandler) render(c *gin.Context, page formPage, res *bootstrap.Result, err error) {
	switch {
	case errors.Is(err, bootstrap.ErrInFlight):
		page.Message = errInFlight
		page.Kind = domain.KindConflict
		c.HTML(http.StatusConflict, "index.html", page)
		return
	case errors.Is(err, bootstrap.ErrAbandoned):
		c.Redirect(http.StatusSeeOther, "/")
		return
	case err != nil:
		h.logger.ErrorContext(c.Request.Context(), "bootstrap", "error", err)
		c.HTML(http.StatusInternalServerError, "index.html", formPage{Message: errInternalServer})
		return
	}

	page.State = string(res.State)
	page.Message = res.Message()
	page.Kind = res.Kind()

	switch res.State {
	case bootstrap.Complete:
		c.Redirect(http.StatusSeeOther, "/app")
	case bootstrap.LinkPending:
		c.HTML(http.StatusOK, "index.html", page)
	default:
		c.HTML(statusFor(res.Err), "index.html", page)
	}
}
