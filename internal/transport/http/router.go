package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/agentgate/internal/transport/http/handler"
	"github.com/ErlanBelekov/agentgate/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

type Handlers struct {
	Credentials *handler.CredentialHandler
	AgentLink   *handler.AgentLinkHandler
	Web         *handler.WebHandler
}

type Options struct {
	Session         middleware.SessionConfig
	RateLimitPerMin int
	HSTS            bool
}

func NewRouter(logger *slog.Logger, h Handlers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security(opts.HSTS))
	r.Use(sloggin.NewWithConfig(logger, sloggin.Config{
		WithRequestID: false,
		Filters:       []sloggin.Filter{sloggin.IgnorePath("/favicon.ico")},
	}))
	r.Use(middleware.Metrics())
	r.SetHTMLTemplate(handler.Templates())

	limit := middleware.RateLimit(opts.RateLimitPerMin)

	// Proxy surface
	r.POST("/signup", limit, h.Credentials.Signup)
	r.POST("/login", limit, h.Credentials.Login)
	links := r.Group("/get-agent-link", middleware.Bearer())
	links.GET("", h.AgentLink.Get)
	links.POST("", h.AgentLink.Post)

	// Pages, scoped to the browser session cookie
	web := r.Group("/", middleware.Session(opts.Session, logger))
	web.GET("", h.Web.Index)
	web.POST("/session", limit, h.Web.Submit)
	web.POST("/session/link", h.Web.RetryLink)
	web.GET("/app", middleware.RequireToken("/"), h.Web.App)
	web.POST("/logout", h.Web.Logout)

	return r
}
