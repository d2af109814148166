package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/agentgate/internal/domain"
	"github.com/ErlanBelekov/agentgate/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

type agentLinkUsecaser interface {
	FetchAgentLink(ctx context.Context, sess domain.Session, userTime string) (*domain.AgentLink, error)
}

type AgentLinkHandler struct {
	links  agentLinkUsecaser
	logger *slog.Logger
}

func NewAgentLinkHandler(links agentLinkUsecaser, logger *slog.Logger) *AgentLinkHandler {
	return &AgentLinkHandler{links: links, logger: logger.With("component", "agent_link_handler")}
}

// agentLinkBody is the POST fallback kept for older clients.
type agentLinkBody struct {
	Token    string `json:"token"`
	UserTime string `json:"user_time"`
}

// GET /get-agent-link?user_time=...
func (h *AgentLinkHandler) Get(c *gin.Context) {
	h.fetch(c, middleware.BearerToken(c), c.Query("user_time"))
}

// POST /get-agent-link
// The header token and query user_time take precedence over the body.
func (h *AgentLinkHandler) Post(c *gin.Context) {
	var body agentLinkBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody})
		return
	}

	token := middleware.BearerToken(c)
	if token == "" {
		token = body.Token
	}
	userTime := c.Query("user_time")
	if userTime == "" {
		userTime = body.UserTime
	}
	h.fetch(c, token, userTime)
}

func (h *AgentLinkHandler) fetch(c *gin.Context, token, userTime string) {
	link, err := h.links.FetchAgentLink(c.Request.Context(), domain.Session{AccessToken: token}, userTime)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, link)
}
