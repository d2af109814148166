package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/agentgate/internal/domain"
	"github.com/gin-gonic/gin"
)

// credentialUsecaser is the subset of CredentialUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type credentialUsecaser interface {
	Signup(ctx context.Context, profile domain.SignupProfile) (*domain.SignupResult, error)
	Login(ctx context.Context, email, password string) (*domain.Session, error)
}

type CredentialHandler struct {
	credentials credentialUsecaser
	logger      *slog.Logger
}

func NewCredentialHandler(credentials credentialUsecaser, logger *slog.Logger) *CredentialHandler {
	return &CredentialHandler{
		credentials: credentials,
		logger:      logger.With("component", "credential_handler"),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserScope   string `json:"user_scope,omitempty"`
}

// POST /signup
// Mirrors the upstream status. Upstream Set-Cookie headers are relayed.
func (h *CredentialHandler) Signup(c *gin.Context) {
	var profile domain.SignupProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody})
		return
	}

	res, err := h.credentials.Signup(c.Request.Context(), profile)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	for _, v := range res.Cookies {
		c.Writer.Header().Add("Set-Cookie", v)
	}
	status := res.Status
	if status == 0 {
		status = http.StatusCreated
	}
	c.JSON(status, res.User)
}

// POST /login
func (h *CredentialHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody})
		return
	}

	sess, err := h.credentials.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AccessToken: sess.AccessToken,
		TokenType:   sess.TokenType,
		UserScope:   sess.UserScope,
	})
}
