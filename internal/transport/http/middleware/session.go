package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/agentgate/internal/reqctx"
	"github.com/ErlanBelekov/agentgate/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	sessionIDKey    = "sessionID"
	sessionStoreKey = "sessionStore"
)

type SessionConfig struct {
	Secret     []byte
	TTL        time.Duration
	CookieName string
	Secure     bool
	Provider   session.Provider
}

// Session identifies the browser by a signed cookie whose subject is a
// random session id, and opens that browser's token store for the request.
// A missing, tampered or expired cookie starts a fresh session.
func Session(cfg SessionConfig, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "session_cookie")

	return func(c *gin.Context) {
		sid, err := parseSessionCookie(c, cfg)
		if err != nil {
			sid = uuid.NewString()
			signed, err := signSessionID(sid, cfg.Secret, cfg.TTL)
			if err != nil {
				logger.ErrorContext(c.Request.Context(), "sign session cookie", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    signed,
				Path:     "/",
				MaxAge:   int(cfg.TTL.Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		store := session.Open(cfg.Provider.Backend(sid), logger)
		defer func() { _ = store.Close() }()

		c.Request = c.Request.WithContext(reqctx.WithSessionID(c.Request.Context(), sid))
		c.Set(sessionIDKey, sid)
		c.Set(sessionStoreKey, store)
		c.Next()
	}
}

func parseSessionCookie(c *gin.Context, cfg SessionConfig) (string, error) {
	raw, err := c.Cookie(cfg.CookieName)
	if err != nil {
		return "", err
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return cfg.Secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", errors.New("invalid session cookie")
	}

	sid, err := token.Claims.GetSubject()
	if err != nil || sid == "" {
		return "", errors.New("session cookie without subject")
	}
	return sid, nil
}

func signSessionID(sid string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// SessionID returns the browser session id set by Session.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// SessionStore returns the store opened by Session, or a store without a
// backend when the middleware did not run.
func SessionStore(c *gin.Context) *session.Store {
	if v, ok := c.Get(sessionStoreKey); ok {
		if s, ok := v.(*session.Store); ok {
			return s
		}
	}
	return session.Open(nil, slog.Default())
}

// RequireToken redirects to target when the browser session holds no token.
func RequireToken(target string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !SessionStore(c).Authenticated(c.Request.Context()) {
			c.Redirect(http.StatusSeeOther, target)
			c.Abort()
			return
		}
		c.Next()
	}
}
