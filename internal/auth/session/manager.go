// Package session carries the opaque session token between the browser (or a
// forwarder's integration script) and the auth service.
package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/freightdesk/internal/config"
)

const (
	defaultCookieName = "fd_session"
	bearerPrefix      = "bearer "
)

type Manager struct {
	name   string
	secure bool
}

func NewManager(cfg config.Config) *Manager {
	name := strings.TrimSpace(cfg.AuthCookieName)
	if name == "" {
		name = defaultCookieName
	}
	return &Manager{name: name, secure: cfg.AuthCookieSecure}
}

// ReadToken prefers the session cookie and falls back to an
// "Authorization: Bearer" header, which is what scripted clients send.
func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	if token, err := c.Cookie(m.name); err == nil {
		if token = strings.TrimSpace(token); token != "" {
			return token, true
		}
	}

	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

// Set writes the cookie so that it dies with the server-side session.
func (m *Manager) Set(c *gin.Context, token string, expiresAt time.Time) {
	m.write(c, token, max(int(time.Until(expiresAt).Seconds()), 0))
}

func (m *Manager) Clear(c *gin.Context) {
	m.write(c, "", -1)
}

func (m *Manager) write(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.name, value, maxAge, "/", "", m.secure, true)
}
