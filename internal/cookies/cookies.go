package cookies

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avdoshkin/smile-crm/internal/tokens"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	// BearerScheme prefixes the access cookie value so the gate can tell a
	// credential hand-off from any other cookie content.
	BearerScheme = "Bearer "

	// refreshRetention keeps the refresh cookie in the browser well past the
	// session TTL; the server-side row is what actually decides validity.
	refreshRetention = 30
)

type Transport struct {
	// SameSite defaults to cross-site permissive: the SPA lives on another
	// origin than the API.
	SameSite http.SameSite
}

func (t *Transport) sameSite() http.SameSite {
	if t.SameSite == 0 {
		return http.SameSiteNoneMode
	}
	return t.SameSite
}

func (t *Transport) newCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: t.sameSite(),
	}
}

func (t *Transport) Write(c echo.Context, creds *tokens.Credentials) {
	accessMaxAge := int(time.Until(creds.AccessExp).Seconds())
	c.SetCookie(t.newCookie(AccessCookie, BearerScheme+creds.AccessToken, accessMaxAge))

	refreshMaxAge := int(creds.RefreshTTL.Seconds()) * refreshRetention
	c.SetCookie(t.newCookie(RefreshCookie, creds.RefreshToken, refreshMaxAge))
}

func (t *Transport) Clear(c echo.Context) {
	c.SetCookie(t.newCookie(AccessCookie, "", -1))
	c.SetCookie(t.newCookie(RefreshCookie, "", -1))
}

func (t *Transport) ReadRefresh(c echo.Context) (string, bool) {
	cookie, err := c.Cookie(RefreshCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// ReadAccess returns the raw signed token with the bearer scheme stripped.
func (t *Transport) ReadAccess(c echo.Context) (string, bool) {
	cookie, err := c.Cookie(AccessCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	raw := strings.Trim(cookie.Value, `"`)
	token, ok := strings.CutPrefix(raw, BearerScheme)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
