package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdoshkin/smile-crm/internal/cookies"
	"github.com/avdoshkin/smile-crm/internal/models"
	"github.com/avdoshkin/smile-crm/internal/tokens"
)

func newTestGate() *Gate {
	return &Gate{
		Codec: &tokens.Codec{
			Secret:    []byte("test-secret"),
			AccessTTL: 15 * time.Minute,
		},
		Cookies: &cookies.Transport{},
	}
}

func newRequestContext(t *testing.T, cookieValue string) echo.Context {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookieValue != "" {
		req.AddCookie(&http.Cookie{Name: cookies.AccessCookie, Value: cookieValue})
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func accessCookieValue(t *testing.T, g *Gate, role models.Role, active bool) string {
	t.Helper()
	token, _, err := g.Codec.Encode(uuid.New(), role, active)
	require.NoError(t, err)
	return cookies.BearerScheme + token
}

func TestGate_Authenticate_NoCookie(t *testing.T) {
	g := newTestGate()
	c := newRequestContext(t, "")

	err := g.Authenticate(okHandler)(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestGate_Authenticate_NotBearer(t *testing.T) {
	g := newTestGate()
	token, _, err := g.Codec.Encode(uuid.New(), models.ClientRole, true)
	require.NoError(t, err)

	// raw token without the bearer scheme is not a credential hand-off
	c := newRequestContext(t, token)
	err = g.Authenticate(okHandler)(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestGate_Authenticate_Tampered(t *testing.T) {
	g := newTestGate()
	c := newRequestContext(t, cookies.BearerScheme+"garbage.token.value")

	err := g.Authenticate(okHandler)(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestGate_Authenticate_Expired(t *testing.T) {
	g := newTestGate()
	g.Codec.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	value := accessCookieValue(t, g, models.ClientRole, true)
	g.Codec.Now = nil

	c := newRequestContext(t, value)
	err := g.Authenticate(okHandler)(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
	assert.Contains(t, he.Message, "expired")
}

func TestGate_Authenticate_ExposesClaims(t *testing.T) {
	g := newTestGate()
	c := newRequestContext(t, accessCookieValue(t, g, models.OrgManagerRole, true))

	var seen *tokens.AccessClaims
	err := g.Authenticate(func(c echo.Context) error {
		claims, ok := ClaimsFromContext(c)
		require.True(t, ok)
		seen = claims
		return c.NoContent(http.StatusOK)
	})(c)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, models.OrgManagerRole, seen.Role)
	assert.True(t, seen.Active())
}

func TestGate_Require_RoleMatrix(t *testing.T) {
	g := newTestGate()

	tests := []struct {
		name       string
		role       models.Role
		active     bool
		mustActive bool
		allowed    []models.Role
		wantCode   int
	}{
		{
			name:    "allowed role",
			role:    models.SuperUserRole,
			active:  true,
			allowed: []models.Role{models.SuperUserRole},
		},
		{
			name:    "any of several roles",
			role:    models.OrgLeaderRole,
			active:  true,
			allowed: []models.Role{models.SuperUserRole, models.OrgLeaderRole},
		},
		{
			name:     "role outside the set",
			role:     models.ClientRole,
			active:   true,
			allowed:  []models.Role{models.SuperUserRole},
			wantCode: http.StatusForbidden,
		},
		{
			name:       "inactive with active required",
			role:       models.SuperUserRole,
			active:     false,
			mustActive: true,
			allowed:    []models.Role{models.SuperUserRole},
			wantCode:   http.StatusForbidden,
		},
		{
			name:    "inactive without active requirement",
			role:    models.SuperUserRole,
			active:  false,
			allowed: []models.Role{models.SuperUserRole},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := newRequestContext(t, accessCookieValue(t, g, tt.role, tt.active))

			err := g.Require(tt.mustActive, tt.allowed...)(okHandler)(c)
			if tt.wantCode == 0 {
				require.NoError(t, err)
				return
			}
			he, ok := err.(*echo.HTTPError)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, he.Code)
		})
	}
}
