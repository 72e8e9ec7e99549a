package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avdoshkin/smile-crm/internal/cookies"
	"github.com/avdoshkin/smile-crm/internal/events"
	authmw "github.com/avdoshkin/smile-crm/internal/middleware/auth"
	"github.com/avdoshkin/smile-crm/internal/models"
	"github.com/avdoshkin/smile-crm/internal/service"
	"github.com/avdoshkin/smile-crm/internal/tokens"
)

type testApp struct {
	e  *echo.Echo
	db *gorm.DB
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshSession{}))

	codec := &tokens.Codec{
		Secret:    []byte("test-secret"),
		AccessTTL: 15 * time.Minute,
	}
	transport := &cookies.Transport{}
	svc := &service.AuthService{
		DB:     db,
		Issuer: &tokens.Issuer{Codec: codec, RefreshTTL: 7 * 24 * time.Hour},
	}

	e := echo.New()
	Register(e, &Deps{
		AuthHandler: &AuthHTTP{Svc: svc, Cookies: transport, Producer: &events.Producer{}},
		Gate:        &authmw.Gate{Codec: codec, Cookies: transport},
	})

	return &testApp{e: e, db: db}
}

func (a *testApp) do(t *testing.T, method, path string, body any, reqCookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, c := range reqCookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func registerAndLogin(t *testing.T, app *testApp, login, password string) (*http.Cookie, *http.Cookie) {
	t.Helper()

	rec := app.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"login": login, "password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"login": login, "password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	return findCookie(t, rec, cookies.AccessCookie), findCookie(t, rec, cookies.RefreshCookie)
}

func TestRegisterHandler(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"login": "alice", "password": "pw1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.Login)
	assert.True(t, user.IsActive)
	assert.Empty(t, user.PasswordHash)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"login": "alice", "password": "pw2",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"login": "mallory", "password": "pw", "role": string(models.SuperUserRole),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginHandler_SetsCookies(t *testing.T) {
	app := newTestApp(t)
	access, refresh := registerAndLogin(t, app, "bob", "pw1")

	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteNoneMode, access.SameSite)
	assert.Contains(t, access.Value, "Bearer ")

	assert.True(t, refresh.HttpOnly)
	assert.True(t, refresh.Secure)
	assert.NotEmpty(t, refresh.Value)
	assert.Greater(t, refresh.MaxAge, 7*24*3600)

	rec := app.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"login": "bob", "password": "wrong",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// unknown login is indistinguishable from a wrong password
	rec = app.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"login": "ghost", "password": "pw1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefreshHandler_RotatesAndRejectsStale(t *testing.T) {
	app := newTestApp(t)
	_, refresh := registerAndLogin(t, app, "carol", "pw1")

	rec := app.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, rec.Code)

	rotated := findCookie(t, rec, cookies.RefreshCookie)
	assert.NotEqual(t, refresh.Value, rotated.Value)

	// the old cookie is now a stale credential
	rec = app.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, rotated)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshHandler_NoCookie(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutHandler(t *testing.T) {
	app := newTestApp(t)
	access, refresh := registerAndLogin(t, app, "dave", "pw1")

	rec := app.do(t, http.MethodPost, "/api/v1/auth/logout", nil, access, refresh)
	require.Equal(t, http.StatusOK, rec.Code)

	cleared := findCookie(t, rec, cookies.RefreshCookie)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	// the deleted session cannot refresh anymore
	rec = app.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// logout without a session is an idempotent success
	rec = app.do(t, http.MethodPost, "/api/v1/auth/logout", nil, access, refresh)
	assert.Equal(t, http.StatusOK, rec.Code)

	// but without any credential it is not authenticated
	rec = app.do(t, http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeHandler(t *testing.T) {
	app := newTestApp(t)
	access, _ := registerAndLogin(t, app, "erin", "pw1")

	rec := app.do(t, http.MethodGet, "/api/v1/user/me", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "erin", user.Login)

	rec = app.do(t, http.MethodGet, "/api/v1/user/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutes_RequireSuperUser(t *testing.T) {
	app := newTestApp(t)
	access, _ := registerAndLogin(t, app, "frank", "pw1")

	rec := app.do(t, http.MethodPost, "/api/v1/user/list", map[string]any{}, access)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// promote frank straight in storage, then log in again for fresh claims
	require.NoError(t, app.db.Model(&models.User{}).
		Where("login = ?", "frank").
		Update("role", models.SuperUserRole).Error)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"login": "frank", "password": "pw1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	adminAccess := findCookie(t, rec, cookies.AccessCookie)

	rec = app.do(t, http.MethodPost, "/api/v1/user/list", map[string]any{}, adminAccess)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 1)
}

func TestAbortAllSessionsHandler(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"login": "grace", "password": "pw1", "role": string(models.OrgLeaderRole),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"login": "grace", "password": "pw1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	access := findCookie(t, rec, cookies.AccessCookie)
	firstRefresh := findCookie(t, rec, cookies.RefreshCookie)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"login": "grace", "password": "pw1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	secondRefresh := findCookie(t, rec, cookies.RefreshCookie)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/abort", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)

	var aborted []models.RefreshSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &aborted))
	assert.Len(t, aborted, 2)

	for _, cookie := range []*http.Cookie{firstRefresh, secondRefresh} {
		rec := app.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, cookie)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	// nothing left to abort; the body stays a JSON array, never null
	rec = app.do(t, http.MethodPost, "/api/v1/auth/abort", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestUpdateMeHandler(t *testing.T) {
	app := newTestApp(t)
	access, _ := registerAndLogin(t, app, "heidi", "pw1")

	// self-update is a superuser privilege
	rec := app.do(t, http.MethodPut, "/api/v1/user/me", map[string]string{
		"login": "heidi2",
	}, access)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, app.db.Model(&models.User{}).
		Where("login = ?", "heidi").
		Update("role", models.SuperUserRole).Error)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"login": "heidi", "password": "pw1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	adminAccess := findCookie(t, rec, cookies.AccessCookie)

	rec = app.do(t, http.MethodPut, "/api/v1/user/me", map[string]string{
		"login": "heidi2",
	}, adminAccess)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "heidi2", updated.Login)
	assert.Equal(t, models.SuperUserRole, updated.Role)
}

func TestDeactivateMeHandler(t *testing.T) {
	app := newTestApp(t)
	access, refresh := registerAndLogin(t, app, "henry", "pw1")

	rec := app.do(t, http.MethodDelete, "/api/v1/user/me", nil, access, refresh)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.False(t, user.IsActive)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// second deactivation is refused, the identity is gone already
	rec = app.do(t, http.MethodDelete, "/api/v1/user/me", nil, access, refresh)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
