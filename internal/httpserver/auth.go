package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avdoshkin/smile-crm/internal/apperr"
	"github.com/avdoshkin/smile-crm/internal/cookies"
	"github.com/avdoshkin/smile-crm/internal/events"
	"github.com/avdoshkin/smile-crm/internal/logging"
	authmw "github.com/avdoshkin/smile-crm/internal/middleware/auth"
	"github.com/avdoshkin/smile-crm/internal/service"
)

type AuthHTTP struct {
	Svc      *service.AuthService
	Cookies  *cookies.Transport
	Producer *events.Producer
}

func (h *AuthHTTP) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Producer.PublishEvent(ctx, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Register(ctx, req.Login, req.Password, req.Role)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, user.ID.String(), map[string]any{
		"type":    "user_registered",
		"user_id": user.ID,
		"login":   user.Login,
	})

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHTTP) RegisterAdmin(c echo.Context) error {
	ctx := c.Request().Context()

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.RegisterAdmin(ctx, req.Login, req.Password)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	creds, user, err := h.Svc.Login(ctx, req.Login, req.Password)
	if err != nil {
		return httpError(err)
	}

	h.Cookies.Write(c, creds)

	h.publish(c, user.ID.String(), map[string]any{
		"type":    "user_logged_in",
		"user_id": user.ID,
		"login":   user.Login,
	})

	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "bearer",
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	claims, ok := authmw.ClaimsFromContext(c)
	if !ok {
		return httpError(apperr.ErrNotAuthenticated)
	}

	refreshToken, _ := h.Cookies.ReadRefresh(c)
	if err := h.Svc.Logout(ctx, claims, refreshToken); err != nil {
		return httpError(err)
	}

	h.Cookies.Clear(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out successfully"})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	refreshToken, _ := h.Cookies.ReadRefresh(c)
	creds, err := h.Svc.Refresh(ctx, refreshToken)
	if err != nil {
		return httpError(err)
	}

	h.Cookies.Write(c, creds)

	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "bearer",
	})
}

func (h *AuthHTTP) AbortAllSessions(c echo.Context) error {
	ctx := c.Request().Context()

	claims, ok := authmw.ClaimsFromContext(c)
	if !ok {
		return httpError(apperr.ErrNotAuthenticated)
	}
	userID, err := claims.UserID()
	if err != nil {
		return httpError(apperr.ErrInvalidCredential)
	}

	aborted, err := h.Svc.AbortAllSessions(ctx, userID)
	if err != nil {
		return httpError(err)
	}

	h.Cookies.Clear(c)

	h.publish(c, fmt.Sprint(userID), map[string]any{
		"type":    "sessions_aborted",
		"user_id": userID,
		"count":   len(aborted),
	})

	return c.JSON(http.StatusOK, aborted)
}
