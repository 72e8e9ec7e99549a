package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avdoshkin/smile-crm/internal/apperr"
	authmw "github.com/avdoshkin/smile-crm/internal/middleware/auth"
	"github.com/avdoshkin/smile-crm/internal/repo"
)

func (h *AuthHTTP) callerID(c echo.Context) (uuid.UUID, error) {
	claims, ok := authmw.ClaimsFromContext(c)
	if !ok {
		return uuid.Nil, apperr.ErrNotAuthenticated
	}
	id, err := claims.UserID()
	if err != nil {
		return uuid.Nil, apperr.ErrInvalidCredential
	}
	return id, nil
}

func (h *AuthHTTP) Me(c echo.Context) error {
	userID, err := h.callerID(c)
	if err != nil {
		return httpError(err)
	}

	user, err := h.Svc.CurrentUser(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHTTP) UpdateMe(c echo.Context) error {
	userID, err := h.callerID(c)
	if err != nil {
		return httpError(err)
	}

	var patch repo.UserPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.UpdateUser(c.Request().Context(), userID, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHTTP) DeactivateMe(c echo.Context) error {
	userID, err := h.callerID(c)
	if err != nil {
		return httpError(err)
	}

	refreshToken, _ := h.Cookies.ReadRefresh(c)
	user, err := h.Svc.DeactivateSelf(c.Request().Context(), userID, refreshToken)
	if err != nil {
		return httpError(err)
	}

	h.Cookies.Clear(c)

	h.publish(c, user.ID.String(), map[string]any{
		"type":    "user_deactivated",
		"user_id": user.ID,
	})

	return c.JSON(http.StatusOK, user)
}

func (h *AuthHTTP) ListUsers(c echo.Context) error {
	var req listUsersRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	users, err := h.Svc.ListUsers(c.Request().Context(), req.Filters, req.Page, req.Size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AuthHTTP) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	user, err := h.Svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHTTP) UpdateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	var patch repo.UserPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.UpdateUser(c.Request().Context(), id, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHTTP) DeactivateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	user, err := h.Svc.DeactivateUser(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, user.ID.String(), map[string]any{
		"type":    "user_deactivated",
		"user_id": user.ID,
	})

	return c.JSON(http.StatusOK, user)
}
