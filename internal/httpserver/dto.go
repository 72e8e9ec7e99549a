package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avdoshkin/smile-crm/internal/apperr"
	"github.com/avdoshkin/smile-crm/internal/models"
	"github.com/avdoshkin/smile-crm/internal/repo"
	"github.com/avdoshkin/smile-crm/internal/service"
)

type registerRequest struct {
	Login    string      `json:"login"`
	Password string      `json:"password"`
	Role     models.Role `json:"role,omitempty"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type listUsersRequest struct {
	Filters repo.UsersFilter `json:"filters"`
	Page    int              `json:"page"`
	Size    int              `json:"size"`
}

func httpError(err error) *echo.HTTPError {
	if errors.Is(err, service.ErrValidation) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
}
