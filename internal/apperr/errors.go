package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidCredentials covers both an unknown login and a wrong
	// password, so login responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid login or password")

	ErrLoginUnavailable = errors.New("login is not available")

	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidCredential: the presented token fails signature or lookup.
	ErrInvalidCredential = errors.New("invalid token")

	// ErrCredentialExpired: the token is genuine but its time has lapsed.
	ErrCredentialExpired = errors.New("token has expired")

	ErrNotActive = errors.New("user is not active")

	ErrInsufficientPrivilege = errors.New("not enough privileges")

	ErrNotFound = errors.New("user not found")

	// ErrPrivilegedRole: self-registration asked for the administrative role.
	ErrPrivilegedRole = errors.New("superuser role cannot be self-assigned")
)

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrPrivilegedRole):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrLoginUnavailable):
		return http.StatusConflict
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrInvalidCredential), errors.Is(err, ErrCredentialExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotActive), errors.Is(err, ErrInsufficientPrivilege):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
