package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/avdoshkin/smile-crm/internal/apperr"
	"github.com/avdoshkin/smile-crm/internal/cookies"
	"github.com/avdoshkin/smile-crm/internal/models"
	"github.com/avdoshkin/smile-crm/internal/tokens"
)

const claimsKey = "auth_claims"

// Gate authorizes requests from the access cookie alone. It decodes the
// signed credential, exposes the claims to downstream handlers and never
// touches storage or mutates anything.
type Gate struct {
	Codec   *tokens.Codec
	Cookies *cookies.Transport
}

func (g *Gate) claims(c echo.Context) (*tokens.AccessClaims, error) {
	raw, ok := g.Cookies.ReadAccess(c)
	if !ok {
		return nil, apperr.ErrNotAuthenticated
	}
	return g.Codec.Decode(raw)
}

func (g *Gate) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := g.claims(c)
		if err != nil {
			return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
		}
		c.Set(claimsKey, claims)
		return next(c)
	}
}

// Require wraps a route with a role-set precondition, optionally demanding
// the active flag too. Guards compose at the call site, so a router group
// can state "any of these roles, and must be active" declaratively.
func (g *Gate) Require(mustBeActive bool, roles ...models.Role) echo.MiddlewareFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := g.claims(c)
			if err != nil {
				return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
			}
			if _, ok := allowed[claims.Role]; !ok {
				err := apperr.ErrInsufficientPrivilege
				return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
			}
			if mustBeActive && !claims.Active() {
				err := apperr.ErrNotActive
				return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
			}
			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

func ClaimsFromContext(c echo.Context) (*tokens.AccessClaims, bool) {
	claims, ok := c.Get(claimsKey).(*tokens.AccessClaims)
	return claims, ok
}
