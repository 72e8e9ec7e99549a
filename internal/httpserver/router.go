package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	authmw "github.com/avdoshkin/smile-crm/internal/middleware/auth"
	"github.com/avdoshkin/smile-crm/internal/models"
)

type Deps struct {
	AuthHandler *AuthHTTP
	Gate        *authmw.Gate
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	v1 := e.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout, d.Gate.Authenticate)
	auth.POST("/abort", d.AuthHandler.AbortAllSessions,
		d.Gate.Require(true, models.SuperUserRole, models.OrgLeaderRole))

	user := v1.Group("/user")
	user.GET("/me", d.AuthHandler.Me, d.Gate.Authenticate)
	user.PUT("/me", d.AuthHandler.UpdateMe, d.Gate.Require(true, models.SuperUserRole))
	user.DELETE("/me", d.AuthHandler.DeactivateMe, d.Gate.Authenticate)

	admin := v1.Group("/user", d.Gate.Require(true, models.SuperUserRole))
	admin.POST("/list", d.AuthHandler.ListUsers)
	admin.GET("/:id", d.AuthHandler.GetUser)
	admin.PUT("/:id", d.AuthHandler.UpdateUser)
	admin.DELETE("/:id", d.AuthHandler.DeactivateUser)

	v1.POST("/admin/register", d.AuthHandler.RegisterAdmin,
		d.Gate.Require(true, models.SuperUserRole))
}
