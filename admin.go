package storefront

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Password string `json:"password" form:"password" validate:"required"`
	Name     string `json:"name" form:"name" validate:"omitempty,max=64"`
}

// handleAdminStatus tells the editor whether it is signed in and hands out
// the CSRF token the login form must echo back.
func (a *App) handleAdminStatus(c echo.Context) error {
	actor := a.actorFunc(c)
	return Success(c, http.StatusOK, map[string]any{
		"authenticated": IsAdmin(c),
		"actor":         actor.Name,
		"csrf_token":    CsrfToken(c),
	})
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return Failure(c, http.StatusTooManyRequests, "too many login attempts, try again later")
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Record(ip)
		a.logger.Warn().Str("ip", ip).Msg("admin login failed")
		return Failure(c, http.StatusUnauthorized, "invalid password")
	}
	a.loginLimiter.Reset(ip)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "admin"
	}
	if err := setAdminSession(c, name); err != nil {
		return err
	}
	a.logger.Info().Str("ip", ip).Str("actor", name).Msg("admin login")
	return Success(c, http.StatusOK, map[string]any{"actor": name})
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return Success(c, http.StatusOK, nil)
}
