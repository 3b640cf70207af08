package api

import (
	"fmt"
	"html"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"join-api/domain"
)

const selectedContactCookie = "join_selected_contact"

type pageGuard func(domain.SessionState) (allow bool, redirect string)

type page struct {
	path  string
	title string
	guard pageGuard
}

var pages = []page{
	{path: "/auth/login", title: "Log in", guard: domain.RequireNoUser},
	{path: "/auth/register", title: "Sign up", guard: domain.RequireNoUser},
	{path: "/contacts", title: "Contacts", guard: domain.RequireSession},
	{path: "/contacts/:id", title: "Contacts", guard: domain.RequireSession},
	{path: "/board", title: "Board", guard: domain.RequireSession},
	{path: "/addTask", title: "Add task", guard: domain.RequireSession},
	{path: "/legal-notice", title: "Legal notice"},
	{path: "/privacy-policy", title: "Privacy policy"},
	{path: "/help", title: "Help"},
}

func registerPages(e *echo.Echo, s *Server) {
	e.GET("/", redirectTo(domain.BoardRoute))
	e.GET("/auth", redirectTo(domain.LoginRoute))
	for _, p := range pages {
		e.GET(p.path, servePage(s, p))
	}
	if s.WebRoot != "" {
		e.Static("/assets", filepath.Join(s.WebRoot, "assets"))
	}
}

func redirectTo(target string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Redirect(http.StatusFound, target)
	}
}

func servePage(s *Server, p page) echo.HandlerFunc {
	return func(c echo.Context) error {
		if p.guard != nil {
			state := domain.AwaitSession(c.Request().Context(), sessionStates(c.Request(), s.Auth))
			if allow, redirect := p.guard(state); !allow {
				return c.Redirect(http.StatusFound, redirect)
			}
		}
		if id := c.Param("id"); id != "" {
			c.SetCookie(&http.Cookie{
				Name:     selectedContactCookie,
				Value:    id,
				Path:     "/contacts",
				HttpOnly: false,
				SameSite: http.SameSiteLaxMode,
			})
		}
		if s.WebRoot != "" {
			return c.File(filepath.Join(s.WebRoot, "index.html"))
		}
		return c.HTML(http.StatusOK, pageShell(p.title))
	}
}

func pageShell(title string) string {
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Join | %s</title></head>
<body><div id="app"></div></body>
</html>
`, html.EscapeString(title))
}
