package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"join-api/live"
)

// Server bundles the dependencies shared by all handlers.
type Server struct {
	Store    Storage
	Tasks    *live.TaskFeed
	Contacts *live.ContactFeed
	Auth     Authenticator
	Deduper  Deduper
	Notifier Notifier
	Status   *StatusSync
	Logger   *log.Logger
	// WebRoot holds the built single-page app; empty serves a bare shell.
	WebRoot string
	// SecureCookies marks session cookies Secure.
	SecureCookies bool
	Now           func() time.Time
}

// Register wires up all API and page routes on the provided Echo instance.
func Register(e *echo.Echo, s *Server) {
	if s.Logger == nil {
		panic("Logger is not initialized")
	}
	if s.Now == nil {
		s.Now = time.Now
	}

	e.GET("/healthz", healthz(s))

	authGroup := e.Group("/api/auth")
	authGroup.POST("/register", register(s))
	authGroup.POST("/login", login(s))
	authGroup.POST("/guest", guestLogin(s))
	authGroup.GET("/session", currentSession(s))
	authGroup.POST("/logout", logout(s), RequireSession(s.Auth))
	authGroup.PATCH("/profile", updateProfile(s), RequireSession(s.Auth))

	api := e.Group("/api", RequireSession(s.Auth))

	api.GET("/contacts", listContacts(s))
	api.GET("/contacts/:id", getContact(s))
	api.POST("/contacts", createContact(s))
	api.PUT("/contacts/:id", updateContact(s))
	api.DELETE("/contacts/:id", deleteContact(s))

	api.GET("/tasks", listTasks(s))
	api.GET("/tasks/:id", getTask(s))
	api.POST("/tasks", createTask(s))
	api.PUT("/tasks/:id", updateTask(s))
	api.DELETE("/tasks/:id", deleteTask(s))
	api.PATCH("/tasks/:id/subtasks/:subtaskId", toggleSubtask(s))

	api.GET("/board", getBoard(s))
	api.POST("/board/moves", moveTask(s))
	api.GET("/summary", getSummary(s))

	api.GET("/stream/tasks", streamTasks(s))
	api.GET("/stream/contacts", streamContacts(s))

	registerPages(e, s)
}

func healthz(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]int{
			"tasks":    len(s.Tasks.Tasks()),
			"contacts": len(s.Contacts.Contacts()),
		})
	}
}

func (s *Server) changed(c echo.Context, collection string) {
	if s.Notifier != nil {
		s.Notifier.Changed(c.Request().Context(), collection)
	}
}

// claimIdempotencyKey returns false (and has already answered 409) for a
// repeated Idempotency-Key. release must be called if the write fails.
func (s *Server) claimIdempotencyKey(c echo.Context, collection string) (ok bool, release func(), err error) {
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" || s.Deduper == nil {
		return true, func() {}, nil
	}
	scope := sessionFrom(c).UserID + ":" + collection
	added, err := s.Deduper.Add(c.Request().Context(), scope, key)
	if err != nil {
		s.Logger.WithError(err).Warn("idempotency check failed; continuing without it")
		return true, func() {}, nil
	}
	if !added {
		return false, nil, writeError(c, s.Logger, errDuplicateRequest)
	}
	release = func() {
		if rerr := s.Deduper.Remove(c.Request().Context(), scope, key); rerr != nil {
			s.Logger.WithError(rerr).WithField("key", key).Error("dedupe rollback failed")
		}
	}
	return true, release, nil
}
