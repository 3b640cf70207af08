package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"join-api/domain"
	"join-api/storage"
)

var (
	errInvalidBody        = errors.New("invalid body")
	errInvalidCredentials = errors.New("invalid email or password")
	errDuplicateRequest   = errors.New("duplicate request")
)

type errorResponse struct {
	Error string `json:"error"`
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorResponse{Error: msg})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, errInvalidBody),
		errors.Is(err, domain.ErrInvalidTask),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidContact),
		errors.Is(err, domain.ErrInvalidDrop),
		errors.Is(err, errInvalidProfile),
		errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, errInvalidCredentials),
		errors.Is(err, errMissingAuthorization),
		errors.Is(err, errBadAuthorization):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict), errors.Is(err, errDuplicateRequest):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders err as JSON. Server-side failures are logged and the
// client only sees the status text.
func writeError(c echo.Context, logger *log.Logger, err error) error {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithFields(log.Fields{
			"method": c.Request().Method,
			"path":   c.Path(),
		}).Error("request failed")
		return jsonError(c, status, http.StatusText(status))
	}
	return jsonError(c, status, err.Error())
}

// ErrorHandler renders echo errors (unknown routes, middleware failures) as JSON.
func ErrorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok {
				msg = s
			}
			_ = jsonError(c, he.Code, msg)
			return
		}
		_ = writeError(c, logger, err)
	}
}
