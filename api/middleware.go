package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"join-api/domain"
)

const sessionContextKey = "session"

// RequireSession rejects requests without a valid session token with 401 and
// stores the session on the context otherwise.
func RequireSession(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := tokenFromRequest(c.Request())
			if err != nil {
				return jsonError(c, http.StatusUnauthorized, err.Error())
			}
			s, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				return jsonError(c, statusForError(err), err.Error())
			}
			c.Set(sessionContextKey, s)
			return next(c)
		}
	}
}

func sessionFrom(c echo.Context) Session {
	s, _ := c.Get(sessionContextKey).(Session)
	return s
}

// resolveSession never fails: requests without a usable token are anonymous.
func resolveSession(c echo.Context, auth Authenticator) Session {
	return resolveRequest(c.Request(), auth)
}

func resolveRequest(req *http.Request, auth Authenticator) Session {
	token, err := tokenFromRequest(req)
	if err != nil {
		return Session{State: domain.SessionAnonymous}
	}
	s, err := auth.Authenticate(req.Context(), token)
	if err != nil {
		return Session{State: domain.SessionAnonymous}
	}
	return s
}

// sessionStates resolves the caller in the background. The stream starts
// unknown and closes after the resolved state.
func sessionStates(req *http.Request, auth Authenticator) <-chan domain.SessionState {
	states := make(chan domain.SessionState, 2)
	states <- domain.SessionUnknown
	go func() {
		defer close(states)
		states <- resolveRequest(req, auth).State
	}()
	return states
}

// GzipRequestMiddleware decompresses gzip-encoded request bodies so handlers
// see plain JSON. Invalid gzip payloads are rejected with 400.
func GzipRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !hasGzipEncoding(req.Header.Get(echo.HeaderContentEncoding)) {
				return next(c)
			}
			gr, err := gzip.NewReader(req.Body)
			if err != nil {
				_ = req.Body.Close()
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}
			req.Body = gzipBody{Reader: gr, raw: req.Body}
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

func hasGzipEncoding(header string) bool {
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

type gzipBody struct {
	*gzip.Reader
	raw io.Closer
}

func (g gzipBody) Close() error {
	err := g.Reader.Close()
	if cerr := g.raw.Close(); err == nil {
		err = cerr
	}
	return err
}
