package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const sessionCookie = "join_session"

var (
	errMissingAuthorization = errors.New("missing authorization")
	errBadAuthorization     = errors.New("bad authorization")
)

// tokenFromRequest finds the session token in the Authorization header, the
// token query parameter (EventSource cannot set headers) or the session cookie.
func tokenFromRequest(req *http.Request) (string, error) {
	if h := req.Header.Get(echo.HeaderAuthorization); h != "" {
		return bearerTokenFromString(h)
	}
	if tok := req.URL.Query().Get("token"); tok != "" {
		return checkTokenShape(tok)
	}
	if ck, err := req.Cookie(sessionCookie); err == nil && ck.Value != "" {
		return checkTokenShape(ck.Value)
	}
	return "", errMissingAuthorization
}

func bearerTokenFromString(raw string) (string, error) {
	trimmed := strings.Trim(raw, " ")
	if trimmed == "" {
		return "", errMissingAuthorization
	}
	token, ok := strings.CutPrefix(trimmed, "Bearer ")
	if !ok || token == "" {
		return "", errBadAuthorization
	}
	return checkTokenShape(token)
}

// checkTokenShape rejects anything that is not three dot-separated JWT segments.
func checkTokenShape(token string) (string, error) {
	if strings.Count(token, ".") != 2 {
		return "", errBadAuthorization
	}
	return token, nil
}
