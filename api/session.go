package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"join-api/domain"
	"join-api/storage"
)

const (
	minPasswordLength = 6
	guestName         = "Guest"

	// Emails double as table row keys, which cannot hold these.
	emailReservedChars = `#?/\`
)

var errInvalidProfile = errors.New("invalid profile")

func register(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerRequest
		if err := decodeBody(c, &req); err != nil {
			return writeError(c, s.Logger, err)
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Email = strings.TrimSpace(req.Email)
		if err := validateRegistration(req); err != nil {
			return writeError(c, s.Logger, err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return writeError(c, s.Logger, err)
		}
		user := domain.User{
			ID:           uuid.NewString(),
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: string(hash),
			CreatedAt:    s.Now().UTC(),
		}
		if err := s.Store.InsertUser(c.Request().Context(), user); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return jsonError(c, http.StatusConflict, "email already registered")
			}
			return writeError(c, s.Logger, err)
		}
		s.Logger.WithField("user", user.ID).Info("user registered")
		return s.startSession(c, http.StatusCreated, Session{
			State:  domain.SessionUser,
			UserID: user.ID,
			Name:   user.Name,
			Email:  user.Email,
		})
	}
}

func validateRegistration(req registerRequest) error {
	if req.Name == "" {
		return fmt.Errorf("%w: name is required", errInvalidProfile)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fmt.Errorf("%w: malformed email", errInvalidProfile)
	}
	if strings.ContainsAny(req.Email, emailReservedChars) || strings.ContainsFunc(req.Email, unicode.IsControl) {
		return fmt.Errorf("%w: email contains unsupported characters", errInvalidProfile)
	}
	if len(req.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must have at least %d characters", errInvalidProfile, minPasswordLength)
	}
	return nil
}

func login(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginRequest
		if err := decodeBody(c, &req); err != nil {
			return writeError(c, s.Logger, err)
		}
		user, err := s.Store.GetUserByEmail(c.Request().Context(), req.Email)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return writeError(c, s.Logger, errInvalidCredentials)
			}
			return writeError(c, s.Logger, err)
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			return writeError(c, s.Logger, errInvalidCredentials)
		}
		return s.startSession(c, http.StatusOK, Session{
			State:  domain.SessionUser,
			UserID: user.ID,
			Name:   user.Name,
			Email:  user.Email,
		})
	}
}

func guestLogin(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		return s.startSession(c, http.StatusOK, Session{
			State:  domain.SessionGuest,
			UserID: "guest-" + uuid.NewString(),
			Name:   guestName,
		})
	}
}

func logout(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.Auth.Revoke(c.Request().Context(), sessionFrom(c)); err != nil {
			return writeError(c, s.Logger, err)
		}
		c.SetCookie(s.sessionCookie("", time.Unix(0, 0)))
		return c.NoContent(http.StatusNoContent)
	}
}

func currentSession(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := resolveSession(c, s.Auth)
		return c.JSON(http.StatusOK, sessionResponse{Session: sess, Initials: sess.Initials()})
	}
}

func updateProfile(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req profileRequest
		if err := decodeBody(c, &req); err != nil {
			return writeError(c, s.Logger, err)
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return writeError(c, s.Logger, fmt.Errorf("%w: name is required", errInvalidProfile))
		}
		sess := sessionFrom(c)
		if sess.State == domain.SessionUser && sess.Email != "" {
			if err := s.Store.UpdateUserName(c.Request().Context(), sess.Email, name); err != nil {
				return writeError(c, s.Logger, err)
			}
		}
		if err := s.Auth.Revoke(c.Request().Context(), sess); err != nil {
			s.Logger.WithError(err).Warn("unable to revoke replaced token")
		}
		sess.Name = name
		return s.startSession(c, http.StatusOK, sess)
	}
}

func (s *Server) startSession(c echo.Context, status int, sess Session) error {
	token, exp, err := s.Auth.Issue(sess)
	if err != nil {
		return writeError(c, s.Logger, err)
	}
	c.SetCookie(s.sessionCookie(token, exp))
	return c.JSON(status, sessionResponse{Token: token, ExpiresAt: exp, Session: sess, Initials: sess.Initials()})
}

func (s *Server) sessionCookie(token string, exp time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		ck.MaxAge = -1
	}
	return ck
}
