package api

import (
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"join-api/domain"
	"join-api/live"
)

const maxBodySize = 64 * 1024 // 64 KiB

// decodeBody reads a size-limited JSON body, rejecting unknown fields.
func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

// POST /api/auth/register
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/auth/login
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PATCH /api/auth/profile
type profileRequest struct {
	Name string `json:"name"`
}

type sessionResponse struct {
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	Session   Session   `json:"session"`
	Initials  string    `json:"initials,omitempty"`
}

// GET /api/contacts
type contactsResponse struct {
	Groups []contactGroupView `json:"groups"`
}

type contactGroupView struct {
	Letter   string        `json:"letter"`
	Contacts []contactView `json:"contacts"`
}

func newContactGroupViews(groups domain.ContactGroups) []contactGroupView {
	out := []contactGroupView{}
	for _, g := range groups.NonEmpty() {
		v := contactGroupView{Letter: g.Letter, Contacts: make([]contactView, 0, len(g.Contacts))}
		for _, c := range g.Contacts {
			v.Contacts = append(v.Contacts, newContactView(c))
		}
		out = append(out, v)
	}
	return out
}

type contactView struct {
	domain.Contact
	Initials string `json:"initials"`
	Color    string `json:"color"`
}

func newContactView(c domain.Contact) contactView {
	return contactView{Contact: c, Initials: c.Initials(), Color: c.Color()}
}

// PATCH /api/tasks/:id/subtasks/:subtaskId
type subtaskPatch struct {
	Completed bool `json:"completed"`
}

type boardResponse struct {
	live.Board
	Moved *domain.Task `json:"moved,omitempty"`
}

// GET /api/summary
type summaryResponse struct {
	domain.Summary
	Greeting string `json:"greeting"`
	UserName string `json:"userName,omitempty"`
	Guest    bool   `json:"guest"`
}
