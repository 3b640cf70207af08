package api

import (
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"join-api/domain"
	"join-api/live"
)

func listContacts(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, contactsResponse{Groups: newContactGroupViews(s.Contacts.Groups())})
	}
}

func getContact(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if ct, ok := s.Contacts.Get(id); ok {
			return c.JSON(http.StatusOK, newContactView(ct))
		}
		ct, err := s.Store.GetContact(c.Request().Context(), id)
		if err != nil {
			return writeError(c, s.Logger, err)
		}
		return c.JSON(http.StatusOK, newContactView(ct))
	}
}

func createContact(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var ct domain.Contact
		if err := decodeBody(c, &ct); err != nil {
			return writeError(c, s.Logger, err)
		}
		ct.Normalize()
		if err := ct.Validate(); err != nil {
			return writeError(c, s.Logger, err)
		}
		ok, release, err := s.claimIdempotencyKey(c, live.CollectionContacts)
		if !ok {
			return err
		}
		ct.ID = uuid.NewString()
		if err := s.Store.InsertContact(c.Request().Context(), ct); err != nil {
			release()
			return writeError(c, s.Logger, err)
		}
		s.Contacts.Upsert(ct)
		s.changed(c, live.CollectionContacts)
		return c.JSON(http.StatusCreated, newContactView(ct))
	}
}

func updateContact(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var ct domain.Contact
		if err := decodeBody(c, &ct); err != nil {
			return writeError(c, s.Logger, err)
		}
		ct.ID = c.Param("id")
		ct.Normalize()
		if err := ct.Validate(); err != nil {
			return writeError(c, s.Logger, err)
		}
		if err := s.Store.ReplaceContact(c.Request().Context(), ct); err != nil {
			return writeError(c, s.Logger, err)
		}
		s.Contacts.Upsert(ct)
		s.changed(c, live.CollectionContacts)
		return c.JSON(http.StatusOK, newContactView(ct))
	}
}

// deleteContact also unassigns the contact from every task that lists it.
// Tasks name their assignees, so the contact is resolved before it is removed.
func deleteContact(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param("id")
		ct, ok := s.Contacts.Get(id)
		if !ok {
			var err error
			if ct, err = s.Store.GetContact(ctx, id); err != nil {
				return writeError(c, s.Logger, err)
			}
		}
		if err := s.Store.DeleteContact(ctx, id); err != nil {
			return writeError(c, s.Logger, err)
		}
		s.Contacts.Remove(id)
		s.changed(c, live.CollectionContacts)

		unassigned := 0
		for _, t := range s.Tasks.Tasks() {
			if !slices.Contains(t.AssignedTo, ct.Name) {
				continue
			}
			t.AssignedTo = slices.DeleteFunc(t.AssignedTo, func(a string) bool { return a == ct.Name })
			if err := s.Store.ReplaceTask(ctx, t); err != nil {
				s.Logger.WithError(err).WithField("task", t.ID).Error("unable to unassign deleted contact")
				continue
			}
			s.Tasks.Upsert(t)
			unassigned++
		}
		if unassigned > 0 {
			s.changed(c, live.CollectionTasks)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
