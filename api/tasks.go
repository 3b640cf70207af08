package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"join-api/domain"
	"join-api/live"
	"join-api/storage"
)

func listTasks(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.Tasks.Tasks())
	}
}

func (s *Server) lookupTask(c echo.Context, id string) (domain.Task, error) {
	if t, ok := s.Tasks.Get(id); ok {
		return t, nil
	}
	return s.Store.GetTask(c.Request().Context(), id)
}

func getTask(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		t, err := s.lookupTask(c, c.Param("id"))
		if err != nil {
			return writeError(c, s.Logger, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func createTask(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var t domain.Task
		if err := decodeBody(c, &t); err != nil {
			return writeError(c, s.Logger, err)
		}
		t.ID = uuid.NewString()
		t.CreatedAt = time.Time{}
		t.Normalize(s.Now())
		if err := t.Validate(); err != nil {
			return writeError(c, s.Logger, err)
		}
		ok, release, err := s.claimIdempotencyKey(c, live.CollectionTasks)
		if !ok {
			return err
		}
		if err := s.Store.InsertTask(c.Request().Context(), t); err != nil {
			release()
			return writeError(c, s.Logger, err)
		}
		s.Tasks.Upsert(t)
		s.changed(c, live.CollectionTasks)
		return c.JSON(http.StatusCreated, t)
	}
}

// updateTask replaces the whole document; the creation time is kept.
func updateTask(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var t domain.Task
		if err := decodeBody(c, &t); err != nil {
			return writeError(c, s.Logger, err)
		}
		existing, err := s.lookupTask(c, c.Param("id"))
		if err != nil {
			return writeError(c, s.Logger, err)
		}
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
		t.Normalize(s.Now())
		if err := t.Validate(); err != nil {
			return writeError(c, s.Logger, err)
		}
		if err := s.Store.ReplaceTask(c.Request().Context(), t); err != nil {
			return writeError(c, s.Logger, err)
		}
		s.Tasks.Upsert(t)
		s.changed(c, live.CollectionTasks)
		return c.JSON(http.StatusOK, t)
	}
}

func deleteTask(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if err := s.Store.DeleteTask(c.Request().Context(), id); err != nil {
			return writeError(c, s.Logger, err)
		}
		s.Tasks.Remove(id)
		s.changed(c, live.CollectionTasks)
		return c.NoContent(http.StatusNoContent)
	}
}

func toggleSubtask(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch subtaskPatch
		if err := decodeBody(c, &patch); err != nil {
			return writeError(c, s.Logger, err)
		}
		t, err := s.lookupTask(c, c.Param("id"))
		if err != nil {
			return writeError(c, s.Logger, err)
		}
		subID := c.Param("subtaskId")
		found := false
		for i := range t.Subtasks {
			if t.Subtasks[i].ID == subID {
				t.Subtasks[i].Completed = patch.Completed
				found = true
			}
		}
		if !found {
			return writeError(c, s.Logger, fmt.Errorf("subtask %s: %w", subID, storage.ErrNotFound))
		}
		if err := s.Store.ReplaceTask(c.Request().Context(), t); err != nil {
			return writeError(c, s.Logger, err)
		}
		s.Tasks.Upsert(t)
		s.changed(c, live.CollectionTasks)
		return c.JSON(http.StatusOK, t)
	}
}
