package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// eventWriter writes server-sent events to an already upgraded response.
type eventWriter struct {
	c       echo.Context
	flusher http.Flusher
}

func startEventStream(c echo.Context) (*eventWriter, bool) {
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return nil, false
	}
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set(echo.HeaderCacheControl, "no-cache")
	h.Set(echo.HeaderConnection, "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventWriter{c: c, flusher: flusher}, true
}

func (w *eventWriter) send(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	resp := w.c.Response()
	if _, err := resp.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := resp.Write(data); err != nil {
		return err
	}
	if _, err := resp.Write([]byte("\n\n")); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

// streamTasks pushes the filtered board every time the task feed changes.
func streamTasks(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		search := c.QueryParam("search")
		updates, cancel := s.Tasks.Subscribe()
		defer cancel()
		// The first event below already carries the current state.
		select {
		case <-updates:
		default:
		}

		w, ok := startEventStream(c)
		if !ok {
			return jsonError(c, http.StatusInternalServerError, "stream unsupported")
		}
		ctx := c.Request().Context()
		for {
			if err := w.send(boardResponse{Board: s.Tasks.Board(search)}); err != nil {
				s.Logger.WithError(err).Debug("task stream closed")
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case _, open := <-updates:
				if !open {
					return nil
				}
			}
		}
	}
}

// streamContacts pushes the grouped address book every time it changes.
func streamContacts(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		updates, cancel := s.Contacts.Subscribe()
		defer cancel()
		// The first event below already carries the current state.
		select {
		case <-updates:
		default:
		}

		w, ok := startEventStream(c)
		if !ok {
			return jsonError(c, http.StatusInternalServerError, "stream unsupported")
		}
		ctx := c.Request().Context()
		for {
			if err := w.send(contactsResponse{Groups: newContactGroupViews(s.Contacts.Groups())}); err != nil {
				s.Logger.WithError(err).Debug("contact stream closed")
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case _, open := <-updates:
				if !open {
					return nil
				}
			}
		}
	}
}
