package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"join-api/domain"
	"join-api/storage"
)

func getBoard(s *Server) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, spanCtx := newBoardRequestMetrics(c.Request().Context(), s.Logger)
		c.SetRequest(c.Request().WithContext(spanCtx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		search := c.QueryParam("search")
		metrics.SetSearchProvided(strings.TrimSpace(search) != "")

		buildStart := time.Now()
		board := s.Tasks.Board(search)
		metrics.ObserveBuild(time.Since(buildStart))

		returned := 0
		for _, col := range board.Columns {
			returned += len(col.Tasks)
		}
		metrics.SetTasksReturned(returned)
		metrics.SetNoResults(board.NoResults)

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, boardResponse{Board: board})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

// moveTask applies a drop locally and answers with the new board at once.
// A status change of a stored task is persisted in the background; if that write fails the
// board is resynced from storage and the move reverts.
func moveTask(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var ev domain.DropEvent
		if err := decodeBody(c, &ev); err != nil {
			return writeError(c, s.Logger, err)
		}
		moved, statusChanged, err := s.Tasks.ApplyDrop(ev)
		if err != nil {
			return writeError(c, s.Logger, err)
		}
		if statusChanged && moved.ID != "" && s.Status != nil {
			s.Status.Submit(storage.StatusChange{
				TaskID:      moved.ID,
				Status:      moved.Status,
				RequestedAt: s.Now().UTC(),
			})
		}
		return c.JSON(http.StatusOK, boardResponse{Board: s.Tasks.Board(c.QueryParam("search")), Moved: &moved})
	}
}

func getSummary(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := sessionFrom(c)
		resp := summaryResponse{
			Summary:  s.Tasks.Summary(),
			Greeting: domain.Greeting(s.Now()),
			Guest:    sess.State == domain.SessionGuest,
		}
		if !resp.Guest {
			resp.UserName = sess.Name
		}
		return c.JSON(http.StatusOK, resp)
	}
}
