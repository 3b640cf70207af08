package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"join-api/domain"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteTaskRoundTrip(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	task := domain.Task{
		ID:          "t1",
		Title:       "Login page",
		Description: "build the form",
		Category:    "Technical Task",
		Priority:    domain.PriorityUrgent,
		Status:      domain.StatusTodo,
		AssignedTo:  []string{"c1", "c2"},
		CreatedAt:   time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
		DueDate:     &due,
		Subtasks:    []domain.Subtask{{ID: "s1", Title: "markup", Completed: true}},
	}

	if err := s.InsertTask(ctx, task); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, task) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, task)
	}

	if err := s.InsertTask(ctx, task); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on duplicate id, got %v", err)
	}

	if err := s.SetTaskStatus(ctx, "t1", domain.StatusDone); err != nil {
		t.Fatalf("set status: %v", err)
	}
	list, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != domain.StatusDone {
		t.Fatalf("unexpected list: %#v", list)
	}

	task.Title = "Signup page"
	task.DueDate = nil
	task.Status = domain.StatusDone
	if err := s.ReplaceTask(ctx, task); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ = s.GetTask(ctx, "t1")
	if got.Title != "Signup page" || got.DueDate != nil {
		t.Fatalf("replace not applied: %#v", got)
	}

	if err := s.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTask(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSQLiteMissingRows(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	if err := s.SetTaskStatus(ctx, "nope", domain.StatusDone); !errors.Is(err, ErrNotFound) {
		t.Fatalf("status: expected not found, got %v", err)
	}
	if err := s.ReplaceTask(ctx, domain.Task{ID: "nope", CreatedAt: time.Now()}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("replace: expected not found, got %v", err)
	}
	if err := s.DeleteContact(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete contact: expected not found, got %v", err)
	}
	if _, err := s.GetContact(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get contact: expected not found, got %v", err)
	}
}

func TestSQLiteContacts(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	for _, c := range []domain.Contact{
		{ID: "c2", Name: "Ben", Email: "ben@example.com"},
		{ID: "c1", Name: "Amy", Email: "amy@example.com", Phone: "+49 1"},
	} {
		if err := s.InsertContact(ctx, c); err != nil {
			t.Fatalf("insert %s: %v", c.ID, err)
		}
	}
	list, err := s.ListContacts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Amy" {
		t.Fatalf("unexpected contacts: %#v", list)
	}

	if err := s.ReplaceContact(ctx, domain.Contact{ID: "c2", Name: "Benjamin", Email: "ben@example.com"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	c, err := s.GetContact(ctx, "c2")
	if err != nil || c.Name != "Benjamin" {
		t.Fatalf("unexpected contact %#v err=%v", c, err)
	}
}

func TestSQLiteUsers(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	u := domain.User{ID: "u1", Name: "Sofia", Email: "Sofia@Example.com", PasswordHash: "hash", CreatedAt: time.Now()}

	if err := s.InsertUser(ctx, u); err != nil {
		t.Fatalf("insert: %v", err)
	}
	dup := u
	dup.ID = "u2"
	dup.Email = "sofia@example.com"
	if err := s.InsertUser(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "SOFIA@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "u1" || got.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %#v", got)
	}

	if err := s.UpdateUserName(ctx, "sofia@example.com", "Sofia M"); err != nil {
		t.Fatalf("update name: %v", err)
	}
	got, _ = s.GetUserByEmail(ctx, "sofia@example.com")
	if got.Name != "Sofia M" {
		t.Fatalf("name not updated: %q", got.Name)
	}
	if _, err := s.GetUserByEmail(ctx, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTaskEntityRoundTrip(t *testing.T) {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	task := domain.Task{
		ID:         "t9",
		Title:      "Review",
		Priority:   domain.PriorityLow,
		Status:     domain.StatusAwaiting,
		AssignedTo: []string{"c1"},
		CreatedAt:  time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
		DueDate:    &due,
		Subtasks:   []domain.Subtask{{ID: "s1", Title: "read"}},
	}
	payload, err := encodeTask(task)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeTaskEntity(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, task) {
		t.Fatalf("mismatch:\n got %#v\nwant %#v", got, task)
	}
}
