package domain

import (
	"context"
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	soon := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	later := soon.Add(48 * time.Hour)
	earliestButDone := soon.Add(-48 * time.Hour)
	tasks := []Task{
		{ID: "1", Status: StatusTodo, Priority: PriorityUrgent, DueDate: &later},
		{ID: "2", Status: StatusInProgress, Priority: PriorityUrgent, DueDate: &soon},
		{ID: "3", Status: StatusDone, Priority: PriorityUrgent, DueDate: &earliestButDone},
		{ID: "4", Status: StatusAwaiting, Priority: PriorityLow},
		{ID: "5", Status: StatusTodo, Priority: PriorityMedium},
	}
	s := Summarize(tasks)
	if s.Total != 5 || s.Urgent != 3 {
		t.Fatalf("unexpected totals %+v", s)
	}
	if s.ByStatus[StatusTodo] != 2 || s.ByStatus[StatusInProgress] != 1 || s.ByStatus[StatusAwaiting] != 1 || s.ByStatus[StatusDone] != 1 {
		t.Fatalf("unexpected per-status counts %v", s.ByStatus)
	}
	if s.NextDeadline == nil || !s.NextDeadline.Equal(soon) {
		t.Fatalf("expected next deadline %v, got %v", soon, s.NextDeadline)
	}
}

func TestSummarizeWithoutUrgentDeadlines(t *testing.T) {
	s := Summarize([]Task{{Status: StatusTodo, Priority: PriorityLow}})
	if s.NextDeadline != nil {
		t.Fatalf("expected no deadline, got %v", s.NextDeadline)
	}
	if _, ok := s.ByStatus[StatusDone]; !ok {
		t.Fatal("expected every status to be reported")
	}
}

func TestGreeting(t *testing.T) {
	day := func(h int) time.Time { return time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC) }
	cases := map[int]string{6: "Good morning", 11: "Good morning", 12: "Good afternoon", 17: "Good afternoon", 18: "Good evening", 23: "Good evening"}
	for h, want := range cases {
		if got := Greeting(day(h)); got != want {
			t.Fatalf("Greeting(%dh) = %q, want %q", h, got, want)
		}
	}
}

func TestSessionGuards(t *testing.T) {
	if ok, to := RequireSession(SessionAnonymous); ok || to != LoginRoute {
		t.Fatalf("anonymous board access should redirect to login, got %v %q", ok, to)
	}
	if ok, _ := RequireSession(SessionGuest); !ok {
		t.Fatal("guest should reach the board")
	}
	if ok, to := RequireNoUser(SessionUser); ok || to != BoardRoute {
		t.Fatalf("signed-in login access should redirect to board, got %v %q", ok, to)
	}
	if ok, _ := RequireNoUser(SessionGuest); !ok {
		t.Fatal("guest should reach login")
	}
}

func TestAwaitSessionSkipsUnknown(t *testing.T) {
	states := make(chan SessionState, 3)
	states <- SessionUnknown
	states <- SessionUnknown
	states <- SessionUser
	if got := AwaitSession(context.Background(), states); got != SessionUser {
		t.Fatalf("expected user, got %v", got)
	}
}

func TestAwaitSessionClosedOrCancelled(t *testing.T) {
	closed := make(chan SessionState)
	close(closed)
	if got := AwaitSession(context.Background(), closed); got != SessionAnonymous {
		t.Fatalf("expected anonymous for closed stream, got %v", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if got := AwaitSession(ctx, make(chan SessionState)); got != SessionAnonymous {
		t.Fatalf("expected anonymous after timeout, got %v", got)
	}
}
