package domain

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func ids(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func sampleColumns() Columns {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "a", Title: "Implement login flow", Status: StatusTodo, CreatedAt: base},
		{ID: "b", Title: "Design board", Description: "Kanban LOGIN screen", Status: StatusTodo, CreatedAt: base.Add(time.Minute)},
		{ID: "c", Title: "Write docs", Status: StatusTodo, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "t1", Title: "Deploy", Status: StatusInProgress, CreatedAt: base},
		{ID: "d", Title: "Review", Status: StatusAwaiting, CreatedAt: base},
	}
	return BuildColumns(tasks, nil)
}

func TestBuildColumnsGroupsByStatusInBoardOrder(t *testing.T) {
	cols := sampleColumns()
	want := []Status{StatusTodo, StatusInProgress, StatusAwaiting, StatusDone}
	for i, col := range cols {
		if col.Status != want[i] || col.ID != string(want[i]) {
			t.Fatalf("column %d: unexpected status %q", i, col.Status)
		}
		if col.Title == "" {
			t.Fatalf("column %d: missing title", i)
		}
	}
	if got := ids(cols[0].Tasks); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected todo order %v", got)
	}
	if len(cols[3].Tasks) != 0 || cols[3].Tasks == nil {
		t.Fatalf("expected empty non-nil done column, got %#v", cols[3].Tasks)
	}
}

func TestBuildColumnsKeepsKnownOrder(t *testing.T) {
	base := time.Now()
	tasks := []Task{
		{ID: "a", Status: StatusTodo, CreatedAt: base},
		{ID: "b", Status: StatusTodo, CreatedAt: base.Add(time.Second)},
		{ID: "new", Status: StatusTodo, CreatedAt: base.Add(-time.Hour)},
	}
	cols := BuildColumns(tasks, map[Status][]string{StatusTodo: {"b", "a"}})
	if got := ids(cols[0].Tasks); !reflect.DeepEqual(got, []string{"b", "a", "new"}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestFilterBoardEmptySearchReturnsEverything(t *testing.T) {
	cols := sampleColumns()
	res := FilterBoard(cols, "   ")
	if !res.HasResults || res.NoResults {
		t.Fatalf("expected has results for empty search, got %+v", res)
	}
	if !reflect.DeepEqual(res.Columns, cols) {
		t.Fatalf("expected unfiltered columns")
	}
}

func TestFilterBoardMatchesTitleAndDescriptionIgnoringCase(t *testing.T) {
	res := FilterBoard(sampleColumns(), "login")
	if got := ids(res.Columns[0].Tasks); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected matches %v", got)
	}
	for _, col := range res.Columns[1:] {
		if len(col.Tasks) != 0 {
			t.Fatalf("expected column %s to be empty, got %v", col.Status, ids(col.Tasks))
		}
	}
	if !res.HasResults || res.NoResults {
		t.Fatalf("unexpected flags %+v", res)
	}
}

func TestFilterBoardNoMatches(t *testing.T) {
	res := FilterBoard(sampleColumns(), "zzz-no-match")
	for _, col := range res.Columns {
		if len(col.Tasks) != 0 {
			t.Fatalf("expected empty column %s", col.Status)
		}
	}
	if !res.NoResults || res.HasResults {
		t.Fatalf("expected no results flag, got %+v", res)
	}
}

func TestFilterBoardIsIdempotent(t *testing.T) {
	for _, search := range []string{"", "login", "DE", "zzz-no-match", "o"} {
		once := FilterBoard(sampleColumns(), search)
		twice := FilterBoard(once.Columns, search)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("filter not idempotent for %q", search)
		}
	}
}

func TestApplyDropReordersWithinColumn(t *testing.T) {
	cols := sampleColumns()
	moved, changed, err := ApplyDrop(&cols, DropEvent{SourceList: StatusTodo, TargetList: StatusTodo, SourceIndex: 0, TargetIndex: 2})
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if changed {
		t.Fatal("expected no status change for same-column move")
	}
	if moved.ID != "a" {
		t.Fatalf("expected a to be moved, got %s", moved.ID)
	}
	if got := ids(cols[0].Tasks); !reflect.DeepEqual(got, []string{"b", "c", "a"}) {
		t.Fatalf("expected [b c a], got %v", got)
	}
}

func TestApplyDropMovesAcrossColumns(t *testing.T) {
	cols := sampleColumns()
	moved, changed, err := ApplyDrop(&cols, DropEvent{SourceList: StatusInProgress, TargetList: StatusDone, SourceIndex: 0, TargetIndex: 5})
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if !changed || moved.ID != "t1" || moved.Status != StatusDone {
		t.Fatalf("unexpected move result %+v changed=%v", moved, changed)
	}
	if len(cols[1].Tasks) != 0 {
		t.Fatalf("expected t1 removed from source, got %v", ids(cols[1].Tasks))
	}
	if got := ids(cols[3].Tasks); !reflect.DeepEqual(got, []string{"t1"}) {
		t.Fatalf("expected t1 in done, got %v", got)
	}
	if cols[3].Tasks[0].Status != StatusDone {
		t.Fatalf("expected stored status done, got %s", cols[3].Tasks[0].Status)
	}
}

func TestApplyDropInsertsAtTargetIndex(t *testing.T) {
	cols := sampleColumns()
	if _, _, err := ApplyDrop(&cols, DropEvent{SourceList: StatusAwaiting, TargetList: StatusTodo, SourceIndex: 0, TargetIndex: 1}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if got := ids(cols[0].Tasks); !reflect.DeepEqual(got, []string{"a", "d", "b", "c"}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestApplyDropRejectsBadInput(t *testing.T) {
	cases := map[string]DropEvent{
		"unknown source": {SourceList: "backlog", TargetList: StatusDone},
		"unknown target": {SourceList: StatusTodo, TargetList: "archive"},
		"index too big":  {SourceList: StatusTodo, TargetList: StatusDone, SourceIndex: 3},
		"negative index": {SourceList: StatusTodo, TargetList: StatusDone, SourceIndex: -1},
		"empty column":   {SourceList: StatusDone, TargetList: StatusTodo},
	}
	for name, ev := range cases {
		t.Run(name, func(t *testing.T) {
			cols := sampleColumns()
			if _, _, err := ApplyDrop(&cols, ev); !errors.Is(err, ErrInvalidDrop) {
				t.Fatalf("expected ErrInvalidDrop, got %v", err)
			}
		})
	}
}
