package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the board column a task currently sits in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusAwaiting   Status = "awaiting"
	StatusDone       Status = "done"
)

// Statuses lists every status in board order.
var Statuses = [...]Status{StatusTodo, StatusInProgress, StatusAwaiting, StatusDone}

// Priority is the urgency label of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityUrgent Priority = "urgent"
)

var (
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidTask     = errors.New("invalid task")
)

// ParseStatus converts s to a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusAwaiting, StatusDone:
		return true
	}
	return false
}

// ParsePriority converts p to a Priority, rejecting unknown values.
func ParsePriority(p string) (Priority, error) {
	pr := Priority(p)
	if !pr.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, p)
	}
	return pr, nil
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityUrgent:
		return true
	}
	return false
}

// Subtask is a checklist item owned by exactly one task.
type Subtask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Task represents a single board item.
type Task struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	AssignedTo  []string   `json:"assignedTo"`
	CreatedAt   time.Time  `json:"createdAt"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Subtasks    []Subtask  `json:"subtasks"`
}

// Normalize fills in defaults for fields a client may leave empty.
func (t *Task) Normalize(now time.Time) {
	t.Title = strings.TrimSpace(t.Title)
	t.Category = strings.TrimSpace(t.Category)
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now.UTC()
	}
	if t.AssignedTo == nil {
		t.AssignedTo = []string{}
	}
	if t.Subtasks == nil {
		t.Subtasks = []Subtask{}
	}
	for i := range t.Subtasks {
		t.Subtasks[i].Title = strings.TrimSpace(t.Subtasks[i].Title)
		if t.Subtasks[i].ID == "" {
			t.Subtasks[i].ID = uuid.NewString()
		}
	}
}

// Validate reports the first rule the task breaks.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}
	seen := make(map[string]struct{}, len(t.Subtasks))
	for _, st := range t.Subtasks {
		if strings.TrimSpace(st.Title) == "" {
			return fmt.Errorf("%w: subtask title is required", ErrInvalidTask)
		}
		if _, dup := seen[st.ID]; dup {
			return fmt.Errorf("%w: duplicate subtask id %q", ErrInvalidTask, st.ID)
		}
		seen[st.ID] = struct{}{}
	}
	return nil
}

// SubtaskProgress returns the number of completed subtasks and the total.
func (t Task) SubtaskProgress() (done, total int) {
	for _, st := range t.Subtasks {
		if st.Completed {
			done++
		}
	}
	return done, len(t.Subtasks)
}

// Clone returns a deep copy so snapshots never share slices with the owner.
func (t Task) Clone() Task {
	c := t
	if t.AssignedTo != nil {
		c.AssignedTo = append([]string(nil), t.AssignedTo...)
	}
	if t.Subtasks != nil {
		c.Subtasks = append([]Subtask(nil), t.Subtasks...)
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	return c
}
