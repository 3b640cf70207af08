package live

import (
	"context"
	"sync"

	"join-api/domain"
)

// TaskFeed mirrors the task collection and remembers the in-column order the
// board was last arranged in.
type TaskFeed struct {
	tasks *Collection[domain.Task]

	mu    sync.Mutex
	order map[domain.Status][]string
}

func NewTaskFeed(load Loader[domain.Task]) *TaskFeed {
	return &TaskFeed{
		tasks: NewCollection(load, domain.Task.Clone),
		order: map[domain.Status][]string{},
	}
}

func (f *TaskFeed) Refresh(ctx context.Context) error {
	return f.tasks.Refresh(ctx)
}

func (f *TaskFeed) Subscribe() (<-chan []domain.Task, func()) {
	return f.tasks.Subscribe()
}

func (f *TaskFeed) Tasks() []domain.Task {
	return f.tasks.Snapshot()
}

// Get returns a copy of the task with the given id.
func (f *TaskFeed) Get(id string) (domain.Task, bool) {
	for _, t := range f.tasks.Snapshot() {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

// Columns groups the current tasks by status in board order.
func (f *TaskFeed) Columns() domain.Columns {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.columnsLocked()
}

func (f *TaskFeed) columnsLocked() domain.Columns {
	cols := domain.BuildColumns(f.tasks.Snapshot(), f.order)
	f.order = cols.Order()
	return cols
}

// Board is a filtered board plus every task's index in its unfiltered
// column, which is what drop events refer to.
type Board struct {
	domain.BoardResult
	Positions map[string]int `json:"positions"`
}

// Board returns the columns filtered by search.
func (f *TaskFeed) Board(search string) Board {
	cols := f.Columns()
	positions := make(map[string]int)
	for _, col := range cols {
		for i, t := range col.Tasks {
			positions[t.ID] = i
		}
	}
	return Board{BoardResult: domain.FilterBoard(cols, search), Positions: positions}
}

// ApplyDrop applies a drag-and-drop gesture to the local board and publishes
// the result right away. The caller persists the status when statusChanged is set.
func (f *TaskFeed) ApplyDrop(ev domain.DropEvent) (moved domain.Task, statusChanged bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cols := f.columnsLocked()
	moved, statusChanged, err = domain.ApplyDrop(&cols, ev)
	if err != nil {
		return domain.Task{}, false, err
	}
	f.order = cols.Order()
	if statusChanged {
		f.tasks.Mutate(func(tasks []domain.Task) []domain.Task {
			if i := indexOfMoved(tasks, moved, ev.SourceList); i >= 0 {
				tasks[i].Status = moved.Status
			}
			return tasks
		})
	}
	return moved, statusChanged, nil
}

// indexOfMoved finds the single task a drop refers to. Tasks that were never
// stored have no id, so they are matched on title and creation time within
// the source column.
func indexOfMoved(tasks []domain.Task, moved domain.Task, from domain.Status) int {
	for i, t := range tasks {
		if moved.ID != "" {
			if t.ID == moved.ID {
				return i
			}
			continue
		}
		if t.ID == "" && t.Status == from && t.Title == moved.Title && t.CreatedAt.Equal(moved.CreatedAt) {
			return i
		}
	}
	return -1
}

// Upsert places t into the local mirror ahead of the next refresh. Tasks
// without an id are always added.
func (f *TaskFeed) Upsert(t domain.Task) {
	f.tasks.Mutate(func(tasks []domain.Task) []domain.Task {
		for i := range tasks {
			if t.ID != "" && tasks[i].ID == t.ID {
				tasks[i] = t.Clone()
				return tasks
			}
		}
		return append(tasks, t.Clone())
	})
}

// Remove drops the task with id from the local mirror.
func (f *TaskFeed) Remove(id string) {
	f.tasks.Mutate(func(tasks []domain.Task) []domain.Task {
		out := tasks[:0]
		for _, t := range tasks {
			if t.ID != id {
				out = append(out, t)
			}
		}
		return out
	})
}

func (f *TaskFeed) Summary() domain.Summary {
	return domain.Summarize(f.tasks.Snapshot())
}
