package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrInvalidDrop = errors.New("invalid drop")

// BoardColumn is a status bucket derived from the task list. It is never persisted.
type BoardColumn struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status Status `json:"status"`
	Tasks  []Task `json:"tasks"`
}

var columnTitles = map[Status]string{
	StatusTodo:       "To do",
	StatusInProgress: "In progress",
	StatusAwaiting:   "Await feedback",
	StatusDone:       "Done",
}

// Columns holds the four board columns in board order.
type Columns [len(Statuses)]BoardColumn

func columnIndex(s Status) (int, bool) {
	for i, st := range Statuses {
		if st == s {
			return i, true
		}
	}
	return 0, false
}

// Column returns the column holding tasks with status s.
func (c *Columns) Column(s Status) (*BoardColumn, bool) {
	i, ok := columnIndex(s)
	if !ok {
		return nil, false
	}
	return &c[i], true
}

// Order returns the task IDs of every column, used to keep positions across refreshes.
func (c Columns) Order() map[Status][]string {
	out := make(map[Status][]string, len(c))
	for _, col := range c {
		ids := make([]string, 0, len(col.Tasks))
		for _, t := range col.Tasks {
			ids = append(ids, t.ID)
		}
		out[col.Status] = ids
	}
	return out
}

func emptyColumns() Columns {
	var cols Columns
	for i, st := range Statuses {
		cols[i] = BoardColumn{ID: string(st), Title: columnTitles[st], Status: st, Tasks: []Task{}}
	}
	return cols
}

// BuildColumns groups tasks by status. Tasks listed in order keep their
// previous position inside the column; the rest follow by creation time.
func BuildColumns(tasks []Task, order map[Status][]string) Columns {
	cols := emptyColumns()
	byStatus := make(map[Status][]Task, len(Statuses))
	for _, t := range tasks {
		if !t.Status.Valid() {
			continue
		}
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}
	for i, st := range Statuses {
		group := byStatus[st]
		rank := make(map[string]int, len(order[st]))
		for pos, id := range order[st] {
			if id != "" {
				rank[id] = pos
			}
		}
		sort.SliceStable(group, func(a, b int) bool {
			ra, okA := rank[group[a].ID]
			rb, okB := rank[group[b].ID]
			switch {
			case okA && okB:
				return ra < rb
			case okA != okB:
				return okA
			}
			return group[a].CreatedAt.Before(group[b].CreatedAt)
		})
		if group != nil {
			cols[i].Tasks = group
		}
	}
	return cols
}

// BoardResult is the filtered board handed to clients.
type BoardResult struct {
	Columns    Columns `json:"columns"`
	Search     string  `json:"search"`
	HasResults bool    `json:"hasResults"`
	NoResults  bool    `json:"noResults"`
}

// Matches reports whether the task title or description contains search, ignoring case.
func (t Task) Matches(search string) bool {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle)
}

// FilterBoard keeps only the tasks matching search, preserving column order.
func FilterBoard(cols Columns, search string) BoardResult {
	search = strings.TrimSpace(search)
	res := BoardResult{Search: search}
	if search == "" {
		res.Columns = cols
		res.HasResults = true
		return res
	}
	found := false
	for i, col := range cols {
		filtered := BoardColumn{ID: col.ID, Title: col.Title, Status: col.Status, Tasks: []Task{}}
		for _, t := range col.Tasks {
			if t.Matches(search) {
				filtered.Tasks = append(filtered.Tasks, t)
			}
		}
		found = found || len(filtered.Tasks) > 0
		res.Columns[i] = filtered
	}
	res.HasResults = found
	res.NoResults = !found
	return res
}

// DropEvent is one drag-and-drop gesture between (or within) board columns.
type DropEvent struct {
	SourceList  Status `json:"sourceList"`
	TargetList  Status `json:"targetList"`
	SourceIndex int    `json:"sourceIndex"`
	TargetIndex int    `json:"targetIndex"`
}

// ApplyDrop mutates cols in place. Moves inside one column only permute it;
// moves across columns also rewrite the task status. The moved task is
// returned with statusChanged set when it left its column.
func ApplyDrop(cols *Columns, ev DropEvent) (moved Task, statusChanged bool, err error) {
	src, ok := cols.Column(ev.SourceList)
	if !ok {
		return Task{}, false, fmt.Errorf("%w: unknown list %q", ErrInvalidDrop, ev.SourceList)
	}
	dst, ok := cols.Column(ev.TargetList)
	if !ok {
		return Task{}, false, fmt.Errorf("%w: unknown list %q", ErrInvalidDrop, ev.TargetList)
	}
	if ev.SourceIndex < 0 || ev.SourceIndex >= len(src.Tasks) {
		return Task{}, false, fmt.Errorf("%w: source index %d out of range", ErrInvalidDrop, ev.SourceIndex)
	}

	if src == dst {
		src.Tasks = moveItem(src.Tasks, ev.SourceIndex, ev.TargetIndex)
		return src.Tasks[clamp(ev.TargetIndex, 0, len(src.Tasks)-1)], false, nil
	}

	moved = src.Tasks[ev.SourceIndex]
	src.Tasks = append(src.Tasks[:ev.SourceIndex:ev.SourceIndex], src.Tasks[ev.SourceIndex+1:]...)
	moved.Status = dst.Status
	dst.Tasks = insertItem(dst.Tasks, clamp(ev.TargetIndex, 0, len(dst.Tasks)), moved)
	return moved, true, nil
}

func moveItem(list []Task, from, to int) []Task {
	to = clamp(to, 0, len(list)-1)
	if from == to {
		return list
	}
	item := list[from]
	out := make([]Task, 0, len(list))
	out = append(out, list[:from]...)
	out = append(out, list[from+1:]...)
	return insertItem(out, to, item)
}

func insertItem(list []Task, at int, item Task) []Task {
	list = append(list, Task{})
	copy(list[at+1:], list[at:])
	list[at] = item
	return list
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
