package domain

import "time"

// Summary aggregates the task list for the dashboard.
type Summary struct {
	Total        int            `json:"total"`
	ByStatus     map[Status]int `json:"byStatus"`
	Urgent       int            `json:"urgent"`
	NextDeadline *time.Time     `json:"nextDeadline,omitempty"`
}

// Summarize counts tasks per status and finds the earliest due date among
// urgent tasks that are not done yet.
func Summarize(tasks []Task) Summary {
	s := Summary{Total: len(tasks), ByStatus: make(map[Status]int, len(Statuses))}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}
	for _, t := range tasks {
		s.ByStatus[t.Status]++
		if t.Priority != PriorityUrgent {
			continue
		}
		s.Urgent++
		if t.Status == StatusDone || t.DueDate == nil {
			continue
		}
		if s.NextDeadline == nil || t.DueDate.Before(*s.NextDeadline) {
			d := *t.DueDate
			s.NextDeadline = &d
		}
	}
	return s
}

// Greeting returns the salutation for the local time of day.
func Greeting(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Good morning"
	case h < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}
