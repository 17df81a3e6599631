package main

import (
	"math"
	"strings"
	"time"
)

// DateRange is a closed interval; a task is in range when it was created or
// completed inside it.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r *DateRange) contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

func (r *DateRange) includes(t Task) bool {
	if r == nil {
		return true
	}
	if r.contains(t.CreatedAt) {
		return true
	}
	return t.CompletedAt != nil && r.contains(*t.CompletedAt)
}

type UserTaskCount struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

type WorkspaceTaskCount struct {
	WorkspaceID int64  `json:"workspace_id"`
	Name        string `json:"name"`
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
}

type AnalyticsSummary struct {
	TotalTasks        int                  `json:"total_tasks"`
	CompletedTasks    int                  `json:"completed_tasks"`
	OverdueTasks      int                  `json:"overdue_tasks"`
	AvgCompletionTime int                  `json:"avg_completion_time"` // days
	TasksByUser       []UserTaskCount      `json:"tasks_by_user"`
	TasksByWorkspace  []WorkspaceTaskCount `json:"tasks_by_workspace"`
}

// summarize is a pure function of the snapshot, the range and now. Every user and
// every workspace appears in the breakdowns, with zeros when nothing matches.
func summarize(tasks []Task, users []User, workspaces []Workspace, rng *DateRange, now time.Time) AnalyticsSummary {
	s := AnalyticsSummary{
		TasksByUser:      make([]UserTaskCount, len(users)),
		TasksByWorkspace: make([]WorkspaceTaskCount, len(workspaces)),
	}
	userIdx := make(map[string]int, len(users))
	for i, u := range users {
		s.TasksByUser[i] = UserTaskCount{UserID: u.ID, Name: u.Name, Email: u.Email}
		userIdx[u.ID] = i
	}
	wsIdx := make(map[int64]int, len(workspaces))
	for i, w := range workspaces {
		s.TasksByWorkspace[i] = WorkspaceTaskCount{WorkspaceID: w.ID, Name: w.Name}
		wsIdx[w.ID] = i
	}

	var total time.Duration
	var n int
	for _, t := range tasks {
		if !rng.includes(t) {
			continue
		}
		done := t.Status == StatusDone
		s.TotalTasks++
		if done {
			s.CompletedTasks++
			if t.CompletedAt != nil && !t.CreatedAt.IsZero() {
				total += t.CompletedAt.Sub(t.CreatedAt)
				n++
			}
		} else if t.DueDate != nil && t.DueDate.Before(now) {
			s.OverdueTasks++
		}
		if t.AssigneeID != nil {
			if i, ok := userIdx[*t.AssigneeID]; ok {
				s.TasksByUser[i].Total++
				if done {
					s.TasksByUser[i].Completed++
				}
			}
		}
		if i, ok := wsIdx[t.WorkspaceID]; ok {
			s.TasksByWorkspace[i].Total++
			if done {
				s.TasksByWorkspace[i].Completed++
			}
		}
	}
	if n > 0 {
		// mean of the exact durations, rounded to whole days once
		days := total.Hours() / 24 / float64(n)
		s.AvgCompletionTime = int(math.Round(days))
	}
	return s
}

// parseDateRange reads from/to query values. Both empty means no range; a missing
// bound is open. A date-only "to" covers that whole day.
func parseDateRange(from, to string) (*DateRange, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return nil, nil
	}
	ve := &ValidationError{}
	r := &DateRange{To: time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)}
	if from != "" {
		t, err := parseDate(from)
		if err != nil {
			ve.add("from", "must be YYYY-MM-DD or RFC3339")
		}
		r.From = t
	}
	if to != "" {
		t, err := parseDate(to)
		if err != nil {
			ve.add("to", "must be YYYY-MM-DD or RFC3339")
		} else if len(to) == len(time.DateOnly) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		r.To = t
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}
	return r, nil
}
