package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

var day0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestSummarizeEmptyAndNoCompletions(t *testing.T) {
	users := []User{{ID: "u1", Name: "Ann"}, {ID: "u2", Name: "Ben"}}
	ws := []Workspace{{ID: 1, Name: "W"}}
	s := summarize(nil, users, ws, nil, day0)
	if s.TotalTasks != 0 || s.AvgCompletionTime != 0 {
		t.Fatalf("empty summary = %+v", s)
	}
	if len(s.TasksByUser) != 2 || len(s.TasksByWorkspace) != 1 {
		t.Fatalf("breakdowns must list everyone: %+v", s)
	}

	tasks := []Task{{ID: 1, WorkspaceID: 1, Status: StatusTodo, CreatedAt: day0}}
	s = summarize(tasks, users, ws, nil, day0)
	if s.AvgCompletionTime != 0 || s.CompletedTasks != 0 {
		t.Fatalf("no completions: %+v", s)
	}
}

func TestSummarizeCounts(t *testing.T) {
	u1 := "u1"
	yesterday := day0.Add(-24 * time.Hour)
	tomorrow := day0.Add(24 * time.Hour)
	done2 := day0.Add(2 * 24 * time.Hour)
	done4 := day0.Add(4 * 24 * time.Hour)
	tasks := []Task{
		{ID: 1, WorkspaceID: 1, Status: StatusTodo, AssigneeID: &u1, DueDate: &yesterday, CreatedAt: day0},
		{ID: 2, WorkspaceID: 1, Status: StatusInProgress, DueDate: &tomorrow, CreatedAt: day0},
		{ID: 3, WorkspaceID: 2, Status: StatusDone, AssigneeID: &u1, DueDate: &yesterday, CreatedAt: day0, CompletedAt: &done2},
		{ID: 4, WorkspaceID: 2, Status: StatusDone, CreatedAt: day0, CompletedAt: &done4},
		{ID: 5, WorkspaceID: 2, Status: StatusDone, CreatedAt: day0},
	}
	users := []User{{ID: "u1"}, {ID: "u2"}}
	ws := []Workspace{{ID: 1, Name: "One"}, {ID: 2, Name: "Two"}}
	s := summarize(tasks, users, ws, nil, day0)

	if s.TotalTasks != 5 || s.CompletedTasks != 3 || s.OverdueTasks != 1 {
		t.Fatalf("counts = %+v", s)
	}
	// (2 + 4) / 2 days; task 5 has no completion stamp and is skipped
	if s.AvgCompletionTime != 3 {
		t.Fatalf("avg = %d", s.AvgCompletionTime)
	}
	if s.TasksByUser[0] != (UserTaskCount{UserID: "u1", Total: 2, Completed: 1}) {
		t.Fatalf("u1 = %+v", s.TasksByUser[0])
	}
	if s.TasksByUser[1].Total != 0 {
		t.Fatalf("u2 = %+v", s.TasksByUser[1])
	}
	if s.TasksByWorkspace[0].Total != 2 || s.TasksByWorkspace[1].Total != 3 || s.TasksByWorkspace[1].Completed != 3 {
		t.Fatalf("by workspace = %+v", s.TasksByWorkspace)
	}
}

func TestSummarizeAverageRoundsMean(t *testing.T) {
	// 18h each: per-task whole days would be 0, the rounded mean is 1
	d1 := day0.Add(18 * time.Hour)
	d2 := day0.Add(18 * time.Hour)
	tasks := []Task{
		{ID: 1, WorkspaceID: 1, Status: StatusDone, CreatedAt: day0, CompletedAt: &d1},
		{ID: 2, WorkspaceID: 1, Status: StatusDone, CreatedAt: day0, CompletedAt: &d2},
	}
	if s := summarize(tasks, nil, []Workspace{{ID: 1}}, nil, day0); s.AvgCompletionTime != 1 {
		t.Fatalf("avg = %d", s.AvgCompletionTime)
	}
	// 1.25d and 2.5d: mean 1.875 rounds to 2
	d3 := day0.Add(30 * time.Hour)
	d4 := day0.Add(60 * time.Hour)
	tasks = []Task{
		{ID: 1, WorkspaceID: 1, Status: StatusDone, CreatedAt: day0, CompletedAt: &d3},
		{ID: 2, WorkspaceID: 1, Status: StatusDone, CreatedAt: day0, CompletedAt: &d4},
	}
	if s := summarize(tasks, nil, []Workspace{{ID: 1}}, nil, day0); s.AvgCompletionTime != 2 {
		t.Fatalf("avg = %d", s.AvgCompletionTime)
	}
}

func TestSummarizeDateRange(t *testing.T) {
	early := day0.Add(-10 * 24 * time.Hour)
	doneInRange := day0.Add(time.Hour)
	tasks := []Task{
		{ID: 1, WorkspaceID: 1, Status: StatusTodo, CreatedAt: day0},
		{ID: 2, WorkspaceID: 1, Status: StatusTodo, CreatedAt: early},
		{ID: 3, WorkspaceID: 1, Status: StatusDone, CreatedAt: early, CompletedAt: &doneInRange},
	}
	ws := []Workspace{{ID: 1}}

	rng := &DateRange{From: day0.Add(-time.Hour), To: day0.Add(2 * time.Hour)}
	s := summarize(tasks, nil, ws, rng, day0)
	if s.TotalTasks != 2 || s.CompletedTasks != 1 {
		t.Fatalf("in range = %+v", s)
	}

	// bounds are inclusive
	s = summarize(tasks, nil, ws, &DateRange{From: day0, To: day0}, day0)
	if s.TotalTasks != 1 {
		t.Fatalf("point range = %+v", s)
	}

	inverted := &DateRange{From: day0, To: day0.Add(-time.Hour)}
	s = summarize(tasks, []User{{ID: "u"}}, ws, inverted, day0)
	if s.TotalTasks != 0 || s.CompletedTasks != 0 || s.OverdueTasks != 0 || s.AvgCompletionTime != 0 {
		t.Fatalf("inverted range = %+v", s)
	}
	if len(s.TasksByUser) != 1 || len(s.TasksByWorkspace) != 1 {
		t.Fatalf("inverted range breakdowns = %+v", s)
	}
}

func TestParseDateRange(t *testing.T) {
	r, err := parseDateRange("", "")
	if err != nil || r != nil {
		t.Fatalf("empty: %v %v", r, err)
	}
	r, err = parseDateRange("2024-03-01", "2024-03-01")
	if err != nil {
		t.Fatal(err)
	}
	if !r.contains(time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)) {
		t.Fatal("date-only to should cover the whole day")
	}
	if r.contains(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("next day included")
	}
	r, err = parseDateRange("2024-03-01T12:00:00Z", "")
	if err != nil || !r.contains(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("open upper bound: %v", err)
	}
	if _, err := parseDateRange("yesterday", "soon"); !equalStrings(fieldsOf(err), []string{"from", "to"}) {
		t.Fatalf("bad input: %v", err)
	}
}

func TestAnalyticsOverdueScenario(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, DefaultPolicy())
	admin := seedUser(t, s, "admin@example.com", RoleAdmin)
	worker := seedUser(t, s, "idle@example.com", RoleWorker)
	ap := principalOf(admin)
	ws := seedWorkspace(t, s, admin, "Design")

	yesterday := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	task, err := e.CreateTask(ctx, ap, TaskInput{Title: "late", WorkspaceID: ws.ID, Status: StatusTodo, DueDate: &yesterday})
	if err != nil {
		t.Fatal(err)
	}
	before, err := e.ComputeAnalyticsSummary(ctx, ap, nil)
	if err != nil {
		t.Fatal(err)
	}
	if before.OverdueTasks != 1 {
		t.Fatalf("overdue before = %d", before.OverdueTasks)
	}

	updated, _, err := e.UpdateTask(ctx, ap, task.ID, TaskPatch{Status: ptr(StatusDone)})
	if err != nil {
		t.Fatal(err)
	}
	if updated.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
	after, err := e.ComputeAnalyticsSummary(ctx, ap, nil)
	if err != nil {
		t.Fatal(err)
	}
	if after.OverdueTasks != 0 || after.CompletedTasks != before.CompletedTasks+1 {
		t.Fatalf("after = %+v", after)
	}

	found := false
	for _, u := range after.TasksByUser {
		if u.UserID == worker.ID && u.Total == 0 {
			found = true
		}
	}
	if !found {
		t.Fatal("user with no tasks missing from breakdown")
	}

	if _, err := e.ComputeAnalyticsSummary(ctx, principalOf(worker), nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("worker analytics: %v", err)
	}
}
