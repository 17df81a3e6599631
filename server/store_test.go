package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func titles(ts []Task, status string) []string {
	out := []string{}
	for _, t := range ts {
		if t.Status == status {
			out = append(out, t.Title)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCompletedAtFollowsStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com", RoleAdmin)
	ws := seedWorkspace(t, s, u, "W")
	task := seedTask(t, s, u, ws.ID, "t", StatusTodo)
	if task.CompletedAt != nil {
		t.Fatal("new todo task has completed_at")
	}

	done, err := s.UpdateTask(ctx, task.ID, TaskChanges{Status: ptr(StatusDone)})
	if err != nil {
		t.Fatal(err)
	}
	if done.CompletedAt == nil {
		t.Fatal("completed_at not set on done")
	}
	stamp := *done.CompletedAt

	// unrelated edit while done keeps the first stamp
	s.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	again, err := s.UpdateTask(ctx, task.ID, TaskChanges{Title: ptr("renamed")})
	if err != nil {
		t.Fatal(err)
	}
	if again.CompletedAt == nil || !again.CompletedAt.Equal(stamp) {
		t.Fatalf("completed_at changed: %v -> %v", stamp, again.CompletedAt)
	}

	back, err := s.UpdateTask(ctx, task.ID, TaskChanges{Status: ptr(StatusInProgress)})
	if err != nil {
		t.Fatal(err)
	}
	if back.CompletedAt != nil {
		t.Fatal("completed_at not cleared")
	}

	moved, err := s.MoveTask(ctx, task.ID, StatusDone, 0)
	if err != nil {
		t.Fatal(err)
	}
	if moved.CompletedAt == nil {
		t.Fatal("move to done did not stamp completed_at")
	}

	created, err := s.CreateTask(ctx, u.ID, NewTask{WorkspaceID: ws.ID, Title: "born done", Status: StatusDone, Priority: PriorityLow})
	if err != nil {
		t.Fatal(err)
	}
	if created.CompletedAt == nil {
		t.Fatal("task created as done lacks completed_at")
	}
}

func TestMoveTaskOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com", RoleAdmin)
	ws := seedWorkspace(t, s, u, "W")
	a := seedTask(t, s, u, ws.ID, "a", StatusTodo)
	seedTask(t, s, u, ws.ID, "b", StatusTodo)
	c := seedTask(t, s, u, ws.ID, "c", StatusTodo)

	if _, err := s.MoveTask(ctx, c.ID, StatusTodo, 0); err != nil {
		t.Fatal(err)
	}
	list, _ := s.ListTasks(ctx, TaskFilter{WorkspaceID: ws.ID})
	if got := titles(list, StatusTodo); !equalStrings(got, []string{"c", "a", "b"}) {
		t.Fatalf("after move to top: %v", got)
	}

	if _, err := s.MoveTask(ctx, a.ID, StatusInProgress, 5); err != nil {
		t.Fatal(err)
	}
	list, _ = s.ListTasks(ctx, TaskFilter{WorkspaceID: ws.ID})
	if got := titles(list, StatusTodo); !equalStrings(got, []string{"c", "b"}) {
		t.Fatalf("todo column: %v", got)
	}
	if got := titles(list, StatusInProgress); !equalStrings(got, []string{"a"}) {
		t.Fatalf("in-progress column: %v", got)
	}
}

func TestMoveTaskRenumbersCrowdedColumn(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com", RoleAdmin)
	ws := seedWorkspace(t, s, u, "W")
	x := seedTask(t, s, u, ws.ID, "x", StatusTodo)
	y := seedTask(t, s, u, ws.ID, "y", StatusTodo)
	z := seedTask(t, s, u, ws.ID, "z", StatusTodo)
	// squeeze the neighbours together so no gap remains between x and y
	if _, err := s.db.ExecContext(ctx, `update tasks set pos=$1 where id=$2`, 10, x.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.ExecContext(ctx, `update tasks set pos=$1 where id=$2`, 11, y.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.MoveTask(ctx, z.ID, StatusTodo, 1); err != nil {
		t.Fatal(err)
	}
	list, _ := s.ListTasks(ctx, TaskFilter{WorkspaceID: ws.ID})
	if got := titles(list, StatusTodo); !equalStrings(got, []string{"x", "z", "y"}) {
		t.Fatalf("after renumber: %v", got)
	}
}

func TestSlotAt(t *testing.T) {
	cases := []struct {
		positions []int64
		index     int
		want      int64
		ok        bool
	}{
		{nil, 0, 1000, true},
		{[]int64{1000}, 1, 2000, true},
		{[]int64{1000}, 0, 500, true},
		{[]int64{1000, 2000}, 1, 1500, true},
		{[]int64{1000, 1001}, 1, 0, false},
		{[]int64{1}, 0, 0, false},
		{[]int64{1000, 2000}, 99, 3000, true},
		{[]int64{1000, 2000}, -3, 500, true},
	}
	for _, c := range cases {
		got, ok := slotAt(c.positions, c.index)
		if got != c.want || ok != c.ok {
			t.Errorf("slotAt(%v, %d) = %d,%v want %d,%v", c.positions, c.index, got, ok, c.want, c.ok)
		}
	}
}

func TestDeleteUserDetachesReferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	admin := seedUser(t, s, "a@example.com", RoleAdmin)
	w := seedUser(t, s, "w@example.com", RoleWorker)
	ws := seedWorkspace(t, s, admin, "W")
	if err := s.AddWorkspaceMember(ctx, ws.ID, w.ID); err != nil {
		t.Fatal(err)
	}
	task, err := s.CreateTask(ctx, w.ID, NewTask{WorkspaceID: ws.ID, Title: "t", Status: StatusTodo, Priority: PriorityLow, AssigneeID: &w.ID})
	if err != nil {
		t.Fatal(err)
	}
	c, err := s.AddComment(ctx, task.ID, w.ID, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if c.Author == nil || c.Author.Email != "w@example.com" {
		t.Fatalf("author = %+v", c.Author)
	}

	if err := s.DeleteUser(ctx, w.ID); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AssigneeID != nil || got.CreatedBy != nil {
		t.Fatalf("references kept: %+v", got)
	}
	comments, _ := s.CommentsByTasks(ctx, []int64{task.ID})
	if len(comments[task.ID]) != 1 || comments[task.ID][0].Author != nil {
		t.Fatalf("comment after user delete: %+v", comments[task.ID])
	}
	if ok, _ := s.IsWorkspaceMember(ctx, ws.ID, w.ID); ok {
		t.Fatal("membership kept")
	}
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com", RoleWorker)
	token, _, err := s.CreateSession(ctx, u.ID, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.UserBySession(ctx, token)
	if err != nil || got.ID != u.ID {
		t.Fatalf("fresh session: %v %+v", err, got)
	}
	s.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }
	if _, err := s.UserBySession(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedUser(t, s, "Case@Example.com", RoleWorker)
	if _, err := s.Authenticate(ctx, "case@example.com", "secret123"); err != nil {
		t.Fatalf("login with different case: %v", err)
	}
	if _, err := s.Authenticate(ctx, "case@example.com", "wrong"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("wrong password: %v", err)
	}
}

func TestPromoteAdmins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "boss@example.com", RoleWorker)
	n, err := s.PromoteAdmins(ctx, []string{"boss@example.com", "ghost@example.com"})
	if err != nil || n != 1 {
		t.Fatalf("promote: %d %v", n, err)
	}
	got, _ := s.GetUser(ctx, u.ID)
	if got.Role != RoleAdmin {
		t.Fatalf("role = %s", got.Role)
	}
}

func TestConversationAppend(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com", RoleWorker)
	c, err := s.CreateConversation(ctx, u.ID, nil, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	turns := []ChatTurn{{Role: "user", Content: "hi", Timestamp: time.Now().UTC()}, {Role: "assistant", Content: "hello", Timestamp: time.Now().UTC()}}
	got, err := s.AppendTurns(ctx, c.ID, turns, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "hello" || got.Title != "hi" {
		t.Fatalf("after append: %+v", got)
	}
	got, _ = s.AppendTurns(ctx, c.ID, turns[:1], "other title")
	if len(got.Messages) != 3 || got.Title != "hi" {
		t.Fatalf("title should stick: %+v", got)
	}
	if err := s.UpdateConversation(ctx, c.ID, nil, ptr(true)); err != nil {
		t.Fatal(err)
	}
	active, _ := s.ListConversations(ctx, u.ID, false)
	all, _ := s.ListConversations(ctx, u.ID, true)
	if len(active) != 0 || len(all) != 1 {
		t.Fatalf("active=%d all=%d", len(active), len(all))
	}
}

func TestAppendTurnsConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com", RoleWorker)
	c, err := s.CreateConversation(ctx, u.ID, nil, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	const senders = 8
	errs := make(chan error, senders)
	for i := 0; i < senders; i++ {
		go func() {
			turns := []ChatTurn{{Role: "user", Content: "q"}, {Role: "assistant", Content: "a"}}
			_, err := s.AppendTurns(ctx, c.ID, turns, "")
			errs <- err
		}()
	}
	for i := 0; i < senders; i++ {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}
	got, _ := s.GetConversation(ctx, c.ID)
	if len(got.Messages) != 2*senders {
		t.Fatalf("messages = %d, want %d", len(got.Messages), 2*senders)
	}
}

func TestLockRowByDialect(t *testing.T) {
	if got := (&Store{dialect: dialectPostgres}).lockRow(); got != " for update" {
		t.Fatalf("postgres = %q", got)
	}
	if got := (&Store{dialect: dialectSQLite}).lockRow(); got != "" {
		t.Fatalf("sqlite = %q", got)
	}
}
