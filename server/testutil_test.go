package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := OpenStore(ctx, "sqlite:"+filepath.Join(t.TempDir(), "taskflow.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func newTestEngine(t *testing.T, policy Policy) (*Engine, *Store) {
	t.Helper()
	s := newTestStore(t)
	blobs := NewBlobStore(filepath.Join(t.TempDir(), "uploads"), 1<<20)
	return NewEngine(s, blobs, policy, quietLogger()), s
}

func seedUser(t *testing.T, s *Store, email string, role Role) User {
	t.Helper()
	hash, err := hashPassword("secret123")
	if err != nil {
		t.Fatal(err)
	}
	u, err := s.CreateUser(context.Background(), email, hash, email, role)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func seedWorkspace(t *testing.T, s *Store, creator User, name string) Workspace {
	t.Helper()
	ws, err := s.CreateWorkspace(context.Background(), creator.ID, WorkspaceInput{Name: name, Color: "#3b82f6", Icon: "palette"})
	if err != nil {
		t.Fatalf("create workspace %s: %v", name, err)
	}
	return ws
}

func seedTask(t *testing.T, s *Store, creator User, wsID int64, title, status string) Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), creator.ID, NewTask{WorkspaceID: wsID, Title: title, Status: status, Priority: PriorityMedium})
	if err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}

func ptr[T any](v T) *T { return &v }
