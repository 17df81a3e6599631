package main

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
)

const workspaceCols = `w.id, w.name, w.description, w.color, w.icon, w.is_archived, w.created_by, w.created_at, w.updated_at,
	(select count(*) from workspace_members m where m.workspace_id=w.id),
	(select count(*) from tasks t where t.workspace_id=w.id)`

func scanWorkspace(row interface{ Scan(...any) error }) (Workspace, error) {
	var ws Workspace
	err := row.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.Color, &ws.Icon, &ws.IsArchived, &ws.CreatedBy,
		&ws.CreatedAt, &ws.UpdatedAt, &ws.MemberCount, &ws.TaskCount)
	return ws, err
}

// ListWorkspaces returns workspaces in creation order. A non-empty memberID limits
// the result to workspaces that user belongs to.
func (s *Store) ListWorkspaces(ctx context.Context, memberID string) ([]Workspace, error) {
	q := `select ` + workspaceCols + ` from workspaces w`
	args := []any{}
	if memberID != "" {
		q += ` where exists (select 1 from workspace_members m where m.workspace_id=w.id and m.user_id=$1)`
		args = append(args, memberID)
	}
	q += ` order by w.id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Workspace{}
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

func (s *Store) GetWorkspace(ctx context.Context, id int64) (Workspace, error) {
	ws, err := scanWorkspace(s.db.QueryRowContext(ctx, `select `+workspaceCols+` from workspaces w where w.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Workspace{}, ErrNotFound
	}
	return ws, err
}

func (s *Store) CreateWorkspace(ctx context.Context, createdBy string, in WorkspaceInput) (Workspace, error) {
	now := s.now()
	var id int64
	err := s.db.QueryRowContext(ctx, `insert into workspaces(name, description, color, icon, is_archived, created_by, created_at, updated_at)
		values($1,$2,$3,$4,$5,$6,$7,$7) returning id`,
		in.Name, in.Description, in.Color, in.Icon, false, createdBy, now).Scan(&id)
	if err != nil {
		return Workspace{}, err
	}
	return s.GetWorkspace(ctx, id)
}

func (s *Store) UpdateWorkspace(ctx context.Context, id int64, p WorkspacePatch) error {
	set, args := []string{}, []any{}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, col+"=$"+strconv.Itoa(len(args)))
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Color != nil {
		add("color", *p.Color)
	}
	if p.Icon != nil {
		add("icon", *p.Icon)
	}
	if p.IsArchived != nil {
		add("is_archived", *p.IsArchived)
	}
	add("updated_at", s.now())
	args = append(args, id)
	q := "update workspaces set " + strings.Join(set, ", ") + " where id=$" + strconv.Itoa(len(args))
	return affectedOrNotFound(s.db.ExecContext(ctx, q, args...))
}

// DeleteWorkspace removes the workspace and everything that hangs off it in one
// transaction. It returns the on-disk paths of removed file attachments.
func (s *Store) DeleteWorkspace(ctx context.Context, id int64) ([]string, error) {
	var paths []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		paths, err = filePathsWhere(ctx, tx, `select a.file_path, a.mime_type from attachments a join tasks t on t.id=a.task_id where t.workspace_id=$1`, id)
		if err != nil {
			return err
		}
		steps := []string{
			`delete from attachments where task_id in (select id from tasks where workspace_id=$1)`,
			`delete from comments where task_id in (select id from tasks where workspace_id=$1)`,
			`update brain_conversations set task_id=null where task_id in (select id from tasks where workspace_id=$1)`,
			`update brain_conversations set workspace_id=null where workspace_id=$1`,
			`delete from tasks where workspace_id=$1`,
			`delete from workspace_members where workspace_id=$1`,
		}
		for _, q := range steps {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		return affectedOrNotFound(tx.ExecContext(ctx, `delete from workspaces where id=$1`, id))
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// filePathsWhere collects stored file paths, skipping link attachments.
func filePathsWhere(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var path, mime string
		if err := rows.Scan(&path, &mime); err != nil {
			return nil, err
		}
		if mime != LinkMimeType && path != "" {
			out = append(out, path)
		}
	}
	return out, rows.Err()
}

func (s *Store) IsWorkspaceMember(ctx context.Context, workspaceID int64, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from workspace_members where workspace_id=$1 and user_id=$2`, workspaceID, userID).Scan(&n)
	return n > 0, err
}

// AddWorkspaceMember is idempotent: adding an existing member is a no-op.
func (s *Store) AddWorkspaceMember(ctx context.Context, workspaceID int64, userID string) error {
	_, err := s.db.ExecContext(ctx, `insert into workspace_members(workspace_id, user_id, created_at) values($1,$2,$3)
		on conflict (workspace_id, user_id) do nothing`, workspaceID, userID, s.now())
	return err
}

func (s *Store) RemoveWorkspaceMember(ctx context.Context, workspaceID int64, userID string) error {
	return affectedOrNotFound(s.db.ExecContext(ctx, `delete from workspace_members where workspace_id=$1 and user_id=$2`, workspaceID, userID))
}

func (s *Store) WorkspaceMembers(ctx context.Context, workspaceID int64) ([]WorkspaceMember, error) {
	rows, err := s.db.QueryContext(ctx, `select m.workspace_id, m.user_id, m.created_at, u.id, u.email, u.name, u.role, u.created_at
		from workspace_members m join users u on u.id=m.user_id
		where m.workspace_id=$1 order by m.created_at, u.id`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WorkspaceMember{}
	for rows.Next() {
		var m WorkspaceMember
		var u User
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.CreatedAt, &u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		m.User = &u
		out = append(out, m)
	}
	return out, rows.Err()
}
