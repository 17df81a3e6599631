package main

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"
)

const taskCols = `t.id, t.workspace_id, t.title, t.description, t.status, t.priority, t.assignee_id, t.created_by,
	t.due_date, t.tags, t.links, t.estimated_hours, t.actual_hours, t.pos, t.created_at, t.updated_at, t.completed_at`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.AssigneeID, &t.CreatedBy,
		&t.DueDate, &t.Tags, &t.Links, &t.EstimatedHours, &t.ActualHours, &t.Pos, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	return t, err
}

// completionAfter yields completed_at for a task whose status goes from prev to next:
// stamped on entering done, kept while it stays done, cleared otherwise.
func completionAfter(prev string, prevAt *time.Time, next string, now time.Time) *time.Time {
	if next != StatusDone {
		return nil
	}
	if prev == StatusDone && prevAt != nil {
		return prevAt
	}
	return &now
}

type TaskFilter struct {
	WorkspaceID int64  // 0 = any workspace
	MemberID    string // "" = no membership restriction
}

func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	q := `select ` + taskCols + ` from tasks t where 1=1`
	args := []any{}
	if f.WorkspaceID != 0 {
		args = append(args, f.WorkspaceID)
		q += ` and t.workspace_id=$` + strconv.Itoa(len(args))
	}
	if f.MemberID != "" {
		args = append(args, f.MemberID)
		q += ` and exists (select 1 from workspace_members m where m.workspace_id=t.workspace_id and m.user_id=$` + strconv.Itoa(len(args)) + `)`
	}
	q += ` order by t.workspace_id, t.pos, t.id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func getTask(ctx context.Context, q queryer, id int64) (Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, `select `+taskCols+` from tasks t where t.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

func (s *Store) GetTask(ctx context.Context, id int64) (Task, error) { return getTask(ctx, s.db, id) }

func nextPos(ctx context.Context, q queryer, workspaceID int64, status string) (int64, error) {
	var next int64 = 1000
	err := q.QueryRowContext(ctx, `select coalesce(max(pos),0)+1000 from tasks where workspace_id=$1 and status=$2`, workspaceID, status).Scan(&next)
	return next, err
}

func (s *Store) CreateTask(ctx context.Context, createdBy string, in NewTask) (Task, error) {
	now := s.now()
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		pos, err := nextPos(ctx, tx, in.WorkspaceID, in.Status)
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `insert into tasks(workspace_id, title, description, status, priority, assignee_id, created_by,
			due_date, tags, links, estimated_hours, actual_hours, pos, created_at, updated_at, completed_at)
			values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14,$15) returning id`,
			in.WorkspaceID, in.Title, in.Description, in.Status, in.Priority, in.AssigneeID, createdBy,
			in.DueDate, stringList(in.Tags), stringList(in.Links), in.EstimatedHours, in.ActualHours, pos, now,
			completionAfter("", nil, in.Status, now)).Scan(&id)
	})
	if err != nil {
		return Task{}, err
	}
	return s.GetTask(ctx, id)
}

// UpdateTask applies a partial change. A status or workspace change appends the
// task to the end of its new column and maintains completed_at.
func (s *Store) UpdateTask(ctx context.Context, id int64, ch TaskChanges) (Task, error) {
	now := s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		set, args := []string{}, []any{}
		add := func(col string, v any) {
			args = append(args, v)
			set = append(set, col+"=$"+strconv.Itoa(len(args)))
		}
		if ch.Title != nil {
			add("title", *ch.Title)
		}
		if ch.Description != nil {
			add("description", *ch.Description)
		}
		if ch.Priority != nil {
			add("priority", *ch.Priority)
		}
		if ch.ClearAssignee {
			add("assignee_id", nil)
		} else if ch.AssigneeID != nil {
			add("assignee_id", *ch.AssigneeID)
		}
		if ch.ClearDueDate {
			add("due_date", nil)
		} else if ch.DueDate != nil {
			add("due_date", *ch.DueDate)
		}
		if ch.Tags != nil {
			add("tags", stringList(*ch.Tags))
		}
		if ch.Links != nil {
			add("links", stringList(*ch.Links))
		}
		if ch.EstimatedHours != nil {
			add("estimated_hours", *ch.EstimatedHours)
		}
		if ch.ActualHours != nil {
			add("actual_hours", *ch.ActualHours)
		}
		status, wsID := cur.Status, cur.WorkspaceID
		if ch.Status != nil {
			status = *ch.Status
		}
		if ch.WorkspaceID != nil {
			wsID = *ch.WorkspaceID
		}
		if status != cur.Status || wsID != cur.WorkspaceID {
			pos, err := nextPos(ctx, tx, wsID, status)
			if err != nil {
				return err
			}
			add("status", status)
			add("workspace_id", wsID)
			add("pos", pos)
		}
		add("completed_at", completionAfter(cur.Status, cur.CompletedAt, status, now))
		add("updated_at", now)
		args = append(args, id)
		_, err = tx.ExecContext(ctx, "update tasks set "+strings.Join(set, ", ")+" where id=$"+strconv.Itoa(len(args)), args...)
		return err
	})
	if err != nil {
		return Task{}, err
	}
	return s.GetTask(ctx, id)
}

// MoveTask places a task at newIndex within the status column of its workspace.
func (s *Store) MoveTask(ctx context.Context, id int64, status string, newIndex int) (Task, error) {
	now := s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		positions, err := columnPositions(ctx, tx, cur.WorkspaceID, status, id)
		if err != nil {
			return err
		}
		pos, ok := slotAt(positions, newIndex)
		if !ok {
			if err := renumberColumn(ctx, tx, cur.WorkspaceID, status, id); err != nil {
				return err
			}
			if positions, err = columnPositions(ctx, tx, cur.WorkspaceID, status, id); err != nil {
				return err
			}
			if pos, ok = slotAt(positions, newIndex); !ok {
				return errors.New("move task failed after renumber")
			}
		}
		_, err = tx.ExecContext(ctx, `update tasks set status=$1, pos=$2, completed_at=$3, updated_at=$4 where id=$5`,
			status, pos, completionAfter(cur.Status, cur.CompletedAt, status, now), now, id)
		return err
	})
	if err != nil {
		return Task{}, err
	}
	return s.GetTask(ctx, id)
}

func columnPositions(ctx context.Context, q queryer, workspaceID int64, status string, exclude int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`select pos from tasks where workspace_id=$1 and status=$2 and id<>$3 order by pos, id`, workspaceID, status, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var positions []int64
	for rows.Next() {
		var p int64
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// slotAt picks a position between the neighbours at newIndex. It reports false
// when the neighbours are adjacent and the column needs renumbering.
func slotAt(positions []int64, newIndex int) (int64, bool) {
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(positions) {
		newIndex = len(positions)
	}
	var beforePos, afterPos *int64
	if newIndex > 0 {
		v := positions[newIndex-1]
		beforePos = &v
	}
	if newIndex < len(positions) {
		v := positions[newIndex]
		afterPos = &v
	}
	switch {
	case beforePos == nil && afterPos == nil:
		return 1000, true
	case beforePos != nil && afterPos == nil:
		return *beforePos + 1000, true
	case beforePos == nil && afterPos != nil:
		if *afterPos <= 1 {
			return 0, false
		}
		return *afterPos / 2, true
	default:
		gap := *afterPos - *beforePos
		if gap <= 1 {
			return 0, false
		}
		return *beforePos + gap/2, true
	}
}

func renumberColumn(ctx context.Context, tx *sql.Tx, workspaceID int64, status string, exclude int64) error {
	rows, err := tx.QueryContext(ctx, `select id from tasks where workspace_id=$1 and status=$2 and id<>$3 order by pos, id`, workspaceID, status, exclude)
	if err != nil {
		return err
	}
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	pos := int64(1000)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `update tasks set pos=$1 where id=$2`, pos, id); err != nil {
			return err
		}
		pos += 1000
	}
	return nil
}

// DeleteTask removes the task with its comments and attachments, returning stored file paths.
func (s *Store) DeleteTask(ctx context.Context, id int64) ([]string, error) {
	var paths []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if paths, err = filePathsWhere(ctx, tx, `select file_path, mime_type from attachments where task_id=$1`, id); err != nil {
			return err
		}
		steps := []string{
			`delete from attachments where task_id=$1`,
			`delete from comments where task_id=$1`,
			`update brain_conversations set task_id=null where task_id=$1`,
		}
		for _, q := range steps {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		return affectedOrNotFound(tx.ExecContext(ctx, `delete from tasks where id=$1`, id))
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Comments

const commentCols = `c.id, c.task_id, c.user_id, c.content, c.created_at, u.id, u.email, u.name, u.role, u.created_at`

func scanComment(row interface{ Scan(...any) error }) (Comment, error) {
	var c Comment
	var uid, email, name, role sql.NullString
	var ucreated sql.NullTime
	if err := row.Scan(&c.ID, &c.TaskID, &c.UserID, &c.Content, &c.CreatedAt, &uid, &email, &name, &role, &ucreated); err != nil {
		return Comment{}, err
	}
	if uid.Valid {
		c.Author = &User{ID: uid.String, Email: email.String, Name: name.String, Role: Role(role.String), CreatedAt: ucreated.Time}
	}
	return c, nil
}

func (s *Store) AddComment(ctx context.Context, taskID int64, userID, content string) (Comment, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `insert into comments(task_id, user_id, content, created_at) values($1,$2,$3,$4) returning id`,
		taskID, userID, content, s.now()).Scan(&id)
	if err != nil {
		return Comment{}, err
	}
	c, err := scanComment(s.db.QueryRowContext(ctx, `select `+commentCols+` from comments c left join users u on u.id=c.user_id where c.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	return c, err
}

// CommentsByTasks returns comments grouped by task, oldest first, each with its author.
func (s *Store) CommentsByTasks(ctx context.Context, taskIDs []int64) (map[int64][]Comment, error) {
	out := map[int64][]Comment{}
	for _, chunk := range idChunks(taskIDs, maxBatchIDs) {
		rows, err := s.db.QueryContext(ctx, `select `+commentCols+` from comments c left join users u on u.id=c.user_id
			where c.task_id in (`+inList(1, len(chunk))+`) order by c.id`, int64Args(chunk)...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			c, err := scanComment(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[c.TaskID] = append(out[c.TaskID], c)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Attachments

const attachmentCols = `id, task_id, uploaded_by, file_name, file_path, mime_type, file_size, created_at`

func scanAttachment(row interface{ Scan(...any) error }) (Attachment, error) {
	var a Attachment
	err := row.Scan(&a.ID, &a.TaskID, &a.UploadedBy, &a.FileName, &a.FilePath, &a.MimeType, &a.FileSize, &a.CreatedAt)
	if a.IsLink() {
		a.URL = a.FilePath
	}
	return a, err
}

func (s *Store) AddAttachment(ctx context.Context, a Attachment) (Attachment, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `insert into attachments(task_id, uploaded_by, file_name, file_path, mime_type, file_size, created_at)
		values($1,$2,$3,$4,$5,$6,$7) returning id`,
		a.TaskID, a.UploadedBy, a.FileName, a.FilePath, a.MimeType, a.FileSize, s.now()).Scan(&id)
	if err != nil {
		return Attachment{}, err
	}
	return s.GetAttachment(ctx, id)
}

func (s *Store) GetAttachment(ctx context.Context, id int64) (Attachment, error) {
	a, err := scanAttachment(s.db.QueryRowContext(ctx, `select `+attachmentCols+` from attachments where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Attachment{}, ErrNotFound
	}
	return a, err
}

func (s *Store) AttachmentsByTasks(ctx context.Context, taskIDs []int64) (map[int64][]Attachment, error) {
	out := map[int64][]Attachment{}
	for _, chunk := range idChunks(taskIDs, maxBatchIDs) {
		rows, err := s.db.QueryContext(ctx, `select `+attachmentCols+` from attachments
			where task_id in (`+inList(1, len(chunk))+`) order by id`, int64Args(chunk)...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			a, err := scanAttachment(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[a.TaskID] = append(out[a.TaskID], a)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
