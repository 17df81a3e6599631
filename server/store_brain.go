package main

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
)

const conversationCols = `id, user_id, workspace_id, task_id, title, messages, is_archived, created_at, updated_at`

func scanConversation(row interface{ Scan(...any) error }) (BrainConversation, error) {
	var c BrainConversation
	err := row.Scan(&c.ID, &c.UserID, &c.WorkspaceID, &c.TaskID, &c.Title, &c.Messages, &c.IsArchived, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Store) CreateConversation(ctx context.Context, userID string, workspaceID, taskID *int64, title string) (BrainConversation, error) {
	now := s.now()
	var id int64
	err := s.db.QueryRowContext(ctx, `insert into brain_conversations(user_id, workspace_id, task_id, title, messages, is_archived, created_at, updated_at)
		values($1,$2,$3,$4,$5,$6,$7,$7) returning id`,
		userID, workspaceID, taskID, title, chatTurns(nil), false, now).Scan(&id)
	if err != nil {
		return BrainConversation{}, err
	}
	return s.GetConversation(ctx, id)
}

func (s *Store) GetConversation(ctx context.Context, id int64) (BrainConversation, error) {
	return getConversation(ctx, s.db, id)
}

func getConversation(ctx context.Context, q queryer, id int64) (BrainConversation, error) {
	c, err := scanConversation(q.QueryRowContext(ctx, `select `+conversationCols+` from brain_conversations where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return BrainConversation{}, ErrNotFound
	}
	return c, err
}

// ListConversations returns a user's conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context, userID string, includeArchived bool) ([]BrainConversation, error) {
	q := `select ` + conversationCols + ` from brain_conversations where user_id=$1`
	if !includeArchived {
		q += ` and is_archived=$2`
	}
	q += ` order by updated_at desc, id desc`
	args := []any{userID}
	if !includeArchived {
		args = append(args, false)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []BrainConversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AppendTurns adds turns to the end of the history; an empty title is replaced when title is set.
func (s *Store) AppendTurns(ctx context.Context, id int64, turns []ChatTurn, title string) (BrainConversation, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := scanConversation(tx.QueryRowContext(ctx, `select `+conversationCols+` from brain_conversations where id=$1`+s.lockRow(), id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		msgs := append(c.Messages, turns...)
		if c.Title != "" || title == "" {
			title = c.Title
		}
		_, err = tx.ExecContext(ctx, `update brain_conversations set messages=$1, title=$2, updated_at=$3 where id=$4`,
			msgs, title, s.now(), id)
		return err
	})
	if err != nil {
		return BrainConversation{}, err
	}
	return s.GetConversation(ctx, id)
}

func (s *Store) UpdateConversation(ctx context.Context, id int64, title *string, archived *bool) error {
	set, args := []string{}, []any{}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, col+"=$"+strconv.Itoa(len(args)))
	}
	if title != nil {
		add("title", *title)
	}
	if archived != nil {
		add("is_archived", *archived)
	}
	add("updated_at", s.now())
	args = append(args, id)
	return affectedOrNotFound(s.db.ExecContext(ctx, "update brain_conversations set "+strings.Join(set, ", ")+" where id=$"+strconv.Itoa(len(args)), args...))
}

func (s *Store) DeleteConversation(ctx context.Context, id int64) error {
	return affectedOrNotFound(s.db.ExecContext(ctx, `delete from brain_conversations where id=$1`, id))
}
