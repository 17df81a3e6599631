package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type dialect string

const (
	dialectPostgres dialect = "postgres"
	dialectSQLite   dialect = "sqlite"
)

type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func NewStore(db *sql.DB, d dialect) *Store {
	return &Store{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}
}

// OpenStore picks the driver from the DSN: postgres URLs go through pgx,
// sqlite:/file: URLs (or bare paths ending in .db) use the embedded sqlite driver.
func OpenStore(ctx context.Context, dsn string) (*Store, error) {
	driverName, source, d := "pgx", dsn, dialectPostgres
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		source = strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "sqlite:")
		driverName, d = "sqlite", dialectSQLite
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"):
		driverName, d = "sqlite", dialectSQLite
	}
	if d == dialectSQLite && !strings.Contains(source, "?") {
		source += "?_pragma=journal_mode(wal)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if d == dialectSQLite {
		// single writer; every statement shares one connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return NewStore(db, d), nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if s.dialect == dialectSQLite {
			stmt = sqliteDDL.Replace(stmt)
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside one transaction; any error rolls every step back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func affectedOrNotFound(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// inList renders "$start,$start+1,..." for n positional arguments.
func inList(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ",")
}

// lockRow holds a selected row until commit. sqlite runs on one connection, so
// transactions are already serialized there.
func (s *Store) lockRow() string {
	if s.dialect == dialectPostgres {
		return " for update"
	}
	return ""
}

// maxBatchIDs keeps "in (...)" lists well under the sqlite and postgres bind-variable limits.
const maxBatchIDs = 500

func idChunks(ids []int64, n int) [][]int64 {
	var out [][]int64
	for len(ids) > n {
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func int64Args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

var sqliteDDL = strings.NewReplacer(
	"bigserial primary key", "integer primary key autoincrement",
	"timestamptz", "datetime",
	"double precision", "real",
	"default false", "default 0",
)

var migrations = []string{
	`create table if not exists users(
		id text primary key,
		email text not null,
		password_hash text not null default '',
		name text not null default '',
		role text not null default 'worker' check (role in ('worker','admin')),
		created_at timestamptz not null
	)`,
	`create unique index if not exists users_email_idx on users(lower(email))`,
	`create table if not exists sessions(
		id bigserial primary key,
		user_id text not null references users(id) on delete cascade,
		token text unique not null,
		created_at timestamptz not null,
		expires_at timestamptz not null
	)`,
	`create table if not exists workspaces(
		id bigserial primary key,
		name text not null check (length(name) > 0),
		description text not null default '',
		color text not null,
		icon text not null,
		is_archived boolean not null default false,
		created_by text references users(id) on delete set null,
		created_at timestamptz not null,
		updated_at timestamptz not null
	)`,
	`create table if not exists workspace_members(
		workspace_id bigint not null references workspaces(id) on delete cascade,
		user_id text not null references users(id) on delete cascade,
		created_at timestamptz not null,
		primary key(workspace_id, user_id)
	)`,
	`create index if not exists workspace_members_user_idx on workspace_members(user_id)`,
	`create table if not exists tasks(
		id bigserial primary key,
		workspace_id bigint not null references workspaces(id) on delete cascade,
		title text not null check (length(title) > 0),
		description text not null default '',
		status text not null default 'todo' check (status in ('todo','in-progress','done')),
		priority text not null default 'medium' check (priority in ('low','medium','high')),
		assignee_id text references users(id) on delete set null,
		created_by text references users(id) on delete set null,
		due_date timestamptz,
		tags text not null default '[]',
		links text not null default '[]',
		estimated_hours double precision,
		actual_hours double precision,
		pos bigint not null default 1000,
		created_at timestamptz not null,
		updated_at timestamptz not null,
		completed_at timestamptz
	)`,
	`create index if not exists tasks_workspace_idx on tasks(workspace_id, status, pos)`,
	`create index if not exists tasks_assignee_idx on tasks(assignee_id)`,
	`create table if not exists comments(
		id bigserial primary key,
		task_id bigint not null references tasks(id) on delete cascade,
		user_id text references users(id) on delete set null,
		content text not null check (length(content) > 0),
		created_at timestamptz not null
	)`,
	`create index if not exists comments_task_idx on comments(task_id)`,
	`create table if not exists attachments(
		id bigserial primary key,
		task_id bigint not null references tasks(id) on delete cascade,
		uploaded_by text references users(id) on delete set null,
		file_name text not null,
		file_path text not null,
		mime_type text not null,
		file_size bigint not null default 0,
		created_at timestamptz not null
	)`,
	`create index if not exists attachments_task_idx on attachments(task_id)`,
	`create table if not exists files(
		id bigserial primary key,
		name text not null,
		original_name text not null,
		file_path text not null,
		mime_type text not null,
		size bigint not null default 0,
		category text not null default 'general',
		description text not null default '',
		uploaded_by text references users(id) on delete set null,
		created_at timestamptz not null
	)`,
	`create table if not exists brain_conversations(
		id bigserial primary key,
		user_id text not null references users(id) on delete cascade,
		workspace_id bigint references workspaces(id) on delete set null,
		task_id bigint references tasks(id) on delete set null,
		title text not null default '',
		messages text not null default '[]',
		is_archived boolean not null default false,
		created_at timestamptz not null,
		updated_at timestamptz not null
	)`,
	`create index if not exists brain_conversations_user_idx on brain_conversations(user_id)`,
}
