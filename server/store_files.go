package main

import (
	"context"
	"database/sql"
	"errors"
)

const fileCols = `id, name, original_name, file_path, mime_type, size, category, description, uploaded_by, created_at`

func scanFile(row interface{ Scan(...any) error }) (File, error) {
	var f File
	err := row.Scan(&f.ID, &f.Name, &f.OriginalName, &f.FilePath, &f.MimeType, &f.Size, &f.Category, &f.Description, &f.UploadedBy, &f.CreatedAt)
	return f, err
}

func (s *Store) CreateFile(ctx context.Context, f File) (File, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `insert into files(name, original_name, file_path, mime_type, size, category, description, uploaded_by, created_at)
		values($1,$2,$3,$4,$5,$6,$7,$8,$9) returning id`,
		f.Name, f.OriginalName, f.FilePath, f.MimeType, f.Size, f.Category, f.Description, f.UploadedBy, s.now()).Scan(&id)
	if err != nil {
		return File{}, err
	}
	return s.GetFile(ctx, id)
}

func (s *Store) GetFile(ctx context.Context, id int64) (File, error) {
	f, err := scanFile(s.db.QueryRowContext(ctx, `select `+fileCols+` from files where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, ErrNotFound
	}
	return f, err
}

// ListFiles returns the newest files first, optionally restricted to one category.
func (s *Store) ListFiles(ctx context.Context, category string) ([]File, error) {
	q := `select ` + fileCols + ` from files`
	args := []any{}
	if category != "" {
		q += ` where category=$1`
		args = append(args, category)
	}
	q += ` order by id desc`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) DeleteFile(ctx context.Context, id int64) (File, error) {
	f, err := s.GetFile(ctx, id)
	if err != nil {
		return File{}, err
	}
	if err := affectedOrNotFound(s.db.ExecContext(ctx, `delete from files where id=$1`, id)); err != nil {
		return File{}, err
	}
	return f, nil
}
