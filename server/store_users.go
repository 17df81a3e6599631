package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const userCols = `id, email, name, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	return u, err
}

func hashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CreateUser inserts a user with an already hashed password.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, name string, role Role) (User, error) {
	if _, err := s.userByEmail(ctx, email); err == nil {
		return User{}, invalid("email", "already registered")
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, `insert into users(id, email, password_hash, name, role, created_at)
		values($1,$2,$3,$4,$5,$6) returning `+userCols,
		uuid.NewString(), strings.TrimSpace(email), passwordHash, name, string(role), s.now()))
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userCols+` from users where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) userByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userCols+` from users where lower(email)=lower($1)`, strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// get user creds by email, including password hash
func (s *Store) userCredsByEmail(ctx context.Context, email string) (User, string, error) {
	var u User
	var hash string
	err := s.db.QueryRowContext(ctx, `select `+userCols+`, password_hash from users where lower(email)=lower($1)`, strings.TrimSpace(email)).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, "", ErrNotFound
	}
	return u, hash, err
}

// Authenticate verifies the password; unknown email and wrong password are indistinguishable.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, hash, err := s.userCredsByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrNotFound
	}
	return u, nil
}

// ListUsers returns users in creation order, optionally filtered by a name/email substring.
func (s *Store) ListUsers(ctx context.Context, q string, limit int) ([]User, error) {
	query := `select ` + userCols + ` from users`
	args := []any{}
	if q = strings.TrimSpace(q); q != "" {
		query += ` where lower(email) like $1 or lower(name) like $1`
		args = append(args, "%"+strings.ToLower(q)+"%")
	}
	query += ` order by created_at, id`
	if limit > 0 {
		query += ` limit ` + strconv.Itoa(limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, id string, name *string, role *Role) error {
	if name == nil && role == nil {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if name != nil {
			if err := affectedOrNotFound(tx.ExecContext(ctx, `update users set name=$1 where id=$2`, *name, id)); err != nil {
				return err
			}
		}
		if role != nil {
			if err := affectedOrNotFound(tx.ExecContext(ctx, `update users set role=$1 where id=$2`, string(*role), id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// PromoteAdmins gives the admin role to existing users whose email is listed.
func (s *Store) PromoteAdmins(ctx context.Context, emails []string) (int64, error) {
	var total int64
	for _, e := range emails {
		res, err := s.db.ExecContext(ctx, `update users set role='admin' where lower(email)=lower($1) and role<>'admin'`, e)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// DeleteUser removes a user and detaches every row that references them, atomically.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		steps := []string{
			`delete from sessions where user_id=$1`,
			`delete from workspace_members where user_id=$1`,
			`delete from brain_conversations where user_id=$1`,
			`update tasks set assignee_id=null where assignee_id=$1`,
			`update tasks set created_by=null where created_by=$1`,
			`update comments set user_id=null where user_id=$1`,
			`update attachments set uploaded_by=null where uploaded_by=$1`,
			`update files set uploaded_by=null where uploaded_by=$1`,
			`update workspaces set created_by=null where created_by=$1`,
		}
		for _, q := range steps {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		return affectedOrNotFound(tx.ExecContext(ctx, `delete from users where id=$1`, id))
	})
}

// Sessions

func (s *Store) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, time.Time, error) {
	// 32 random bytes, base64 URL encoded
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	now := s.now()
	expires := now.Add(ttl)
	_, err := s.db.ExecContext(ctx, `insert into sessions(user_id, token, created_at, expires_at) values($1,$2,$3,$4)`, userID, token, now, expires)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func (s *Store) UserBySession(ctx context.Context, token string) (User, error) {
	var u User
	var expires time.Time
	err := s.db.QueryRowContext(ctx, `select u.id, u.email, u.name, u.role, u.created_at, s.expires_at
		from sessions s join users u on u.id=s.user_id
		where s.token=$1`, token).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if !s.now().Before(expires) {
		_ = s.DeleteSession(ctx, token)
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where token=$1`, token)
	return err
}
