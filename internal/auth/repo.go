package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// ErrUserExists is returned when the username or email is taken.
var ErrUserExists = errors.New("user already exists")

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	TokenVersion int
	CreatedAt    time.Time
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const selectUser = `
	SELECT id, username, email, password_hash, token_version, created_at
	FROM users
`

func (r *Repo) CreateUser(ctx context.Context, u User) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash)
		VALUES (?, ?, ?, ?)
	`, u.ID, u.Username, strings.ToLower(u.Email), u.PasswordHash)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repo) getOne(ctx context.Context, where string, arg any) (*User, error) {
	row := r.DB.QueryRowContext(ctx, selectUser+where, arg)

	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.TokenVersion, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetByEmail returns (nil, nil) when no user has the email.
func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `WHERE LOWER(email) = ?`, strings.TrimSpace(strings.ToLower(email)))
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, `WHERE username = ?`, strings.TrimSpace(username))
}

func (r *Repo) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, `WHERE id = ?`, id)
}

// GetByLogin resolves either an email or a username.
func (r *Repo) GetByLogin(ctx context.Context, login string) (*User, error) {
	if strings.Contains(login, "@") {
		return r.GetByEmail(ctx, login)
	}
	return r.GetByUsername(ctx, login)
}

func (r *Repo) GetTokenVersion(ctx context.Context, id string) (int, error) {
	var version int
	err := r.DB.QueryRowContext(ctx, `SELECT token_version FROM users WHERE id = ?`, id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("get token version: user %s not found", id)
		}
		return 0, fmt.Errorf("get token version: %w", err)
	}
	return version, nil
}

func (r *Repo) UpdatePasswordAndBumpTokenVersion(ctx context.Context, id string, passwordHash string) error {
	return r.bump(ctx, "update password", `
		UPDATE users
		SET password_hash = ?, token_version = token_version + 1
		WHERE id = ?
	`, passwordHash, id)
}

// BumpTokenVersion revokes every token issued to the user so far.
func (r *Repo) BumpTokenVersion(ctx context.Context, id string) error {
	return r.bump(ctx, "bump token version", `
		UPDATE users
		SET token_version = token_version + 1
		WHERE id = ?
	`, id)
}

func (r *Repo) bump(ctx context.Context, op, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: user not found", op)
	}
	return nil
}
