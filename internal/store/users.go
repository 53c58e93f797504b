// Package store holds the Postgres-backed repositories.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/vaughan-dsouza/usersapi/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

const uniqueViolation = "23505"

// UserRepository is the storage boundary the auth and user services need.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context, f UserFilter) ([]models.User, error)
	Update(ctx context.Context, id int64, upd UserUpdate) (*models.User, error)
	UpdateRole(ctx context.Context, id int64, role models.Role) (*models.User, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// UserFilter narrows List. Empty fields are ignored; set fields must match
// exactly.
type UserFilter struct {
	Name  string
	Email string
	Role  models.Role
}

// UserUpdate carries the fields a user may change on their own account.
// Nil fields are left untouched.
type UserUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
}

func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.PasswordHash == nil
}

const userColumns = `id, name, email, password_hash, role, last_login, created_at, updated_at`

// publicColumns leaves out password_hash.
const publicColumns = `id, name, email, role, last_login, created_at, updated_at`

type PostgresUsers struct {
	db *sqlx.DB
}

func NewPostgresUsers(db *sqlx.DB) *PostgresUsers {
	return &PostgresUsers{db: db}
}

func (r *PostgresUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, notFound(err, "find user by email")
	}
	return &u, nil
}

func (r *PostgresUsers) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+publicColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "find user by id")
	}
	return &u, nil
}

// Create inserts u and fills in its generated id and timestamps.
func (r *PostgresUsers) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, u.Name, u.Email, u.Password, string(u.Role)).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return duplicate(err, "create user")
	}
	return nil
}

func (r *PostgresUsers) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return mustAffect(res, "update last login")
}

func (r *PostgresUsers) List(ctx context.Context, f UserFilter) ([]models.User, error) {
	var (
		where []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.Name != "" {
		add("name", f.Name)
	}
	if f.Email != "" {
		add("email", f.Email)
	}
	if f.Role != "" {
		add("role", string(f.Role))
	}

	query := `SELECT ` + publicColumns + ` FROM users`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *PostgresUsers) Update(ctx context.Context, id int64, upd UserUpdate) (*models.User, error) {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.Email != nil {
		set("email", *upd.Email)
	}
	if upd.PasswordHash != nil {
		set("password_hash", *upd.PasswordHash)
	}
	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}

	args = append(args, id)
	query := `UPDATE users SET ` + strings.Join(sets, ", ") + `, updated_at = NOW()` +
		fmt.Sprintf(` WHERE id = $%d RETURNING `, len(args)) + publicColumns

	var u models.User
	if err := r.db.GetContext(ctx, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, duplicate(err, "update user")
	}
	return &u, nil
}

func (r *PostgresUsers) UpdateRole(ctx context.Context, id int64, role models.Role) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `
		UPDATE users SET role = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+publicColumns, string(role), id)
	if err != nil {
		return nil, notFound(err, "update user role")
	}
	return &u, nil
}

// Delete reports whether a row was removed.
func (r *PostgresUsers) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return n > 0, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func duplicate(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return fmt.Errorf("%s: %w", op, err)
}

func mustAffect(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
