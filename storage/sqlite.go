package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"join-api/domain"
)

// SQLite is a single-file Backend for local runs and tests.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
// The path ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL,
			status TEXT NOT NULL,
			assigned_to TEXT NOT NULL DEFAULT '[]',
			subtasks TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			due_date TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func mapSQLError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}

func expectRow(res sql.Result, err error) error {
	if err != nil {
		return mapSQLError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

const taskColumns = `id, title, description, category, priority, status, assigned_to, subtasks, created_at, due_date`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t                  domain.Task
		priority, status   string
		assigned, subtasks string
		created            string
		due                sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Category, &priority, &status, &assigned, &subtasks, &created, &due); err != nil {
		return domain.Task{}, err
	}
	t.Priority = domain.Priority(priority)
	t.Status = domain.Status(status)
	if err := json.Unmarshal([]byte(assigned), &t.AssignedTo); err != nil {
		return domain.Task{}, fmt.Errorf("task %s assignees: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(subtasks), &t.Subtasks); err != nil {
		return domain.Task{}, fmt.Errorf("task %s subtasks: %w", t.ID, err)
	}
	if t.AssignedTo == nil {
		t.AssignedTo = []string{}
	}
	if t.Subtasks == nil {
		t.Subtasks = []domain.Subtask{}
	}
	var err error
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return domain.Task{}, fmt.Errorf("task %s created_at: %w", t.ID, err)
	}
	if due.Valid {
		d, err := time.Parse(time.RFC3339Nano, due.String)
		if err != nil {
			return domain.Task{}, fmt.Errorf("task %s due_date: %w", t.ID, err)
		}
		t.DueDate = &d
	}
	return t, nil
}

func taskArgs(t domain.Task) ([]any, error) {
	assigned, err := json.Marshal(t.AssignedTo)
	if err != nil {
		return nil, err
	}
	subtasks, err := json.Marshal(t.Subtasks)
	if err != nil {
		return nil, err
	}
	var due any
	if t.DueDate != nil {
		due = formatTime(*t.DueDate)
	}
	return []any{
		t.ID, t.Title, t.Description, t.Category, string(t.Priority), string(t.Status),
		string(assigned), string(subtasks), formatTime(t.CreatedAt), due,
	}, nil
}

func (s *SQLite) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLite) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return domain.Task{}, mapSQLError(err)
	}
	return t, nil
}

func (s *SQLite) InsertTask(ctx context.Context, t domain.Task) error {
	args, err := taskArgs(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	return mapSQLError(err)
}

func (s *SQLite) ReplaceTask(ctx context.Context, t domain.Task) error {
	args, err := taskArgs(t)
	if err != nil {
		return err
	}
	// id moves to the end for the WHERE clause.
	args = append(args[1:], args[0])
	return expectRow(s.db.ExecContext(ctx, `UPDATE tasks SET
		title = ?, description = ?, category = ?, priority = ?, status = ?,
		assigned_to = ?, subtasks = ?, created_at = ?, due_date = ?
		WHERE id = ?`, args...))
}

func (s *SQLite) SetTaskStatus(ctx context.Context, id string, status domain.Status) error {
	return expectRow(s.db.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, string(status), id))
}

func (s *SQLite) DeleteTask(ctx context.Context, id string) error {
	return expectRow(s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id))
}

func (s *SQLite) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, phone FROM contacts ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []domain.Contact{}
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *SQLite) GetContact(ctx context.Context, id string) (domain.Contact, error) {
	var c domain.Contact
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, phone FROM contacts WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	if err != nil {
		return domain.Contact{}, mapSQLError(err)
	}
	return c, nil
}

func (s *SQLite) InsertContact(ctx context.Context, c domain.Contact) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO contacts (id, name, email, phone) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.Phone)
	return mapSQLError(err)
}

func (s *SQLite) ReplaceContact(ctx context.Context, c domain.Contact) error {
	return expectRow(s.db.ExecContext(ctx, `UPDATE contacts SET name = ?, email = ?, phone = ? WHERE id = ?`,
		c.Name, c.Email, c.Phone, c.ID))
}

func (s *SQLite) DeleteContact(ctx context.Context, id string) error {
	return expectRow(s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id))
}

func (s *SQLite) InsertUser(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, userKey(u.Email), u.PasswordHash, formatTime(u.CreatedAt))
	return mapSQLError(err)
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var (
		u       domain.User
		created string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`, userKey(email)).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &created)
	if err != nil {
		return domain.User{}, mapSQLError(err)
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return domain.User{}, fmt.Errorf("user %s created_at: %w", u.ID, err)
	}
	return u, nil
}

func (s *SQLite) UpdateUserName(ctx context.Context, email, name string) error {
	return expectRow(s.db.ExecContext(ctx, `UPDATE users SET name = ? WHERE email = ?`, name, userKey(email)))
}
