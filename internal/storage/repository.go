package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tally/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the storage engine behind the API: two related
// tables, users and expenses. Every expense query is scoped by owner at
// the SQL level so a non-owned row behaves exactly like an absent one.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database connection, for readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser inserts a new account. A duplicate email maps to
// core.ErrEmailTaken.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, email, passwordHash string) (*core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		username, email, passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	user, err := r.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "User created",
		"user_id", user.ID,
		"username", user.Username)

	return user, nil
}

// GetUserByID returns the user or core.ErrNotFound.
func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail returns the user or core.ErrNotFound.
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// CreateExpense inserts a new expense owned by userID.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, userID int64, in core.ExpenseInput) (*core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, title, amount, date, description, sync_status)
		 VALUES (?, ?, ?, ?, ?, 'pending')`,
		userID, in.Title, in.Amount, in.Date.String(), in.Description,
	)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	expense, err := r.GetExpense(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Expense created",
		"expense_id", expense.ID,
		"user_id", userID,
		"title", expense.Title,
		"amount", expense.Amount)

	return expense, nil
}

// GetExpense returns a single expense, owner-scoped. A row owned by
// another user is core.ErrNotFound, never a permission error.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id, userID int64) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, amount, date, description, created_at, updated_at
		 FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	return scanExpense(row)
}

// ListExpenses returns all expenses owned by userID, newest date first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, amount, date, description, created_at, updated_at
		 FROM expenses WHERE user_id = ? ORDER BY date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var e core.Expense
		var date string
		err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Amount, &date, &e.Description, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", date, err)
		}
		expenses = append(expenses, e)
	}

	return expenses, rows.Err()
}

// UpdateExpense fully replaces the mutable fields of an owned expense and
// returns the updated row. A non-owned or absent id is core.ErrNotFound.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id, userID int64, in core.ExpenseInput) (*core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses
		 SET title = ?, amount = ?, date = ?, description = ?,
		     updated_at = CURRENT_TIMESTAMP, sync_status = 'pending'
		 WHERE id = ? AND user_id = ?`,
		in.Title, in.Amount, in.Date.String(), in.Description, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, core.ErrNotFound
	}

	slog.InfoContext(ctx, "Expense updated", "expense_id", id, "user_id", userID)

	return r.GetExpense(ctx, id, userID)
}

// DeleteExpense removes an owned expense. A non-owned or absent id is
// core.ErrNotFound.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Expense deleted", "expense_id", id, "user_id", userID)
	return nil
}

// PendingExport is an expense joined with its owner for the export worker.
type PendingExport struct {
	Expense    core.Expense
	OwnerEmail string
	CreatedAt  time.Time
}

// ListPendingExport returns up to limit expenses not yet mirrored to the
// export target, oldest first. Rows whose last export attempt failed are
// included so the periodic sweep retries them.
func (r *SQLiteRepository) ListPendingExport(ctx context.Context, limit int) ([]PendingExport, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.user_id, e.title, e.amount, e.date, e.description,
		        e.created_at, e.updated_at, u.email
		 FROM expenses e
		 JOIN users u ON u.id = e.user_id
		 WHERE e.sync_status IN ('pending', 'error')
		 ORDER BY e.id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	defer rows.Close()

	var pending []PendingExport
	for rows.Next() {
		var p PendingExport
		var date string
		err := rows.Scan(&p.Expense.ID, &p.Expense.UserID, &p.Expense.Title, &p.Expense.Amount,
			&date, &p.Expense.Description, &p.Expense.CreatedAt, &p.Expense.UpdatedAt, &p.OwnerEmail)
		if err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		if p.Expense.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", date, err)
		}
		p.CreatedAt = p.Expense.CreatedAt
		pending = append(pending, p)
	}

	return pending, rows.Err()
}

// GetExpenseWithOwner loads an expense regardless of caller, for the
// export worker only. Not reachable from any request handler.
func (r *SQLiteRepository) GetExpenseWithOwner(ctx context.Context, id int64) (*PendingExport, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT e.id, e.user_id, e.title, e.amount, e.date, e.description,
		        e.created_at, e.updated_at, u.email
		 FROM expenses e
		 JOIN users u ON u.id = e.user_id
		 WHERE e.id = ?`, id)

	var p PendingExport
	var date string
	err := row.Scan(&p.Expense.ID, &p.Expense.UserID, &p.Expense.Title, &p.Expense.Amount,
		&date, &p.Expense.Description, &p.Expense.CreatedAt, &p.Expense.UpdatedAt, &p.OwnerEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan expense with owner: %w", err)
	}
	if p.Expense.Date, err = core.ParseDate(date); err != nil {
		return nil, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	p.CreatedAt = p.Expense.CreatedAt

	return &p, nil
}

// MarkExported marks an expense as mirrored to the export target.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET sync_status = 'synced' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	slog.InfoContext(ctx, "Expense marked as exported", "expense_id", id)
	return nil
}

// MarkExportError marks an expense whose export attempt failed so the
// periodic sweep retries it later.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	slog.WarnContext(ctx, "Expense marked with export error", "expense_id", id)
	return nil
}

func scanExpense(row *sql.Row) (*core.Expense, error) {
	var e core.Expense
	var date string
	err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Amount, &date, &e.Description, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan expense: %w", err)
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return nil, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	return &e, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
