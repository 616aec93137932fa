package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/session-seat-reservation/internal/model"
)

// SessionRepo manages the conference session catalog.
type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// DB exposes the underlying handle so callers can span transactions.
func (r *SessionRepo) DB() *sql.DB { return r.db }

const sessionColumns = `id, title, starts_at, ends_at, capacity`

func validateSession(s model.Session) error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidSession)
	case !s.End.After(s.Start):
		return fmt.Errorf("%w: %s ends before it starts", ErrInvalidSession, s.ID)
	case s.Capacity < 0:
		return fmt.Errorf("%w: %s has negative capacity", ErrInvalidSession, s.ID)
	}
	return nil
}

// UpsertTx inserts s or updates the existing row with the same id inside tx.
func (r *SessionRepo) UpsertTx(ctx context.Context, tx *sql.Tx, s model.Session) error {
	if err := validateSession(s); err != nil {
		return err
	}
	const q = `INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE title = VALUES(title), starts_at = VALUES(starts_at),
		ends_at = VALUES(ends_at), capacity = VALUES(capacity)`
	_, err := tx.ExecContext(ctx, q, s.ID, s.Title, s.Start.UTC(), s.End.UTC(), s.Capacity)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", s.ID, err)
	}
	return nil
}

// UpsertAll writes every session in one transaction.
func (r *SessionRepo) UpsertAll(ctx context.Context, sessions []model.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range sessions {
		if err := r.UpsertTx(ctx, tx, s); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// List returns all sessions ordered by start time, then id.
func (r *SessionRepo) List(ctx context.Context) ([]model.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions ORDER BY starts_at, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByID fetches one session.  ErrSessionNotFound if absent.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (model.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrSessionNotFound
	}
	return s, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (model.Session, error) {
	var s model.Session
	var start, end time.Time
	if err := row.Scan(&s.ID, &s.Title, &start, &end, &s.Capacity); err != nil {
		return model.Session{}, err
	}
	s.Start, s.End = start.UTC(), end.UTC()
	return s, nil
}
