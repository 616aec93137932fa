package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/session-seat-reservation/internal/model"
)

// SessionSearchQuery filters and pages the catalog.  TimeFilter is
// "upcoming" (default, not started yet), "active" (not ended yet) or "any".
type SessionSearchQuery struct {
	Title      string
	TimeFilter string
	Page       int
	PageSize   int
}

// Search returns one page of matching sessions ordered by start time and the
// total number of matches.
func (r *SessionRepo) Search(ctx context.Context, q SessionSearchQuery) ([]model.Session, int64, error) {
	var where []string
	var args []any

	switch strings.ToLower(q.TimeFilter) {
	case "any":
	case "active":
		where = append(where, "ends_at >= UTC_TIMESTAMP()")
	default:
		where = append(where, "starts_at >= UTC_TIMESTAMP()")
	}
	if q.Title != "" {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Title)+"%")
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, size := max(q.Page, 1), max(q.PageSize, 1)
	dataSQL := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + cond + `
		ORDER BY starts_at, id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, dataSQL, append(args, size, (page-1)*size)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Session, 0, size)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}
