package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/session-seat-reservation/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var (
	keynoteStart = time.Date(2026, 5, 18, 9, 0, 0, 0, time.UTC)
	keynote      = model.Session{ID: "keynote", Title: "Keynote", Start: keynoteStart, End: keynoteStart.Add(time.Hour), Capacity: 300}
)

func TestSessionRepo_UpsertAll(t *testing.T) {
	db, mock := newMock(t)
	other := model.Session{ID: "codelab", Title: "Codelab", Start: keynoteStart.Add(2 * time.Hour), End: keynoteStart.Add(3 * time.Hour), Capacity: 40}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs("keynote", "Keynote", keynote.Start, keynote.End, 300).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs("codelab", "Codelab", other.Start, other.End, 40).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewSessionRepo(db).UpsertAll(context.Background(), []model.Session{keynote, other}))
}

func TestSessionRepo_UpsertAllRollsBackInvalid(t *testing.T) {
	db, mock := newMock(t)
	bad := keynote
	bad.ID = "broken"
	bad.End = bad.Start.Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := NewSessionRepo(db).UpsertAll(context.Background(), []model.Session{keynote, bad})
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionRepo_List(t *testing.T) {
	db, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"id", "title", "starts_at", "ends_at", "capacity"}).
		AddRow("keynote", "Keynote", keynote.Start, keynote.End, 300).
		AddRow("codelab", "Codelab", keynote.End, keynote.End.Add(time.Hour), 40)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, starts_at, ends_at, capacity FROM sessions ORDER BY starts_at, id")).
		WillReturnRows(rows)

	got, err := NewSessionRepo(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, keynote, got[0])
	assert.Equal(t, "codelab", got[1].ID)
}

func TestSessionRepo_GetByID(t *testing.T) {
	db, mock := newMock(t)
	q := regexp.QuoteMeta("FROM sessions WHERE id = ?")
	mock.ExpectQuery(q).WithArgs("keynote").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "starts_at", "ends_at", "capacity"}).
			AddRow("keynote", "Keynote", keynote.Start, keynote.End, 300))
	mock.ExpectQuery(q).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	repo := NewSessionRepo(db)
	got, err := repo.GetByID(context.Background(), "keynote")
	require.NoError(t, err)
	assert.Equal(t, keynote, got)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestIdentityRepo_ResolveProfileID(t *testing.T) {
	db, mock := newMock(t)
	q := regexp.QuoteMeta("SELECT provider_uid FROM user_identities WHERE user_id = ? AND provider = ?")
	mock.ExpectQuery(q).WithArgs("u1", model.GoogleProviderID).
		WillReturnRows(sqlmock.NewRows([]string{"provider_uid"}).AddRow("108234"))
	mock.ExpectQuery(q).WithArgs("u2", model.GoogleProviderID).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q).WithArgs("u3", model.GoogleProviderID).WillReturnError(errors.New("conn reset"))

	repo := NewIdentityRepo(db)
	ctx := context.Background()

	id, err := repo.ResolveProfileID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "108234", id)

	id, err = repo.ResolveProfileID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "u2", id, "falls back to the attendee id")

	_, err = repo.ResolveProfileID(ctx, "u3")
	assert.ErrorContains(t, err, "conn reset")
}

func TestIdentityRepo_Link(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_identities")).
		WithArgs("u1", model.GoogleProviderID, "108234").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewIdentityRepo(db).Link(context.Background(), model.Identity{UserID: "u1", Provider: model.GoogleProviderID, ProviderUID: "108234"})
	assert.NoError(t, err)
}

func TestSessionRepo_Search(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sessions WHERE starts_at >= UTC_TIMESTAMP() AND LOWER(title) LIKE ?")).
		WithArgs("%key%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE starts_at >= UTC_TIMESTAMP() AND LOWER(title) LIKE ?")).
		WithArgs("%key%", 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "starts_at", "ends_at", "capacity"}).
			AddRow("keynote", "Keynote", keynote.Start, keynote.End, 300))

	got, total, err := NewSessionRepo(db).Search(context.Background(), SessionSearchQuery{Title: "Key", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []model.Session{keynote}, got)
}

func TestSessionRepo_SearchAnyTime(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sessions WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE 1=1")).
		WithArgs(1, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "starts_at", "ends_at", "capacity"}))

	got, total, err := NewSessionRepo(db).Search(context.Background(), SessionSearchQuery{TimeFilter: "any"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, got)
}
