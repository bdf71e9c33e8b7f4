package quota

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPostgresCounter(t *testing.T) (*PostgresCounter, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	counter := NewPostgresCounter(db)
	counter.now = func() time.Time { return time.Date(2026, 10, 18, 12, 4, 0, 0, time.UTC) }
	return counter, mock
}

func TestPostgresCounter_Admit(t *testing.T) {
	counter, mock := newTestPostgresCounter(t)
	windows := testWindows(5, 100, 1000, 30)

	mock.ExpectBegin()
	for i, value := range []int64{1, 30, 30} {
		w := windows[i]
		mock.ExpectExec("INSERT INTO usage_counters(.+)ON CONFLICT \\(counter_key\\) DO NOTHING").
			WithArgs(w.Key, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("UPDATE usage_counters SET value = value \\+ \\$2 WHERE counter_key = \\$1 AND value \\+ \\$2 <= \\$3").
			WithArgs(w.Key, w.Increment, w.Ceiling).
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(value))
	}
	mock.ExpectCommit()

	outcome, err := counter.Admit(context.Background(), windows)
	require.NoError(t, err)
	assert.True(t, outcome.Admitted)
	assert.Equal(t, []int64{1, 30, 30}, outcome.Values)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCounter_RejectRollsBack(t *testing.T) {
	counter, mock := newTestPostgresCounter(t)
	windows := testWindows(5, 100, 1000, 30)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO usage_counters").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("UPDATE usage_counters").
		WithArgs("q:1:m:1", int64(1), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(3)))
	mock.ExpectExec("INSERT INTO usage_counters").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("UPDATE usage_counters").
		WithArgs("q:1:d:1", int64(30), int64(100)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT value FROM usage_counters WHERE counter_key = \\$1").
		WithArgs("q:1:d:1").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(80)))
	mock.ExpectRollback()

	outcome, err := counter.Admit(context.Background(), windows)
	require.NoError(t, err)
	assert.False(t, outcome.Admitted)
	assert.Equal(t, 1, outcome.Rejected)
	assert.Equal(t, int64(80), outcome.Current)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCounter_Current(t *testing.T) {
	counter, mock := newTestPostgresCounter(t)

	mock.ExpectQuery("SELECT counter_key, value FROM usage_counters WHERE counter_key = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"counter_key", "value"}).AddRow("q:1:d:1", int64(12)))

	values, err := counter.Current(context.Background(), []string{"q:1:m:1", "q:1:d:1"})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 12}, values)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCounter_DeleteExpired(t *testing.T) {
	counter, mock := newTestPostgresCounter(t)

	mock.ExpectExec("DELETE FROM usage_counters WHERE expires_at < \\$1").
		WithArgs(counter.now()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := counter.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
