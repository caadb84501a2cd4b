package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox-ogm/dialect"
)

// TestOpenDB tests the OpenDB function with different dialects.
func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
	}{
		{"Postgres", dialect.Postgres},
		{"MySQL", dialect.MySQL},
		{"SQLite", dialect.SQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.dialect, db)
			assert.NotNil(t, drv)
			assert.Equal(t, tt.dialect, drv.Dialect())
		})
	}
}

// TestDriverQuery tests query operations.
func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("simple_query", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, labels FROM ogm_nodes").
			WillReturnRows(sqlmock.NewRows([]string{"id", "labels"}).
				AddRow(1, "|Team|").
				AddRow(2, "|Player|"))

		rows, err := drv.Query(context.Background(), "SELECT id, labels FROM ogm_nodes")
		require.NoError(t, err)
		n := 0
		for rows.Next() {
			n++
		}
		assert.Equal(t, 2, n)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_with_args", func(t *testing.T) {
		mock.ExpectQuery("SELECT labels FROM ogm_nodes WHERE id = \\$1").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"labels"}).AddRow("|Team|"))

		var labels string
		err := drv.ScanOne(context.Background(), "SELECT labels FROM ogm_nodes WHERE id = ?", []any{1}, &labels)
		require.NoError(t, err)
		assert.Equal(t, "|Team|", labels)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no_rows", func(t *testing.T) {
		mock.ExpectQuery("SELECT labels FROM ogm_nodes WHERE id = \\$1").
			WithArgs(9).
			WillReturnRows(sqlmock.NewRows([]string{"labels"}))

		var labels string
		err := drv.ScanOne(context.Background(), "SELECT labels FROM ogm_nodes WHERE id = ?", []any{9}, &labels)
		require.ErrorIs(t, err, ErrNoRows)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestDriverExec tests exec operations.
func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.MySQL, db)
	mock.ExpectExec("DELETE FROM ogm_nodes WHERE id = \\?").
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	res, err := drv.Exec(context.Background(), "DELETE FROM ogm_nodes WHERE id = ?", 3)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectExec("DELETE FROM ogm_nodes").WillReturnError(errors.New("boom"))
	_, err = drv.Exec(context.Background(), "DELETE FROM ogm_nodes")
	require.ErrorContains(t, err, "dialect/sql: exec: boom")
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDriverTransaction tests transaction commit and rollback.
func TestDriverTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.SQLite, db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE ogm_nodes").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	tx, err := drv.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	_, err = tx.Exec(context.Background(), "UPDATE ogm_nodes SET labels = ? WHERE id = ?", "|A|", 1)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx, err = drv.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectMethod(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, dialect.Postgres, OpenDB("postgres-traced", db).Dialect())
	assert.Equal(t, "custom", OpenDB("custom", db).Dialect())
}

// TestContextCancellation tests behavior with canceled context.
func TestContextCancellation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.SQLite, db)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = drv.Query(ctx, "SELECT 1")
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	tests := []struct {
		dialect string
		in      string
		want    string
	}{
		{dialect.Postgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{dialect.MySQL, "SELECT * FROM t WHERE a = ?", "SELECT * FROM t WHERE a = ?"},
		{dialect.SQLite, "SELECT 1", "SELECT 1"},
		{dialect.Postgres, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Rebind(tt.dialect, tt.in))
	}
}

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"ogm_nodes", true},
		{"graph.ogm_nodes", true},
		{"_private", true},
		{"", false},
		{"1abc", false},
		{"nodes; DROP TABLE x", false},
		{"nodes'", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidIdentifier(tt.input))
		})
	}
}
