package main

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DataSourceStore {
	t.Helper()
	db, _ := openTestSQLite(t)
	_, err := createTables(context.Background(), db, sqliteDialect{}, schemaCatalog)
	require.NoError(t, err)
	return NewDataSourceStore(db, sqliteDialect{})
}

func defaultIDs(t *testing.T, s *DataSourceStore) []string {
	t.Helper()
	all, err := s.List(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, r := range all {
		if r.IsDefault {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func TestDataSourceStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec, err := s.Create(ctx, "Sales", BackendMySQL, "root:root@tcp(db:3306)/sales")
	require.NoError(t, err)
	assert.Len(t, rec.ID, 36)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sales", got.Name)
	assert.Equal(t, BackendMySQL, got.Kind)
	assert.True(t, got.Enabled)
	assert.False(t, got.IsDefault)
	assert.Equal(t, StatusUnknown, got.Status)
	assert.Nil(t, got.LastTestedAt)
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Second)

	_, err = s.Get(ctx, "nope")
	assert.True(t, errors.Is(err, ErrDataSourceNotFound))

	_, err = s.Create(ctx, " ", BackendMySQL, "x")
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	_, err = s.Create(ctx, "Empty", BackendMySQL, "")
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}

func TestDataSourceStore_PromoteToDefault(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.Create(ctx, "A", BackendSQLite, "a.db")
	require.NoError(t, err)
	b, err := s.Create(ctx, "B", BackendSQLite, "b.db")
	require.NoError(t, err)

	ok, err := s.PromoteToDefault(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{a.ID}, defaultIDs(t, s))

	ok, err = s.PromoteToDefault(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{b.ID}, defaultIDs(t, s))

	// Promoting the current default again is a no-op that still succeeds.
	ok, err = s.PromoteToDefault(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{b.ID}, defaultIDs(t, s))

	ok, err = s.PromoteToDefault(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{b.ID}, defaultIDs(t, s), "failed promotion must leave the previous default")

	def, err := s.Default(ctx)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, b.ID, def.ID)
}

func TestDataSourceStore_PromoteDisabledSource(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.Create(ctx, "A", BackendSQLite, "a.db")
	require.NoError(t, err)
	require.NoError(t, s.SetEnabled(ctx, a.ID, false))

	ok, err := s.PromoteToDefault(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.True(t, got.IsDefault)
}

func TestDataSourceStore_ClearDefault(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.Create(ctx, "A", BackendSQLite, "a.db")
	require.NoError(t, err)
	b, err := s.Create(ctx, "B", BackendSQLite, "b.db")
	require.NoError(t, err)
	_, err = s.PromoteToDefault(ctx, a.ID)
	require.NoError(t, err)

	// Clearing a non-default row leaves the default alone.
	ok, err := s.ClearDefault(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{a.ID}, defaultIDs(t, s))

	ok, err = s.ClearDefault(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, defaultIDs(t, s))

	def, err := s.Default(ctx)
	require.NoError(t, err)
	assert.Nil(t, def)

	ok, err = s.ClearDefault(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDataSourceStore_SetEnabledAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.Create(ctx, "A", BackendSQLite, "a.db")
	require.NoError(t, err)

	require.NoError(t, s.SetEnabled(ctx, a.ID, false))
	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	assert.True(t, errors.Is(s.SetEnabled(ctx, "missing", true), ErrDataSourceNotFound))

	require.NoError(t, s.Delete(ctx, a.ID))
	_, err = s.Get(ctx, a.ID)
	assert.True(t, errors.Is(err, ErrDataSourceNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, a.ID), ErrDataSourceNotFound))
}

func TestDataSourceStore_TestConnection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	good, err := s.Create(ctx, "Good", BackendSQLite, filepath.Join(t.TempDir(), "good.db"))
	require.NoError(t, err)
	require.NoError(t, s.TestConnection(ctx, good.ID, 5*time.Second))
	got, err := s.Get(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConnected, got.Status)
	require.NotNil(t, got.LastTestedAt)

	bad, err := s.Create(ctx, "Bad", BackendSQLite, filepath.Join(t.TempDir(), "missing", "dir", "bad.db"))
	require.NoError(t, err)
	assert.Error(t, s.TestConnection(ctx, bad.ID, 5*time.Second))
	got, err = s.Get(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.LastTestedAt)
}

func TestPromoteToDefault_RollsBackWhenTargetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewDataSourceStore(db, postgresDialect{})
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "data_sources" SET "is_default" = $1, "updated_at" = $2 WHERE "is_default" = $3`)).
		WithArgs(int64(0), sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "data_sources" SET "is_default" = $1, "updated_at" = $2 WHERE "id" = $3`)).
		WithArgs(int64(1), sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := s.PromoteToDefault(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteToDefault_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewDataSourceStore(db, sqlserverDialect{})
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE [data_sources] SET [is_default] = @p1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`WHERE [id] = @p3`)).
		WithArgs(int64(1), sqlmock.AnyArg(), "abc").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := s.PromoteToDefault(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteToDefault_ClearFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewDataSourceStore(db, mysqlDialect{})
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `data_sources`").WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	ok, err := s.PromoteToDefault(context.Background(), "abc")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "lock wait timeout")
	assert.NoError(t, mock.ExpectationsWereMet())
}
