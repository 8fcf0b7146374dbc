package checkpoint

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresMock builds a GormStore over a mocked PostgreSQL connection
// so the generated SQL can be pinned without a live server. The store is
// constructed directly to skip AutoMigrate.
func setupPostgresMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *GormStore) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	store := &GormStore{db: gormDB, logger: zap.NewNop()}
	return mockDB, mock, store
}

func TestGormStorePostgres_SaveUpserts(t *testing.T) {
	mockDB, mock, store := setupPostgresMock(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "sigflow_checkpoints" .+ ON CONFLICT \("pipeline","session"\) DO UPDATE SET "state"="excluded"\."state","updated_at"="excluded"\."updated_at" RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := store.Save(context.Background(), "review", "s1", testState{SessionID: "s1", Phase: "done"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStorePostgres_LoadSelectsByKey(t *testing.T) {
	mockDB, mock, store := setupPostgresMock(t)
	defer mockDB.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "pipeline", "session", "state", "created_at", "updated_at"}).
		AddRow(1, "review", "s1", `{"session_id":"s1","phase":"done","steps":null}`, now, now)
	mock.ExpectQuery(`SELECT \* FROM "sigflow_checkpoints" WHERE pipeline = \$1 AND session = \$2`).
		WillReturnRows(rows)

	var loaded testState
	require.NoError(t, store.Load(context.Background(), "review", "s1", &loaded))
	assert.Equal(t, "done", loaded.Phase)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStorePostgres_LoadMissing(t *testing.T) {
	mockDB, mock, store := setupPostgresMock(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "sigflow_checkpoints"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pipeline", "session", "state", "created_at", "updated_at"}))

	var loaded testState
	assert.ErrorIs(t, store.Load(context.Background(), "review", "nope", &loaded), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStorePostgres_DeleteMissing(t *testing.T) {
	mockDB, mock, store := setupPostgresMock(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "sigflow_checkpoints" WHERE pipeline = \$1 AND session = \$2`).
		WithArgs("review", "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	assert.ErrorIs(t, store.Delete(context.Background(), "review", "gone"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStorePostgres_ListFilters(t *testing.T) {
	mockDB, mock, store := setupPostgresMock(t)
	defer mockDB.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"pipeline", "session", "updated_at"}).
		AddRow("review", "s1", now)
	mock.ExpectQuery(`SELECT "pipeline","session","updated_at" FROM "sigflow_checkpoints" WHERE pipeline = \$1 ORDER BY updated_at DESC`).
		WithArgs("review").
		WillReturnRows(rows)

	refs, err := store.List(context.Background(), "review")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "review", refs[0].Pipeline)
	assert.Equal(t, "s1", refs[0].Session)
	assert.NoError(t, mock.ExpectationsWereMet())
}
