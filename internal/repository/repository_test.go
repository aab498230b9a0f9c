package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"index-coordinator/internal/config"
	"index-coordinator/internal/database"
	"index-coordinator/internal/errs"
	"index-coordinator/internal/model"
	"index-coordinator/pkg/logger"
)

func newTestLogger() logger.Logger {
	return logger.NewZapLogger(zap.NewNop())
}

func setupTestDB(t *testing.T) database.DatabaseManager {
	dbManager := database.NewSQLiteManager(&config.DatabaseConfig{
		DataDir:         t.TempDir(),
		DatabaseName:    "test.db",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, newTestLogger())
	require.NoError(t, dbManager.Initialize())
	t.Cleanup(func() { dbManager.Close() })
	return dbManager
}

func TestProjectRepository(t *testing.T) {
	repo := NewProjectRepository(setupTestDB(t), newTestLogger())
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		project := &model.Project{ProjectKey: "ORG", ProjectName: "Organisation"}
		require.NoError(t, repo.CreateProject(ctx, project))
		assert.NotZero(t, project.ID)

		got, err := repo.GetProject(ctx, "ORG")
		require.NoError(t, err)
		assert.Equal(t, "Organisation", got.ProjectName)
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		err := repo.CreateProject(ctx, &model.Project{ProjectKey: "ORG"})
		assert.ErrorIs(t, err, ErrProjectExists)
	})

	t.Run("CreateWithoutKey", func(t *testing.T) {
		assert.Error(t, repo.CreateProject(ctx, &model.Project{ProjectKey: "  "}))
		assert.Error(t, repo.CreateProject(ctx, nil))
	})

	t.Run("ListKeysInRegistrationOrder", func(t *testing.T) {
		for _, key := range []string{"AAA", "BBB", "CCC"} {
			require.NoError(t, repo.CreateProject(ctx, &model.Project{ProjectKey: key}))
		}

		keys, err := repo.ListProjectKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"ORG", "AAA", "BBB", "CCC"}, keys)

		projects, err := repo.ListProjects(ctx)
		require.NoError(t, err)
		assert.Len(t, projects, 4)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteProject(ctx, "BBB"))

		_, err := repo.GetProject(ctx, "BBB")
		assert.ErrorIs(t, err, errs.ErrRecordNotFound)
		assert.ErrorIs(t, repo.DeleteProject(ctx, "BBB"), errs.ErrRecordNotFound)
	})
}

// propertyStoreContract runs the same checks against every PropertyStore.
func propertyStoreContract(t *testing.T, store PropertyStore) {
	ctx := context.Background()
	ts := time.Date(2026, 10, 18, 9, 30, 15, 123456789, time.UTC)

	t.Run("Absent", func(t *testing.T) {
		_, ok, err := store.ReadDatetime(ctx, "ORG", "last_index_update_start_date")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("StoreImmediately", func(t *testing.T) {
		require.NoError(t, store.StoreDatetime(ctx, "ORG", "last_index_update_start_date", ts, nil))

		got, ok, err := store.ReadDatetime(ctx, "ORG", "last_index_update_start_date")
		require.NoError(t, err)
		assert.True(t, ok)
		// millisecond precision
		assert.True(t, got.Equal(ts.Truncate(time.Millisecond)), "got %s", got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		later := ts.Add(time.Hour)
		require.NoError(t, store.StoreDatetime(ctx, "ORG", "last_index_update_start_date", later, nil))

		got, _, err := store.ReadDatetime(ctx, "ORG", "last_index_update_start_date")
		require.NoError(t, err)
		assert.True(t, got.Equal(later.Truncate(time.Millisecond)))
	})

	t.Run("Batch", func(t *testing.T) {
		batch := NewPropertyBatch()
		require.NoError(t, store.StoreDatetime(ctx, "AAA", "last_index_update_start_date", ts, batch))
		require.NoError(t, store.StoreDatetime(ctx, "AAA", "last_index_update_end_date", ts, batch))
		assert.Equal(t, 2, batch.Len())

		_, ok, err := store.ReadDatetime(ctx, "AAA", "last_index_update_start_date")
		require.NoError(t, err)
		assert.False(t, ok, "batched write must not be visible before flush")

		require.NoError(t, store.FlushBatch(ctx, batch))
		assert.Zero(t, batch.Len())

		_, ok, err = store.ReadDatetime(ctx, "AAA", "last_index_update_end_date")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, store.FlushBatch(ctx, nil))
	})

	t.Run("DeleteProperties", func(t *testing.T) {
		require.NoError(t, store.DeleteProperties(ctx, "AAA"))

		_, ok, err := store.ReadDatetime(ctx, "AAA", "last_index_update_end_date")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = store.ReadDatetime(ctx, "ORG", "last_index_update_start_date")
		require.NoError(t, err)
		assert.True(t, ok, "other projects keep their properties")
	})
}

func TestSQLitePropertyStore(t *testing.T) {
	propertyStoreContract(t, NewSQLitePropertyStore(setupTestDB(t), newTestLogger()))
}

func TestLevelDBPropertyStore(t *testing.T) {
	store, err := NewLevelDBPropertyStore(t.TempDir(), newTestLogger())
	require.NoError(t, err)
	defer store.Close()

	propertyStoreContract(t, store)
}

func TestLevelDBPropertyStore_PrefixIsolation(t *testing.T) {
	store, err := NewLevelDBPropertyStore(t.TempDir(), newTestLogger())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.StoreDatetime(ctx, "ORG", "p", now, nil))
	require.NoError(t, store.StoreDatetime(ctx, "ORG2", "p", now, nil))

	require.NoError(t, store.DeleteProperties(ctx, "ORG"))

	_, ok, err := store.ReadDatetime(ctx, "ORG2", "p")
	require.NoError(t, err)
	assert.True(t, ok)
}
