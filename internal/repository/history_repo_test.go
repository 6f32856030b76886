package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fyerfyer/arch-QA-system/internal/models"
)

func setupHistoryTestDB(t *testing.T) *gorm.DB {
	dbName := fmt.Sprintf("file:memdb_history_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	err = db.AutoMigrate(&models.ExplorerSession{}, &models.QARecord{})
	require.NoError(t, err, "Failed to run migrations")

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestHistoryRepository_Session(t *testing.T) {
	repo := NewHistoryRepository(setupHistoryTestDB(t)).WithContext(context.Background())

	_, err := repo.GetSession("missing")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	session := &models.ExplorerSession{
		ID:        "s1",
		Sources:   datatypes.JSON(`[{"type":"local","path":"/src"}]`),
		Documents: 3,
		Chunks:    7,
	}
	require.NoError(t, repo.SaveSession(session))

	saved, err := repo.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Documents)
	assert.Equal(t, 7, saved.Chunks)
	assert.False(t, saved.CreatedAt.IsZero())

	saved.Failures = 2
	require.NoError(t, repo.SaveSession(saved))
	saved, err = repo.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Failures)

	assert.Error(t, repo.SaveSession(&models.ExplorerSession{}))
}

func TestHistoryRepository_Records(t *testing.T) {
	repo := NewHistoryRepository(setupHistoryTestDB(t))
	require.NoError(t, repo.SaveSession(&models.ExplorerSession{ID: "s1"}))
	require.NoError(t, repo.SaveSession(&models.ExplorerSession{ID: "s2"}))

	base := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateRecord(&models.QARecord{
			SessionID: "s1",
			Question:  fmt.Sprintf("question %d", i),
			Answer:    fmt.Sprintf("answer %d", i),
			Sources:   datatypes.JSON(`[{"source":"a.go"}]`),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, repo.CreateRecord(&models.QARecord{SessionID: "s2", Question: "other", Answer: "x"}))
	assert.Error(t, repo.CreateRecord(&models.QARecord{Question: "orphan"}))

	records, total, err := repo.ListRecords("s1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, records, 3)
	assert.Equal(t, "question 0", records[0].Question)
	assert.Equal(t, "question 2", records[2].Question)

	page, total, err := repo.ListRecords("s1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, "question 1", page[0].Question)

	require.NoError(t, repo.DeleteSession("s1"))
	records, total, err = repo.ListRecords("s1", 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, records)
	_, err = repo.GetSession("s1")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	records, _, err = repo.ListRecords("s2", 0, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
