package history

import (
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamtools/dream-background-remover/internal/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func entryAt(id string, finished time.Time) *model.HistoryEntry {
	return &model.HistoryEntry{
		JobID:      id,
		Target:     "/img/photo.png",
		Mode:       model.ModeCreateLayer,
		State:      model.JobStateSucceeded,
		Message:    "New layer created with background removed: photo",
		CreatedAt:  finished.Add(-10 * time.Second),
		FinishedAt: finished,
	}
}

func TestRecordAndGet(t *testing.T) {
	store := openStore(t)
	now := time.Now()

	require.NoError(t, store.Record(&model.HistoryEntry{
		JobID:      "job-1",
		Target:     "/img/photo.png",
		Mode:       model.ModeCreateFile,
		State:      model.JobStateFailed,
		ErrorKind:  string(model.ErrKindTimeout),
		Message:    "The service did not respond in time.",
		CreatedAt:  now.Add(-3 * time.Minute),
		FinishedAt: now,
	}))

	got, err := store.Get("job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, "/img/photo.png", got.Target)
	assert.Equal(t, model.ModeCreateFile, got.Mode)
	assert.Equal(t, model.JobStateFailed, got.State)
	assert.Equal(t, string(model.ErrKindTimeout), got.ErrorKind)
	assert.WithinDuration(t, now, got.FinishedAt, time.Second)
}

func TestGetUnknownJobReturnsNil(t *testing.T) {
	store := openStore(t)
	got, err := store.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecordIsIdempotentPerJob(t *testing.T) {
	store := openStore(t)
	now := time.Now()

	first := entryAt("job-1", now)
	require.NoError(t, store.Record(first))
	first.State = model.JobStateFailed
	require.NoError(t, store.Record(first))

	entries, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.JobStateFailed, entries[0].State)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	store := openStore(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(entryAt("job-"+strconv.Itoa(i), base.Add(time.Duration(i)*time.Minute))))
	}

	entries, err := store.Recent(3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "job-4", entries[0].JobID)
	assert.Equal(t, "job-3", entries[1].JobID)
	assert.Equal(t, "job-2", entries[2].JobID)
}

func TestPruneDropsOldEntries(t *testing.T) {
	store := openStore(t)
	now := time.Now()
	require.NoError(t, store.Record(entryAt("old", now.Add(-48*time.Hour))))
	require.NoError(t, store.Record(entryAt("recent", now.Add(-time.Hour))))

	dropped, err := store.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dropped)

	got, err := store.Get("old")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = store.Get("recent")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
