package history

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/toolgate/internal/log"
	"github.com/khanglvm/toolgate/internal/storage"
)

type memStorage struct {
	mu         sync.Mutex
	searches   []storage.SearchRecord
	executions []storage.ExecutionRecord
	failWrites bool
	initErr    error
}

func (m *memStorage) Init() error { return m.initErr }

func (m *memStorage) RecordSearch(s storage.SearchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("disk full")
	}
	m.searches = append(m.searches, s)
	return nil
}

func (m *memStorage) RecordExecution(e storage.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("disk full")
	}
	m.executions = append(m.executions, e)
	return nil
}

func (m *memStorage) Stats(time.Time) (storage.Stats, error)      { return storage.Stats{}, nil }
func (m *memStorage) SaveEmbedding(string, []float32, string) error { return nil }
func (m *memStorage) GetEmbedding(string) ([]float32, string, error) {
	return nil, "", nil
}
func (m *memStorage) Cleanup(time.Duration) error { return nil }
func (m *memStorage) Enabled() bool               { return m.initErr == nil }
func (m *memStorage) Close() error                { return nil }

func (m *memStorage) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.searches), len(m.executions)
}

func TestTrackerRecordsEvents(t *testing.T) {
	store := &memStorage{}
	tr := NewTracker(store, log.Nop)
	defer tr.Stop()
	require.True(t, tr.IsEnabled())

	tr.Track(NewSearchEvent("add two numbers", "", 3, "add"))
	tr.Track(NewExecutionEvent("add", true, "", 2*time.Millisecond))

	assert.Eventually(t, func() bool {
		s, e := store.counts()
		return s == 1 && e == 1
	}, time.Second, 10*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	rec := store.searches[0]
	assert.Equal(t, storage.HashQuery("add two numbers"), rec.QueryHash)
	assert.Len(t, rec.SearchID, 36)
	assert.Equal(t, "add", rec.TopResult)
	assert.Equal(t, "add", store.executions[0].Operation)
}

func TestTrackerStopFlushes(t *testing.T) {
	store := &memStorage{}
	tr := NewTracker(store, log.Nop)
	for i := 0; i < 25; i++ {
		tr.Track(NewExecutionEvent("add", true, "", 0))
	}
	tr.Stop()
	tr.Stop()

	_, e := store.counts()
	assert.Equal(t, 25, e)
}

func TestTrackerDisabled(t *testing.T) {
	store := &memStorage{}
	tr := NewTracker(store, log.Nop)
	tr.Disable()
	assert.False(t, tr.IsEnabled())
	tr.Track(NewExecutionEvent("add", true, "", 0))
	tr.Stop()

	_, e := store.counts()
	assert.Zero(t, e)

	tr.Enable()
	assert.True(t, tr.IsEnabled())
}

func TestTrackerInitFailureDisables(t *testing.T) {
	tr := NewTracker(&memStorage{initErr: errors.New("locked")}, log.Nop)
	defer tr.Stop()
	assert.False(t, tr.IsEnabled())

	nilTracker := NewTracker(nil, log.Nop)
	defer nilTracker.Stop()
	assert.False(t, nilTracker.IsEnabled())
	nilTracker.Track(NewExecutionEvent("add", true, "", 0))
}

func TestTrackerNonBlockingWhenFull(t *testing.T) {
	tr := NewTracker(&memStorage{}, log.Nop)
	defer tr.Stop()

	start := time.Now()
	for i := 0; i < eventQueueSize*2; i++ {
		tr.Track(NewExecutionEvent("add", true, "", 0))
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.LessOrEqual(t, tr.Pending(), eventQueueSize)
}

func TestTrackerSurvivesWriteErrors(t *testing.T) {
	store := &memStorage{failWrites: true}
	tr := NewTracker(store, log.Nop)
	tr.Track(NewSearchEvent("q", "", 0, ""))
	tr.Stop()
	assert.True(t, tr.IsEnabled())
}

func TestTrackerWithSQLite(t *testing.T) {
	store := storage.NewStorage(filepath.Join(t.TempDir(), "history.db"))
	defer store.Close()

	tr := NewTracker(store, log.Nop)
	tr.Track(NewSearchEvent("circle area", "geometry", 2, "circle_area"))
	tr.Track(NewExecutionEvent("circle_area", true, "", time.Millisecond))
	tr.Track(NewExecutionEvent("divide", false, "ComputationError", time.Millisecond))
	tr.Stop()

	stats, err := store.Stats(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Searches)
	assert.Equal(t, 2, stats.Executions)
	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, 1, stats.FailuresByKind["ComputationError"])
}
