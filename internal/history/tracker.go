package history

import (
	"sync"
	"time"

	"github.com/khanglvm/toolgate/internal/log"
	"github.com/khanglvm/toolgate/internal/storage"
)

const (
	// eventQueueSize bounds pending events. Track drops events when it is full.
	eventQueueSize = 1000

	// batchFlushSize triggers an immediate flush.
	batchFlushSize = 10

	// flushInterval is how often a partial batch is written.
	flushInterval = 50 * time.Millisecond
)

// Tracker records history events in the background with non-blocking writes.
type Tracker struct {
	storage  storage.Storage
	queue    chan Event
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	log      log.Logger

	mu      sync.RWMutex
	enabled bool
}

// NewTracker initializes s and starts the flush goroutine. A storage that
// fails to initialize leaves the tracker disabled.
func NewTracker(s storage.Storage, logger log.Logger) *Tracker {
	t := &Tracker{
		storage:  s,
		queue:    make(chan Event, eventQueueSize),
		stopChan: make(chan struct{}),
		log:      log.OrDefault(logger),
		enabled:  s != nil,
	}

	if s != nil {
		if err := s.Init(); err != nil || !s.Enabled() {
			t.log.Warnf("history disabled: storage unavailable: %v", err)
			t.enabled = false
		}
	}

	t.wg.Add(1)
	go t.processEvents()
	return t
}

// Track queues an event without blocking. If the queue is full the event is
// dropped.
func (t *Tracker) Track(e Event) {
	if !t.IsEnabled() {
		return
	}
	select {
	case t.queue <- e:
	default:
		t.log.Warnf("history queue full, dropping %s", e.label())
	}
}

// Stop flushes pending events and stops the background goroutine. It is safe
// to call more than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		t.wg.Wait()
	})
}

// Disable makes Track a no-op.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
}

// Enable resumes tracking if the storage is usable.
func (t *Tracker) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = t.storage != nil
}

// IsEnabled reports whether Track records events.
func (t *Tracker) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Pending returns the number of queued events.
func (t *Tracker) Pending() int {
	return len(t.queue)
}

func (t *Tracker) processEvents() {
	defer t.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, batchFlushSize)
	add := func(e Event) {
		batch = append(batch, e)
		if len(batch) >= batchFlushSize {
			t.flush(batch)
			batch = batch[:0]
		}
	}

	for {
		select {
		case e := <-t.queue:
			add(e)
		case <-ticker.C:
			if len(batch) > 0 {
				t.flush(batch)
				batch = batch[:0]
			}
		case <-t.stopChan:
			for {
				select {
				case e := <-t.queue:
					add(e)
				default:
					t.flush(batch)
					return
				}
			}
		}
	}
}

func (t *Tracker) flush(events []Event) {
	for _, e := range events {
		var err error
		switch {
		case e.Search != nil:
			err = t.storage.RecordSearch(*e.Search)
		case e.Execution != nil:
			err = t.storage.RecordExecution(*e.Execution)
		}
		if err != nil {
			t.log.Warnf("failed to record %s: %v", e.label(), err)
		}
	}
}
