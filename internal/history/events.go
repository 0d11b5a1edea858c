/*
Package history records searches and executions in the background.

A Tracker queues events without blocking the caller and flushes them to a
storage.Storage in batches from a single goroutine. Query text is stored
only as a SHA-256 hash.
*/
package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/khanglvm/toolgate/internal/storage"
)

// Event is one recorded search or execution. Exactly one field is set.
type Event struct {
	Search    *storage.SearchRecord
	Execution *storage.ExecutionRecord
}

// NewSearchEvent describes a completed search. top is the best match, or "".
func NewSearchEvent(query, category string, results int, top string) Event {
	return Event{Search: &storage.SearchRecord{
		SearchID:     uuid.NewString(),
		QueryHash:    storage.HashQuery(query),
		Category:     category,
		Timestamp:    time.Now().UTC(),
		ResultsCount: results,
		TopResult:    top,
	}}
}

// NewExecutionEvent describes a finished execution. errorKind is empty on success.
func NewExecutionEvent(operation string, success bool, errorKind string, elapsed time.Duration) Event {
	return Event{Execution: &storage.ExecutionRecord{
		Operation: operation,
		Success:   success,
		ErrorKind: errorKind,
		ElapsedMS: elapsed.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}}
}

// SearchID returns the identifier of a search event, or "".
func (e Event) SearchID() string {
	if e.Search == nil {
		return ""
	}
	return e.Search.SearchID
}

func (e Event) label() string {
	switch {
	case e.Search != nil:
		return "search " + e.Search.SearchID
	case e.Execution != nil:
		return "execution of " + e.Execution.Operation
	}
	return "empty event"
}
