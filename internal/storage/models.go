package storage

import "time"

// SearchRecord is one search, stored for analytics.
type SearchRecord struct {
	// SearchID is a unique identifier (UUID).
	SearchID string `json:"search_id"`

	// QueryHash is the SHA-256 of the query text.
	QueryHash string `json:"query_hash"`

	// Category is the category filter, if any.
	Category string `json:"category,omitempty"`

	Timestamp    time.Time `json:"timestamp"`
	ResultsCount int       `json:"results_count"`

	// TopResult is the name of the best match, or "".
	TopResult string `json:"top_result,omitempty"`
}

// ExecutionRecord is one execution attempt.
type ExecutionRecord struct {
	Operation string    `json:"operation"`
	Success   bool      `json:"success"`
	ErrorKind string    `json:"error_kind,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// OperationCount pairs an operation with a count.
type OperationCount struct {
	Operation string `json:"operation"`
	Count     int    `json:"count"`
}

// Stats summarizes recorded history.
type Stats struct {
	Searches       int              `json:"searches"`
	Executions     int              `json:"executions"`
	Failures       int              `json:"failures"`
	FailuresByKind map[string]int   `json:"failures_by_kind,omitempty"`
	TopOperations  []OperationCount `json:"top_operations,omitempty"`
}
