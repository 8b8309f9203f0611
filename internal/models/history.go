package models

import "time"

// QueryHistoryRecord is one append-only entry of the execution log.
type QueryHistoryRecord struct {
	ID              int64     `json:"id" db:"id"`
	NaturalQuery    string    `json:"natural_query" db:"natural_query"`
	GeneratedSQL    string    `json:"generated_sql" db:"generated_sql"`
	Success         bool      `json:"success" db:"success"`
	ExecutionTimeMS int64     `json:"execution_time_ms" db:"execution_time_ms"`
	ResultCount     int       `json:"result_count" db:"result_count"`
	ErrorMessage    *string   `json:"error_message,omitempty" db:"error_message"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// HistoryStats summarizes the execution log.
type HistoryStats struct {
	Total          int64   `json:"total" db:"total"`
	Successes      int64   `json:"successes" db:"successes"`
	SuccessRate    float64 `json:"success_rate" db:"-"`
	AvgExecutionMS float64 `json:"avg_execution_time_ms" db:"avg_ms"`
}
