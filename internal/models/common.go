package models

import "time"

// Pagination describes list metadata shared across endpoints.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// SystemMetrics is an aggregated runtime snapshot for status endpoints.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	StageRunsTotal           uint64    `json:"stage_runs_total"`
	StageFailuresTotal       uint64    `json:"stage_failures_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
