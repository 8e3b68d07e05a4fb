// Package analytics publishes search and index events to Kafka and aggregates
// them into query statistics served over HTTP.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventIndexBuild EventType = "index_build"
)

// SearchEvent describes one answered query.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Tokens    []string  `json:"tokens"`
	Phase     string    `json:"phase"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// IndexEvent describes an index install.
type IndexEvent struct {
	Type      EventType `json:"type"`
	Source    string    `json:"source"`
	Terms     int       `json:"terms"`
	Postings  int       `json:"postings"`
	Symbols   int       `json:"symbols"`
	Timestamp time.Time `json:"timestamp"`
}

// eventHeader is decoded first to pick the concrete event type.
type eventHeader struct {
	Type EventType `json:"type"`
}
