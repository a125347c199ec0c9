// Package analytics publishes one event per answered search to Kafka so
// that query patterns and fallback rates can be studied offline.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventFallback   EventType = "fallback"
	EventError      EventType = "error"
)

type SearchEvent struct {
	Type           EventType `json:"type"`
	Pattern        string    `json:"pattern"`
	Mode           string    `json:"mode"`
	Ngrams         int       `json:"ngrams"`
	Candidates     uint64    `json:"candidates"`
	TotalHits      int       `json:"total_hits"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	Error          string    `json:"error,omitempty"`
	CacheHit       bool      `json:"cache_hit"`
	LatencyMs      int64     `json:"latency_ms"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id,omitempty"`
}
