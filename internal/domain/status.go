package domain

import "time"

// Classification is the health taxonomy surfaced to consumers.
type Classification string

const (
	ClassOK       Classification = "ok"
	ClassDegraded Classification = "degraded" // reachable but stale or lagging
	ClassDown     Classification = "down"
	ClassUnknown  Classification = "unknown" // insufficient data
)

// ErrorKind classifies probe and persistence failures.
type ErrorKind string

const (
	ErrTimeout     ErrorKind = "timeout"
	ErrConnection  ErrorKind = "connection_error"
	ErrHTTP        ErrorKind = "http_error"
	ErrParse       ErrorKind = "parse_error"
	ErrPersistence ErrorKind = "persistence_error"
	ErrUnknown     ErrorKind = "unknown_error"
)

// Check is one historical probe record. Append-only, never mutated.
type Check struct {
	ID          int64      `json:"id,omitempty"`
	EndpointID  EndpointID `json:"endpoint_id"`
	Success     bool       `json:"success"`
	HTTPStatus  *int       `json:"http_status"`
	LatencyMS   float64    `json:"latency_ms"`
	BlockHeight *int64     `json:"block_height"`
	BlockTime   *time.Time `json:"block_time"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty"`
	ErrorDetail string     `json:"error_detail,omitempty"`
	CheckedAt   time.Time  `json:"checked_at"`
}

// EndpointStatus is the current summary: exactly one row per endpoint,
// upserted after every check. It always reflects the newest Check.
type EndpointStatus struct {
	EndpointID     EndpointID     `json:"endpoint_id"`
	Classification Classification `json:"classification"`
	Success        bool           `json:"success"`
	HTTPStatus     *int           `json:"http_status"`
	LatencyMS      float64        `json:"latency_ms"`
	BlockHeight    *int64         `json:"block_height"`
	BlockTime      *time.Time     `json:"block_time"`
	BlockDelay     *int64         `json:"block_delay"`
	Stale          bool           `json:"is_stale"`
	ErrorKind      ErrorKind      `json:"error_kind,omitempty"`
	ErrorDetail    string         `json:"error_detail,omitempty"`
	CheckedAt      time.Time      `json:"last_checked"`
}
