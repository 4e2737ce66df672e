// Package emaillog records every outbound email attempt and the events
// that follow it: failures, bounces, opens and clicks, plus aggregate
// send statistics.
package emaillog

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a log entry does not exist.
var ErrNotFound = errors.New("email log not found")

// Log statuses.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusBounced = "bounced"
)

// Event types.
const (
	EventOpen   = "open"
	EventClick  = "click"
	EventBounce = "bounce"
)

// EmailLog is one outbound email attempt.
type EmailLog struct {
	ID          int64     `json:"id"`
	Recipients  string    `json:"recipients"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body,omitempty"`
	Headers     string    `json:"headers,omitempty"`
	Attachments string    `json:"attachments,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Opens       int       `json:"opens"`
	Clicks      int       `json:"clicks"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EmailEvent is a post-send occurrence tied to a log entry.
type EmailEvent struct {
	ID        int64     `json:"id"`
	LogID     int64     `json:"log_id"`
	Type      string    `json:"type"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats are the lifetime send counters. Successful is derived: a send
// counts as successful until a failure is recorded against it.
type Stats struct {
	TotalSent  int64 `json:"total_sent"`
	Failed     int64 `json:"failed"`
	Successful int64 `json:"successful"`
}

// LogFilter narrows a log query. Zero values mean "no constraint".
// From and To are calendar dates; the query expands them to the start
// and end of day.
type LogFilter struct {
	Search string
	Status string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// LogPage is one page of log entries plus the unpaginated total.
type LogPage struct {
	Logs  []EmailLog `json:"logs"`
	Total int        `json:"total"`
}
