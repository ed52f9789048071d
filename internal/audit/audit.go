// Package audit records one entry per mutating API request and serves them
// back as the system audit log.
package audit

import (
	"context"
	"time"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// Actor kinds.
const (
	ActorSiloUser        = "silo_user"
	ActorUnauthenticated = "unauthenticated"
)

// Result kinds.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultUnknown = "unknown"
)

// Auth methods.
const (
	AuthSessionCookie = "session_cookie"
	AuthAccessToken   = "access_token"
)

// Actor identifies who made a request.
type Actor struct {
	Kind       string `json:"kind"`
	SiloID     string `json:"silo_id,omitempty"`
	SiloUserID string `json:"silo_user_id,omitempty"`
}

// Result is the outcome of an audited operation.
type Result struct {
	Kind           string `json:"kind"`
	HTTPStatusCode int    `json:"http_status_code,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// NewResult builds a Result from an HTTP status. Statuses of 400 and up are
// errors and carry the error code and message of the response.
func NewResult(status int, errorCode, message string) Result {
	if status >= 400 {
		return Result{Kind: ResultError, HTTPStatusCode: status, ErrorCode: errorCode, ErrorMessage: message}
	}
	return Result{Kind: ResultSuccess, HTTPStatusCode: status}
}

// Entry is one audit log record.
type Entry struct {
	ID            string    `json:"id"`
	OperationID   string    `json:"operation_id"`
	RequestID     string    `json:"request_id"`
	RequestURI    string    `json:"request_uri"`
	SourceIP      string    `json:"source_ip"`
	UserAgent     string    `json:"user_agent,omitempty"`
	AuthMethod    string    `json:"auth_method,omitempty"`
	Actor         Actor     `json:"actor"`
	Result        Result    `json:"result"`
	TimeStarted   time.Time `json:"time_started"`
	TimeCompleted time.Time `json:"time_completed"`
}

// RecordID returns the entry identifier, which doubles as the page cursor.
func (e Entry) RecordID() string { return e.ID }

// Field length limits applied on Log.
const (
	MaxRequestURILength = 512
	MaxUserAgentLength  = 256
)

// ListOptions filters and pages the audit log. StartTime is inclusive and
// EndTime exclusive, both compared against TimeCompleted.
type ListOptions struct {
	StartTime   *time.Time
	EndTime     *time.Time
	OperationID string
	Page        domain.PageParams
}

// AuditLogger persists and lists audit entries in completion order.
type AuditLogger interface {
	// Log records an entry, assigning an ID and timestamps when unset.
	Log(ctx context.Context, entry *Entry) error

	// List returns one page of entries matching opts, oldest first.
	List(ctx context.Context, opts ListOptions) (domain.ResultsPage[Entry], error)

	// Close releases any resources held by the logger.
	Close() error
}

// prepare fills the generated fields of e and applies length limits.
func prepare(e *Entry, newID func() string, now time.Time) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.TimeCompleted.IsZero() {
		e.TimeCompleted = now
	}
	if e.TimeStarted.IsZero() {
		e.TimeStarted = e.TimeCompleted
	}
	e.TimeStarted = e.TimeStarted.UTC()
	e.TimeCompleted = e.TimeCompleted.UTC()
	if e.Actor.Kind == "" {
		e.Actor.Kind = ActorUnauthenticated
	}
	if e.Result.Kind == "" {
		e.Result.Kind = ResultUnknown
	}
	e.RequestURI = truncate(e.RequestURI, MaxRequestURILength)
	e.UserAgent = truncate(e.UserAgent, MaxUserAgentLength)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (o ListOptions) matches(e *Entry) bool {
	if o.OperationID != "" && e.OperationID != o.OperationID {
		return false
	}
	if o.StartTime != nil && e.TimeCompleted.Before(*o.StartTime) {
		return false
	}
	if o.EndTime != nil && !e.TimeCompleted.Before(*o.EndTime) {
		return false
	}
	return true
}

func pageLimit(p domain.PageParams) int {
	if p.Limit <= 0 {
		return domain.DefaultPageLimit
	}
	return p.Limit
}

// migration is one versioned schema step of a SQL backend.
type migration struct {
	version int
	name    string
	stmt    string
}

// pageOf trims a result fetched with limit+1 rows to a page. NextPage is
// set only when the extra row proves more entries follow.
func pageOf(items []Entry, limit int) domain.ResultsPage[Entry] {
	if items == nil {
		items = []Entry{}
	}
	if len(items) <= limit {
		return domain.ResultsPage[Entry]{Items: items}
	}
	items = items[:limit]
	next := items[limit-1].ID
	return domain.ResultsPage[Entry]{Items: items, NextPage: &next}
}
