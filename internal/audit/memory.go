package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// DefaultMaxEntries is the default maximum number of entries to keep.
const DefaultMaxEntries = 10000

// MemoryAuditLogger keeps entries in a slice, oldest first. When it grows
// past its limit the oldest entries are dropped.
type MemoryAuditLogger struct {
	mu         sync.RWMutex
	entries    []*Entry
	maxEntries int
	now        func() time.Time
}

// MemoryAuditLoggerOption configures a MemoryAuditLogger.
type MemoryAuditLoggerOption func(*MemoryAuditLogger)

// WithMaxEntries sets the maximum number of entries to keep.
func WithMaxEntries(max int) MemoryAuditLoggerOption {
	return func(m *MemoryAuditLogger) {
		if max > 0 {
			m.maxEntries = max
		}
	}
}

// WithClock overrides the time source used for unset timestamps.
func WithClock(now func() time.Time) MemoryAuditLoggerOption {
	return func(m *MemoryAuditLogger) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryAuditLogger creates a new in-memory audit logger.
func NewMemoryAuditLogger(opts ...MemoryAuditLoggerOption) *MemoryAuditLogger {
	m := &MemoryAuditLogger{
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Log records an entry.
func (m *MemoryAuditLogger) Log(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prepare(entry, uuid.NewString, m.now())
	cp := *entry
	m.entries = append(m.entries, &cp)
	if over := len(m.entries) - m.maxEntries; over > 0 {
		m.entries = append([]*Entry(nil), m.entries[over:]...)
	}
	return nil
}

// List returns one page of matching entries. The page token is the id of
// the last entry of the previous page.
func (m *MemoryAuditLogger) List(ctx context.Context, opts ListOptions) (domain.ResultsPage[Entry], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []*Entry
	for _, e := range m.entries {
		if opts.matches(e) {
			filtered = append(filtered, e)
		}
	}
	return domain.MapPage(domain.Paginate(filtered, opts.Page), func(e *Entry) Entry { return *e }), nil
}

// Len reports how many entries are held.
func (m *MemoryAuditLogger) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op.
func (m *MemoryAuditLogger) Close() error { return nil }

var (
	_ AuditLogger = (*MemoryAuditLogger)(nil)
	_ Pruner      = (*MemoryAuditLogger)(nil)
)

// DeleteOlderThan drops entries completed before the cutoff.
func (m *MemoryAuditLogger) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if !e.TimeCompleted.Before(before) {
			kept = append(kept, e)
		}
	}
	n := int64(len(m.entries) - len(kept))
	m.entries = kept
	return n, nil
}
