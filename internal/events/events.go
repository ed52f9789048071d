// Package events publishes a notification for every successful mutation so
// observers can follow the mock's state without polling.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/oxidecomputer/console-sub002/internal/observability"
)

// DefaultSubjectPrefix is prepended to every subject.
const DefaultSubjectPrefix = "mockapi"

// Event describes one completed mutation.
type Event struct {
	OperationID string    `json:"operation_id"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	ResourceID  string    `json:"resource_id,omitempty"`
	Name        string    `json:"name,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	Time        time.Time `json:"time"`
}

// New builds an Event from an operation id such as "disk_create" or
// "instance_network_interface_delete". The last segment is the action.
func New(operationID string) Event {
	resource, action := operationID, ""
	if i := strings.LastIndexByte(operationID, '_'); i > 0 {
		resource, action = operationID[:i], operationID[i+1:]
	}
	return Event{OperationID: operationID, Resource: resource, Action: action, Time: time.Now().UTC()}
}

// Subject returns the NATS subject for e under prefix, e.g.
// "mockapi.disk.create".
func (e Event) Subject(prefix string) string {
	parts := []string{prefix, e.Resource}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	return strings.Join(parts, ".")
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish appends e.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Close is a no-op.
func (r *Recorder) Close() error { return nil }

// ErrNotConnected is returned when publishing on a closed connection.
var ErrNotConnected = errors.New("nats not connected")

// NATSPublisher publishes events as JSON on a NATS connection.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher connects to url. Reconnects are retried forever once
// the first connection succeeded.
func NewNATSPublisher(url, prefix string, logger observability.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	logger = logger.WithComponent("events")
	nc, err := nats.Connect(url,
		nats.Name("mockapi"),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

// Publish sends e on its subject.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if p.nc == nil || p.nc.IsClosed() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.nc.Publish(e.Subject(p.prefix), payload)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

// Subscribe delivers every event under prefix to fn until ctx is cancelled.
func Subscribe(ctx context.Context, url, prefix string, fn func(subject string, e Event)) error {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	nc, err := nats.Connect(url, nats.Name("mockctl"), nats.Timeout(2*time.Second))
	if err != nil {
		return fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	defer nc.Close()

	sub, err := nc.Subscribe(prefix+".>", func(msg *nats.Msg) {
		var e Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return
		}
		fn(msg.Subject, e)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s.>: %w", prefix, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	<-ctx.Done()
	return nil
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*Recorder)(nil)
	_ Publisher = (*NATSPublisher)(nil)
)
