package client

import (
	"context"
	"time"

	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// Reset restores the server's fixture state.
func (c *Client) Reset(ctx context.Context) error {
	return c.Do(ctx, "reset", Params{}, nil, nil)
}

// ExportState returns the server's live state as a fixture YAML document.
func (c *Client) ExportState(ctx context.Context) ([]byte, error) {
	return c.send(ctx, "state_export", Params{}, nil)
}

func (c *Client) ListIpPools(ctx context.Context, opts PageOptions) (domain.ResultsPage[domain.IpPool], error) {
	return ListPage[domain.IpPool](ctx, c, "ip_pool_list", Params{}, opts)
}

func (c *Client) CreateIpPool(ctx context.Context, in domain.IpPoolCreate) (*domain.IpPool, error) {
	return call[domain.IpPool](ctx, c, "ip_pool_create", Params{}, in)
}

func (c *Client) GetIpPool(ctx context.Context, pool string) (*domain.IpPool, error) {
	return call[domain.IpPool](ctx, c, "ip_pool_view", Params{Path: pathOf("pool", pool)}, nil)
}

func (c *Client) UpdateIpPool(ctx context.Context, pool string, in domain.IpPoolUpdate) (*domain.IpPool, error) {
	return call[domain.IpPool](ctx, c, "ip_pool_update", Params{Path: pathOf("pool", pool)}, in)
}

func (c *Client) DeleteIpPool(ctx context.Context, pool string) error {
	return c.Do(ctx, "ip_pool_delete", Params{Path: pathOf("pool", pool)}, nil, nil)
}

func (c *Client) ListIpPoolRanges(ctx context.Context, pool string, opts PageOptions) (domain.ResultsPage[domain.IpPoolRange], error) {
	return ListPage[domain.IpPoolRange](ctx, c, "ip_pool_range_list", Params{Path: pathOf("pool", pool)}, opts)
}

func (c *Client) AddIpPoolRange(ctx context.Context, pool string, rng domain.IpRange) (*domain.IpPoolRange, error) {
	return call[domain.IpPoolRange](ctx, c, "ip_pool_range_add", Params{Path: pathOf("pool", pool)}, rng)
}

func (c *Client) RemoveIpPoolRange(ctx context.Context, pool string, rng domain.IpRange) error {
	return c.Do(ctx, "ip_pool_range_remove", Params{Path: pathOf("pool", pool)}, rng, nil)
}

func (c *Client) ListSilos(ctx context.Context, opts PageOptions) (domain.ResultsPage[domain.Silo], error) {
	return ListPage[domain.Silo](ctx, c, "silo_list", Params{}, opts)
}

func (c *Client) CreateSilo(ctx context.Context, in domain.SiloCreate) (*domain.Silo, error) {
	return call[domain.Silo](ctx, c, "silo_create", Params{}, in)
}

func (c *Client) GetSilo(ctx context.Context, silo string) (*domain.Silo, error) {
	return call[domain.Silo](ctx, c, "silo_view", Params{Path: pathOf("silo", silo)}, nil)
}

func (c *Client) DeleteSilo(ctx context.Context, silo string) error {
	return c.Do(ctx, "silo_delete", Params{Path: pathOf("silo", silo)}, nil, nil)
}

func (c *Client) ListSleds(ctx context.Context, opts PageOptions) (domain.ResultsPage[domain.Sled], error) {
	return ListPage[domain.Sled](ctx, c, "sled_list", Params{}, opts)
}

// GetSled looks a sled up by id; sleds have no names.
func (c *Client) GetSled(ctx context.Context, id string) (*domain.Sled, error) {
	return call[domain.Sled](ctx, c, "sled_view", Params{Path: pathOf("sled_id", id)}, nil)
}

// AuditLogQuery filters the audit log. StartTime is inclusive, EndTime
// exclusive.
type AuditLogQuery struct {
	StartTime   *time.Time
	EndTime     *time.Time
	OperationID string
}

func (q AuditLogQuery) params() Params {
	p := Params{Query: selectors("operation_id", q.OperationID)}
	if q.StartTime != nil {
		p.Query.Set("start_time", q.StartTime.UTC().Format(time.RFC3339Nano))
	}
	if q.EndTime != nil {
		p.Query.Set("end_time", q.EndTime.UTC().Format(time.RFC3339Nano))
	}
	return p
}

func (c *Client) ListAuditLog(ctx context.Context, q AuditLogQuery, opts PageOptions) (domain.ResultsPage[audit.Entry], error) {
	return ListPage[audit.Entry](ctx, c, "audit_log_list", q.params(), opts)
}

// AuditLog collects every matching audit entry, oldest first.
func (c *Client) AuditLog(ctx context.Context, q AuditLogQuery) ([]audit.Entry, error) {
	return ListAll[audit.Entry](ctx, c, "audit_log_list", q.params())
}
