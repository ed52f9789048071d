package client

import (
	"context"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// Instance, disk and snapshot calls take the project as a selector. It may
// be empty when the resource itself is given by id.

func (c *Client) ListInstances(ctx context.Context, project string, opts PageOptions) (domain.ResultsPage[domain.Instance], error) {
	return ListPage[domain.Instance](ctx, c, "instance_list", Params{Query: selectors("project", project)}, opts)
}

func (c *Client) CreateInstance(ctx context.Context, project string, in domain.InstanceCreate) (*domain.Instance, error) {
	return call[domain.Instance](ctx, c, "instance_create", Params{Query: selectors("project", project)}, in)
}

func instanceParams(project, instance string) Params {
	return Params{Path: pathOf("instance", instance), Query: selectors("project", project)}
}

func (c *Client) GetInstance(ctx context.Context, project, instance string) (*domain.Instance, error) {
	return call[domain.Instance](ctx, c, "instance_view", instanceParams(project, instance), nil)
}

func (c *Client) UpdateInstance(ctx context.Context, project, instance string, in domain.InstanceUpdate) (*domain.Instance, error) {
	return call[domain.Instance](ctx, c, "instance_update", instanceParams(project, instance), in)
}

func (c *Client) DeleteInstance(ctx context.Context, project, instance string) error {
	return c.Do(ctx, "instance_delete", instanceParams(project, instance), nil, nil)
}

// StartInstance asks for the instance to start. The returned instance is
// in its transitional state.
func (c *Client) StartInstance(ctx context.Context, project, instance string) (*domain.Instance, error) {
	return call[domain.Instance](ctx, c, "instance_start", instanceParams(project, instance), nil)
}

func (c *Client) StopInstance(ctx context.Context, project, instance string) (*domain.Instance, error) {
	return call[domain.Instance](ctx, c, "instance_stop", instanceParams(project, instance), nil)
}

func (c *Client) RebootInstance(ctx context.Context, project, instance string) (*domain.Instance, error) {
	return call[domain.Instance](ctx, c, "instance_reboot", instanceParams(project, instance), nil)
}

func (c *Client) ListInstanceDisks(ctx context.Context, project, instance string, opts PageOptions) (domain.ResultsPage[domain.Disk], error) {
	return ListPage[domain.Disk](ctx, c, "instance_disk_list", instanceParams(project, instance), opts)
}

func (c *Client) AttachDisk(ctx context.Context, project, instance, disk string) (*domain.Disk, error) {
	return call[domain.Disk](ctx, c, "instance_disk_attach", instanceParams(project, instance), domain.DiskPath{Disk: disk})
}

func (c *Client) DetachDisk(ctx context.Context, project, instance, disk string) (*domain.Disk, error) {
	return call[domain.Disk](ctx, c, "instance_disk_detach", instanceParams(project, instance), domain.DiskPath{Disk: disk})
}

func (c *Client) ListDisks(ctx context.Context, project string, opts PageOptions) (domain.ResultsPage[domain.Disk], error) {
	return ListPage[domain.Disk](ctx, c, "disk_list", Params{Query: selectors("project", project)}, opts)
}

func (c *Client) CreateDisk(ctx context.Context, project string, in domain.DiskCreate) (*domain.Disk, error) {
	return call[domain.Disk](ctx, c, "disk_create", Params{Query: selectors("project", project)}, in)
}

func (c *Client) GetDisk(ctx context.Context, project, disk string) (*domain.Disk, error) {
	return call[domain.Disk](ctx, c, "disk_view", Params{Path: pathOf("disk", disk), Query: selectors("project", project)}, nil)
}

func (c *Client) DeleteDisk(ctx context.Context, project, disk string) error {
	return c.Do(ctx, "disk_delete", Params{Path: pathOf("disk", disk), Query: selectors("project", project)}, nil, nil)
}

func (c *Client) ListSnapshots(ctx context.Context, project string, opts PageOptions) (domain.ResultsPage[domain.Snapshot], error) {
	return ListPage[domain.Snapshot](ctx, c, "snapshot_list", Params{Query: selectors("project", project)}, opts)
}

func (c *Client) CreateSnapshot(ctx context.Context, project string, in domain.SnapshotCreate) (*domain.Snapshot, error) {
	return call[domain.Snapshot](ctx, c, "snapshot_create", Params{Query: selectors("project", project)}, in)
}

func (c *Client) GetSnapshot(ctx context.Context, project, snapshot string) (*domain.Snapshot, error) {
	return call[domain.Snapshot](ctx, c, "snapshot_view", Params{Path: pathOf("snapshot", snapshot), Query: selectors("project", project)}, nil)
}

func (c *Client) DeleteSnapshot(ctx context.Context, project, snapshot string) error {
	return c.Do(ctx, "snapshot_delete", Params{Path: pathOf("snapshot", snapshot), Query: selectors("project", project)}, nil, nil)
}
