package client

import (
	"context"
	"net/url"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

func call[T any](ctx context.Context, c *Client, op string, p Params, body any) (*T, error) {
	var out T
	if err := c.Do(ctx, op, p, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func pathOf(name, value string) map[string]string {
	return map[string]string{name: value}
}

// selectors builds a query of name/value pairs, leaving out empty values.
func selectors(kv ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q.Set(kv[i], kv[i+1])
		}
	}
	return q
}

func (c *Client) Ping(ctx context.Context) (*domain.Ping, error) {
	return call[domain.Ping](ctx, c, "ping", Params{}, nil)
}

// CurrentUser returns the acting user.
func (c *Client) CurrentUser(ctx context.Context) (*domain.CurrentUser, error) {
	return call[domain.CurrentUser](ctx, c, "current_user_view", Params{}, nil)
}

func (c *Client) ListUsers(ctx context.Context, opts PageOptions) (domain.ResultsPage[domain.User], error) {
	return ListPage[domain.User](ctx, c, "user_list", Params{}, opts)
}

// ListSshKeys lists the acting user's SSH keys.
func (c *Client) ListSshKeys(ctx context.Context, opts PageOptions) (domain.ResultsPage[domain.SshKey], error) {
	return ListPage[domain.SshKey](ctx, c, "current_user_ssh_key_list", Params{}, opts)
}

func (c *Client) CreateSshKey(ctx context.Context, in domain.SshKeyCreate) (*domain.SshKey, error) {
	return call[domain.SshKey](ctx, c, "current_user_ssh_key_create", Params{}, in)
}

func (c *Client) GetSshKey(ctx context.Context, key string) (*domain.SshKey, error) {
	return call[domain.SshKey](ctx, c, "current_user_ssh_key_view", Params{Path: pathOf("ssh_key", key)}, nil)
}

func (c *Client) DeleteSshKey(ctx context.Context, key string) error {
	return c.Do(ctx, "current_user_ssh_key_delete", Params{Path: pathOf("ssh_key", key)}, nil, nil)
}

// SiloPolicy returns the policy of the acting user's silo.
func (c *Client) SiloPolicy(ctx context.Context) (*domain.Policy, error) {
	return call[domain.Policy](ctx, c, "policy_view", Params{}, nil)
}

func (c *Client) UpdateSiloPolicy(ctx context.Context, policy domain.Policy) (*domain.Policy, error) {
	return call[domain.Policy](ctx, c, "policy_update", Params{}, policy)
}

func (c *Client) ListProjects(ctx context.Context, opts PageOptions) (domain.ResultsPage[domain.Project], error) {
	return ListPage[domain.Project](ctx, c, "project_list", Params{}, opts)
}

func (c *Client) CreateProject(ctx context.Context, in domain.ProjectCreate) (*domain.Project, error) {
	return call[domain.Project](ctx, c, "project_create", Params{}, in)
}

// GetProject looks a project up by name or id.
func (c *Client) GetProject(ctx context.Context, project string) (*domain.Project, error) {
	return call[domain.Project](ctx, c, "project_view", Params{Path: pathOf("project", project)}, nil)
}

func (c *Client) UpdateProject(ctx context.Context, project string, in domain.ProjectUpdate) (*domain.Project, error) {
	return call[domain.Project](ctx, c, "project_update", Params{Path: pathOf("project", project)}, in)
}

func (c *Client) DeleteProject(ctx context.Context, project string) error {
	return c.Do(ctx, "project_delete", Params{Path: pathOf("project", project)}, nil, nil)
}

func (c *Client) ProjectPolicy(ctx context.Context, project string) (*domain.Policy, error) {
	return call[domain.Policy](ctx, c, "project_policy_view", Params{Path: pathOf("project", project)}, nil)
}

func (c *Client) UpdateProjectPolicy(ctx context.Context, project string, policy domain.Policy) (*domain.Policy, error) {
	return call[domain.Policy](ctx, c, "project_policy_update", Params{Path: pathOf("project", project)}, policy)
}
