package client

import (
	"context"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

func (c *Client) ListVpcs(ctx context.Context, project string, opts PageOptions) (domain.ResultsPage[domain.Vpc], error) {
	return ListPage[domain.Vpc](ctx, c, "vpc_list", Params{Query: selectors("project", project)}, opts)
}

// CreateVpc creates a VPC along with its default subnet and firewall rules.
func (c *Client) CreateVpc(ctx context.Context, project string, in domain.VpcCreate) (*domain.Vpc, error) {
	return call[domain.Vpc](ctx, c, "vpc_create", Params{Query: selectors("project", project)}, in)
}

func vpcParams(project, vpc string) Params {
	return Params{Path: pathOf("vpc", vpc), Query: selectors("project", project)}
}

func (c *Client) GetVpc(ctx context.Context, project, vpc string) (*domain.Vpc, error) {
	return call[domain.Vpc](ctx, c, "vpc_view", vpcParams(project, vpc), nil)
}

func (c *Client) UpdateVpc(ctx context.Context, project, vpc string, in domain.VpcUpdate) (*domain.Vpc, error) {
	return call[domain.Vpc](ctx, c, "vpc_update", vpcParams(project, vpc), in)
}

func (c *Client) DeleteVpc(ctx context.Context, project, vpc string) error {
	return c.Do(ctx, "vpc_delete", vpcParams(project, vpc), nil, nil)
}

func (c *Client) ListVpcSubnets(ctx context.Context, project, vpc string, opts PageOptions) (domain.ResultsPage[domain.VpcSubnet], error) {
	return ListPage[domain.VpcSubnet](ctx, c, "vpc_subnet_list", Params{Query: selectors("project", project, "vpc", vpc)}, opts)
}

func (c *Client) CreateVpcSubnet(ctx context.Context, project, vpc string, in domain.VpcSubnetCreate) (*domain.VpcSubnet, error) {
	return call[domain.VpcSubnet](ctx, c, "vpc_subnet_create", Params{Query: selectors("project", project, "vpc", vpc)}, in)
}

func subnetParams(project, vpc, subnet string) Params {
	return Params{Path: pathOf("subnet", subnet), Query: selectors("project", project, "vpc", vpc)}
}

func (c *Client) GetVpcSubnet(ctx context.Context, project, vpc, subnet string) (*domain.VpcSubnet, error) {
	return call[domain.VpcSubnet](ctx, c, "vpc_subnet_view", subnetParams(project, vpc, subnet), nil)
}

func (c *Client) UpdateVpcSubnet(ctx context.Context, project, vpc, subnet string, in domain.VpcSubnetUpdate) (*domain.VpcSubnet, error) {
	return call[domain.VpcSubnet](ctx, c, "vpc_subnet_update", subnetParams(project, vpc, subnet), in)
}

func (c *Client) DeleteVpcSubnet(ctx context.Context, project, vpc, subnet string) error {
	return c.Do(ctx, "vpc_subnet_delete", subnetParams(project, vpc, subnet), nil, nil)
}

func (c *Client) FirewallRules(ctx context.Context, project, vpc string) (*domain.FirewallRules, error) {
	return call[domain.FirewallRules](ctx, c, "vpc_firewall_rules_view", Params{Query: selectors("project", project, "vpc", vpc)}, nil)
}

// UpdateFirewallRules replaces the VPC's whole rule set.
func (c *Client) UpdateFirewallRules(ctx context.Context, project, vpc string, in domain.FirewallRulesUpdate) (*domain.FirewallRules, error) {
	return call[domain.FirewallRules](ctx, c, "vpc_firewall_rules_update", Params{Query: selectors("project", project, "vpc", vpc)}, in)
}

func (c *Client) ListNetworkInterfaces(ctx context.Context, project, instance string, opts PageOptions) (domain.ResultsPage[domain.NetworkInterface], error) {
	return ListPage[domain.NetworkInterface](ctx, c, "instance_network_interface_list", Params{Query: selectors("project", project, "instance", instance)}, opts)
}

func (c *Client) CreateNetworkInterface(ctx context.Context, project, instance string, in domain.NetworkInterfaceCreate) (*domain.NetworkInterface, error) {
	return call[domain.NetworkInterface](ctx, c, "instance_network_interface_create", Params{Query: selectors("project", project, "instance", instance)}, in)
}

func nicParams(project, instance, nic string) Params {
	return Params{Path: pathOf("interface", nic), Query: selectors("project", project, "instance", instance)}
}

func (c *Client) GetNetworkInterface(ctx context.Context, project, instance, nic string) (*domain.NetworkInterface, error) {
	return call[domain.NetworkInterface](ctx, c, "instance_network_interface_view", nicParams(project, instance, nic), nil)
}

func (c *Client) UpdateNetworkInterface(ctx context.Context, project, instance, nic string, in domain.NetworkInterfaceUpdate) (*domain.NetworkInterface, error) {
	return call[domain.NetworkInterface](ctx, c, "instance_network_interface_update", nicParams(project, instance, nic), in)
}

func (c *Client) DeleteNetworkInterface(ctx context.Context, project, instance, nic string) error {
	return c.Do(ctx, "instance_network_interface_delete", nicParams(project, instance, nic), nil, nil)
}
