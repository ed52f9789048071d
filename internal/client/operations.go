package client

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/oxidecomputer/console-sub002/internal/wire"
)

// Operation is one entry of the API's operation table.
type Operation struct {
	ID     string
	Method string
	// Path is a template; {name} segments are filled from Params.Path.
	Path string
	// Request and Response name the wire entities of the body and the
	// response document. Empty means there is none.
	Request  string
	Response string
}

func op(id, method, path, request, response string) Operation {
	return Operation{ID: id, Method: method, Path: path, Request: request, Response: response}
}

var operations = map[string]Operation{}

func init() {
	for _, o := range []Operation{
		op("reset", http.MethodPost, "/__mock/reset", "", ""),
		op("state_export", http.MethodGet, "/__mock/state", "", ""),

		op("ping", http.MethodGet, "/v1/ping", "", "ping"),
		op("current_user_view", http.MethodGet, "/v1/me", "", "current_user"),
		op("user_list", http.MethodGet, "/v1/users", "", wire.PageOf("user")),

		op("current_user_ssh_key_list", http.MethodGet, "/v1/me/ssh-keys", "", wire.PageOf("ssh_key")),
		op("current_user_ssh_key_create", http.MethodPost, "/v1/me/ssh-keys", "ssh_key_create", "ssh_key"),
		op("current_user_ssh_key_view", http.MethodGet, "/v1/me/ssh-keys/{ssh_key}", "", "ssh_key"),
		op("current_user_ssh_key_delete", http.MethodDelete, "/v1/me/ssh-keys/{ssh_key}", "", ""),

		op("policy_view", http.MethodGet, "/v1/policy", "", "policy"),
		op("policy_update", http.MethodPut, "/v1/policy", "policy", "policy"),

		op("project_list", http.MethodGet, "/v1/projects", "", wire.PageOf("project")),
		op("project_create", http.MethodPost, "/v1/projects", "project_create", "project"),
		op("project_view", http.MethodGet, "/v1/projects/{project}", "", "project"),
		op("project_update", http.MethodPut, "/v1/projects/{project}", "project_update", "project"),
		op("project_delete", http.MethodDelete, "/v1/projects/{project}", "", ""),
		op("project_policy_view", http.MethodGet, "/v1/projects/{project}/policy", "", "policy"),
		op("project_policy_update", http.MethodPut, "/v1/projects/{project}/policy", "policy", "policy"),

		op("instance_list", http.MethodGet, "/v1/instances", "", wire.PageOf("instance")),
		op("instance_create", http.MethodPost, "/v1/instances", "instance_create", "instance"),
		op("instance_view", http.MethodGet, "/v1/instances/{instance}", "", "instance"),
		op("instance_update", http.MethodPut, "/v1/instances/{instance}", "instance_update", "instance"),
		op("instance_delete", http.MethodDelete, "/v1/instances/{instance}", "", ""),
		op("instance_start", http.MethodPost, "/v1/instances/{instance}/start", "", "instance"),
		op("instance_stop", http.MethodPost, "/v1/instances/{instance}/stop", "", "instance"),
		op("instance_reboot", http.MethodPost, "/v1/instances/{instance}/reboot", "", "instance"),
		op("instance_disk_list", http.MethodGet, "/v1/instances/{instance}/disks", "", wire.PageOf("disk")),
		op("instance_disk_attach", http.MethodPost, "/v1/instances/{instance}/disks/attach", "disk_path", "disk"),
		op("instance_disk_detach", http.MethodPost, "/v1/instances/{instance}/disks/detach", "disk_path", "disk"),
		op("instance_serial_console_stream", http.MethodGet, "/v1/instances/{instance}/serial-console/stream", "", ""),

		op("disk_list", http.MethodGet, "/v1/disks", "", wire.PageOf("disk")),
		op("disk_create", http.MethodPost, "/v1/disks", "disk_create", "disk"),
		op("disk_view", http.MethodGet, "/v1/disks/{disk}", "", "disk"),
		op("disk_delete", http.MethodDelete, "/v1/disks/{disk}", "", ""),

		op("snapshot_list", http.MethodGet, "/v1/snapshots", "", wire.PageOf("snapshot")),
		op("snapshot_create", http.MethodPost, "/v1/snapshots", "snapshot_create", "snapshot"),
		op("snapshot_view", http.MethodGet, "/v1/snapshots/{snapshot}", "", "snapshot"),
		op("snapshot_delete", http.MethodDelete, "/v1/snapshots/{snapshot}", "", ""),

		op("vpc_list", http.MethodGet, "/v1/vpcs", "", wire.PageOf("vpc")),
		op("vpc_create", http.MethodPost, "/v1/vpcs", "vpc_create", "vpc"),
		op("vpc_view", http.MethodGet, "/v1/vpcs/{vpc}", "", "vpc"),
		op("vpc_update", http.MethodPut, "/v1/vpcs/{vpc}", "vpc_update", "vpc"),
		op("vpc_delete", http.MethodDelete, "/v1/vpcs/{vpc}", "", ""),

		op("vpc_subnet_list", http.MethodGet, "/v1/vpc-subnets", "", wire.PageOf("vpc_subnet")),
		op("vpc_subnet_create", http.MethodPost, "/v1/vpc-subnets", "vpc_subnet_create", "vpc_subnet"),
		op("vpc_subnet_view", http.MethodGet, "/v1/vpc-subnets/{subnet}", "", "vpc_subnet"),
		op("vpc_subnet_update", http.MethodPut, "/v1/vpc-subnets/{subnet}", "vpc_subnet_update", "vpc_subnet"),
		op("vpc_subnet_delete", http.MethodDelete, "/v1/vpc-subnets/{subnet}", "", ""),

		op("vpc_firewall_rules_view", http.MethodGet, "/v1/vpc-firewall-rules", "", "firewall_rules"),
		op("vpc_firewall_rules_update", http.MethodPut, "/v1/vpc-firewall-rules", "firewall_rules_update", "firewall_rules"),

		op("instance_network_interface_list", http.MethodGet, "/v1/network-interfaces", "", wire.PageOf("network_interface")),
		op("instance_network_interface_create", http.MethodPost, "/v1/network-interfaces", "network_interface_create", "network_interface"),
		op("instance_network_interface_view", http.MethodGet, "/v1/network-interfaces/{interface}", "", "network_interface"),
		op("instance_network_interface_update", http.MethodPut, "/v1/network-interfaces/{interface}", "network_interface_update", "network_interface"),
		op("instance_network_interface_delete", http.MethodDelete, "/v1/network-interfaces/{interface}", "", ""),

		op("ip_pool_list", http.MethodGet, "/v1/system/ip-pools", "", wire.PageOf("ip_pool")),
		op("ip_pool_create", http.MethodPost, "/v1/system/ip-pools", "ip_pool_create", "ip_pool"),
		op("ip_pool_view", http.MethodGet, "/v1/system/ip-pools/{pool}", "", "ip_pool"),
		op("ip_pool_update", http.MethodPut, "/v1/system/ip-pools/{pool}", "ip_pool_update", "ip_pool"),
		op("ip_pool_delete", http.MethodDelete, "/v1/system/ip-pools/{pool}", "", ""),
		op("ip_pool_range_list", http.MethodGet, "/v1/system/ip-pools/{pool}/ranges", "", wire.PageOf("ip_pool_range")),
		op("ip_pool_range_add", http.MethodPost, "/v1/system/ip-pools/{pool}/ranges/add", "ip_range", "ip_pool_range"),
		op("ip_pool_range_remove", http.MethodPost, "/v1/system/ip-pools/{pool}/ranges/remove", "ip_range", ""),

		op("silo_list", http.MethodGet, "/v1/system/silos", "", wire.PageOf("silo")),
		op("silo_create", http.MethodPost, "/v1/system/silos", "silo_create", "silo"),
		op("silo_view", http.MethodGet, "/v1/system/silos/{silo}", "", "silo"),
		op("silo_delete", http.MethodDelete, "/v1/system/silos/{silo}", "", ""),

		op("sled_list", http.MethodGet, "/v1/system/hardware/sleds", "", wire.PageOf("sled")),
		op("sled_view", http.MethodGet, "/v1/system/hardware/sleds/{sled_id}", "", "sled"),

		op("audit_log_list", http.MethodGet, "/v1/system/audit-log", "", wire.PageOf("audit_entry")),
		op("system_update_repository_list", http.MethodGet, "/v1/system/update/repositories", "", ""),
	} {
		if _, dup := operations[o.ID]; dup {
			panic("client: duplicate operation " + o.ID)
		}
		operations[o.ID] = o
	}
}

// LookupOperation returns the operation with the given id.
func LookupOperation(id string) (Operation, bool) {
	o, ok := operations[id]
	return o, ok
}

// Operations returns the whole table, sorted by id.
func Operations() []Operation {
	out := make([]Operation, 0, len(operations))
	for _, o := range operations {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PathParams lists the names of the template's {param} segments in order.
func (o Operation) PathParams() []string {
	var out []string
	for _, seg := range strings.Split(o.Path, "/") {
		if name, ok := strings.CutPrefix(seg, "{"); ok {
			out = append(out, strings.TrimSuffix(name, "}"))
		}
	}
	return out
}

// FillPath substitutes path parameters into the template, escaping each
// value. Every parameter must be present and non-empty.
func (o Operation) FillPath(params map[string]string) (string, error) {
	segs := strings.Split(o.Path, "/")
	for i, seg := range segs {
		name, ok := strings.CutPrefix(seg, "{")
		if !ok {
			continue
		}
		name = strings.TrimSuffix(name, "}")
		v := params[name]
		if v == "" {
			return "", fmt.Errorf("%s: missing path parameter %q", o.ID, name)
		}
		segs[i] = url.PathEscape(v)
	}
	return strings.Join(segs, "/"), nil
}
