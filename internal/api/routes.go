package api

import (
	"fmt"
	"net/http"
)

// RegisterRoutes registers every API route, the harness control endpoint
// and the ops endpoints.
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
	s.handle("POST /__mock/reset", "reset", s.handleReset)
	s.handle("GET /__mock/state", "state_export", s.handleStateExport)

	s.handle("GET /v1/ping", "ping", s.handlePing)
	s.handle("GET /v1/me", "current_user_view", s.handleCurrentUserView)
	s.handle("GET /v1/users", "user_list", s.handleUserList)

	s.handle("GET /v1/me/ssh-keys", "current_user_ssh_key_list", s.handleSshKeyList)
	s.handle("POST /v1/me/ssh-keys", "current_user_ssh_key_create", s.handleSshKeyCreate)
	s.handle("GET /v1/me/ssh-keys/{ssh_key}", "current_user_ssh_key_view", s.handleSshKeyView)
	s.handle("DELETE /v1/me/ssh-keys/{ssh_key}", "current_user_ssh_key_delete", s.handleSshKeyDelete)

	s.handle("GET /v1/policy", "policy_view", s.handleSiloPolicyView)
	s.handle("PUT /v1/policy", "policy_update", s.handleSiloPolicyUpdate)

	s.handle("GET /v1/projects", "project_list", s.handleProjectList)
	s.handle("POST /v1/projects", "project_create", s.handleProjectCreate)
	s.handle("GET /v1/projects/{project}", "project_view", s.handleProjectView)
	s.handle("PUT /v1/projects/{project}", "project_update", s.handleProjectUpdate)
	s.handle("DELETE /v1/projects/{project}", "project_delete", s.handleProjectDelete)
	s.handle("GET /v1/projects/{project}/policy", "project_policy_view", s.handleProjectPolicyView)
	s.handle("PUT /v1/projects/{project}/policy", "project_policy_update", s.handleProjectPolicyUpdate)

	s.handle("GET /v1/instances", "instance_list", s.handleInstanceList)
	s.handle("POST /v1/instances", "instance_create", s.handleInstanceCreate)
	s.handle("GET /v1/instances/{instance}", "instance_view", s.handleInstanceView)
	s.handle("PUT /v1/instances/{instance}", "instance_update", s.handleInstanceUpdate)
	s.handle("DELETE /v1/instances/{instance}", "instance_delete", s.handleInstanceDelete)
	s.handle("POST /v1/instances/{instance}/start", "instance_start", s.instanceAction(s.store.StartInstance))
	s.handle("POST /v1/instances/{instance}/stop", "instance_stop", s.instanceAction(s.store.StopInstance))
	s.handle("POST /v1/instances/{instance}/reboot", "instance_reboot", s.instanceAction(s.store.RebootInstance))
	s.handle("GET /v1/instances/{instance}/disks", "instance_disk_list", s.handleInstanceDiskList)
	s.handle("POST /v1/instances/{instance}/disks/attach", "instance_disk_attach", s.instanceDiskAction(s.store.AttachDisk))
	s.handle("POST /v1/instances/{instance}/disks/detach", "instance_disk_detach", s.instanceDiskAction(s.store.DetachDisk))
	s.handle("GET /v1/instances/{instance}/serial-console/stream", "instance_serial_console_stream", s.handleInstanceSerialConsoleStream)

	s.handle("GET /v1/disks", "disk_list", s.handleDiskList)
	s.handle("POST /v1/disks", "disk_create", s.handleDiskCreate)
	s.handle("GET /v1/disks/{disk}", "disk_view", s.handleDiskView)
	s.handle("DELETE /v1/disks/{disk}", "disk_delete", s.handleDiskDelete)

	s.handle("GET /v1/snapshots", "snapshot_list", s.handleSnapshotList)
	s.handle("POST /v1/snapshots", "snapshot_create", s.handleSnapshotCreate)
	s.handle("GET /v1/snapshots/{snapshot}", "snapshot_view", s.handleSnapshotView)
	s.handle("DELETE /v1/snapshots/{snapshot}", "snapshot_delete", s.handleSnapshotDelete)

	s.handle("GET /v1/vpcs", "vpc_list", s.handleVpcList)
	s.handle("POST /v1/vpcs", "vpc_create", s.handleVpcCreate)
	s.handle("GET /v1/vpcs/{vpc}", "vpc_view", s.handleVpcView)
	s.handle("PUT /v1/vpcs/{vpc}", "vpc_update", s.handleVpcUpdate)
	s.handle("DELETE /v1/vpcs/{vpc}", "vpc_delete", s.handleVpcDelete)

	s.handle("GET /v1/vpc-subnets", "vpc_subnet_list", s.handleSubnetList)
	s.handle("POST /v1/vpc-subnets", "vpc_subnet_create", s.handleSubnetCreate)
	s.handle("GET /v1/vpc-subnets/{subnet}", "vpc_subnet_view", s.handleSubnetView)
	s.handle("PUT /v1/vpc-subnets/{subnet}", "vpc_subnet_update", s.handleSubnetUpdate)
	s.handle("DELETE /v1/vpc-subnets/{subnet}", "vpc_subnet_delete", s.handleSubnetDelete)

	s.handle("GET /v1/vpc-firewall-rules", "vpc_firewall_rules_view", s.handleFirewallRulesView)
	s.handle("PUT /v1/vpc-firewall-rules", "vpc_firewall_rules_update", s.handleFirewallRulesUpdate)

	s.handle("GET /v1/network-interfaces", "instance_network_interface_list", s.handleNetworkInterfaceList)
	s.handle("POST /v1/network-interfaces", "instance_network_interface_create", s.handleNetworkInterfaceCreate)
	s.handle("GET /v1/network-interfaces/{interface}", "instance_network_interface_view", s.handleNetworkInterfaceView)
	s.handle("PUT /v1/network-interfaces/{interface}", "instance_network_interface_update", s.handleNetworkInterfaceUpdate)
	s.handle("DELETE /v1/network-interfaces/{interface}", "instance_network_interface_delete", s.handleNetworkInterfaceDelete)

	s.handle("GET /v1/system/ip-pools", "ip_pool_list", s.handleIpPoolList)
	s.handle("POST /v1/system/ip-pools", "ip_pool_create", s.handleIpPoolCreate)
	s.handle("GET /v1/system/ip-pools/{pool}", "ip_pool_view", s.handleIpPoolView)
	s.handle("PUT /v1/system/ip-pools/{pool}", "ip_pool_update", s.handleIpPoolUpdate)
	s.handle("DELETE /v1/system/ip-pools/{pool}", "ip_pool_delete", s.handleIpPoolDelete)
	s.handle("GET /v1/system/ip-pools/{pool}/ranges", "ip_pool_range_list", s.handleIpPoolRangeList)
	s.handle("POST /v1/system/ip-pools/{pool}/ranges/add", "ip_pool_range_add", s.handleIpPoolRangeAdd)
	s.handle("POST /v1/system/ip-pools/{pool}/ranges/remove", "ip_pool_range_remove", s.handleIpPoolRangeRemove)

	s.handle("GET /v1/system/silos", "silo_list", s.handleSiloList)
	s.handle("POST /v1/system/silos", "silo_create", s.handleSiloCreate)
	s.handle("GET /v1/system/silos/{silo}", "silo_view", s.handleSiloView)
	s.handle("DELETE /v1/system/silos/{silo}", "silo_delete", s.handleSiloDelete)

	s.handle("GET /v1/system/hardware/sleds", "sled_list", s.handleSledList)
	s.handle("GET /v1/system/hardware/sleds/{sled_id}", "sled_view", s.handleSledView)

	s.handle("GET /v1/system/audit-log", "audit_log_list", s.handleAuditLogList)
	s.handle("GET /v1/system/update/repositories", "system_update_repository_list", s.handleNotImplemented)

	s.mux.HandleFunc("/", s.handleUnknownRoute)
}

func (s *Server) handleUnknownRoute(w http.ResponseWriter, r *http.Request) {
	s.writeErr(r.Context(), w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}
