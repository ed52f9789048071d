package wire

func pair(snake, camel string) Field { return Field{Snake: snake, Camel: camel} }

func nested(snake, camel, entity string) Field {
	return Field{Snake: snake, Camel: camel, Nested: entity}
}

// same is a field whose wire and console names agree.
func same(name string) Field { return Field{Snake: name, Camel: name} }

func identity(extra ...Field) []Field {
	return append([]Field{
		same("id"),
		same("name"),
		same("description"),
		pair("time_created", "timeCreated"),
		pair("time_modified", "timeModified"),
	}, extra...)
}

func nameDescription(extra ...Field) []Field {
	return append([]Field{same("name"), same("description")}, extra...)
}

var tables = map[string]*Table{}

func register(entity string, fields ...Field) {
	tables[entity] = newTable(entity, fields...)
}

func init() {
	// Resources.
	register("project", identity()...)
	register("instance", identity(
		pair("project_id", "projectId"),
		same("hostname"),
		same("memory"),
		same("ncpus"),
		pair("run_state", "runState"),
		pair("time_run_state_updated", "timeRunStateUpdated"),
		pair("boot_disk_id", "bootDiskId"),
		pair("auto_restart_enabled", "autoRestartEnabled"),
	)...)
	register("disk_state", same("state"), same("instance"))
	register("disk", identity(
		pair("project_id", "projectId"),
		same("size"),
		pair("block_size", "blockSize"),
		nested("state", "state", "disk_state"),
		pair("device_path", "devicePath"),
		pair("snapshot_id", "snapshotId"),
		pair("image_id", "imageId"),
	)...)
	register("snapshot", identity(
		pair("project_id", "projectId"),
		pair("disk_id", "diskId"),
		same("size"),
		same("state"),
	)...)
	register("vpc", identity(
		pair("project_id", "projectId"),
		pair("dns_name", "dnsName"),
		pair("ipv6_prefix", "ipv6Prefix"),
		pair("system_router_id", "systemRouterId"),
	)...)
	register("vpc_subnet", identity(
		pair("vpc_id", "vpcId"),
		pair("ipv4_block", "ipv4Block"),
		pair("ipv6_block", "ipv6Block"),
		pair("custom_router_id", "customRouterId"),
	)...)
	register("firewall_target", same("type"), same("value"))
	register("firewall_filter",
		nested("hosts", "hosts", "firewall_target"),
		same("protocols"),
		same("ports"),
	)
	register("firewall_rule", identity(
		pair("vpc_id", "vpcId"),
		same("status"),
		same("direction"),
		same("action"),
		same("priority"),
		nested("targets", "targets", "firewall_target"),
		nested("filters", "filters", "firewall_filter"),
	)...)
	register("firewall_rules", nested("rules", "rules", "firewall_rule"))
	register("network_interface", identity(
		pair("instance_id", "instanceId"),
		pair("vpc_id", "vpcId"),
		pair("subnet_id", "subnetId"),
		same("ip"),
		same("mac"),
		same("primary"),
	)...)
	register("ip_pool", identity()...)
	register("ip_range", same("first"), same("last"))
	register("ip_pool_range",
		same("id"),
		pair("ip_pool_id", "ipPoolId"),
		nested("range", "range", "ip_range"),
		pair("time_created", "timeCreated"),
	)
	register("silo", identity(
		same("discoverable"),
		pair("identity_mode", "identityMode"),
	)...)
	register("baseboard", same("serial"), same("part"), same("revision"))
	register("sled",
		same("id"),
		nested("baseboard", "baseboard", "baseboard"),
		pair("rack_id", "rackId"),
		pair("policy_kind", "policyKind"),
		same("state"),
		pair("usable_hardware_threads", "usableHardwareThreads"),
		pair("usable_physical_ram", "usablePhysicalRam"),
		pair("time_created", "timeCreated"),
		pair("time_modified", "timeModified"),
	)
	register("ssh_key", identity(
		pair("silo_user_id", "siloUserId"),
		pair("public_key", "publicKey"),
	)...)
	register("user", same("id"), pair("display_name", "displayName"), pair("silo_id", "siloId"))
	register("current_user",
		same("id"),
		pair("display_name", "displayName"),
		pair("silo_id", "siloId"),
		pair("silo_name", "siloName"),
	)
	register("policy_assignment",
		pair("identity_id", "identityId"),
		pair("identity_type", "identityType"),
		pair("role_name", "roleName"),
	)
	register("policy", nested("role_assignments", "roleAssignments", "policy_assignment"))
	register("ping", same("status"))
	register("error", pair("error_code", "errorCode"), same("message"), pair("request_id", "requestId"))

	register("audit_actor", same("kind"), pair("silo_id", "siloId"), pair("silo_user_id", "siloUserId"))
	register("audit_result",
		same("kind"),
		pair("http_status_code", "httpStatusCode"),
		pair("error_code", "errorCode"),
		pair("error_message", "errorMessage"),
	)
	register("audit_entry",
		same("id"),
		pair("operation_id", "operationId"),
		pair("request_id", "requestId"),
		pair("request_uri", "requestUri"),
		pair("source_ip", "sourceIp"),
		pair("user_agent", "userAgent"),
		pair("auth_method", "authMethod"),
		nested("actor", "actor", "audit_actor"),
		nested("result", "result", "audit_result"),
		pair("time_started", "timeStarted"),
		pair("time_completed", "timeCompleted"),
	)

	// Request bodies.
	register("project_create", nameDescription()...)
	register("project_update", nameDescription()...)
	register("disk_source",
		same("type"),
		pair("block_size", "blockSize"),
		pair("snapshot_id", "snapshotId"),
		pair("image_id", "imageId"),
	)
	register("disk_create", nameDescription(
		same("size"),
		nested("disk_source", "diskSource", "disk_source"),
	)...)
	register("snapshot_create", nameDescription(same("disk"))...)
	register("disk_attachment",
		same("type"),
		same("name"),
		same("description"),
		same("size"),
		nested("disk_source", "diskSource", "disk_source"),
	)
	register("network_interface_create", nameDescription(
		pair("vpc_name", "vpcName"),
		pair("subnet_name", "subnetName"),
		same("ip"),
	)...)
	register("instance_network_interfaces",
		same("type"),
		nested("params", "params", "network_interface_create"),
	)
	register("instance_create", nameDescription(
		same("hostname"),
		same("memory"),
		same("ncpus"),
		nested("disks", "disks", "disk_attachment"),
		nested("boot_disk", "bootDisk", "disk_attachment"),
		nested("network_interfaces", "networkInterfaces", "instance_network_interfaces"),
		same("start"),
	)...)
	register("instance_update",
		same("memory"),
		same("ncpus"),
		pair("boot_disk", "bootDisk"),
		pair("auto_restart_enabled", "autoRestartEnabled"),
	)
	register("disk_path", same("disk"))
	register("vpc_create", nameDescription(
		pair("dns_name", "dnsName"),
		pair("ipv6_prefix", "ipv6Prefix"),
	)...)
	register("vpc_update", nameDescription(pair("dns_name", "dnsName"))...)
	register("vpc_subnet_create", nameDescription(
		pair("ipv4_block", "ipv4Block"),
		pair("ipv6_block", "ipv6Block"),
	)...)
	register("vpc_subnet_update", nameDescription()...)
	register("firewall_rule_update", nameDescription(
		same("status"),
		same("direction"),
		same("action"),
		same("priority"),
		nested("targets", "targets", "firewall_target"),
		nested("filters", "filters", "firewall_filter"),
	)...)
	register("firewall_rules_update", nested("rules", "rules", "firewall_rule_update"))
	register("network_interface_update", nameDescription(same("primary"))...)
	register("ip_pool_create", nameDescription()...)
	register("ip_pool_update", nameDescription()...)
	register("silo_create", nameDescription(
		same("discoverable"),
		pair("identity_mode", "identityMode"),
	)...)
	register("ssh_key_create", nameDescription(pair("public_key", "publicKey"))...)
}
