package wire

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// bindings ties each table to the Go type whose JSON form it describes.
var bindings = map[string]any{
	"project":                     domain.Project{},
	"instance":                    domain.Instance{},
	"disk_state":                  domain.DiskState{},
	"disk":                        domain.Disk{},
	"snapshot":                    domain.Snapshot{},
	"vpc":                         domain.Vpc{},
	"vpc_subnet":                  domain.VpcSubnet{},
	"firewall_target":             domain.FirewallTarget{},
	"firewall_filter":             domain.FirewallFilter{},
	"firewall_rule":               domain.VpcFirewallRule{},
	"firewall_rules":              domain.FirewallRules{},
	"network_interface":           domain.NetworkInterface{},
	"ip_pool":                     domain.IpPool{},
	"ip_range":                    domain.IpRange{},
	"ip_pool_range":               domain.IpPoolRange{},
	"silo":                        domain.Silo{},
	"baseboard":                   domain.Baseboard{},
	"sled":                        domain.Sled{},
	"ssh_key":                     domain.SshKey{},
	"user":                        domain.User{},
	"current_user":                domain.CurrentUser{},
	"policy_assignment":           domain.PolicyAssignment{},
	"policy":                      domain.Policy{},
	"ping":                        domain.Ping{},
	"audit_actor":                 audit.Actor{},
	"audit_result":                audit.Result{},
	"audit_entry":                 audit.Entry{},
	"project_create":              domain.ProjectCreate{},
	"project_update":              domain.ProjectUpdate{},
	"disk_source":                 domain.DiskSource{},
	"disk_create":                 domain.DiskCreate{},
	"snapshot_create":             domain.SnapshotCreate{},
	"disk_attachment":             domain.InstanceDiskAttachment{},
	"network_interface_create":    domain.NetworkInterfaceCreate{},
	"instance_network_interfaces": domain.InstanceNetworkInterfaces{},
	"instance_create":             domain.InstanceCreate{},
	"instance_update":             domain.InstanceUpdate{},
	"disk_path":                   domain.DiskPath{},
	"vpc_create":                  domain.VpcCreate{},
	"vpc_update":                  domain.VpcUpdate{},
	"vpc_subnet_create":           domain.VpcSubnetCreate{},
	"vpc_subnet_update":           domain.VpcSubnetUpdate{},
	"firewall_rule_update":        domain.FirewallRuleUpdate{},
	"firewall_rules_update":       domain.FirewallRulesUpdate{},
	"network_interface_update":    domain.NetworkInterfaceUpdate{},
	"ip_pool_create":              domain.IpPoolCreate{},
	"ip_pool_update":              domain.IpPoolUpdate{},
	"silo_create":                 domain.SiloCreate{},
	"ssh_key_create":              domain.SshKeyCreate{},
}

func jsonNames(t reflect.Type) []string {
	var out []string
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if sf.Anonymous && tag == "" {
			out = append(out, jsonNames(sf.Type)...)
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" || !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		out = append(out, name)
	}
	return out
}

// camelOf is the naming convention the tables are expected to follow.
func camelOf(snake string) string {
	parts := strings.Split(snake, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func TestTablesCoverGoTypes(t *testing.T) {
	for entity, v := range bindings {
		t.Run(entity, func(t *testing.T) {
			table, ok := Lookup(entity)
			require.True(t, ok, "no table for %s", entity)

			want := jsonNames(reflect.TypeOf(v))
			var got []string
			for _, fld := range table.Fields {
				got = append(got, fld.Snake)
			}
			sort.Strings(want)
			sort.Strings(got)
			assert.Equal(t, want, got)
		})
	}
}

func TestEveryTableIsBound(t *testing.T) {
	for _, entity := range Entities() {
		if entity == "error" {
			continue
		}
		_, ok := bindings[entity]
		assert.True(t, ok, "table %s has no Go type binding", entity)
	}
}

func TestFieldPairsRoundTrip(t *testing.T) {
	for _, entity := range Entities() {
		table, _ := Lookup(entity)
		for _, fld := range table.Fields {
			camel, ok := table.Camel(fld.Snake)
			require.True(t, ok)
			snake, ok := table.Snake(camel)
			require.True(t, ok)
			assert.Equal(t, fld.Snake, snake, "%s.%s", entity, fld.Snake)
			assert.Equal(t, camelOf(fld.Snake), fld.Camel, "%s.%s", entity, fld.Snake)
			if fld.Nested != "" {
				_, ok := Lookup(fld.Nested)
				assert.True(t, ok, "%s.%s nests unknown %s", entity, fld.Snake, fld.Nested)
			}
		}
	}
}

func TestConvertJSONRoundTrip(t *testing.T) {
	instance := "935499b3-fd96-432a-9c21-83a3dc1eece4"
	snapshot := "ab805e59-b6b8-4c73-8081-6a224b6b0698"
	disk := domain.Disk{
		Identity: domain.Identity{
			ID:           "7f2309a5-13e3-47e0-8a4c-2a3b3bc992fd",
			Name:         "disk-1",
			TimeCreated:  time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
			TimeModified: time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		ProjectID:  "5fbab865-3d09-4c16-a22f-ca9c312b0286",
		Size:       1023 * domain.GiB,
		BlockSize:  2048,
		State:      domain.DiskState{State: domain.DiskAttached, Instance: instance},
		DevicePath: "/abc",
		SnapshotID: &snapshot,
	}
	raw, err := json.Marshal(disk)
	require.NoError(t, err)

	camel, err := ConvertJSON("disk", raw, ToCamel)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(camel, &doc))
	assert.Contains(t, doc, "blockSize")
	assert.Contains(t, doc, "timeCreated")
	assert.NotContains(t, doc, "block_size")
	state, ok := doc["state"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, instance, state["instance"])

	snake, err := ConvertJSON("disk", camel, ToSnake)
	require.NoError(t, err)
	var back domain.Disk
	require.NoError(t, json.Unmarshal(snake, &back))
	assert.Equal(t, disk, back)
}

func TestConvertPage(t *testing.T) {
	next := "abc"
	page := domain.ResultsPage[domain.IpPoolRange]{
		Items: []domain.IpPoolRange{{
			ID:       "r1",
			IpPoolID: "p1",
			Range:    domain.IpRange{First: "10.0.0.1", Last: "10.0.0.9"},
		}},
		NextPage: &next,
	}
	raw, err := json.Marshal(page)
	require.NoError(t, err)

	camel, err := ConvertJSON(PageOf("ip_pool_range"), raw, ToCamel)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"id":"r1","ipPoolId":"p1","range":{"first":"10.0.0.1","last":"10.0.0.9"},"timeCreated":"0001-01-01T00:00:00Z"}],"nextPage":"abc"}`, string(camel))

	snake, err := ConvertJSON(PageOf("ip_pool_range"), camel, ToSnake)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(snake))
}

func TestConvertNestedArrays(t *testing.T) {
	in := map[string]any{
		"rules": []any{map[string]any{
			"name":        "allow-ssh",
			"description": "",
			"status":      "enabled",
			"direction":   "inbound",
			"action":      "allow",
			"priority":    65534,
			"targets":     []any{map[string]any{"type": "vpc", "value": "default"}},
			"filters": map[string]any{
				"hosts": []any{map[string]any{"type": "ip", "value": "10.0.0.1"}},
				"ports": []any{"22"},
			},
		}},
	}
	out, err := Convert("firewall_rules_update", in, ToCamel)
	require.NoError(t, err)
	back, err := Convert("firewall_rules_update", out, ToSnake)
	require.NoError(t, err)
	assert.Equal(t, in, back)
}

func TestConvertLargeNumbersSurvive(t *testing.T) {
	out, err := ConvertJSON("sled", []byte(`{"id":"s","usable_physical_ram":9007199254740993}`), ToCamel)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"s","usablePhysicalRam":9007199254740993}`, string(out))
}

func TestConvertErrors(t *testing.T) {
	_, err := Convert("nope", map[string]any{}, ToCamel)
	require.ErrorIs(t, err, ErrUnknownEntity)

	_, err = Convert("project", map[string]any{"colour": "red"}, ToCamel)
	require.ErrorIs(t, err, ErrUnknownField)
	assert.Contains(t, err.Error(), "project.colour")

	// A camel name is not a wire name.
	_, err = Convert("instance", map[string]any{"runState": "running"}, ToCamel)
	require.ErrorIs(t, err, ErrUnknownField)

	_, err = Convert("disk", map[string]any{"state": map[string]any{"bogus": 1}}, ToCamel)
	require.ErrorIs(t, err, ErrUnknownField)
	assert.Contains(t, err.Error(), "disk.state.bogus")

	_, err = Convert("project", "just a string", ToCamel)
	require.Error(t, err)

	_, ok := Lookup(PageOf("nope"))
	assert.False(t, ok)
}

func TestNullsPassThrough(t *testing.T) {
	out, err := ConvertJSON("instance", []byte(`{"boot_disk_id":null}`), ToCamel)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bootDiskId":null}`, string(out))

	out, err = ConvertJSON(PageOf("disk"), []byte(`{"items":[],"next_page":null}`), ToCamel)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"nextPage":null}`, string(out))
}
