package api

import (
	"net/http"

	"github.com/oxidecomputer/console-sub002/internal/domain"
	"github.com/oxidecomputer/console-sub002/internal/storage"
)

func (s *Server) vpcSelector(w http.ResponseWriter, r *http.Request) (storage.VpcSelector, bool) {
	ref, ok := s.pathRef(w, r, "vpc")
	if !ok {
		return storage.VpcSelector{}, false
	}
	q, ok := s.queryRefs(w, r, "project")
	if !ok {
		return storage.VpcSelector{}, false
	}
	return storage.VpcSelector{Project: q["project"], Vpc: ref}, true
}

// vpcQuerySelector reads a VPC selected entirely by query parameters, as
// the subnet and firewall rule endpoints do.
func (s *Server) vpcQuerySelector(w http.ResponseWriter, r *http.Request) (storage.VpcSelector, bool) {
	vpc, ok := s.requireQuery(w, r, "vpc")
	if !ok {
		return storage.VpcSelector{}, false
	}
	q, ok := s.queryRefs(w, r, "project")
	if !ok {
		return storage.VpcSelector{}, false
	}
	return storage.VpcSelector{Project: q["project"], Vpc: vpc}, true
}

func (s *Server) handleVpcList(w http.ResponseWriter, r *http.Request) {
	project, ok := s.requireQuery(w, r, "project")
	if !ok {
		return
	}
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListVpcs(r.Context(), project, p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleVpcCreate(w http.ResponseWriter, r *http.Request) {
	project, ok := s.requireQuery(w, r, "project")
	if !ok {
		return
	}
	var in domain.VpcCreate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, []string{in.Name, in.DNSName}, in.Description) {
		return
	}
	vpc, err := s.store.CreateVpc(r.Context(), project, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusCreated, vpc)
}

func (s *Server) handleVpcView(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.vpcSelector(w, r)
	if !ok {
		return
	}
	vpc, err := s.store.GetVpc(r.Context(), sel)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, vpc)
}

func (s *Server) handleVpcUpdate(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.vpcSelector(w, r)
	if !ok {
		return
	}
	var in domain.VpcUpdate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, optionalNames(in.Name, in.DNSName), optionalString(in.Description)) {
		return
	}
	vpc, err := s.store.UpdateVpc(r.Context(), sel, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, vpc)
}

func (s *Server) handleVpcDelete(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.vpcSelector(w, r)
	if !ok {
		return
	}
	vpc, err := s.store.DeleteVpc(r.Context(), sel)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	noContent(w, vpc)
}

func (s *Server) subnetSelector(w http.ResponseWriter, r *http.Request) (storage.SubnetSelector, bool) {
	ref, ok := s.pathRef(w, r, "subnet")
	if !ok {
		return storage.SubnetSelector{}, false
	}
	q, ok := s.queryRefs(w, r, "project", "vpc")
	if !ok {
		return storage.SubnetSelector{}, false
	}
	return storage.SubnetSelector{Project: q["project"], Vpc: q["vpc"], Subnet: ref}, true
}

func (s *Server) handleSubnetList(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.vpcQuerySelector(w, r)
	if !ok {
		return
	}
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListSubnets(r.Context(), sel, p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSubnetCreate(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.vpcQuerySelector(w, r)
	if !ok {
		return
	}
	var in domain.VpcSubnetCreate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, []string{in.Name}, in.Description) {
		return
	}
	subnet, err := s.store.CreateSubnet(r.Context(), sel, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusCreated, subnet)
}

func (s *Server) handleSubnetView(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.subnetSelector(w, r)
	if !ok {
		return
	}
	subnet, err := s.store.GetSubnet(r.Context(), sel)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, subnet)
}

func (s *Server) handleSubnetUpdate(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.subnetSelector(w, r)
	if !ok {
		return
	}
	var in domain.VpcSubnetUpdate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, optionalNames(in.Name), optionalString(in.Description)) {
		return
	}
	subnet, err := s.store.UpdateSubnet(r.Context(), sel, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, subnet)
}

func (s *Server) handleSubnetDelete(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.subnetSelector(w, r)
	if !ok {
		return
	}
	subnet, err := s.store.DeleteSubnet(r.Context(), sel)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	noContent(w, subnet)
}

func (s *Server) handleFirewallRulesView(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.vpcQuerySelector(w, r)
	if !ok {
		return
	}
	rules, err := s.store.GetFirewallRules(r.Context(), sel)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleFirewallRulesUpdate(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.vpcQuerySelector(w, r)
	if !ok {
		return
	}
	var in domain.FirewallRulesUpdate
	if !s.decodeBody(w, r, &in) {
		return
	}
	names := make([]string, 0, len(in.Rules))
	for _, rule := range in.Rules {
		names = append(names, rule.Name)
	}
	if !s.checkNames(w, r, names) {
		return
	}
	rules, err := s.store.UpdateFirewallRules(r.Context(), sel, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, rules)
}
