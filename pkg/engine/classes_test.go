package engine

import (
	"errors"
	"testing"
)

func TestDefaultClasses_RequiredOrderings(t *testing.T) {
	table := DefaultClasses()

	order := func(class string) int {
		p, ok := table.Lookup(class)
		if !ok {
			return -1
		}
		return p.Order
	}

	tests := []struct {
		before, after string
	}{
		{ClassRoute, ClassSelfIP},
		{ClassSelfIP, ClassVLAN},
		{"RoutingBGP", "RouteMap"},
		{"RouteMap", "RoutingAsPath"},
		{ClassVLAN, "Tunnel"},
		{"Trunk", ClassRouteDomain},
		{ClassVLAN, ClassRouteDomain},
		{"DNS_Resolver", ClassRouteDomain},
		{"GSLBServer", "GSLBDataCenter"},
		{authRadius, ClassRadiusServer},
		{authLDAP, ClassSSLCert},
		{ClassSSLCert, ClassSSLKey},
	}

	for _, tt := range tests {
		t.Run(tt.before+"<"+tt.after, func(t *testing.T) {
			if order(tt.before) < 0 || order(tt.after) < 0 {
				t.Fatalf("class missing from table")
			}
			if order(tt.before) >= order(tt.after) {
				t.Errorf("%s (%d) must be deleted before %s (%d)",
					tt.before, order(tt.before), tt.after, order(tt.after))
			}
		})
	}

	// RouteDomain is the last network class.
	rd := order(ClassRouteDomain)
	for _, class := range []string{"RoutingBGP", "RouteMap", "RoutingAsPath", "ManagementRoute", ClassRoute, ClassSelfIP, ClassVLAN, "Tunnel", "Trunk", "DNS_Resolver"} {
		if order(class) >= rd {
			t.Errorf("%s must be deleted before RouteDomain", class)
		}
	}
}

func TestDefaultClasses_Protected(t *testing.T) {
	tests := []struct {
		class     string
		protected []string
		deletable string
	}{
		{class: ClassRouteDomain, protected: []string{"0"}, deletable: "1"},
		{class: "Tunnel", protected: []string{"http-tunnel", "socks-tunnel"}, deletable: "myTunnel"},
		{class: "DNS_Resolver", protected: []string{"f5-aws-dns"}, deletable: "resolver"},
		{class: ClassDeviceGroup, protected: []string{"datasync-global-dg", "device_trust_group", "dos-global-dg", "gtm"}, deletable: "myGroup"},
		{class: ClassVLAN, protected: []string{}, deletable: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			p, ok := DefaultClasses().Lookup(tt.class)
			if !ok {
				t.Fatalf("class %s missing", tt.class)
			}
			if got := p.Protected(); !equalStrings(got, tt.protected) {
				t.Errorf("Protected() = %v, want %v", got, tt.protected)
			}
			for _, name := range tt.protected {
				if !p.IsProtected(name) {
					t.Errorf("%s should be protected", name)
				}
			}
			if p.IsProtected(tt.deletable) {
				t.Errorf("%s should not be protected", tt.deletable)
			}
		})
	}
}

func TestDefaultClasses_Behaviour(t *testing.T) {
	table := DefaultClasses()

	rd, _ := table.Lookup(ClassRouteDomain)
	if rd.TransactionGroup != TransactionGroupRouteDomain {
		t.Errorf("RouteDomain transaction group = %q", rd.TransactionGroup)
	}

	dg, _ := table.Lookup(ClassDeviceGroup)
	if dg.Action != ActionDeviceGroup {
		t.Errorf("DeviceGroup action = %q", dg.Action)
	}

	auth, _ := table.Lookup(ClassAuthentication)
	if !auth.RemoteEnumeration() {
		t.Error("Authentication must be enumerated remotely")
	}

	route, _ := table.Lookup(ClassRoute)
	if !route.LocalOnlyAware {
		t.Error("Route must honour localOnly")
	}

	for _, class := range []string{"NTP", "DNS", "Analytics", "HTTPD", "System", "Provision"} {
		if table.IsDeletable(class) {
			t.Errorf("%s must not be deletable", class)
		}
		if !table.IsSingleton(class) {
			t.Errorf("%s should be a singleton", class)
		}
	}

	for _, class := range []string{authRadius, ClassRadiusServer, ClassSSLCert, ClassSSLKey} {
		if table.IsDeletable(class) {
			t.Errorf("derived class %s must not be read from declarations", class)
		}
	}

	if _, ok := table.Lookup("Unknown"); ok {
		t.Error("unknown class should not resolve")
	}

	classes := table.Classes()
	for i := 1; i < len(classes); i++ {
		if classes[i-1].Order > classes[i].Order {
			t.Fatalf("Classes() not sorted: %s(%d) before %s(%d)",
				classes[i-1].Class, classes[i-1].Order, classes[i].Class, classes[i].Order)
		}
	}
}

func TestClassPolicy_Path(t *testing.T) {
	table := DefaultClasses()

	tests := []struct {
		class     string
		partition string
		name      string
		want      string
	}{
		{ClassRoute, DefaultPartition, "myRoute", "/tm/net/route/~Common~myRoute"},
		{ClassRoute, LocalOnlyPartition, "myLocalRoute", "/tm/net/route/~LOCAL_ONLY~myLocalRoute"},
		{ClassSelfIP, DefaultPartition, "x", "/tm/net/self/~Common~x"},
		{"RoutingAsPath", DefaultPartition, "x", "/tm/net/routing/as-path/~Common~x"},
		{"Tunnel", DefaultPartition, "x", "/tm/net/tunnels/tunnel/~Common~x"},
		{ClassRemoteAuthRole, DefaultPartition, "test", "/tm/auth/remote-role/role-info/test"},
		{authRadius, DefaultPartition, "system-auth", "/tm/auth/radius/system-auth"},
		{ClassRadiusServer, DefaultPartition, "system_auth_name1", "/tm/auth/radius-server/~Common~system_auth_name1"},
		{ClassSSLKey, DefaultPartition, "do_ldapClientCert.key", "/tm/sys/file/ssl-key/~Common~do_ldapClientCert.key"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			p, ok := table.Lookup(tt.class)
			if !ok {
				t.Fatalf("class %s missing", tt.class)
			}
			if got := p.Path(tt.partition, tt.name); got != tt.want {
				t.Errorf("Path() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassPolicy_WithProtectedCopies(t *testing.T) {
	base := ClassPolicy{Class: "X", Collection: "/x"}.WithProtected("a")
	derived := base.WithProtected("b")

	if base.IsProtected("b") {
		t.Error("WithProtected must not modify the receiver")
	}
	if !derived.IsProtected("a") || !derived.IsProtected("b") {
		t.Error("derived policy should protect both keys")
	}
}

func TestNewClassTable_Validation(t *testing.T) {
	tests := []struct {
		name       string
		policies   []ClassPolicy
		singletons []string
	}{
		{name: "missing class name", policies: []ClassPolicy{{Collection: "/x"}}},
		{name: "duplicate class", policies: []ClassPolicy{{Class: "X", Collection: "/x"}, {Class: "X", Collection: "/y"}}},
		{name: "missing collection", policies: []ClassPolicy{{Class: "X"}}},
		{name: "singleton conflict", policies: []ClassPolicy{{Class: "NTP", Collection: "/tm/sys/ntp"}}, singletons: []string{"NTP"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClassTable(tt.policies, tt.singletons)
			var engErr *EngineError
			if !errors.As(err, &engErr) || engErr.Code != ErrCodeValidation {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}
