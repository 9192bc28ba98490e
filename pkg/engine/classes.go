package engine

import (
	"fmt"
	"sort"
	"strings"
)

// ClassTableVersion identifies the revision of the built-in deletion ordering.
// Bump it whenever an order value, a path or a protected set changes.
const ClassTableVersion = "2024.2"

// PathStyle describes how an instance name is appended to a collection path.
type PathStyle int

const (
	// PathPartitioned builds <collection>/~<partition>~<name>.
	PathPartitioned PathStyle = iota

	// PathPlain builds <collection>/<name>.
	PathPlain
)

// Action selects the remote operation that removes an instance.
type Action string

const (
	// ActionDelete removes the instance with a generic DELETE on its path.
	ActionDelete Action = "delete"

	// ActionDeviceGroup removes the instance through the cluster management operation.
	ActionDeviceGroup Action = "device-group"
)

// ClassPolicy holds the deletion rules of one configuration class.
// Policies are values; use WithProtected to derive a policy with a protected set.
type ClassPolicy struct {
	// Class is the declaration class name (or, for derived classes, the remote collection name).
	Class string

	// Order sequences classes across a pass. Lower values are deleted first.
	Order int

	// Collection is the remote collection root, e.g. /tm/net/vlan.
	Collection string

	// PathStyle selects how instance paths are built under Collection.
	PathStyle PathStyle

	// Enumerator discovers deletable instances remotely. Nil means the
	// declaration's instance keys are the candidates.
	Enumerator Enumerator

	// TransactionGroup, when set, makes every step of the class part of one
	// atomic remote transaction.
	TransactionGroup string

	// Action is the remote operation used to remove an instance.
	Action Action

	// Derived classes are only produced by an Enumerator and never read
	// directly from a declaration.
	Derived bool

	// LocalOnlyAware resolves instances flagged localOnly in the current
	// state to the LOCAL_ONLY partition.
	LocalOnlyAware bool

	protected map[string]struct{}
}

// WithProtected returns a copy of the policy protecting the given instance keys.
func (p ClassPolicy) WithProtected(names ...string) ClassPolicy {
	set := make(map[string]struct{}, len(p.protected)+len(names))
	for name := range p.protected {
		set[name] = struct{}{}
	}
	for _, name := range names {
		set[name] = struct{}{}
	}
	p.protected = set
	return p
}

// IsProtected reports whether an instance key must never be deleted.
func (p ClassPolicy) IsProtected(name string) bool {
	_, ok := p.protected[name]
	return ok
}

// Protected returns the protected instance keys in lexical order.
func (p ClassPolicy) Protected() []string {
	out := make([]string, 0, len(p.protected))
	for name := range p.protected {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RemoteEnumeration reports whether candidates come from the remote system.
func (p ClassPolicy) RemoteEnumeration() bool {
	return p.Enumerator != nil
}

// Path resolves the remote path of an instance in a partition.
func (p ClassPolicy) Path(partition, name string) string {
	if p.PathStyle == PathPlain {
		return p.Collection + "/" + name
	}
	return fmt.Sprintf("%s/~%s~%s", p.Collection, partition, name)
}

// ClassTable is an immutable set of class policies.
type ClassTable struct {
	byName     map[string]ClassPolicy
	ordered    []ClassPolicy
	singletons map[string]struct{}
}

// NewClassTable validates the policies and builds a table. Singletons name
// configuration-only classes that never produce deletion steps.
func NewClassTable(policies []ClassPolicy, singletons []string) (*ClassTable, error) {
	t := &ClassTable{
		byName:     make(map[string]ClassPolicy, len(policies)),
		ordered:    make([]ClassPolicy, 0, len(policies)),
		singletons: make(map[string]struct{}, len(singletons)),
	}

	for _, name := range singletons {
		t.singletons[name] = struct{}{}
	}

	for _, p := range policies {
		if p.Class == "" {
			return nil, NewPermanentError("class policy has no class name", nil).
				WithCode(ErrCodeValidation)
		}
		if _, dup := t.byName[p.Class]; dup {
			return nil, NewPermanentError("duplicate class policy", nil).
				WithClass(p.Class).
				WithCode(ErrCodeValidation)
		}
		if _, single := t.singletons[p.Class]; single {
			return nil, NewPermanentError("class is declared both deletable and singleton", nil).
				WithClass(p.Class).
				WithCode(ErrCodeValidation)
		}
		if p.Action == "" {
			p.Action = ActionDelete
		}
		if p.Action == ActionDelete && p.Enumerator == nil && !strings.HasPrefix(p.Collection, "/") {
			return nil, NewPermanentError("class policy has no collection path", nil).
				WithClass(p.Class).
				WithCode(ErrCodeValidation)
		}
		t.byName[p.Class] = p
		t.ordered = append(t.ordered, p)
	}

	sort.SliceStable(t.ordered, func(i, j int) bool {
		if t.ordered[i].Order != t.ordered[j].Order {
			return t.ordered[i].Order < t.ordered[j].Order
		}
		return t.ordered[i].Class < t.ordered[j].Class
	})

	return t, nil
}

// Lookup returns the policy of a class.
func (t *ClassTable) Lookup(class string) (ClassPolicy, bool) {
	p, ok := t.byName[class]
	return p, ok
}

// Classes returns all policies ordered by Order, then by class name.
func (t *ClassTable) Classes() []ClassPolicy {
	out := make([]ClassPolicy, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// IsDeletable reports whether instances declared under class can produce steps.
func (t *ClassTable) IsDeletable(class string) bool {
	p, ok := t.byName[class]
	return ok && !p.Derived
}

// IsSingleton reports whether class is a configuration-only class.
func (t *ClassTable) IsSingleton(class string) bool {
	_, ok := t.singletons[class]
	return ok
}

// Well-known class names.
const (
	ClassRoute          = "Route"
	ClassSelfIP         = "SelfIp"
	ClassVLAN           = "VLAN"
	ClassRouteDomain    = "RouteDomain"
	ClassDeviceGroup    = "DeviceGroup"
	ClassAuthentication = "Authentication"
	ClassRemoteAuthRole = "RemoteAuthRole"
	ClassRadiusServer   = "radius-server"
	ClassSSLCert        = "ssl-cert"
	ClassSSLKey         = "ssl-key"
)

// TransactionGroupRouteDomain is the transaction group of RouteDomain steps.
const TransactionGroupRouteDomain = "routeDomain"

var singletonClasses = []string{
	"NTP",
	"DNS",
	"Analytics",
	"HTTPD",
	"System",
	"Provision",
	"License",
	"DbVariables",
	"ConfigSync",
	"FailoverUnicast",
	"FailoverMulticast",
	"GSLBGlobals",
	"SnmpAgent",
	"SSHD",
	"TrafficControl",
	"ManagementIp",
}

func defaultPolicies() []ClassPolicy {
	partitioned := func(class string, order int, collection string) ClassPolicy {
		return ClassPolicy{Class: class, Order: order, Collection: collection, Action: ActionDelete}
	}
	plain := func(class string, order int, collection string) ClassPolicy {
		p := partitioned(class, order, collection)
		p.PathStyle = PathPlain
		return p
	}
	derivedPlain := func(class string, order int, collection string) ClassPolicy {
		p := plain(class, order, collection)
		p.Derived = true
		return p
	}
	derived := func(class string, order int, collection string) ClassPolicy {
		p := partitioned(class, order, collection)
		p.Derived = true
		return p
	}

	route := partitioned(ClassRoute, 50, "/tm/net/route")
	route.LocalOnlyAware = true

	routeDomain := partitioned(ClassRouteDomain, 110, "/tm/net/route-domain").WithProtected("0")
	routeDomain.TransactionGroup = TransactionGroupRouteDomain

	deviceGroup := ClassPolicy{Class: ClassDeviceGroup, Order: 180, Action: ActionDeviceGroup}.
		WithProtected("device_trust_group", "gtm", "datasync-global-dg", "dos-global-dg")

	auth := ClassPolicy{Class: ClassAuthentication, Order: 170, Action: ActionDelete, Enumerator: AuthEnumerator{}}

	return []ClassPolicy{
		partitioned("RoutingBGP", 10, "/tm/net/routing/bgp"),
		partitioned("RouteMap", 20, "/tm/net/routing/route-map"),
		partitioned("RoutingAsPath", 30, "/tm/net/routing/as-path"),
		partitioned("RoutingPrefixList", 31, "/tm/net/routing/prefix-list"),
		partitioned("RoutingAccessList", 32, "/tm/net/routing/access-list"),
		partitioned("ManagementRoute", 40, "/tm/sys/management-route"),
		route,
		partitioned(ClassSelfIP, 60, "/tm/net/self"),
		partitioned(ClassVLAN, 70, "/tm/net/vlan"),
		partitioned("Tunnel", 80, "/tm/net/tunnels/tunnel").WithProtected("socks-tunnel", "http-tunnel"),
		partitioned("Trunk", 90, "/tm/net/trunk"),
		partitioned("DNS_Resolver", 100, "/tm/net/dns-resolver").WithProtected("f5-aws-dns"),
		routeDomain,
		partitioned("FirewallPolicy", 120, "/tm/security/firewall/policy"),
		partitioned("FirewallAddressList", 130, "/tm/security/firewall/address-list"),
		partitioned("FirewallPortList", 131, "/tm/security/firewall/port-list"),
		partitioned("GSLBServer", 140, "/tm/gtm/server"),
		partitioned("GSLBDataCenter", 150, "/tm/gtm/datacenter"),
		partitioned("GSLBProberPool", 151, "/tm/gtm/prober-pool"),
		plain(ClassRemoteAuthRole, 160, "/tm/auth/remote-role/role-info"),
		auth,
		derivedPlain(authRadius, 170, "/tm/auth/radius"),
		derivedPlain(authTacacs, 170, "/tm/auth/tacacs"),
		derivedPlain(authLDAP, 170, "/tm/auth/ldap"),
		derived(ClassRadiusServer, 171, "/tm/auth/radius-server"),
		derived(ClassSSLCert, 171, "/tm/sys/file/ssl-cert"),
		derived(ClassSSLKey, 172, "/tm/sys/file/ssl-key"),
		deviceGroup,
	}
}

var defaultClassTable = func() *ClassTable {
	t, err := NewClassTable(defaultPolicies(), singletonClasses)
	if err != nil {
		panic(fmt.Sprintf("engine: invalid built-in class table: %v", err))
	}
	return t
}()

// DefaultClasses returns the built-in class table.
func DefaultClasses() *ClassTable {
	return defaultClassTable
}
