// Package engine implements the dependency-ordered deletion engine used when
// onboarding a network appliance.
//
// # Overview
//
// A deletion declaration names configuration objects that are no longer
// desired. The appliance only enforces the references between those objects
// through its own validation errors, so removals must be issued in a fixed
// order. A reconciliation pass runs in four steps:
//
//  1. Enumerate - collect candidates from the declaration, or from the device
//     for classes whose sub-objects are discovered remotely (Enumerator)
//  2. Plan - drop protected instances, resolve paths and group steps into
//     stages by class order (Planner)
//  3. Execute - run stages strictly in sequence, fanning out within a stage
//     and batching transactional groups (Scheduler)
//  4. Aggregate - collect per-step outcomes and surface the first failure (PassResult)
//
// # Class Ordering Table
//
// The ClassTable is built once and never mutated. Each ClassPolicy carries an
// order, a collection path, a protected instance set, an optional remote
// Enumerator, an optional transaction group and the removal Action:
//
//	Route (50) < SelfIp (60) < VLAN (70) < ... < RouteDomain (110, transaction)
//	Authentication (170) -> radius-server, ssl-cert (171) -> ssl-key (172)
//	DeviceGroup (180, cluster removal)
//
// Configuration-only classes such as NTP, DNS, Analytics and HTTPD are never
// deletable. Classes missing from the table are ignored.
//
// # Paths
//
// Partitioned classes resolve to <collection>/~<partition>~<name>, for
// example /tm/net/route/~Common~myRoute. A Route flagged localOnly in the
// current-state snapshot resolves to the LOCAL_ONLY partition instead. Plain
// classes resolve to <collection>/<name>, as in
// /tm/auth/remote-role/role-info/<name>.
//
// # Usage
//
//	decl, err := engine.ParseDeclaration(data)
//	if err != nil {
//	    return err
//	}
//	handler := engine.NewDeleteHandler(decl, client,
//	    engine.WithCurrentState(snapshot),
//	    engine.WithLogger(logger),
//	)
//	if err := handler.Process(ctx); err != nil {
//	    // err is the remote client's error, unchanged
//	}
//
// # Call Order
//
// Within a stage, calls are issued in plan order, which is declaration order,
// and run concurrently once issued. A RemoteClient reports that a call is on
// the wire by calling Issued with the context it was given; the scheduler then
// starts the next sibling. Clients that never report are called one sibling
// at a time.
//
// # Failure Semantics
//
// Enumeration errors and removal errors fail the pass. A stage always waits
// for every call it launched before reporting, and no stage after a failed
// one is attempted. Nothing is retried or rolled back.
package engine
