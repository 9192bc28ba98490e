package engine

import (
	"context"
	"encoding/json"
)

// Lister reads remote collections.
type Lister interface {
	// List returns the raw "items" payload of a collection. The payload may be
	// empty or not an array; callers treat that as an empty collection.
	List(ctx context.Context, path string) (json.RawMessage, error)
}

// RemoteClient is the device management API used by a reconciliation pass.
type RemoteClient interface {
	Lister

	// Delete removes the object at path.
	Delete(ctx context.Context, path string) error

	// Transaction applies ops atomically.
	Transaction(ctx context.Context, ops []TransactionOp) error

	// DeleteDeviceGroup removes a device group through the cluster API.
	DeleteDeviceGroup(ctx context.Context, name string) error
}

// StateProvider supplies the last observed device configuration.
type StateProvider interface {
	// CurrentState returns a snapshot shaped like a Declaration. A provider
	// with no snapshot returns nil and no error.
	CurrentState(ctx context.Context) (Declaration, error)
}

// Guard vetoes individual steps while planning.
type Guard interface {
	// Allow reports whether step may be planned. A false result drops the
	// step and reason is recorded in the plan.
	Allow(ctx context.Context, step DeletionStep) (allowed bool, reason string, err error)
}

// Recorder persists the history of passes.
type Recorder interface {
	// RecordPass stores a settled pass and the plan it executed.
	RecordPass(ctx context.Context, plan *Plan, result *PassResult) error
}
