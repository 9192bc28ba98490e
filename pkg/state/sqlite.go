package state

import (
	"context"
	"errors"

	"github.com/netonboard/netonboard/pkg/engine"
	"github.com/netonboard/netonboard/pkg/stores"
)

// SnapshotStore is the part of the SQLite store the provider uses.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot *stores.Snapshot) error
	LatestSnapshot(ctx context.Context) (*stores.Snapshot, error)
}

// SQLiteProvider keeps snapshots in the store's snapshot table. The latest
// one is the current state.
type SQLiteProvider struct {
	store  SnapshotStore
	source string
}

// NewSQLiteProvider creates a provider. source labels saved snapshots.
func NewSQLiteProvider(store SnapshotStore, source string) *SQLiteProvider {
	return &SQLiteProvider{store: store, source: source}
}

// Name implements Provider.
func (p *SQLiteProvider) Name() string { return "sqlite" }

// CurrentState implements engine.StateProvider.
func (p *SQLiteProvider) CurrentState(ctx context.Context) (engine.Declaration, error) {
	snap, err := p.store.LatestSnapshot(ctx)
	if errors.Is(err, stores.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode([]byte(snap.Content))
}

// Save implements Provider.
func (p *SQLiteProvider) Save(ctx context.Context, data []byte) error {
	if _, err := decode(data); err != nil {
		return err
	}
	return p.store.SaveSnapshot(ctx, &stores.Snapshot{Source: p.source, Content: string(data)})
}
