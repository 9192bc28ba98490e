// Package state supplies the last observed device configuration to a
// reconciliation pass and stores new snapshots of it.
//
// Three backends are available: a local JSON file, the SQLite snapshot table
// and a JSON file on a remote host reached over SFTP.
package state

import (
	"bytes"
	"context"
	"fmt"

	"github.com/netonboard/netonboard/pkg/engine"
)

// Provider kinds.
const (
	KindNone   = "none"
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindSFTP   = "sftp"
)

// Provider reads and writes device snapshots.
type Provider interface {
	engine.StateProvider

	// Save stores data as the current snapshot. data must decode as a
	// declaration.
	Save(ctx context.Context, data []byte) error

	// Name describes the provider in logs.
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider string `yaml:"provider" env:"NETONBOARD_STATE_PROVIDER" env-default:"none" validate:"oneof=none file sqlite sftp"`
	Path     string `yaml:"path" env:"NETONBOARD_STATE_PATH" validate:"required_if=Provider file,required_if=Provider sftp"`
}

// Deps carries the backends a provider may need.
type Deps struct {
	Store  SnapshotStore
	Remote RemoteFiles
}

// New builds the provider named by cfg. KindNone yields a nil provider and
// no error.
func New(cfg Config, deps Deps) (Provider, error) {
	switch cfg.Provider {
	case "", KindNone:
		return nil, nil
	case KindFile:
		return NewFileProvider(cfg.Path), nil
	case KindSQLite:
		if deps.Store == nil {
			return nil, fmt.Errorf("sqlite state provider requires a store")
		}
		return NewSQLiteProvider(deps.Store, "netonboard"), nil
	case KindSFTP:
		if deps.Remote == nil {
			return nil, fmt.Errorf("sftp state provider requires an SSH tunnel")
		}
		return NewSFTPProvider(deps.Remote, cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown state provider: %s", cfg.Provider)
	}
}

// decode parses a snapshot. Blank input means no snapshot.
func decode(data []byte) (engine.Declaration, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	decl, err := engine.ParseDeclaration(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return decl, nil
}
