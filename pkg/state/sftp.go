package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/netonboard/netonboard/pkg/engine"
)

// RemoteFiles reads and writes files on a remote host. The SSH tunnel
// satisfies it.
type RemoteFiles interface {
	ReadFile(ctx context.Context, remotePath string) ([]byte, error)
	WriteFile(ctx context.Context, remotePath string, data []byte, mode uint32) error
}

// SFTPProvider keeps the snapshot in a JSON file on a remote host.
type SFTPProvider struct {
	remote RemoteFiles
	path   string
}

// NewSFTPProvider creates a provider backed by path on the remote host.
func NewSFTPProvider(remote RemoteFiles, path string) *SFTPProvider {
	return &SFTPProvider{remote: remote, path: path}
}

// Name implements Provider.
func (p *SFTPProvider) Name() string { return "sftp:" + p.path }

// CurrentState implements engine.StateProvider. A missing remote file means
// no snapshot.
func (p *SFTPProvider) CurrentState(ctx context.Context) (engine.Declaration, error) {
	data, err := p.remote.ReadFile(ctx, p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read remote snapshot: %w", err)
	}
	return decode(data)
}

// Save implements Provider.
func (p *SFTPProvider) Save(ctx context.Context, data []byte) error {
	if _, err := decode(data); err != nil {
		return err
	}
	if err := p.remote.WriteFile(ctx, p.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write remote snapshot: %w", err)
	}
	return nil
}
