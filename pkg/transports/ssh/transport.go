// Package ssh provides an SSH tunnel into a device's management network.
//
// The tunnel carries the REST client's TCP connections (DialContext) and
// gives SFTP access to files on the jump host or device.
package ssh

import (
	"context"
	"net"
	"time"
)

// Tunnel defines the operations of an SSH connection used as a transport.
type Tunnel interface {
	// Connect establishes the SSH connection.
	// Returns an error if connection fails or authentication is rejected.
	Connect(ctx context.Context) error

	// Disconnect closes the SSH connection and releases all resources.
	Disconnect() error

	// IsConnected returns true if the tunnel has an active connection.
	IsConnected() bool

	// HealthCheck verifies the connection is still alive and responsive.
	HealthCheck(ctx context.Context) error

	// DialContext opens a TCP connection to addr from the remote end of the tunnel.
	// Its signature matches http.Transport.DialContext.
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)

	// ReadFile reads a file from the remote host via SFTP.
	ReadFile(ctx context.Context, remotePath string) ([]byte, error)

	// WriteFile atomically replaces a file on the remote host via SFTP.
	WriteFile(ctx context.Context, remotePath string, data []byte, mode uint32) error

	// GetConnectionInfo returns information about the current connection.
	GetConnectionInfo() ConnectionInfo
}

// ConnectionInfo contains details about an active SSH connection.
type ConnectionInfo struct {
	// Host is the remote hostname or IP address
	Host string

	// Port is the SSH port number
	Port int

	// User is the SSH username
	User string

	// ConnectedAt is when the connection was established
	ConnectedAt time.Time

	// LastActivity is when the connection was last used
	LastActivity time.Time

	// ViaProxy indicates the connection goes through a jump host
	ViaProxy bool
}

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g., "connect", "dial", "write")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}
