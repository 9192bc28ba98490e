package ssh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
)

// ReadFile reads a file from the remote host via SFTP.
func (c *SSHClient) ReadFile(ctx context.Context, remotePath string) ([]byte, error) {
	startTime := time.Now()

	sftpClient, err := c.createSFTPClient()
	if err != nil {
		return nil, err
	}
	defer sftpClient.Close()

	remoteFile, err := sftpClient.Open(remotePath)
	if err != nil {
		return nil, &TransportError{
			Op:  "read",
			Err: fmt.Errorf("failed to open remote file: %w", err),
		}
	}
	defer remoteFile.Close()

	var buf bytes.Buffer
	n, err := copyWithContext(ctx, &buf, remoteFile)
	if err != nil {
		return nil, &TransportError{
			Op:          "read",
			Err:         fmt.Errorf("failed to read remote file: %w", err),
			IsTemporary: true,
		}
	}

	log.Debug().
		Str("remote", remotePath).
		Int64("bytes", n).
		Dur("duration", time.Since(startTime)).
		Msg("file read")

	return buf.Bytes(), nil
}

// WriteFile writes data to a temporary file next to remotePath and renames
// it into place, so readers never observe a partial file.
func (c *SSHClient) WriteFile(ctx context.Context, remotePath string, data []byte, mode uint32) error {
	startTime := time.Now()

	sftpClient, err := c.createSFTPClient()
	if err != nil {
		return err
	}
	defer sftpClient.Close()

	if err := sftpClient.MkdirAll(path.Dir(remotePath)); err != nil {
		return &TransportError{
			Op:  "write",
			Err: fmt.Errorf("failed to create remote directory: %w", err),
		}
	}

	tmpPath := remotePath + ".tmp"
	remoteFile, err := sftpClient.Create(tmpPath)
	if err != nil {
		return &TransportError{
			Op:          "write",
			Err:         fmt.Errorf("failed to create remote file: %w", err),
			IsTemporary: true,
		}
	}

	_, err = copyWithContext(ctx, remoteFile, bytes.NewReader(data))
	if closeErr := remoteFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = sftpClient.Remove(tmpPath)
		return &TransportError{
			Op:          "write",
			Err:         fmt.Errorf("failed to write remote file: %w", err),
			IsTemporary: true,
		}
	}

	if mode > 0 {
		if err := sftpClient.Chmod(tmpPath, os.FileMode(mode)); err != nil {
			log.Warn().Err(err).Str("remote", tmpPath).Msg("failed to set file permissions")
		}
	}

	if err := sftpClient.PosixRename(tmpPath, remotePath); err != nil {
		_ = sftpClient.Remove(tmpPath)
		return &TransportError{
			Op:  "write",
			Err: fmt.Errorf("failed to rename %s: %w", tmpPath, err),
		}
	}

	log.Debug().
		Str("remote", remotePath).
		Int("bytes", len(data)).
		Dur("duration", time.Since(startTime)).
		Msg("file written")

	return nil
}

// createSFTPClient opens an SFTP session on the tunnel.
func (c *SSHClient) createSFTPClient() (*sftp.Client, error) {
	sshClient, err := c.getClient()
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, &TransportError{
			Op:          "sftp-init",
			Err:         fmt.Errorf("failed to create SFTP client: %w", err),
			IsTemporary: true,
		}
	}

	return sftpClient, nil
}

// copyWithContext copies from src to dst, checking ctx between chunks.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, err := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[0:nr])
			if nw > 0 {
				written += int64(nw)
			}
			if werr != nil {
				return written, werr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if err != nil {
			if err == io.EOF {
				return written, nil
			}
			return written, err
		}
	}
}
