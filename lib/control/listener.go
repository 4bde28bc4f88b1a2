// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// MaxPathLength is the longest socket path that fits in sun_path with
// its terminator.
const MaxPathLength = 107

// Listener errors. Bind, listen and accept failures wrap the system
// error as well, so both match with errors.Is.
var (
	// ErrArg reports an empty socket path or one longer than
	// MaxPathLength.
	ErrArg    = errors.New("control: invalid argument")
	ErrBind   = errors.New("control: bind failed")
	ErrListen = errors.New("control: listen failed")
	ErrAccept = errors.New("control: accept failed")
)

// Listener accepts control connections on a Unix socket. Close removes
// the socket file.
type Listener struct {
	path     string
	listener *net.UnixListener

	closeOnce sync.Once
	closeErr  error
}

// Listen binds path, replacing any stale socket file, and restricts
// the socket to its owner.
func Listen(path string) (*Listener, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty socket path", ErrArg)
	}
	if len(path) > MaxPathLength {
		return nil, fmt.Errorf("%w: socket path is %d bytes, limit %d", ErrArg, len(path), MaxPathLength)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: removing stale socket %s: %w", ErrBind, path, err)
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		var syscallErr *os.SyscallError
		if errors.As(err, &syscallErr) && syscallErr.Syscall == "listen" {
			return nil, fmt.Errorf("%w: %s: %w", ErrListen, path, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrBind, path, err)
	}
	// The listener owns the file from here; Close unlinks it.
	listener.SetUnlinkOnClose(true)

	if err := os.Chmod(path, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("%w: chmod %s: %w", ErrBind, path, err)
	}
	return &Listener{path: path, listener: listener}, nil
}

// Path is the socket file the listener is bound to.
func (l *Listener) Path() string { return l.path }

// Accept waits for the next connection. Interrupted or aborted
// accepts are retried. After Close it returns an error matching
// net.ErrClosed.
func (l *Listener) Accept() (*Conn, error) {
	for {
		conn, err := l.listener.AcceptUnix()
		if err == nil {
			return &Conn{UnixConn: conn}, nil
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, err
		}
		if retryableAccept(err) {
			continue
		}
		return nil, fmt.Errorf("%w: %w", ErrAccept, err)
	}
}

func retryableAccept(err error) bool {
	if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ECONNABORTED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Close stops accepting and removes the socket file. Idempotent.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() { l.closeErr = l.listener.Close() })
	return l.closeErr
}

// Conn is one accepted control connection. Close is idempotent.
type Conn struct {
	*net.UnixConn

	closeOnce sync.Once
	closeErr  error
}

// Close closes the connection once; later calls return the first
// result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.UnixConn.Close() })
	return c.closeErr
}
