// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/yai-labs/yai/lib/envelope"
)

// ErrConnect is returned when the socket cannot be reached.
var ErrConnect = errors.New("control: connect failed")

// defaultCallTimeout applies when ctx has no deadline.
const defaultCallTimeout = 30 * time.Second

// Call sends one frame to the socket at path and reads the reply. A
// server that refuses the frame closes without replying, which
// surfaces as ErrRead.
func Call(ctx context.Context, path string, env envelope.Envelope, payload []byte, capacity int) (envelope.Envelope, []byte, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return envelope.Envelope{}, nil, fmt.Errorf("%w: %s: %w", ErrConnect, path, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultCallTimeout)
	}
	conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	if err := WriteFrame(conn, env, payload); err != nil {
		return envelope.Envelope{}, nil, err
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}
	return ReadFrame(conn, capacity)
}
