// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/yai-labs/yai/lib/envelope"
)

const (
	// readTimeout bounds how long a client may take to send its frame.
	readTimeout = 30 * time.Second

	writeTimeout = 10 * time.Second
)

// Request is one received frame.
type Request struct {
	Envelope envelope.Envelope
	Payload  []byte
}

// Reply is the frame written back. The transport seals it, so
// Envelope.PayloadLen and Envelope.Checksum are ignored.
type Reply struct {
	Envelope envelope.Envelope
	Payload  []byte
}

// ReplyTo builds a reply carrying payload with the request's command
// id, ws_id and trace_id.
func ReplyTo(request Request, payload []byte) Reply {
	return Reply{Envelope: envelope.PrepareAck(&request.Envelope), Payload: payload}
}

// Handler processes one request. Returning false closes the connection
// without a reply.
type Handler func(ctx context.Context, request Request) (Reply, bool)

// Server runs the accept loop for one control socket. Each connection
// gets its own goroutine doing read, validate, handle, write and close.
type Server struct {
	path     string
	capacity int
	handler  Handler
	logger   *slog.Logger

	active sync.WaitGroup
}

// NewServer creates a server for path. capacity is the largest request
// payload accepted.
func NewServer(path string, capacity int, handler Handler, logger *slog.Logger) *Server {
	return &Server{path: path, capacity: capacity, handler: handler, logger: logger}
}

// Serve listens on the configured path and blocks until ctx is
// cancelled. In-flight connections finish before Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := Listen(s.path)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener is Serve on an existing listener, which it closes on
// return.
func (s *Server) ServeListener(ctx context.Context, listener *Listener) error {
	defer listener.Close()

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	s.logger.Info("control socket listening", "path", listener.Path())

	var acceptErr error
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			acceptErr = err
			s.logger.Error("accept failed", "path", listener.Path(), "error", err)
			break
		}

		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.active.Wait()
	return acceptErr
}

func (s *Server) handleConnection(ctx context.Context, conn *Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	env, payload, err := ReadFrame(conn, s.capacity)
	if err != nil {
		s.logger.Debug("dropping frame", "path", s.path, "error", err)
		return
	}
	if !envelope.ValidWorkspaceID(env.WorkspaceID) {
		s.logger.Warn("dropping frame with unsafe ws_id",
			"path", s.path,
			"ws_id", env.WorkspaceID,
			"trace_id", env.TraceID,
		)
		return
	}

	reply, ok := s.handler(ctx, Request{Envelope: env, Payload: payload})
	if !ok {
		return
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := WriteFrame(conn, reply.Envelope, reply.Payload); err != nil {
		s.logger.Debug("writing reply failed",
			"path", s.path,
			"command", env.CommandID,
			"error", err,
		)
	}
}
