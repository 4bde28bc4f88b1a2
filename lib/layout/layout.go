// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// RootWorkspace is the plane-agnostic root workspace. PING frames
	// addressed to it report plane "root".
	RootWorkspace = "root"

	// KernelWorkspace names the kernel control plane directory.
	KernelWorkspace = "kernel"

	SocketName   = "control.sock"
	AuditName    = "audit.cbor"
	ManifestName = "boot.cbor"

	// MaxWorkspaceIDLength leaves room for the NUL terminator in the
	// 64-byte ws_id field.
	MaxWorkspaceIDLength = 63

	// maxSocketPath is the sun_path limit without the terminator.
	maxSocketPath = 107
)

// allowedChars is the ws_id character set: a-z, A-Z, 0-9, '.', '_' and
// '-'.
var allowedChars [256]bool

func init() {
	for c := 'a'; c <= 'z'; c++ {
		allowedChars[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		allowedChars[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		allowedChars[c] = true
	}
	allowedChars['.'] = true
	allowedChars['_'] = true
	allowedChars['-'] = true
}

// ValidateWorkspaceID checks that id is usable as a socket directory
// and a vault segment name.
func ValidateWorkspaceID(id string) error {
	if id == "" {
		return fmt.Errorf("workspace id is empty")
	}
	if len(id) > MaxWorkspaceIDLength {
		return fmt.Errorf("workspace id is %d bytes, maximum is %d", len(id), MaxWorkspaceIDLength)
	}
	for i := 0; i < len(id); i++ {
		if !allowedChars[id[i]] {
			return fmt.Errorf("invalid character %q at position %d in workspace id", id[i], i)
		}
	}
	if id[0] == '.' {
		return fmt.Errorf("workspace id %q starts with '.'", id)
	}
	if id == KernelWorkspace {
		return fmt.Errorf("workspace id %q is reserved", id)
	}
	return nil
}

// Layout resolves paths under one run directory.
type Layout struct {
	RunDir string
}

// New returns the layout rooted at runDir.
func New(runDir string) Layout { return Layout{RunDir: runDir} }

// WorkspaceDir holds one workspace's socket, audit log and manifest.
func (l Layout) WorkspaceDir(workspaceID string) string {
	return filepath.Join(l.RunDir, workspaceID)
}

// RootSocket and KernelSocket are the two kernel control sockets.
func (l Layout) RootSocket() string   { return filepath.Join(l.RunDir, RootWorkspace, SocketName) }
func (l Layout) KernelSocket() string { return filepath.Join(l.RunDir, KernelWorkspace, SocketName) }

// WorkspaceSocket is the engine control socket of workspaceID.
func (l Layout) WorkspaceSocket(workspaceID string) string {
	return filepath.Join(l.RunDir, workspaceID, SocketName)
}

// AuditLog is the evidence log of workspaceID.
func (l Layout) AuditLog(workspaceID string) string {
	return filepath.Join(l.RunDir, workspaceID, AuditName)
}

// Manifest is the boot manifest written by yai-boot for workspaceID.
func (l Layout) Manifest(workspaceID string) string {
	return filepath.Join(l.RunDir, workspaceID, ManifestName)
}

// CheckSocketPath fails when path does not fit in sun_path.
func CheckSocketPath(path string) error {
	if len(path) > maxSocketPath {
		return fmt.Errorf("socket path %s is %d bytes, limit %d; shorten the run directory", path, len(path), maxSocketPath)
	}
	return nil
}

// EnsureWorkspace creates the run directory entries for workspaceID
// with owner-only permissions.
func (l Layout) EnsureWorkspace(workspaceID string) error {
	if err := ValidateWorkspaceID(workspaceID); err != nil && workspaceID != KernelWorkspace {
		return err
	}
	if err := CheckSocketPath(l.WorkspaceSocket(workspaceID)); err != nil {
		return err
	}
	if err := os.MkdirAll(l.WorkspaceDir(workspaceID), 0700); err != nil {
		return fmt.Errorf("creating %s: %w", l.WorkspaceDir(workspaceID), err)
	}
	return nil
}

// EnsureLayout creates the run directory with its root and kernel
// plane directories.
func (l Layout) EnsureLayout() error {
	if err := os.MkdirAll(l.RunDir, 0700); err != nil {
		return fmt.Errorf("creating run directory %s: %w", l.RunDir, err)
	}
	for _, entry := range []string{RootWorkspace, KernelWorkspace} {
		if err := l.EnsureWorkspace(entry); err != nil {
			return err
		}
	}
	return nil
}
