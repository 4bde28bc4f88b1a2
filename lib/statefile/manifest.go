// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package statefile

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Manifest records one boot of a workspace: which vault segments were
// created and under which trace id.
type Manifest struct {
	Version     string    `cbor:"version" json:"version"`
	WorkspaceID string    `cbor:"workspace_id" json:"workspace_id"`
	TraceID     string    `cbor:"trace_id" json:"trace_id"`
	PID         int       `cbor:"pid" json:"pid"`
	BootedAt    time.Time `cbor:"booted_at" json:"booted_at"`
	VaultDir    string    `cbor:"vault_dir" json:"vault_dir"`
	Segments    []string  `cbor:"segments" json:"segments"`
	EnergyQuota uint64    `cbor:"energy_quota" json:"energy_quota"`
}

// TraceID formats the boot trace id for a numeric seed, "boot-%08x".
func TraceID(seed uint32) string {
	return fmt.Sprintf("boot-%08x", seed)
}

// ReadManifest returns the manifest at path. found is false when the
// file does not exist.
func ReadManifest(path string) (Manifest, bool, error) {
	var manifest Manifest
	if err := Read(path, &manifest); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, false, nil
		}
		return Manifest{}, false, err
	}
	return manifest, true, nil
}

// Mismatches compares the manifest with the workspace, trace id and
// energy quota found in an attached vault. Each entry describes one
// field that differs; none means the vault is the one this boot
// created.
func (m Manifest) Mismatches(workspaceID, traceID string, quota uint64) []string {
	var mismatches []string
	if m.WorkspaceID != workspaceID {
		mismatches = append(mismatches, fmt.Sprintf("workspace_id: manifest %q, vault %q", m.WorkspaceID, workspaceID))
	}
	if m.TraceID != traceID {
		mismatches = append(mismatches, fmt.Sprintf("trace_id: manifest %q, vault %q", m.TraceID, traceID))
	}
	if m.EnergyQuota != quota {
		mismatches = append(mismatches, fmt.Sprintf("energy_quota: manifest %d, vault %d", m.EnergyQuota, quota))
	}
	return mismatches
}
