// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import "github.com/yai-labs/yai/lib/vault"

// CheckIntegrity locks the brain plane when the core plane has spent
// more than its quota and reports whether it did. Repeated calls after
// a breach leave the lock set and change nothing else.
func CheckIntegrity(cluster *vault.Cluster) bool {
	if cluster == nil {
		return false
	}
	core, brain := cluster.Core(), cluster.Brain()
	if core == nil || brain == nil {
		return false
	}
	if core.EnergyConsumed() <= core.EnergyQuota() {
		return false
	}
	brain.SetLocked(true)
	return true
}

// EmergencyLock moves v to ERROR with authority_lock set. The engine
// calls it when it is told to stop by a signal.
func EmergencyLock(v *vault.Vault) {
	v.Lock()
	defer v.Unlock()
	v.SetLocked(true)
	v.SetStatus(vault.StatusError)
	v.SetLastError("Emergency lock: engine interrupted")
}
