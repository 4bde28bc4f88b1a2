// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"testing"

	"github.com/yai-labs/yai/lib/vault"
)

func TestCheckIntegrity(t *testing.T) {
	cluster := newCluster(t, 5)

	if CheckIntegrity(cluster) || cluster.Brain().Locked() {
		t.Fatal("integrity check locked a healthy cluster")
	}

	cluster.Core().Charge(6)
	cluster.Core().SetLocked(false)
	before := cluster.Brain().Snapshot()

	for i := 0; i < 3; i++ {
		if !CheckIntegrity(cluster) {
			t.Fatalf("pass %d did not report the breach", i)
		}
	}
	after := cluster.Brain().Snapshot()
	if !after.AuthorityLock {
		t.Fatal("brain plane not locked")
	}
	after.AuthorityLock = before.AuthorityLock
	if after != before {
		t.Errorf("integrity check changed more than the lock:\n%+v\n%+v", before, after)
	}
	if cluster.Core().Locked() {
		t.Error("integrity check touched the core lock")
	}
}

func TestCheckIntegrityNil(t *testing.T) {
	if CheckIntegrity(nil) {
		t.Error("nil cluster reported a breach")
	}
}

func TestEmergencyLock(t *testing.T) {
	core := newCluster(t, 5).Core()
	EmergencyLock(core)
	if core.Status() != vault.StatusError || !core.Locked() {
		t.Errorf("after emergency lock: %+v", core.Snapshot())
	}
}
