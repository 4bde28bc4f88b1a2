// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch is the owner-side state machine for a workspace
// vault.
//
// [Dispatcher.Process] applies one mailbox command to a plane: it gates
// EXTERNAL commands on authority_lock, records evidence for the ones
// allowed through, runs the command, then ticks the logical clock and
// charges energy. [Engine] is the poll loop around it, and
// [CheckIntegrity] throttles the brain plane when the core plane
// overspends its quota.
//
// Status transitions driven here:
//
//	any      --PING/NOOP/HANDSHAKE-->     READY
//	any      --EXTERNAL while locked-->   SUSPENDED
//	SUSPENDED --RECONFIGURE-->            HALT (lock cleared)
//	other    --RECONFIGURE-->             SUSPENDED
//	any      --unknown id-->              ERROR
//
// HALT and ERROR end the poll loop.
package dispatch
