// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault maps the fixed-layout state record that a workspace
// plane shares between processes.
//
// Each (workspace, plane) pair has one segment file, by default under
// /dev/shm, holding a 2520-byte little-endian record. yai-boot creates
// the segments, the engine owns the outcome fields (status, lock,
// energy, response) and the kernel acts as a producer that deposits
// one command at a time in the mailbox.
//
// The mailbox is a single slot. A producer takes the producer_guard
// word by compare-and-swap, marks command_generation odd, writes the
// command id and payload, marks the generation even and only then
// publishes the new command_seq with an atomic store. The owner reads
// command_seq, copies the command under the generation seqlock and
// advances last_processed_seq after the command is fully applied.
// While command_seq != last_processed_seq the slot is occupied and
// [Vault.Submit] returns [ErrSlotBusy].
//
// All scalar fields are accessed with sync/atomic through pointers into
// the mapping. Multi-byte text fields are plain copies; readers outside
// the owner process observe them after last_processed_seq moves.
package vault
