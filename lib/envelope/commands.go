// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import "fmt"

// CommandID identifies a command in the shared registry.
type CommandID uint32

const (
	CommandNone CommandID = 0x0000
	CommandPing CommandID = 0x0001
	CommandNoop CommandID = 0x0002

	CommandHandshake   CommandID = 0x0100
	CommandStatus      CommandID = 0x0101
	CommandReconfigure CommandID = 0x0102

	CommandStorageRPC   CommandID = 0x0201
	CommandProviderRPC  CommandID = 0x0202
	CommandEmbeddingRPC CommandID = 0x0203
)

// Class is a bit set describing a command's effects.
type Class uint32

const (
	// ClassInternal commands have no effect outside the process.
	ClassInternal Class = 0

	// ClassExternal commands have effects observable outside the
	// process (network egress, durable writes).
	ClassExternal Class = 1 << 0

	// ClassIrreversible commands cannot be undone by a later command.
	// Always combined with ClassExternal.
	ClassIrreversible Class = 1 << 1
)

// External reports whether the class includes externally visible effects.
func (c Class) External() bool { return c&ClassExternal != 0 }

// Irreversible reports whether the class includes irreversible effects.
func (c Class) Irreversible() bool { return c&ClassIrreversible != 0 }

func (c Class) String() string {
	switch {
	case c.Irreversible():
		return "EXTERNAL|IRREVERSIBLE"
	case c.External():
		return "EXTERNAL"
	default:
		return "INTERNAL"
	}
}

type registryEntry struct {
	name  string
	class Class
}

var registry = map[CommandID]registryEntry{
	CommandNone:         {"NONE", ClassInternal},
	CommandPing:         {"PING", ClassInternal},
	CommandNoop:         {"NOOP", ClassInternal},
	CommandHandshake:    {"HANDSHAKE", ClassInternal},
	CommandStatus:       {"STATUS", ClassInternal},
	CommandReconfigure:  {"RECONFIGURE", ClassInternal},
	CommandStorageRPC:   {"STORAGE_RPC", ClassExternal | ClassIrreversible},
	CommandProviderRPC:  {"PROVIDER_RPC", ClassExternal},
	CommandEmbeddingRPC: {"EMBEDDING_RPC", ClassExternal},
}

// Classify returns the effect class of a command. Unregistered ids are
// INTERNAL: they are rejected by the dispatcher's unknown-command
// branch, which moves the plane to ERROR.
func Classify(command CommandID) Class {
	return registry[command].class
}

// Known reports whether the command id is in the registry.
func Known(command CommandID) bool {
	_, ok := registry[command]
	return ok
}

func (c CommandID) String() string {
	if entry, ok := registry[c]; ok {
		return entry.name
	}
	return fmt.Sprintf("0x%04x", uint32(c))
}

// ParseCommand resolves a registry name ("PING", "STORAGE_RPC") to its
// id.
func ParseCommand(name string) (CommandID, error) {
	for id, entry := range registry {
		if entry.name == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("envelope: unknown command %q", name)
}
