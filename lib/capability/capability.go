// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"strings"
)

// Set is a bit set of capabilities.
type Set uint32

const (
	FSRead Set = 1 << iota
	FSWrite
	NetOut
	ProcessSpawn
	LLMDirect
)

// All is every defined capability.
const All = FSRead | FSWrite | NetOut | ProcessSpawn | LLMDirect

var names = []struct {
	bit  Set
	name string
}{
	{FSRead, "FS_READ"},
	{FSWrite, "FS_WRITE"},
	{NetOut, "NET_OUT"},
	{ProcessSpawn, "PROCESS_SPAWN"},
	{LLMDirect, "LLM_DIRECT"},
}

// Has reports whether s contains every bit of required.
func (s Set) Has(required Set) bool { return s&required == required }

// String joins capability names with '|'. Undefined bits render as a
// hex remainder.
func (s Set) String() string {
	if s == 0 {
		return "NONE"
	}
	var parts []string
	for _, entry := range names {
		if s&entry.bit != 0 {
			parts = append(parts, entry.name)
		}
	}
	if rest := s &^ All; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// Names returns the defined capability names in s, lowest bit first.
func (s Set) Names() []string {
	out := make([]string, 0, bits.OnesCount32(uint32(s)))
	for _, entry := range names {
		if s&entry.bit != 0 {
			out = append(out, entry.name)
		}
	}
	return out
}

// ParseName maps a capability name, case-insensitively, to its bit.
func ParseName(name string) (Set, error) {
	for _, entry := range names {
		if strings.EqualFold(entry.name, name) {
			return entry.bit, nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", name)
}

// ParseList parses a comma- or '|'-separated list of names.
func ParseList(list string) (Set, error) {
	var set Set
	for _, field := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == '|' }) {
		bit, err := ParseName(strings.TrimSpace(field))
		if err != nil {
			return 0, err
		}
		set |= bit
	}
	return set, nil
}

// MarshalJSON encodes the set as a list of names.
func (s Set) MarshalJSON() ([]byte, error) { return json.Marshal(s.Names()) }

// UnmarshalJSON accepts a list of names or a raw bit mask.
func (s *Set) UnmarshalJSON(data []byte) error {
	var mask uint32
	if err := json.Unmarshal(data, &mask); err == nil {
		if Set(mask)&^All != 0 {
			return fmt.Errorf("capability mask 0x%x has undefined bits", mask)
		}
		*s = Set(mask)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("capabilities must be a list of names or a bit mask: %w", err)
	}
	var set Set
	for _, name := range list {
		bit, err := ParseName(name)
		if err != nil {
			return err
		}
		set |= bit
	}
	*s = set
	return nil
}
