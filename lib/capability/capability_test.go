// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestBitValues(t *testing.T) {
	want := map[Set]uint32{FSRead: 1, FSWrite: 2, NetOut: 4, ProcessSpawn: 8, LLMDirect: 16}
	for set, value := range want {
		if uint32(set) != value {
			t.Errorf("%s = %d, want %d", set, uint32(set), value)
		}
	}
}

func TestSetString(t *testing.T) {
	if got := (FSRead | LLMDirect).String(); got != "FS_READ|LLM_DIRECT" {
		t.Errorf("String = %q", got)
	}
	if got := Set(0).String(); got != "NONE" {
		t.Errorf("empty String = %q", got)
	}
	if got := (NetOut | 1<<10).String(); got != "NET_OUT|0x400" {
		t.Errorf("undefined bits String = %q", got)
	}
}

func TestParseList(t *testing.T) {
	set, err := ParseList("fs_read, NET_OUT|llm_direct")
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if set != FSRead|NetOut|LLMDirect {
		t.Errorf("set = %s", set)
	}
	if _, err := ParseList("FS_READ,ROOT"); err == nil {
		t.Error("ParseList accepted an unknown name")
	}
}

func TestSetJSON(t *testing.T) {
	data, err := json.Marshal(FSWrite | ProcessSpawn)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["FS_WRITE","PROCESS_SPAWN"]` {
		t.Errorf("Marshal = %s", data)
	}

	var fromNames, fromMask Set
	if err := json.Unmarshal(data, &fromNames); err != nil || fromNames != FSWrite|ProcessSpawn {
		t.Errorf("Unmarshal names = %s, %v", fromNames, err)
	}
	if err := json.Unmarshal([]byte("17"), &fromMask); err != nil || fromMask != FSRead|LLMDirect {
		t.Errorf("Unmarshal mask = %s, %v", fromMask, err)
	}
	var bad Set
	if err := json.Unmarshal([]byte("64"), &bad); err == nil {
		t.Error("accepted an undefined bit")
	}
}

const contractsDocument = `{
  // model access for the scout only
  "contracts": [
    {"agent_id": "scout", "capabilities": ["FS_READ", "LLM_DIRECT"], "memory_limit": 1024,},
    /* builder writes files */
    {"agent_id": "builder", "capabilities": 3},
  ],
}`

func TestParseContracts(t *testing.T) {
	registry, err := ParseContracts([]byte(contractsDocument))
	if err != nil {
		t.Fatalf("ParseContracts: %v", err)
	}
	if registry.Len() != 2 {
		t.Fatalf("Len = %d", registry.Len())
	}
	scout, ok := registry.Lookup("scout")
	if !ok || scout.MemoryLimit != 1024 || scout.Capabilities != FSRead|LLMDirect {
		t.Errorf("scout = %+v", scout)
	}
}

func TestParseContractsErrors(t *testing.T) {
	for name, document := range map[string]string{
		"missing agent":  `{"contracts":[{"capabilities":[]}]}`,
		"duplicate":      `{"contracts":[{"agent_id":"a"},{"agent_id":"a"}]}`,
		"unknown name":   `{"contracts":[{"agent_id":"a","capabilities":["SUDO"]}]}`,
		"not a document": `[`,
	} {
		if _, err := ParseContracts([]byte(document)); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestCheck(t *testing.T) {
	registry := NewRegistry(Contract{AgentID: "scout", Capabilities: FSRead | LLMDirect})

	tests := []struct {
		agent    string
		required Set
		want     bool
	}{
		{"scout", LLMDirect, true},
		{"scout", FSRead | LLMDirect, true},
		{"scout", NetOut, false},
		{"scout", LLMDirect | NetOut, false},
		{"stranger", FSRead, false},
		{"stranger", 0, false},
	}
	for _, test := range tests {
		if got := registry.Check(test.agent, test.required); got != test.want {
			t.Errorf("Check(%q, %s) = %v, want %v", test.agent, test.required, got, test.want)
		}
	}
}

func TestNarrow(t *testing.T) {
	registry := NewRegistry(Contract{AgentID: "scout", Capabilities: FSRead | LLMDirect})
	if got := registry.Narrow("scout", All); got != FSRead|LLMDirect {
		t.Errorf("Narrow(All) = %s", got)
	}
	if got := registry.Narrow("scout", NetOut); got != 0 {
		t.Errorf("Narrow(NET_OUT) = %s", got)
	}
	if got := registry.Narrow("stranger", All); got != 0 {
		t.Errorf("Narrow for unknown agent = %s", got)
	}

	registry.Register(Contract{AgentID: "scout", Capabilities: NetOut})
	if got := registry.Narrow("scout", All); got != NetOut {
		t.Errorf("after Register, Narrow = %s", got)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	registry, err := LoadFile(filepath.Join(dir, "absent.jsonc"))
	if err != nil || registry.Len() != 0 {
		t.Errorf("missing file = %v, %v", registry, err)
	}

	path := filepath.Join(dir, "contracts.jsonc")
	if err := os.WriteFile(path, []byte(contractsDocument), 0600); err != nil {
		t.Fatal(err)
	}
	registry, err = LoadFile(path)
	if err != nil || !registry.Check("builder", FSWrite) {
		t.Errorf("LoadFile = %v, %v", registry, err)
	}
}
