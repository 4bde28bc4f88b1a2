// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"fmt"
	"strconv"
	"time"

	"github.com/yai-labs/yai/lib/envelope"
)

// Unspecified fills evidence fields the caller has no value for.
const Unspecified = "unspecified"

const (
	AuthorityOK     = "ok"
	AuthorityDenied = "denied"
)

// Evidence describes one external effect.
type Evidence struct {
	Effect       string `cbor:"effect"`
	Class        string `cbor:"class"`
	Target       string `cbor:"target"`
	Irreversible bool   `cbor:"irreversible"`
	Authority    string `cbor:"authority"`
	Intent       string `cbor:"intent"`
	Risk         string `cbor:"risk"`
	Mitigation   string `cbor:"mitigation"`

	CommandID   uint32 `cbor:"command_id"`
	WorkspaceID string `cbor:"workspace_id"`
	TraceID     string `cbor:"trace_id,omitempty"`

	// Timestamp is Unix milliseconds.
	Timestamp int64 `cbor:"timestamp"`
}

// New builds the evidence record for command with the default
// unspecified target, intent and risk.
func New(command envelope.CommandID, workspaceID, traceID string, at time.Time) Evidence {
	class := envelope.Classify(command)
	className := "external"
	if class.Irreversible() {
		className = "irreversible"
	}
	return Evidence{
		Effect:       "external",
		Class:        className,
		Target:       Unspecified,
		Irreversible: class.Irreversible(),
		Authority:    AuthorityOK,
		Intent:       Unspecified,
		Risk:         Unspecified,
		Mitigation:   "none",
		CommandID:    uint32(command),
		WorkspaceID:  workspaceID,
		TraceID:      traceID,
		Timestamp:    at.UnixMilli(),
	}
}

// String renders the semicolon-separated form stored in the response
// buffer.
func (e Evidence) String() string {
	return fmt.Sprintf("effect=%s;class=%s;target=%s;irreversible=%s;authority=%s;intent=%s;risk=%s;mitigation=%s",
		e.Effect, e.Class, e.Target, strconv.FormatBool(e.Irreversible),
		e.Authority, e.Intent, e.Risk, e.Mitigation)
}
