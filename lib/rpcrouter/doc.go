// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpcrouter maps an RPC frame to the collaborator that serves
// it and returns the JSON reply body.
//
// The router never fails with a Go error: every outcome, including a
// malformed request, is a JSON document. Errors have the shape
// {"status":"error","code":"ERR_..."}. Collaborator replies are
// returned as produced.
package rpcrouter
