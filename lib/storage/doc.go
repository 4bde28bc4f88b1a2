// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage is the reference STORAGE_RPC collaborator: a
// workspace-scoped key/value store on SQLite.
//
// Keys are strings, values are arbitrary JSON documents stored as
// compact text. Every row is keyed by (workspace, key), so two
// workspaces never see each other's data. Methods:
//
//	get    {"key": k}             -> {"status":"ok","key":k,"value":v}
//	put    {"key": k, "value": v} -> {"status":"ok","key":k}
//	delete {"key": k}             -> {"status":"ok","key":k,"deleted":bool}
//	list   {"prefix": p}          -> {"status":"ok","keys":[...]}
//
// Failures use the router's error shape with codes ERR_UNKNOWN_METHOD,
// ERR_INVALID_PARAMS, ERR_NOT_FOUND and ERR_STORAGE.
package storage
