// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML configuration shared by yai-boot,
// yai-kernel, yai-engine and the yai CLI.
//
// The file comes from the --config flag or the YAI_CONFIG environment
// variable. When neither is set the built-in [Default] is used, so a
// fresh checkout runs without any file. There is no directory search.
//
// A file may carry development and production sections that override
// base values when [Config].Environment matches. After loading, path
// fields expand ${HOME}, ${YAI_ROOT} and ${VAR:-default}.
package config
