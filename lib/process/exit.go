// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// ExitError carries a specific exit code out of run(). The CLI uses it
// to report a refused command (code 2) separately from a transport
// failure (code 1).
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// Fatal prints "error: err" to stderr and exits. The exit code is 1
// unless err wraps an *ExitError. Called from main() where the logger
// may not exist yet.
func Fatal(err error) {
	code := 1
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(code)
}
