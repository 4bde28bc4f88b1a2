// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets time-driven components run against a controllable
// clock in tests.
//
// The engine poll loop, the producer retry loop and the audit
// timestamps take a Clock instead of calling the time package. Binaries
// pass Real(); tests pass Fake() and move time with Advance:
//
//	c := clock.Fake(time.Unix(0, 0))
//	go engine.Run(ctx)
//	c.WaitForTimers(1)
//	c.Advance(50 * time.Millisecond)
package clock
