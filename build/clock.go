package build

import "github.com/raulk/clock"

// Clock is the global clock for the system. In standard builds,
// we use a real-time clock, which maps to the `time` package.
//
// Tests that need control of time can pass clock.NewMock() to the
// components that accept one instead.
var Clock = clock.New()
