// Package execs provides utilities for executing external commands, as defined
// by configuration.
//
// It is implemented by the `profile` and `scan` packages, and provides a
// standard implementation for renderer and scanner invocations as well as any
// hooks.
package execs
