// Package pipeline runs the analysis as an ordered list of steps:
// acquire, assemble, estimate and report.
//
// Steps share a RunState that carries the typed outputs of earlier steps.
// The Runner executes steps one after another on the calling goroutine,
// wraps each in a span, records its duration and stops at the first failure.
// Steps after a failure stay pending.
package pipeline
