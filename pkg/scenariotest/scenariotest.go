// Package scenariotest offers small polling helpers for asserting on
// asynchronous engine state in the engine's own test suite and in
// scenario-author tests.
package scenariotest

import (
	"time"

	"github.com/stretchr/testify/require"
)

// TB is the subset of testing.TB scenariotest needs, so callers can also
// pass a require.TestingT-compatible fake in their own tests.
type TB interface {
	require.TestingT
	Helper()
}

// EventuallyTrue polls predicate every 50ms until it returns true or
// timeout elapses, failing the test via t.Fatalf (or require's Errorf +
// FailNow, depending on the TB implementation) with msgAndArgs.
func EventuallyTrue(t TB, timeout time.Duration, predicate func() bool, msgAndArgs ...any) {
	t.Helper()
	require.Eventually(t, predicate, timeout, 50*time.Millisecond, msgAndArgs...)
}
