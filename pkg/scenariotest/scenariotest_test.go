package scenariotest_test

import (
	"testing"
	"time"

	"github.com/udamir/testurio/pkg/scenariotest"
)

func TestEventuallyTrue_PollsUntilTrue(t *testing.T) {
	var n int
	scenariotest.EventuallyTrue(t, time.Second, func() bool {
		n++
		return n >= 3
	}, "expected predicate to become true")
}
