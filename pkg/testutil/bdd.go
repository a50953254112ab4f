package testutil

import "testing"

// step runs fn as a subtest named "<keyword> <desc>". A failed Given stops
// the enclosing test since later steps depend on its fixture.
func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return t.Run(keyword+" "+desc, fn)
}

func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	if !step(t, "Given", desc, fn) {
		t.FailNow()
	}
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "When", desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Then", desc, fn)
}

// And continues the previous step with another expectation or action.
func And(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "And", desc, fn)
}
