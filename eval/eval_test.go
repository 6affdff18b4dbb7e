package eval

import (
	"testing"

	"github.com/justapithecus/actiondriver/types"
)

func TestClassify_IgnoresWhenOutcomeDoesNotMatter(t *testing.T) {
	outcome := types.Outcome{Name: "A", Result: types.ResultExecFailed, Matters: false}
	expectation := types.Expectation{Result: types.ResultSuccess}

	if got := Classify(outcome, expectation); got != types.ResultValueIgnore {
		t.Errorf("Classify() = %v, want IGNORE", got)
	}
}

func TestClassify_OKOnMatch(t *testing.T) {
	outcome := types.Outcome{Name: "A", Result: types.ResultSuccess, Matters: true}
	expectation := types.Expectation{Result: types.ResultSuccess}

	if got := Classify(outcome, expectation); got != types.ResultValueOK {
		t.Errorf("Classify() = %v, want OK", got)
	}
}

func TestClassify_FailOnMismatch(t *testing.T) {
	outcome := types.Outcome{Name: "B", Result: types.ResultExecFailed, Matters: true}
	expectation := types.Expectation{Result: types.ResultSuccess}

	if got := Classify(outcome, expectation); got != types.ResultValueFail {
		t.Errorf("Classify() = %v, want FAIL", got)
	}
}

func TestClassify_ExecTimeoutCanMatchExpectation(t *testing.T) {
	outcome := types.Outcome{Name: "E", Result: types.ResultExecTimeout, Matters: true}
	expectation := types.Expectation{Result: types.ResultExecTimeout}

	if got := Classify(outcome, expectation); got != types.ResultValueOK {
		t.Errorf("Classify() = %v, want OK when expectation explicitly matches EXEC_TIMEOUT", got)
	}
}
