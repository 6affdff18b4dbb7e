// Package eval implements the Expectation Evaluator: a pure function from
// (outcome, expectation) to one of {OK, FAIL, IGNORE}.
package eval

import "github.com/justapithecus/actiondriver/types"

// Classify evaluates outcome against expectation per spec.md §4.7:
//   - !outcome.Matters              -> IGNORE
//   - expectation.Matches(outcome)  -> OK
//   - otherwise                     -> FAIL
func Classify(outcome types.Outcome, expectation types.Expectation) types.ResultValue {
	if !outcome.Matters {
		return types.ResultValueIgnore
	}
	if expectation.Matches(outcome) {
		return types.ResultValueOK
	}
	return types.ResultValueFail
}
