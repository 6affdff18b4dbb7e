package builder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/justapithecus/actiondriver/ledger"
	"github.com/justapithecus/actiondriver/log"
	"github.com/justapithecus/actiondriver/queue"
	"github.com/justapithecus/actiondriver/types"
)

type fakeExpectationStore struct {
	byName map[string]types.Expectation
}

func (f *fakeExpectationStore) Get(name string) (types.Expectation, bool) {
	e, ok := f.byName[name]
	return e, ok
}

// fakeMode builds successfully unless the action name is in failNames (a
// normal COMPILE_FAILED Outcome), panicNames (a Go-level panic), or
// errNames (a Go-level error return) — the latter two simulate a builder
// exception rather than an ordinary build failure.
type fakeMode struct {
	failNames  map[string]bool
	errNames   map[string]bool
	panicNames map[string]bool
}

func (m *fakeMode) Prepare(ctx context.Context) error { return nil }
func (m *fakeMode) BuildAndInstall(ctx context.Context, action types.Action) (*types.Outcome, error) {
	if m.panicNames[action.Name] {
		panic("simulated toolchain panic")
	}
	if m.errNames[action.Name] {
		return nil, errors.New("unexpected i/o error")
	}
	if m.failNames[action.Name] {
		return &types.Outcome{Name: action.Name, Result: types.ResultCompileFailed, Matters: true, Message: "compile error"}, nil
	}
	return nil, nil
}
func (m *fakeMode) CreateActionCommand(ctx context.Context, action types.Action, monitorPort int) (types.Command, error) {
	return nil, nil
}
func (m *fakeMode) Cleanup(ctx context.Context, action types.Action) error { return nil }
func (m *fakeMode) Shutdown(ctx context.Context) error                    { return nil }
func (m *fakeMode) GetClasspath() []string                                { return nil }

func newPool(mode types.Mode, q *queue.Queue, l *ledger.Ledger, width int) *Pool {
	return &Pool{
		Mode:         mode,
		Expectations: &fakeExpectationStore{byName: map[string]types.Expectation{}},
		Ledger:       l,
		Queue:        q,
		Logger:       log.NewLogger(log.Scope{RunID: "t"}),
		Width:        width,
	}
}

func TestPool_Run_EnqueuesEveryAction(t *testing.T) {
	actions := []types.Action{
		{Name: "A", Runner: types.RunnerSpec{Kind: types.RunnerKindMain}},
		{Name: "B", Runner: types.RunnerSpec{Kind: types.RunnerKindMain}},
		{Name: "C", Runner: types.RunnerSpec{Kind: types.RunnerKindSuite}},
	}

	q := queue.New(len(actions))
	l := ledger.New()
	pool := newPool(&fakeMode{failNames: map[string]bool{}}, q, l, 2)

	if err := pool.Run(context.Background(), actions); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < len(actions); i++ {
		action, ok, err := q.Poll(context.Background(), time.Second)
		if err != nil || !ok {
			t.Fatalf("expected %d items on the ready queue, got error=%v ok=%v at i=%d", len(actions), err, ok, i)
		}
		seen[action.Name] = true
	}
	for _, a := range actions {
		if !seen[a.Name] {
			t.Errorf("action %s never reached the ready queue", a.Name)
		}
	}
}

func TestPool_Run_FailedBuildStillEnqueuesAndRecordsOutcome(t *testing.T) {
	actions := []types.Action{
		{Name: "A", Runner: types.RunnerSpec{Kind: types.RunnerKindMain}},
	}

	q := queue.New(1)
	l := ledger.New()
	pool := newPool(&fakeMode{failNames: map[string]bool{"A": true}}, q, l, 1)

	if err := pool.Run(context.Background(), actions); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	outcome, ok := l.Get("A")
	if !ok {
		t.Fatalf("expected a COMPILE_FAILED outcome to be recorded for A")
	}
	if outcome.Result != types.ResultCompileFailed {
		t.Errorf("Result = %v, want COMPILE_FAILED", outcome.Result)
	}

	if _, ok, err := q.Poll(context.Background(), time.Second); err != nil || !ok {
		t.Fatalf("expected A to still be enqueued despite the failed build, got error=%v ok=%v", err, ok)
	}
}

func TestPool_Run_UnsupportedActionRecordsAsSkipAndEnqueuesWithoutBuilding(t *testing.T) {
	actions := []types.Action{
		{Name: "U", Runner: types.RunnerSpec{Kind: types.RunnerKindUnsupported}},
	}

	q := queue.New(1)
	l := ledger.New()
	pool := newPool(&fakeMode{failNames: map[string]bool{"U": true}}, q, l, 1)

	if err := pool.Run(context.Background(), actions); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	outcome, ok := l.Get("U")
	if !ok {
		t.Fatalf("expected an UNSUPPORTED outcome for U")
	}
	if outcome.Result != types.ResultUnsupported {
		t.Errorf("Result = %v, want UNSUPPORTED (build should never have run, since failNames[U] would have made it COMPILE_FAILED otherwise)", outcome.Result)
	}
	if outcome.Matters {
		t.Error("expected UNSUPPORTED outcome to be informational (Matters=false), so it classifies as skipped")
	}
}

func TestPool_Run_BuilderErrorIsLoggedAndLeavesActionUnenqueued(t *testing.T) {
	actions := []types.Action{
		{Name: "A", Runner: types.RunnerSpec{Kind: types.RunnerKindMain}},
	}

	q := queue.New(1)
	l := ledger.New()
	pool := newPool(&fakeMode{errNames: map[string]bool{"A": true}}, q, l, 1)

	if err := pool.Run(context.Background(), actions); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, ok := l.Get("A"); ok {
		t.Error("a builder exception should not record any outcome for the action")
	}
	if _, ok, _ := q.Poll(context.Background(), 50*time.Millisecond); ok {
		t.Error("a builder exception should leave the action un-enqueued so starvation detection can fire")
	}
}

func TestPool_Run_BuilderPanicIsRecoveredAndLeavesActionUnenqueued(t *testing.T) {
	actions := []types.Action{
		{Name: "A", Runner: types.RunnerSpec{Kind: types.RunnerKindMain}},
	}

	q := queue.New(1)
	l := ledger.New()
	pool := newPool(&fakeMode{panicNames: map[string]bool{"A": true}}, q, l, 1)

	if err := pool.Run(context.Background(), actions); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, ok := l.Get("A"); ok {
		t.Error("a builder exception should not record any outcome for the action")
	}
	if _, ok, _ := q.Poll(context.Background(), 50*time.Millisecond); ok {
		t.Error("a recovered panic should leave the action un-enqueued so starvation detection can fire")
	}
}
