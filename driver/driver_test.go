package driver

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/justapithecus/actiondriver/ipc"
	"github.com/justapithecus/actiondriver/log"
	"github.com/justapithecus/actiondriver/types"
)

func testConfig(t *testing.T) types.Config {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := types.DefaultConfig()
	cfg.NumRunnerThreads = 2
	cfg.FirstMonitorPort = port
	cfg.MonitorTimeout = 2 * time.Second
	cfg.StarvationTimeout = 200 * time.Millisecond
	cfg.AwaitTimeout = 5 * time.Second
	return cfg
}

func dialMonitor(port int) (net.Conn, error) {
	return net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
}

type fakeFinder struct {
	actions []types.Action
	early   map[string]types.Outcome
}

func (f *fakeFinder) Find(files, classNames []string) ([]types.Action, map[string]types.Outcome, error) {
	return f.actions, f.early, nil
}

type fakeExpectationStore struct {
	byName map[string]types.Expectation
}

func (f *fakeExpectationStore) Get(name string) (types.Expectation, bool) {
	e, ok := f.byName[name]
	return e, ok
}

// fakeCommand dials the monitor port and reports a single SUCCESS outcome.
type fakeCommand struct{ port int }

func (c *fakeCommand) ExecuteLater(ctx context.Context) <-chan types.CommandResult {
	go c.dialAndSend()
	return make(chan types.CommandResult, 1)
}

func (c *fakeCommand) dialAndSend() {
	time.Sleep(30 * time.Millisecond)
	conn, err := dialMonitor(c.port)
	if err != nil {
		return
	}
	defer conn.Close()
	outcome, _ := ipc.EncodeOutcome(&ipc.OutcomeFrame{Result: "SUCCESS", Matters: true})
	end, _ := ipc.EncodeEnd()
	conn.Write(outcome)
	conn.Write(end)
}

func (c *fakeCommand) Destroy() error { return nil }

type fakeMode struct{}

func (m *fakeMode) Prepare(ctx context.Context) error { return nil }
func (m *fakeMode) BuildAndInstall(ctx context.Context, action types.Action) (*types.Outcome, error) {
	return nil, nil
}
func (m *fakeMode) CreateActionCommand(ctx context.Context, action types.Action, monitorPort int) (types.Command, error) {
	cmd := &fakeCommand{port: monitorPort}
	return cmd, nil
}
func (m *fakeMode) Cleanup(ctx context.Context, action types.Action) error { return nil }
func (m *fakeMode) Shutdown(ctx context.Context) error                    { return nil }
func (m *fakeMode) GetClasspath() []string                                { return nil }

func TestDriver_BuildAndRun_HappyPath(t *testing.T) {
	actions := []types.Action{
		{Name: "A", Runner: types.RunnerSpec{Kind: types.RunnerKindMain}},
	}

	d := &Driver{
		Config:       testConfig(t),
		Mode:         &fakeMode{},
		Finder:       &fakeFinder{actions: actions, early: map[string]types.Outcome{}},
		Expectations: &fakeExpectationStore{byName: map[string]types.Expectation{"A": {Result: types.ResultSuccess}}},
		Logger:       log.NewLogger(log.Scope{RunID: "t"}),
	}

	result, err := d.BuildAndRun(context.Background(), []string{"A.go"}, nil)
	if err != nil {
		t.Fatalf("BuildAndRun failed: %v", err)
	}
	if result.Totals.Successes != 1 {
		t.Errorf("Successes = %d, want 1", result.Totals.Successes)
	}
	if result.StarvationError {
		t.Errorf("StarvationError = true, want false")
	}
}

func TestDriver_BuildAndRun_RejectsSecondCall(t *testing.T) {
	d := &Driver{
		Config:       testConfig(t),
		Mode:         &fakeMode{},
		Finder:       &fakeFinder{actions: nil, early: map[string]types.Outcome{}},
		Expectations: &fakeExpectationStore{byName: map[string]types.Expectation{}},
		Logger:       log.NewLogger(log.Scope{RunID: "t"}),
	}

	if _, err := d.BuildAndRun(context.Background(), nil, nil); err != nil {
		t.Fatalf("first BuildAndRun failed: %v", err)
	}
	if _, err := d.BuildAndRun(context.Background(), nil, nil); err != ErrAlreadyUsed {
		t.Fatalf("second BuildAndRun error = %v, want ErrAlreadyUsed", err)
	}
}

func TestDriver_BuildAndRun_NoActionsReturnsEmptyTotals(t *testing.T) {
	d := &Driver{
		Config:       testConfig(t),
		Mode:         &fakeMode{},
		Finder:       &fakeFinder{actions: nil, early: map[string]types.Outcome{}},
		Expectations: &fakeExpectationStore{byName: map[string]types.Expectation{}},
		Logger:       log.NewLogger(log.Scope{RunID: "t"}),
	}

	result, err := d.BuildAndRun(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("BuildAndRun failed: %v", err)
	}
	if result.Totals.Successes != 0 || result.Totals.Failures != 0 || result.Totals.Skipped != 0 {
		t.Errorf("expected zero totals for an empty action set, got %+v", result.Totals)
	}
}

func TestDriver_BuildAndRun_UnsupportedExpectationSkipsWithoutBuilding(t *testing.T) {
	actions := []types.Action{
		{Name: "X", Runner: types.RunnerSpec{Kind: types.RunnerKindMain}},
	}
	d := &Driver{
		Config:       testConfig(t),
		Mode:         &fakeMode{},
		Finder:       &fakeFinder{actions: actions, early: map[string]types.Outcome{}},
		Expectations: &fakeExpectationStore{byName: map[string]types.Expectation{"X": {Result: types.ResultUnsupported}}},
		Logger:       log.NewLogger(log.Scope{RunID: "t"}),
	}

	result, err := d.BuildAndRun(context.Background(), []string{"X.go"}, nil)
	if err != nil {
		t.Fatalf("BuildAndRun failed: %v", err)
	}
	if result.Totals.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Totals.Skipped)
	}
}
