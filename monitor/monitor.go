// Package monitor implements the Monitor Listener: the per-runner network
// endpoint that accepts a connection from an action's child process and
// streams a sequence of outcome/output frames until the child signals
// end-of-stream or the connection drops. Grounded on the read loop shape
// of the teacher's runtime.IngestionEngine.Run, adapted from quarry's
// event/artifact taxonomy to this domain's outcome/output/end frames.
package monitor

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/justapithecus/actiondriver/ipc"
	"github.com/justapithecus/actiondriver/log"
	"github.com/justapithecus/actiondriver/types"
)

// Handler receives callbacks for each frame the child sends. Per
// spec.md §4.4, output must never mutate the Ledger or KillTime; only
// Outcome does (the caller wires that).
type Handler struct {
	// Output is called for each interleaved stdout/stderr line belonging
	// to outcomeName, in delivery order.
	Output func(outcomeName, line string)
	// Outcome is called once per terminal outcome the child reports, in
	// delivery order.
	Outcome func(outcome types.Outcome)
}

// Listen binds port, accepts exactly one connection within acceptTimeout,
// reads the framed stream until the child sends an EndFrame or the
// connection drops, and invokes handler's callbacks on the calling
// goroutine in delivery order.
//
// Returns true if the stream ended cleanly (EndFrame received before
// EOF/close), false on accept timeout, connection loss, or protocol
// error — matching spec.md §4.6's Monitor Listener contract.
func Listen(ctx context.Context, port int, handler Handler, acceptTimeout time.Duration, logger *log.Logger) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Error("monitor listen failed", map[string]any{"port": port, "error": err.Error()})
		return false
	}
	defer ln.Close()

	conn, err := acceptWithTimeout(ctx, ln, acceptTimeout)
	if err != nil {
		logger.Warn("monitor accept failed", map[string]any{"port": port, "error": err.Error()})
		return false
	}
	defer conn.Close()

	decoder := ipc.NewFrameDecoder(conn)
	for {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		payload, err := decoder.ReadFrame()
		if err != nil {
			if err == io.EOF {
				// Connection dropped without an explicit EndFrame: per
				// spec.md §4.6 this is not a clean stream end.
				return false
			}
			logger.Warn("monitor frame error", map[string]any{"port": port, "error": err.Error()})
			return false
		}

		decoded, err := ipc.DecodeFrame(payload)
		if err != nil {
			logger.Warn("monitor decode error", map[string]any{"port": port, "error": err.Error()})
			return false
		}

		switch f := decoded.(type) {
		case *ipc.OutputFrame:
			if handler.Output != nil {
				handler.Output(f.Name, f.Line)
			}
		case *ipc.OutcomeFrame:
			if handler.Outcome != nil {
				handler.Outcome(types.Outcome{
					Name:        f.Name,
					Result:      types.Result(f.Result),
					OutputLines: f.OutputLines,
					Matters:     f.Matters,
					Message:     f.Message,
				})
			}
		case *ipc.EndFrame:
			return true
		default:
			return false
		}
	}
}

// acceptWithTimeout accepts exactly one connection on ln, bounded by
// timeout and ctx.
func acceptWithTimeout(ctx context.Context, ln net.Listener, timeout time.Duration) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		conn, err := ln.Accept()
		ch <- result{conn, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-timer.C:
		return nil, fmt.Errorf("accept timed out after %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
