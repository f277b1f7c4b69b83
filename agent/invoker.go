package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/avelinom/scout/conversation"
	"github.com/avelinom/scout/tools"
	"github.com/google/uuid"
)

// Invoker runs a single tool call and turns the outcome into a record.
// Tool panics and timeouts are contained here so one misbehaving
// adapter cannot take the session down.
type Invoker struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewInvoker creates an invoker. A zero timeout disables the deadline.
func NewInvoker(timeout time.Duration, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Invoker{timeout: timeout, logger: logger}
}

type invokeOutcome struct {
	response string
	err      error
}

// Invoke executes the tool with the given input and returns a terminal
// record. The record is completed or failed, never left pending.
func (inv *Invoker) Invoke(ctx context.Context, tool tools.Tool, input string) conversation.ToolCallRecord {
	callID := "call_" + uuid.NewString()[:8]
	record := conversation.NewToolCallRecord(callID, tool.Name(), map[string]any{"input": input})

	params, err := json.Marshal(map[string]string{"input": input})
	if err != nil {
		record.Fail(fmt.Sprintf("failed to encode arguments: %v", err))
		return record
	}

	if inv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}

	done := make(chan invokeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeOutcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		response, err := tool.Execute(ctx, params)
		done <- invokeOutcome{response: response, err: err}
	}()

	start := time.Now()
	select {
	case outcome := <-done:
		if outcome.err != nil {
			inv.logger.Warn("tool call failed",
				"tool", tool.Name(),
				"call_id", callID,
				"duration", time.Since(start),
				"error", outcome.err)
			record.Fail(outcome.err.Error())
			return record
		}
		inv.logger.Debug("tool call completed",
			"tool", tool.Name(),
			"call_id", callID,
			"duration", time.Since(start),
			"response", outcome.response)
		record.Complete(outcome.response)
		return record
	case <-ctx.Done():
		inv.logger.Warn("tool call abandoned",
			"tool", tool.Name(),
			"call_id", callID,
			"duration", time.Since(start),
			"error", ctx.Err())
		record.Fail(fmt.Sprintf("tool call abandoned: %v", ctx.Err()))
		return record
	}
}
