package cost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// subprocessRequest/subprocessResponse are the wire shapes for the
// JSON-over-stdio protocol the subprocess oracle backend speaks: one
// request, one response, one process invocation per Price call (the
// backend itself is what Cache exists to keep off the hot path).
type subprocessRequest struct {
	OpKind      string      `json:"op_kind"`
	ChildShapes []shapeWire `json:"child_shapes"`
	ChildDTypes []string    `json:"child_dtypes"`
	Attrs       []int64     `json:"attrs"`
}

type shapeWire struct {
	Dims []int64 `json:"dims"`
}

type subprocessResponse struct {
	Cost float64 `json:"cost"`
}

// SubprocessOracle prices a node by spawning Command with Args for
// every request, writing a JSON request to its stdin and reading a
// JSON response from its stdout. It mirrors the engine's own ILP
// solver invocation style (serialize request, spawn, wait, parse
// response) rather than keeping a long-lived process, trading a little
// latency for the same "strictly serialized, single subprocess handle"
// contract spec.md §5 requires of the ILP solver.
type SubprocessOracle struct {
	Command string
	Args    []string
}

// Price implements Oracle.
func (o *SubprocessOracle) Price(req Request) (*Cost, error) {
	wire := subprocessRequest{
		OpKind:      req.OpKind,
		ChildShapes: make([]shapeWire, len(req.ChildShapes)),
		ChildDTypes: make([]string, len(req.ChildDTypes)),
		Attrs:       req.Attrs,
	}
	for i, s := range req.ChildShapes {
		wire.ChildShapes[i] = shapeWire{Dims: s.Slice()}
	}
	for i, d := range req.ChildDTypes {
		wire.ChildDTypes[i] = d.String()
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("cost: marshal request: %w", err)
	}

	cmd := exec.CommandContext(context.Background(), o.Command, o.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("cost: oracle subprocess: %w", err)
	}

	var resp subprocessResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("cost: unmarshal response: %w", err)
	}
	return apdFromFloat(resp.Cost)
}
