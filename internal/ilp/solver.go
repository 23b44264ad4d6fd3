package ilp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tensorgraph/esat/internal/esaterrors"
)

// wireRequest is the exact JSON interchange shape from spec.md §6.
type wireRequest struct {
	EM         [][]int   `json:"e_m"`
	HI         [][]int   `json:"h_i"`
	CostI      []float64 `json:"cost_i"`
	GI         []int     `json:"g_i"`
	RootM      int       `json:"root_m"`
	BlacklistI []int     `json:"blacklist_i"`
}

// wireResponse is the solver's JSON response shape from spec.md §6.
type wireResponse struct {
	SolvedX []int   `json:"solved_x"`
	Cost    float64 `json:"cost"`
	Time    float64 `json:"time"`
}

// SolverOptions carries the `ilp_*` configuration keys from spec.md §6,
// forwarded to the extractor binary as flags.
type SolverOptions struct {
	Binary          string
	TimeLimitSec    float64
	Threads         int
	NoOrder         bool
	ClassConstraint bool
	OrderVarInt     bool
}

// Result is the parsed solver response: which node indices were
// selected, the objective value it reports, and the wall time it took.
type Result struct {
	SolvedX []bool
	Cost    float64
	Time    time.Duration
}

// Solve writes d as the JSON request, spawns opts.Binary against it,
// waits for it to exit, and parses its response. Per spec.md §5, the
// interaction is strictly serialized (one temp dir, one subprocess
// handle, released before Solve returns) and the subprocess carries
// its own wall-clock limit via ilp_time_limit rather than ctx alone.
func Solve(ctx context.Context, d *Data, opts SolverOptions) (*Result, error) {
	dir, err := os.MkdirTemp("", "esat-ilp-*")
	if err != nil {
		return nil, fmt.Errorf("ilp: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	reqPath := filepath.Join(dir, "ilp_data.json")
	respPath := filepath.Join(dir, "solved.json")

	req := toWireRequest(d)
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ilp: marshal request: %w", err)
	}
	if err := os.WriteFile(reqPath, payload, 0o644); err != nil {
		return nil, fmt.Errorf("ilp: write request: %w", err)
	}

	args := solverArgs(opts, reqPath, respPath)
	cmd := exec.CommandContext(ctx, opts.Binary, args...)
	if err := cmd.Run(); err != nil {
		return nil, esaterrors.SolverFailure(fmt.Sprintf("%s %v", opts.Binary, args), err)
	}

	respBytes, err := os.ReadFile(respPath)
	if err != nil {
		return nil, esaterrors.SolverFailure("reading solver response: "+respPath, err)
	}
	var resp wireResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, esaterrors.SolverFailure("unmarshaling solver response: "+respPath, err)
	}

	solved := make([]bool, len(resp.SolvedX))
	for i, v := range resp.SolvedX {
		solved[i] = v != 0
	}
	return &Result{
		SolvedX: solved,
		Cost:    resp.Cost,
		Time:    time.Duration(resp.Time * float64(time.Second)),
	}, nil
}

func toWireRequest(d *Data) wireRequest {
	costs := make([]float64, len(d.CostI))
	for i, c := range d.CostI {
		f, _ := c.Float64()
		costs[i] = f
	}
	return wireRequest{
		EM:         d.EM,
		HI:         d.HI,
		CostI:      costs,
		GI:         d.GI,
		RootM:      d.RootM,
		BlacklistI: d.BlacklistI,
	}
}

func solverArgs(opts SolverOptions, reqPath, respPath string) []string {
	args := []string{
		"--time-limit", strconv.FormatFloat(opts.TimeLimitSec, 'f', -1, 64),
		"--threads", strconv.Itoa(opts.Threads),
	}
	if opts.NoOrder {
		args = append(args, "--no-order")
	}
	if opts.ClassConstraint {
		args = append(args, "--class-constraint")
	}
	if opts.OrderVarInt {
		args = append(args, "--order-var-int")
	}
	return append(args, reqPath, respPath)
}
