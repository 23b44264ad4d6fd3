package ilp

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cockroachdb/apd/v3"
)

func TestSolverArgsIncludesOptionalFlagsOnlyWhenSet(t *testing.T) {
	opts := SolverOptions{TimeLimitSec: 2.5, Threads: 4}
	args := solverArgs(opts, "req.json", "resp.json")
	want := []string{"--time-limit", "2.5", "--threads", "4", "req.json", "resp.json"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("solverArgs() = %v, want %v", args, want)
	}

	opts.NoOrder = true
	opts.ClassConstraint = true
	opts.OrderVarInt = true
	args = solverArgs(opts, "req.json", "resp.json")
	want = []string{
		"--time-limit", "2.5", "--threads", "4",
		"--no-order", "--class-constraint", "--order-var-int",
		"req.json", "resp.json",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("solverArgs() with all flags = %v, want %v", args, want)
	}
}

func TestToWireRequestConvertsDecimalCostsToFloat64(t *testing.T) {
	c := apd.New(0, 0)
	c.SetFloat64(1.5)
	d := &Data{
		EM:         [][]int{{0}},
		HI:         [][]int{{}},
		CostI:      []*apd.Decimal{c},
		GI:         []int{0},
		RootM:      0,
		BlacklistI: nil,
	}
	req := toWireRequest(d)
	if len(req.CostI) != 1 || req.CostI[0] != 1.5 {
		t.Fatalf("toWireRequest().CostI = %v, want [1.5]", req.CostI)
	}
	if req.RootM != 0 {
		t.Errorf("RootM = %d, want 0", req.RootM)
	}
}

// TestSolveRunsBinaryAndParsesResponse exercises the full subprocess
// lifecycle against a shell script standing in for the real extractor
// binary: it ignores its flags and writes a canned response to its
// final positional argument.
func TestSolveRunsBinaryAndParsesResponse(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-solver.sh")
	body := `#!/bin/sh
eval resp=\"\${$#}\"
echo '{"solved_x":[1,0],"cost":2.5,"time":0.125}' > "$resp"
`
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	d := &Data{EM: [][]int{{0, 1}}, HI: [][]int{{}, {}}, CostI: []*apd.Decimal{apd.New(1, 0), apd.New(2, 0)}, GI: []int{0, 0}, RootM: 0}
	opts := SolverOptions{Binary: script, TimeLimitSec: 1, Threads: 1}

	res, err := Solve(context.Background(), d, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.SolvedX[0] || res.SolvedX[1] {
		t.Errorf("SolvedX = %v, want [true false]", res.SolvedX)
	}
	if res.Cost != 2.5 {
		t.Errorf("Cost = %v, want 2.5", res.Cost)
	}
}
