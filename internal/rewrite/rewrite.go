// Package rewrite implements the saturation driver: the loop that
// repeatedly searches for rule matches, applies them, and rebuilds the
// e-graph's invariants, until saturation or a configured budget is
// exhausted.
package rewrite

import (
	"context"
	"log/slog"
	"time"

	"github.com/tensorgraph/esat/internal/cycle"
	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/pattern"
)

// Limits bounds one saturation run. Run replaces zero values with the
// defaults that NewLimits returns.
type Limits struct {
	IterLimit int
	NodeLimit int
	TimeLimit time.Duration
}

// NewLimits returns the default limits: 10000 iterations, 5,000,000
// nodes, 60 seconds of wall clock.
func NewLimits() Limits {
	return Limits{IterLimit: 10000, NodeLimit: 5_000_000, TimeLimit: 60 * time.Second}
}

func (l Limits) normalize() Limits {
	if l.IterLimit <= 0 {
		l.IterLimit = 10000
	}
	if l.NodeLimit <= 0 {
		l.NodeLimit = 5_000_000
	}
	if l.TimeLimit <= 0 {
		l.TimeLimit = 60 * time.Second
	}
	return l
}

// StopReason identifies which of the driver's termination conditions
// fired.
type StopReason int

const (
	StopSaturated StopReason = iota
	StopIterLimit
	StopNodeLimit
	StopTimeLimit
)

func (r StopReason) String() string {
	switch r {
	case StopSaturated:
		return "saturated"
	case StopIterLimit:
		return "iteration limit"
	case StopNodeLimit:
		return "node limit"
	case StopTimeLimit:
		return "time limit"
	default:
		return "unknown"
	}
}

// Driver runs the search/apply/rebuild loop over a graph and a fixed
// rule set.
type Driver struct {
	Graph  *egraph.Graph
	Rules  []pattern.Rule
	Limits Limits
	Logger *slog.Logger

	// CycleMode, when ModeOnline, rejects any union that would close a
	// self-reachability cycle before it is ever recorded (§4.F).
	CycleMode cycle.Mode

	// OnIteration, when set, runs after every rebuild — the hook the
	// multi-pattern scheduler (§4.E) uses to interleave its own,
	// coarser-grained search/apply pass.
	OnIteration func(iter int)
}

type application struct {
	rule  *pattern.Rule
	match pattern.Match
}

// Run executes the loop until saturation or a budget is exhausted, or
// ctx is canceled (treated the same as a time-limit stop, but reported
// via the returned error so callers can distinguish a deliberate
// cancellation from normal budget exhaustion).
func (d *Driver) Run(ctx context.Context) (StopReason, error) {
	limits := d.Limits.normalize()
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	allow := cycle.Guard(d.Graph, d.CycleMode)
	start := time.Now()

	for iter := 0; iter < limits.IterLimit; iter++ {
		select {
		case <-ctx.Done():
			return StopTimeLimit, ctx.Err()
		default:
		}
		if time.Since(start) > limits.TimeLimit {
			logger.Info("rewrite: stopping", "reason", StopTimeLimit, "iter", iter)
			return StopTimeLimit, nil
		}
		if n := d.Graph.NumNodes(); n > limits.NodeLimit {
			logger.Info("rewrite: stopping", "reason", StopNodeLimit, "iter", iter, "nodes", n)
			return StopNodeLimit, nil
		}

		var apps []application
		for i := range d.Rules {
			r := &d.Rules[i]
			for _, m := range pattern.Search(d.Graph, r.LHS, r.Symmetric) {
				apps = append(apps, application{rule: r, match: m})
			}
		}

		changed := false
		for _, app := range apps {
			_, applied, err := app.rule.ApplyToFiltered(d.Graph, app.match, allow)
			if err != nil {
				return StopSaturated, err
			}
			if applied {
				changed = true
			}
		}

		if err := d.Graph.Rebuild(); err != nil {
			return StopSaturated, err
		}
		if d.OnIteration != nil {
			d.OnIteration(iter)
		}

		logger.Debug("rewrite: iteration", "iter", iter, "matches", len(apps), "changed", changed, "classes", d.Graph.NumClasses(), "nodes", d.Graph.NumNodes())

		if !changed {
			logger.Info("rewrite: stopping", "reason", StopSaturated, "iter", iter)
			return StopSaturated, nil
		}
	}
	logger.Info("rewrite: stopping", "reason", StopIterLimit, "iter", limits.IterLimit)
	return StopIterLimit, nil
}
