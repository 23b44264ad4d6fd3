// Package esat is the builder API consumed by front-ends: per-operator
// constructors that grow a tensor computation graph, and a Finalize
// entry point that runs it through the full optimizer pipeline —
// saturation (internal/rewrite), the multi-premise scheduler
// (internal/multipattern), the cycle filter (internal/cycle), ILP
// extraction (internal/ilp), and reconstruction (internal/extract) —
// and returns the resulting program as a flat record sequence.
package esat

import (
	"context"
	"strconv"
	"strings"

	"github.com/tensorgraph/esat/internal/config"
	"github.com/tensorgraph/esat/internal/cost"
	"github.com/tensorgraph/esat/internal/cycle"
	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/extract"
	"github.com/tensorgraph/esat/internal/ilp"
	"github.com/tensorgraph/esat/internal/multipattern"
	"github.com/tensorgraph/esat/internal/pattern"
	"github.com/tensorgraph/esat/internal/rewrite"
	"github.com/tensorgraph/esat/internal/term"
)

// Handle is an opaque reference to one tensor-valued node in a Builder's
// graph: the e-class it was inserted into, plus its propagated shape,
// per spec.md §6 ("A handle carries (class_id, shape[8], n_dim)").
type Handle struct {
	classID egraph.ClassID
	Shape   term.Shape
	DType   term.DType
}

// Builder grows one tensor computation graph by way of its e-graph and
// rewrite-rule table, ready to be optimized by Finalize.
type Builder struct {
	g     *egraph.Graph
	rules []pattern.Rule
	mp    []multipattern.Rule
}

// NewBuilder returns an empty Builder seeded with the engine's built-in
// rewrite table (spec.md §4.C). AddRules appends any rules parsed from
// a rule file on top of these.
func NewBuilder() *Builder {
	return &Builder{
		g:     egraph.New(),
		rules: pattern.BuiltinRules(),
		mp:    multipattern.BuiltinRules(),
	}
}

// AddRules appends externally supplied single-pattern rules (typically
// parsed from a rule file via internal/pattern.ParseRuleText) to the
// rule table used by Finalize.
func (b *Builder) AddRules(rules []pattern.Rule) {
	b.rules = append(b.rules, rules...)
}

// Input declares a new named leaf tensor of the given shape. Its dtype
// is always f32, per inferAnalysis's OpInput rule — the term language
// carries an Input's shape symbolically in its name (e.g. "a@3_4"),
// which is how Finalize's pipeline resolves it for every downstream
// consumer (cost pricing, ILP attribute resolution); Input encodes
// shape into name so callers never have to know that convention.
func (b *Builder) Input(name string, shape term.Shape) (Handle, error) {
	id, err := b.g.Add(term.Node{Op: term.OpInput, Imm: term.Imm{Name: encodeInputName(name, shape)}})
	if err != nil {
		return Handle{}, err
	}
	return b.handle(id), nil
}

func encodeInputName(name string, shape term.Shape) string {
	dims := make([]string, shape.NDim)
	for i := 0; i < shape.NDim; i++ {
		dims[i] = strconv.FormatInt(shape.Dims[i], 10)
	}
	return name + "@" + strings.Join(dims, "_")
}

func (b *Builder) handle(id egraph.ClassID) Handle {
	a := b.g.Analysis(id)
	return Handle{classID: id, Shape: a.Shape, DType: a.DType}
}

// Build inserts a general operator node with the given children and
// immediate payload, inferring its shape/dtype from its operands the
// same way the rewrite engine does for any rule's RHS. Most tensor ops
// are reachable only through this generic entry point; Add/Sub/Mul/Div
// and a handful of others get named convenience wrappers below because
// front-ends construct them directly far more often than, say, Scatter
// or DynamicUpdateSlice.
func (b *Builder) Build(op term.Op, children []Handle, imm term.Imm) (Handle, error) {
	ids := make([]term.ClassID, len(children))
	for i, h := range children {
		ids[i] = h.classID
	}
	id, err := b.g.Add(term.Node{Op: op, Imm: imm, Children: ids})
	if err != nil {
		return Handle{}, err
	}
	return b.handle(id), nil
}

func (b *Builder) binary(op term.Op, x, y Handle) (Handle, error) {
	return b.Build(op, []Handle{x, y}, term.Imm{})
}

func (b *Builder) Add(x, y Handle) (Handle, error) { return b.binary(term.OpAdd, x, y) }
func (b *Builder) Sub(x, y Handle) (Handle, error) { return b.binary(term.OpSub, x, y) }
func (b *Builder) Mul(x, y Handle) (Handle, error) { return b.binary(term.OpMul, x, y) }
func (b *Builder) Div(x, y Handle) (Handle, error) { return b.binary(term.OpDiv, x, y) }

func (b *Builder) unary(op term.Op, x Handle) (Handle, error) {
	return b.Build(op, []Handle{x}, term.Imm{})
}

func (b *Builder) Neg(x Handle) (Handle, error)  { return b.unary(term.OpNeg, x) }
func (b *Builder) Tanh(x Handle) (Handle, error) { return b.unary(term.OpTanh, x) }
func (b *Builder) Exp(x Handle) (Handle, error)  { return b.unary(term.OpExp, x) }

// Transpose permutes x's dimensions according to perm, encoded as a
// Vec-of-Num literal child the same way internal/pattern's built-in
// rules construct one.
func (b *Builder) Transpose(x Handle, perm []int64) (Handle, error) {
	permID, err := b.vecLiteral(perm)
	if err != nil {
		return Handle{}, err
	}
	return b.Build(term.OpTranspose, []Handle{x, b.handle(permID)}, term.Imm{})
}

func (b *Builder) vecLiteral(dims []int64) (egraph.ClassID, error) {
	children := make([]term.ClassID, len(dims))
	for i, d := range dims {
		id, err := b.g.Add(term.Node{Op: term.OpNum, Imm: term.Imm{IntVal: int32(d)}})
		if err != nil {
			return 0, err
		}
		children[i] = id
	}
	return b.g.Add(term.Node{Op: term.OpVec, Children: children})
}

// SetRoot designates h's class as the program root to optimize and
// extract.
func (b *Builder) SetRoot(h Handle) { b.g.SetRoot(h.classID) }

// Graph exposes the underlying e-graph for callers that need to inspect
// it directly, such as internal/debugviz, without running Finalize.
func (b *Builder) Graph() *egraph.Graph { return b.g }

// Result is the outcome of Finalize: the flat node sequence plus the
// driver's stop reason and achieved cost, for callers that want to log
// or assert on optimization quality.
type Result struct {
	Records    []extract.Record
	StopReason rewrite.StopReason
	Cost       float64
}

// Finalize runs the saturation/extraction pipeline to completion and
// returns the optimized program. opts configures every budget and the
// cycle-filter mode (internal/config.Options); oracle prices each
// e-node for the ILP objective.
func (b *Builder) Finalize(ctx context.Context, opts config.Options, oracle cost.Oracle) (*Result, error) {
	cachedOracle := cost.NewCache(oracle)
	cycleMode := opts.CycleMode()

	driver := &rewrite.Driver{
		Graph:     b.g,
		Rules:     b.rules,
		Limits:    opts.RewriteLimits(),
		CycleMode: cycleMode,
	}
	if opts.UseMultiPatterns && len(b.mp) > 0 {
		sched := &multipattern.Scheduler{
			Graph:  b.g,
			Rules:  b.mp,
			Limits: opts.MultiPatternLimits(),
		}
		driver.OnIteration = func(int) {
			// Errors from the periodic multi-pattern pass are not fatal
			// to saturation; a bad joint rewrite only costs potential
			// further simplification, not correctness of what's already
			// in the e-graph.
			_, _ = sched.Run()
		}
	}

	stop, err := driver.Run(ctx)
	if err != nil {
		return nil, err
	}

	if cycleMode == cycle.ModeOffline {
		cycle.RunOffline(b.g)
	}

	data := ilp.Prepare(b.g, cachedOracle, b.g.Root())
	solved, err := ilp.Solve(ctx, data, opts.SolverOptions())
	if err != nil {
		return nil, err
	}

	picked := extract.Pick(data, solved.SolvedX, nil)
	records, err := extract.Reconstruct(data, picked)
	if err != nil {
		return nil, err
	}

	return &Result{Records: records, StopReason: stop, Cost: solved.Cost}, nil
}
