// Package cost implements the cost-model bridge: a thin, stateful
// interface to an external price oracle, a memoizing cache in front of
// it, and two concrete backends (a JSON-over-stdio subprocess, and a
// WASM guest module) per spec.md §4.G.
package cost

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/tensorgraph/esat/internal/term"
)

// decCtx is the shared arithmetic context for all Cost values: 32
// digits of precision, round-half-even, matching the default
// apd.BaseContext used throughout the teacher's decimal-literal
// handling.
var decCtx = apd.BaseContext.WithPrecision(32)

// Cost is a non-negative real price, represented as an arbitrary
// precision decimal so that many small per-node costs can be summed at
// the ILP layer without the rounding drift repeated float64 addition
// would introduce.
type Cost = apd.Decimal

// Zero is the cost of structural/bookkeeping nodes.
func Zero() *Cost { return apd.New(0, 0) }

// Sentinel is substituted when the oracle cannot price an op, large
// enough that the extractor will never prefer it over any priceable
// alternative.
func Sentinel() *Cost { return apd.New(1, 12) } // 1e12

// Add returns a + b, per decCtx.
func Add(a, b *Cost) (*Cost, error) {
	var out Cost
	if _, err := decCtx.Add(&out, a, b); err != nil {
		return nil, err
	}
	return &out, nil
}

// Request is the input to an Oracle: everything needed to price one
// e-node's self-cost, independent of any particular e-graph
// representation.
type Request struct {
	OpKind      string
	ChildShapes []term.Shape
	ChildDTypes []term.DType
	Attrs       []int64
}

func (r Request) key() string {
	var b strings.Builder
	b.WriteString(r.OpKind)
	for _, s := range r.ChildShapes {
		b.WriteByte('|')
		b.WriteString(s.String())
	}
	for _, d := range r.ChildDTypes {
		b.WriteByte('|')
		b.WriteString(d.String())
	}
	for _, a := range r.Attrs {
		fmt.Fprintf(&b, "|%d", a)
	}
	return b.String()
}

// Oracle prices one e-node. Implementations are re-entrant (spec.md
// §5: "the cost oracle is re-entrant but not thread-safe") and may be
// stateful (caching previously measured costs internally).
type Oracle interface {
	Price(req Request) (*Cost, error)
}

// Cache wraps an Oracle with a memoizing lookup keyed by
// (op-kind, shape list, dtype list, attribute digest), so that a
// backend that talks to a subprocess or guest module is only consulted
// once per distinct shape/dtype/attribute combination.
type Cache struct {
	backend Oracle
	memo    map[string]*Cost
}

// NewCache wraps backend in a memoizing cache.
func NewCache(backend Oracle) *Cache {
	return &Cache{backend: backend, memo: make(map[string]*Cost)}
}

// Price implements Oracle, consulting the cache before the backend.
func (c *Cache) Price(req Request) (*Cost, error) {
	key := req.key()
	if v, ok := c.memo[key]; ok {
		return v, nil
	}
	v, err := c.backend.Price(req)
	if err != nil {
		return nil, err
	}
	c.memo[key] = v
	return v, nil
}

// apdFromFloat converts a float64 cost value (as received over the
// wire from either backend) into a Cost, per decCtx.
func apdFromFloat(f float64) (*Cost, error) {
	var d Cost
	if _, err := d.SetFloat64(f); err != nil {
		return nil, fmt.Errorf("cost: invalid price %v: %w", f, err)
	}
	return &d, nil
}

// PriceNode returns op's self-cost given its resolved child shapes,
// dtypes and literal attributes, substituting Sentinel if oracle
// returns an error (per spec.md §4.G: "If the oracle cannot price an
// op, the engine substitutes a large sentinel").
func PriceNode(oracle Oracle, op term.Op, childShapes []term.Shape, childDTypes []term.DType, attrs []int64) *Cost {
	if op.HasZeroCost() {
		return Zero()
	}
	price, err := oracle.Price(Request{
		OpKind:      op.String(),
		ChildShapes: childShapes,
		ChildDTypes: childDTypes,
		Attrs:       attrs,
	})
	if err != nil || price == nil {
		return Sentinel()
	}
	return price
}
