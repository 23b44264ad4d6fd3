package cost_test

import (
	"errors"
	"testing"

	"github.com/cockroachdb/apd/v3"

	"github.com/tensorgraph/esat/internal/cost"
	"github.com/tensorgraph/esat/internal/term"
)

type fakeOracle struct {
	calls int
	price float64
	err   error
}

func (f *fakeOracle) Price(cost.Request) (*apd.Decimal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	d := apd.New(0, 0)
	d.SetFloat64(f.price)
	return d, nil
}

func TestZeroCostOpsBypassOracle(t *testing.T) {
	f := &fakeOracle{price: 7}
	got := cost.PriceNode(f, term.OpInput, nil, nil, nil)
	if got.Cmp(cost.Zero()) != 0 {
		t.Errorf("PriceNode(OpInput) = %v, want 0", got)
	}
	if f.calls != 0 {
		t.Error("oracle should not be consulted for zero-cost ops")
	}
}

func TestPriceNodeUsesSentinelOnError(t *testing.T) {
	f := &fakeOracle{err: errors.New("boom")}
	got := cost.PriceNode(f, term.OpAdd, nil, nil, nil)
	if got.Cmp(cost.Sentinel()) != 0 {
		t.Errorf("PriceNode on oracle error = %v, want sentinel", got)
	}
}

func TestCacheMemoizesIdenticalRequests(t *testing.T) {
	f := &fakeOracle{price: 3}
	c := cost.NewCache(f)
	req := cost.Request{
		OpKind:      "Add",
		ChildShapes: []term.Shape{mustShape(t, 3, 4)},
		ChildDTypes: []term.DType{term.DTypeF32},
	}
	if _, err := c.Price(req); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Price(req); err != nil {
		t.Fatal(err)
	}
	if f.calls != 1 {
		t.Errorf("backend called %d times, want 1 (second call should hit cache)", f.calls)
	}
}

func mustShape(t *testing.T, dims ...int64) term.Shape {
	t.Helper()
	s, err := term.NewShape(dims)
	if err != nil {
		t.Fatal(err)
	}
	return s
}
