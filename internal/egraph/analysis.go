package egraph

import (
	"fmt"

	"github.com/tensorgraph/esat/internal/esaterrors"
	"github.com/tensorgraph/esat/internal/term"
)

// Analysis is the per-class metadata lattice value: shape, element type,
// and a blacklist flag excluding the class's e-nodes from extraction.
//
// Known distinguishes "not yet determined" (the zero value) from an
// actually-known scalar (rank 0) shape; both have NDim == 0 in
// term.Shape, so Known disambiguates them during merge.
type Analysis struct {
	Known       bool
	Shape       term.Shape
	DType       term.DType
	Blacklisted bool
}

// mergeAnalysis joins two classes' analyses per the invariant in the data
// model: shapes must match (a mismatch is a hard AnalysisConflict
// failure), blacklist flags are OR-ed, and an unknown side simply adopts
// the other's value (monotonic widening from unknown to known, never the
// reverse).
func mergeAnalysis(a, b Analysis) (Analysis, error) {
	out := Analysis{Blacklisted: a.Blacklisted || b.Blacklisted}
	switch {
	case !a.Known && !b.Known:
		out.Known = false
	case a.Known && !b.Known:
		out.Known, out.Shape, out.DType = true, a.Shape, a.DType
	case !a.Known && b.Known:
		out.Known, out.Shape, out.DType = true, b.Shape, b.DType
	default:
		if !a.Shape.Equal(b.Shape) {
			return Analysis{}, fmt.Errorf("shape mismatch: %v vs %v", a.Shape, b.Shape)
		}
		out.Known = true
		out.Shape = a.Shape
		out.DType = a.DType
		if out.DType == term.DTypeUnknown {
			out.DType = b.DType
		}
	}
	return out, nil
}

// inferAnalysis computes the Analysis for a freshly canonicalized node
// given the current analyses of its children, per the term-language
// shape-propagation rules and the StableHLO-derived rules for
// Gather/BroadcastInDim (design note (b)).
//
// Child-position conventions (documented once, here, since this is the
// single place every convention is consumed):
//
//	Reshape(operand, shape)
//	Transpose(operand, perm)
//	BroadcastInDim(operand, shape, broadcast_dims)
//	Convert(operand)                                    [Imm.IntVal = target DType]
//	Reduce(operand, reduce_dims)
//	Concatenate(operand..., axis)                        [axis is the last child]
//	DotGeneral(lhs, rhs, lhs_batch, rhs_batch, lhs_contract, rhs_contract, precision, shape)
//	<binary>(lhs, rhs)
//	<unary>(operand)
//	Select(pred, on_true, on_false)
//	Pad(operand, padding_value, low, high, interior)
//	Slice(operand, start, limit, stride)
//	DynamicSlice(operand, start_indices..., slice_sizes)  [slice_sizes is the last child]
//	DynamicUpdateSlice(operand, update, start_indices...)
//	Scatter(operand, indices, updates)
//	Gather(operand, start_indices, offset_dims, collapsed_slice_dims, slice_sizes)
//	Iota(shape)                                          [Imm.IntVal = iota dimension]
//	Constant(shape)
func (g *Graph) inferAnalysis(node term.Node, childAnalysis func(int) Analysis) (Analysis, error) {
	ints := func(i int) ([]int64, bool) {
		return g.LiteralInts(node.Children[i])
	}
	switch node.Op {
	case term.OpInput:
		shape, err := term.ParseInputShape(node.Imm.Name)
		if err != nil {
			return Analysis{}, err
		}
		return Analysis{Known: true, Shape: shape, DType: term.DTypeF32}, nil

	case term.OpNum:
		return Analysis{Known: true, Shape: term.Shape{}, DType: term.DTypeI32}, nil

	case term.OpVec, term.OpBlackBox:
		return Analysis{Known: false}, nil

	case term.OpConstant:
		dims, ok := ints(0)
		if !ok {
			return Analysis{Known: false}, nil
		}
		s, err := term.NewShape(dims)
		return wrap(s, term.DTypeF32, err)

	case term.OpReshape:
		dims, ok := ints(1)
		if !ok {
			return Analysis{Known: false}, nil
		}
		s, err := term.ReshapeShape(dims)
		return wrap(s, childAnalysis(0).DType, err)

	case term.OpTranspose:
		perm, ok := ints(1)
		if !ok {
			return Analysis{Known: false}, nil
		}
		in := childAnalysis(0)
		s, err := term.TransposeShape(in.Shape, perm)
		return wrap(s, in.DType, err)

	case term.OpBroadcastInDim:
		dims, ok := ints(1)
		broadcastDims, ok2 := ints(2)
		if !ok || !ok2 {
			return Analysis{Known: false}, nil
		}
		in := childAnalysis(0)
		s, err := term.BroadcastInDimShape(dims, broadcastDims, in.Shape.NDim)
		return wrap(s, in.DType, err)

	case term.OpConvert:
		in := childAnalysis(0)
		return Analysis{Known: in.Known, Shape: in.Shape, DType: term.DType(node.Imm.IntVal)}, nil

	case term.OpReduce:
		dims, ok := ints(1)
		if !ok {
			return Analysis{Known: false}, nil
		}
		in := childAnalysis(0)
		s, err := term.ReduceShape(in.Shape, dims)
		return wrap(s, in.DType, err)

	case term.OpConcatenate:
		if len(node.Children) < 2 {
			return Analysis{}, fmt.Errorf("concatenate requires at least one operand and an axis")
		}
		axisVals, ok := ints(len(node.Children) - 1)
		if !ok || len(axisVals) != 1 {
			return Analysis{Known: false}, nil
		}
		shapes := make([]term.Shape, len(node.Children)-1)
		for i := range shapes {
			shapes[i] = childAnalysis(i).Shape
		}
		s, err := term.ConcatenateShape(shapes, axisVals[0])
		return wrap(s, childAnalysis(0).DType, err)

	case term.OpDotGeneral:
		// shape is the literal attribute supplied by the builder
		// (spec.md §4.A: "Dot: output shape = literal shape
		// attribute"); children[7] per the documented order.
		if len(node.Children) < 8 {
			return Analysis{}, fmt.Errorf("dot_general requires 8 children, got %d", len(node.Children))
		}
		dims, ok := ints(7)
		if !ok {
			return Analysis{Known: false}, nil
		}
		s, err := term.NewShape(dims)
		return wrap(s, childAnalysis(0).DType, err)

	case term.OpAdd, term.OpSub, term.OpMul, term.OpDiv, term.OpMin, term.OpMax, term.OpCompare:
		lhs := childAnalysis(0)
		dtype := lhs.DType
		if node.Op == term.OpCompare {
			dtype = term.DTypeBool
		}
		return Analysis{Known: lhs.Known, Shape: lhs.Shape, DType: dtype}, nil

	case term.OpNeg, term.OpTanh, term.OpExp:
		in := childAnalysis(0)
		return in, nil

	case term.OpSelect:
		onTrue := childAnalysis(1)
		return onTrue, nil

	case term.OpPad:
		low, ok1 := ints(2)
		high, ok2 := ints(3)
		interior, ok3 := ints(4)
		if !ok1 || !ok2 || !ok3 {
			return Analysis{Known: false}, nil
		}
		in := childAnalysis(0)
		s, err := term.PadShape(in.Shape, low, high, interior)
		return wrap(s, in.DType, err)

	case term.OpSlice:
		start, ok1 := ints(1)
		limit, ok2 := ints(2)
		stride, ok3 := ints(3)
		if !ok1 || !ok2 || !ok3 {
			return Analysis{Known: false}, nil
		}
		in := childAnalysis(0)
		s, err := term.SliceShape(in.Shape, start, limit, stride)
		return wrap(s, in.DType, err)

	case term.OpDynamicSlice:
		if len(node.Children) < 2 {
			return Analysis{}, fmt.Errorf("dynamic_slice requires an operand and slice_sizes")
		}
		sizes, ok := ints(len(node.Children) - 1)
		if !ok {
			return Analysis{Known: false}, nil
		}
		s, err := term.DynamicSliceShape(sizes)
		return wrap(s, childAnalysis(0).DType, err)

	case term.OpDynamicUpdateSlice:
		in := childAnalysis(0)
		s, err := term.DynamicUpdateSliceShape(in.Shape)
		return wrap(s, in.DType, err)

	case term.OpScatter:
		in := childAnalysis(0)
		s, err := term.ScatterShape(in.Shape)
		return wrap(s, in.DType, err)

	case term.OpGather:
		offsetDims, ok1 := ints(2)
		collapsed, ok2 := ints(3)
		sliceSizes, ok3 := ints(4)
		if !ok1 || !ok2 || !ok3 {
			return Analysis{Known: false}, nil
		}
		startIndices := childAnalysis(1)
		s, err := term.GatherShape(startIndices.Shape, offsetDims, collapsed, sliceSizes)
		return wrap(s, childAnalysis(0).DType, err)

	case term.OpIota:
		dims, ok := ints(0)
		if !ok {
			return Analysis{Known: false}, nil
		}
		s, err := term.NewShape(dims)
		return wrap(s, term.DTypeF32, err)

	default:
		return Analysis{}, fmt.Errorf("inferAnalysis: unhandled op %s", node.Op)
	}
}

func wrap(s term.Shape, dt term.DType, err error) (Analysis, error) {
	if err != nil {
		var overflow *term.ShapeOverflowError
		if ok := asShapeOverflow(err, &overflow); ok {
			return Analysis{}, esaterrors.ShapeOverflow("", overflow.NDim)
		}
		return Analysis{}, err
	}
	return Analysis{Known: true, Shape: s, DType: dt}, nil
}

func asShapeOverflow(err error, target **term.ShapeOverflowError) bool {
	if e, ok := err.(*term.ShapeOverflowError); ok {
		*target = e
		return true
	}
	return false
}
