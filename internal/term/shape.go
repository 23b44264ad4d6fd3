package term

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxDims bounds shape dimensionality; exceeding it is a hard
// ShapeOverflow error everywhere in this package.
const MaxDims = 8

// DType is an element type. The zero value, DTypeUnknown, denotes a type
// that has not yet been determined (e.g. before analysis has propagated
// past a BlackBox).
type DType int

const (
	DTypeUnknown DType = iota
	DTypeF32
	DTypeF64
	DTypeI32
	DTypeI64
	DTypeBool
)

func (t DType) String() string {
	switch t {
	case DTypeF32:
		return "f32"
	case DTypeF64:
		return "f64"
	case DTypeI32:
		return "i32"
	case DTypeI64:
		return "i64"
	case DTypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Shape is a tensor shape of up to MaxDims dimensions, zero-padded. NDim
// is the number of significant leading entries in Dims.
type Shape struct {
	Dims [MaxDims]int64
	NDim int
}

// NewShape builds a Shape from a dimension slice, returning a
// ShapeOverflowError if it has more than MaxDims entries.
func NewShape(dims []int64) (Shape, error) {
	if len(dims) > MaxDims {
		return Shape{}, &ShapeOverflowError{NDim: len(dims)}
	}
	var s Shape
	s.NDim = len(dims)
	copy(s.Dims[:], dims)
	return s, nil
}

// Slice returns the significant dimensions as a fresh slice.
func (s Shape) Slice() []int64 {
	out := make([]int64, s.NDim)
	copy(out, s.Dims[:s.NDim])
	return out
}

// Equal reports whether two shapes have the same rank and dimensions.
func (s Shape) Equal(o Shape) bool {
	if s.NDim != o.NDim {
		return false
	}
	for i := 0; i < s.NDim; i++ {
		if s.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	parts := make([]string, s.NDim)
	for i := 0; i < s.NDim; i++ {
		parts[i] = strconv.FormatInt(s.Dims[i], 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ShapeOverflowError reports a shape whose rank exceeds MaxDims.
type ShapeOverflowError struct {
	NDim int
}

func (e *ShapeOverflowError) Error() string {
	return fmt.Sprintf("shape has %d dimensions, exceeding the %d-dimension limit", e.NDim, MaxDims)
}

// ParseInputShape parses the shape encoded in an Input operand's symbolic
// name, which has the form "name@d0_d1_...", e.g. "a@3_4" for a 3x4
// tensor. Names without an "@" suffix denote scalars (rank 0).
func ParseInputShape(name string) (Shape, error) {
	at := strings.IndexByte(name, '@')
	if at < 0 {
		return Shape{}, nil
	}
	suffix := name[at+1:]
	if suffix == "" {
		return Shape{}, nil
	}
	fields := strings.Split(suffix, "_")
	dims := make([]int64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return Shape{}, fmt.Errorf("parsing dimension %q in input name %q: %w", f, name, err)
		}
		dims[i] = v
	}
	return NewShape(dims)
}

// ReshapeShape returns the output shape of a Reshape node, which is
// exactly its literal shape attribute.
func ReshapeShape(literalShape []int64) (Shape, error) {
	return NewShape(literalShape)
}

// TransposeShape permutes in by perm: out[i] = in[perm[i]].
func TransposeShape(in Shape, perm []int64) (Shape, error) {
	if len(perm) != in.NDim {
		return Shape{}, fmt.Errorf("transpose permutation has %d entries, expected %d", len(perm), in.NDim)
	}
	dims := make([]int64, in.NDim)
	for i, p := range perm {
		if p < 0 || int(p) >= in.NDim {
			return Shape{}, fmt.Errorf("transpose permutation index %d out of range for rank %d", p, in.NDim)
		}
		dims[i] = in.Dims[p]
	}
	return NewShape(dims)
}

// IsStrictlyDecreasing reports whether perm is strictly decreasing,
// the condition under which transpose(transpose(x, p), p) cancels to x.
func IsStrictlyDecreasing(perm []int64) bool {
	for i := 1; i < len(perm); i++ {
		if perm[i] >= perm[i-1] {
			return false
		}
	}
	return true
}

// PadShape computes the output shape of Pad per spec:
// out[i] = in[i] + low[i] + high[i] + max(in[i]-1,0)*interior[i].
func PadShape(in Shape, low, high, interior []int64) (Shape, error) {
	if len(low) != in.NDim || len(high) != in.NDim || len(interior) != in.NDim {
		return Shape{}, fmt.Errorf("pad attribute lengths (%d,%d,%d) do not match operand rank %d", len(low), len(high), len(interior), in.NDim)
	}
	dims := make([]int64, in.NDim)
	for i := 0; i < in.NDim; i++ {
		grow := in.Dims[i] - 1
		if grow < 0 {
			grow = 0
		}
		dims[i] = in.Dims[i] + low[i] + high[i] + grow*interior[i]
	}
	return NewShape(dims)
}

// ConcatenateShape sums component sizes along axis; all other dims must
// agree across operands.
func ConcatenateShape(shapes []Shape, axis int64) (Shape, error) {
	if len(shapes) == 0 {
		return Shape{}, fmt.Errorf("concatenate requires at least one operand")
	}
	rank := shapes[0].NDim
	if axis < 0 || int(axis) >= rank {
		return Shape{}, fmt.Errorf("concatenate axis %d out of range for rank %d", axis, rank)
	}
	dims := make([]int64, rank)
	copy(dims, shapes[0].Dims[:rank])
	dims[axis] = 0
	for _, s := range shapes {
		if s.NDim != rank {
			return Shape{}, fmt.Errorf("concatenate operand rank %d does not match %d", s.NDim, rank)
		}
		for i := 0; i < rank; i++ {
			if i == int(axis) {
				dims[i] += s.Dims[i]
				continue
			}
			if s.Dims[i] != shapes[0].Dims[i] {
				return Shape{}, fmt.Errorf("concatenate operand dim %d (%d) does not match %d", i, s.Dims[i], shapes[0].Dims[i])
			}
		}
	}
	return NewShape(dims)
}

// BroadcastInDimShape returns the output shape of BroadcastInDim, which
// is exactly its literal target-shape attribute. broadcastDims must be
// strictly increasing and within range of the target rank; this is
// validated here even though it does not affect the output dims, since a
// malformed broadcast_dims attribute indicates a malformed rewrite.
func BroadcastInDimShape(targetShape []int64, broadcastDims []int64, operandRank int) (Shape, error) {
	if len(broadcastDims) != operandRank {
		return Shape{}, fmt.Errorf("broadcast_dims has %d entries, expected operand rank %d", len(broadcastDims), operandRank)
	}
	prev := int64(-1)
	for _, d := range broadcastDims {
		if d <= prev {
			return Shape{}, fmt.Errorf("broadcast_dims %v is not strictly increasing", broadcastDims)
		}
		if d < 0 || int(d) >= len(targetShape) {
			return Shape{}, fmt.Errorf("broadcast_dims entry %d out of range for target rank %d", d, len(targetShape))
		}
		prev = d
	}
	return NewShape(targetShape)
}

// DynamicSliceShape returns sliceSizes verbatim: the output shape of a
// DynamicSlice never depends on its (runtime) start-index operands.
func DynamicSliceShape(sliceSizes []int64) (Shape, error) {
	return NewShape(sliceSizes)
}

// DynamicUpdateSliceShape and ScatterShape both return the shape of the
// operand being written into, unchanged.
func DynamicUpdateSliceShape(operand Shape) (Shape, error) {
	return operand, nil
}

func ScatterShape(operand Shape) (Shape, error) {
	return operand, nil
}

// GatherShape implements the StableHLO gather shape function: the
// result rank is len(batchDims) + len(offsetDims), where batchDims are
// the dimensions of startIndices other than its index-vector dimension,
// and offsetDims are filled in from sliceSizes with collapsedSliceDims
// removed, in offsetDims order.
func GatherShape(startIndices Shape, offsetDims, collapsedSliceDims, sliceSizes []int64) (Shape, error) {
	collapsed := make(map[int64]bool, len(collapsedSliceDims))
	for _, d := range collapsedSliceDims {
		collapsed[d] = true
	}
	var offsetVals []int64
	for i, sz := range sliceSizes {
		if collapsed[int64(i)] {
			continue
		}
		offsetVals = append(offsetVals, sz)
	}
	if len(offsetVals) != len(offsetDims) {
		return Shape{}, fmt.Errorf("gather offset_dims has %d entries, expected %d non-collapsed slice dims", len(offsetDims), len(offsetVals))
	}
	// Batch dims come from startIndices minus its trailing index-vector
	// dimension (the convention used when index_vector_dim == rank-1).
	batchRank := startIndices.NDim - 1
	if batchRank < 0 {
		batchRank = 0
	}
	outRank := batchRank + len(offsetDims)
	if outRank > MaxDims {
		return Shape{}, &ShapeOverflowError{NDim: outRank}
	}
	dims := make([]int64, outRank)
	isOffset := make(map[int64]int, len(offsetDims))
	for i, d := range offsetDims {
		isOffset[d] = i
	}
	batchIdx := 0
	for i := 0; i < outRank; i++ {
		if idx, ok := isOffset[int64(i)]; ok {
			dims[i] = offsetVals[idx]
			continue
		}
		if batchIdx < batchRank {
			dims[i] = startIndices.Dims[batchIdx]
			batchIdx++
		}
	}
	return NewShape(dims)
}

// ReduceShape removes the reduced dimensions from in, keeping the rest
// in order.
func ReduceShape(in Shape, reduceDims []int64) (Shape, error) {
	reduced := make(map[int64]bool, len(reduceDims))
	for _, d := range reduceDims {
		reduced[d] = true
	}
	var dims []int64
	for i := 0; i < in.NDim; i++ {
		if reduced[int64(i)] {
			continue
		}
		dims = append(dims, in.Dims[i])
	}
	return NewShape(dims)
}

// SliceShape computes the result of a static Slice from start/limit/stride
// triples, one per dimension.
func SliceShape(in Shape, start, limit, stride []int64) (Shape, error) {
	if len(start) != in.NDim || len(limit) != in.NDim || len(stride) != in.NDim {
		return Shape{}, fmt.Errorf("slice attribute lengths do not match operand rank %d", in.NDim)
	}
	dims := make([]int64, in.NDim)
	for i := 0; i < in.NDim; i++ {
		st := stride[i]
		if st <= 0 {
			st = 1
		}
		span := limit[i] - start[i]
		dims[i] = (span + st - 1) / st
	}
	return NewShape(dims)
}
