// Package term defines the closed operator language that every e-node in
// the optimizer's e-graph is built from, plus the pure shape/dtype
// propagation rules attached to each operator.
//
// The set of operators is closed by design: every consumer of a [Node] —
// the matcher, the cost bridge, the ILP serializer, the reconstructor —
// is expected to exhaustively switch on [Op] rather than use dynamic
// dispatch, per the term-language design note in the originating
// specification.
package term

import "fmt"

// ClassID identifies an e-class. Zero is never a valid id; the zero value
// is reserved as "no class" for optional fields.
type ClassID int32

// Op is the tag of a closed sum of tensor operator variants.
type Op int

const (
	OpInvalid Op = iota
	OpInput
	OpNum
	OpVec
	OpConstant
	OpReshape
	OpTranspose
	OpBroadcastInDim
	OpConvert
	OpReduce
	OpConcatenate
	OpDotGeneral
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMin
	OpMax
	OpCompare
	OpNeg
	OpTanh
	OpExp
	OpSelect
	OpPad
	OpSlice
	OpDynamicSlice
	OpDynamicUpdateSlice
	OpScatter
	OpGather
	OpIota
	OpBlackBox
)

var opNames = [...]string{
	OpInvalid:             "Invalid",
	OpInput:               "Input",
	OpNum:                 "Num",
	OpVec:                 "Vec",
	OpConstant:            "Constant",
	OpReshape:             "Reshape",
	OpTranspose:           "Transpose",
	OpBroadcastInDim:      "BroadcastInDim",
	OpConvert:             "Convert",
	OpReduce:              "Reduce",
	OpConcatenate:         "Concatenate",
	OpDotGeneral:          "DotGeneral",
	OpAdd:                 "Add",
	OpSub:                 "Sub",
	OpMul:                 "Mul",
	OpDiv:                 "Div",
	OpMin:                 "Min",
	OpMax:                 "Max",
	OpCompare:             "Compare",
	OpNeg:                 "Neg",
	OpTanh:                "Tanh",
	OpExp:                 "Exp",
	OpSelect:              "Select",
	OpPad:                 "Pad",
	OpSlice:               "Slice",
	OpDynamicSlice:        "DynamicSlice",
	OpDynamicUpdateSlice:  "DynamicUpdateSlice",
	OpScatter:             "Scatter",
	OpGather:              "Gather",
	OpIota:                "Iota",
	OpBlackBox:            "BlackBox",
}

var opByName map[string]Op

func init() {
	opByName = make(map[string]Op, len(opNames))
	for tag, name := range opNames {
		if name != "" {
			opByName[name] = Op(tag)
		}
	}
}

// LookupOp resolves the surface-syntax operator name (as used in rule
// files, e.g. "Transpose") to its Op tag.
func LookupOp(name string) (Op, bool) {
	op, ok := opByName[name]
	return op, ok
}

func (o Op) String() string {
	if int(o) < 0 || int(o) >= len(opNames) || opNames[o] == "" {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return opNames[o]
}

// IsElementwiseBinary reports whether op is one of the pointwise binary
// arithmetic/comparison variants.
func (o Op) IsElementwiseBinary() bool {
	switch o {
	case OpAdd, OpSub, OpMul, OpDiv, OpMin, OpMax, OpCompare:
		return true
	}
	return false
}

// IsElementwiseUnary reports whether op is one of the pointwise unary
// variants.
func (o Op) IsElementwiseUnary() bool {
	switch o {
	case OpNeg, OpTanh, OpExp:
		return true
	}
	return false
}

// IsLeaf reports whether op never has children (Input and Num carry
// their payload as immediate data, not as child classes; Iota takes its
// shape as a child and BlackBox is variadic, so neither is a leaf).
func (o Op) IsLeaf() bool {
	switch o {
	case OpInput, OpNum:
		return true
	}
	return false
}

// HasZeroCost reports whether op is costed at zero regardless of shape,
// per the cost-model bridge contract (structural/bookkeeping nodes).
func (o Op) HasZeroCost() bool {
	switch o {
	case OpInput, OpNum, OpVec, OpBlackBox:
		return true
	}
	return false
}

// Imm holds the immediate (non-child-class) payload an e-node variant
// carries directly, as opposed to payload represented via child e-classes
// (Num/Vec). Which fields are meaningful depends on Node.Op:
//
//   - OpInput:    Name (symbolic name, e.g. "a@3_4"), IntVal (arg index)
//   - OpNum:      IntVal (the literal i32)
//   - OpBlackBox: Name (opaque id)
//   - OpConvert:  IntVal (target DType)
//   - OpIota:     IntVal (iota dimension)
//   - all others: zero value, unused (Concatenate's axis and Reduce's
//     dimensions are child classes)
type Imm struct {
	Name   string
	IntVal int32
}

// Node is one canonical e-node: an operator tag, its immediate payload,
// and its ordered children (other e-classes). A Node is canonical with
// respect to a union-find when every entry of Children is already a
// root id.
type Node struct {
	Op       Op
	Imm      Imm
	Children []ClassID
}

// Key returns a value suitable for use as a hashcons map key: two nodes
// with equal Key are congruent if their children resolve to the same
// classes, which is exactly the hashcons contract in e-graph core.
func (n Node) Key() string {
	buf := make([]byte, 0, 16+4*len(n.Children))
	buf = appendInt(buf, int64(n.Op))
	buf = append(buf, '|')
	buf = append(buf, n.Imm.Name...)
	buf = append(buf, '|')
	buf = appendInt(buf, int64(n.Imm.IntVal))
	for _, c := range n.Children {
		buf = append(buf, '|')
		buf = appendInt(buf, int64(c))
	}
	return string(buf)
}

func appendInt(buf []byte, v int64) []byte {
	return append(buf, []byte(fmt.Sprintf("%d", v))...)
}

func (n Node) String() string {
	if len(n.Children) == 0 && n.Imm == (Imm{}) {
		return n.Op.String()
	}
	return fmt.Sprintf("(%s %v %q %d)", n.Op, n.Children, n.Imm.Name, n.Imm.IntVal)
}
