// Package esaterrors defines the typed error taxonomy shared across the
// optimizer: MalformedRule, ShapeOverflow, AnalysisConflict,
// CycleDetected, SolverFailure, and BudgetExhausted.
//
// The package mirrors the shape of cue-lang/cue's cue/errors package: a
// dedicated Error interface with a Kind, constructors per kind, and
// Is/As passthroughs to the standard library so callers can keep using
// errors.Is/errors.As without importing this package directly.
package esaterrors

import (
	"errors"
	"fmt"
)

// Kind classifies an optimizer error.
type Kind int

const (
	// KindMalformedRule: a rule-file line could not be parsed. Fatal.
	KindMalformedRule Kind = iota
	// KindShapeOverflow: a shape exceeded term.MaxDims. Fatal.
	KindShapeOverflow
	// KindAnalysisConflict: two merged classes disagreed on shape. Fatal,
	// indicates a bad rewrite rule.
	KindAnalysisConflict
	// KindCycleDetected: a union that would close a cycle was rejected.
	// Fatal. internal/cycle's online guard rejects such unions silently
	// and does not construct this error.
	KindCycleDetected
	// KindSolverFailure: the ILP subprocess exited non-zero or its
	// output could not be parsed. Fatal.
	KindSolverFailure
	// KindBudgetExhausted: a resource cap was hit before saturation.
	// Informational: the best-known extraction is still returned.
	KindBudgetExhausted
)

func (k Kind) String() string {
	switch k {
	case KindMalformedRule:
		return "MalformedRule"
	case KindShapeOverflow:
		return "ShapeOverflow"
	case KindAnalysisConflict:
		return "AnalysisConflict"
	case KindCycleDetected:
		return "CycleDetected"
	case KindSolverFailure:
		return "SolverFailure"
	case KindBudgetExhausted:
		return "BudgetExhausted"
	default:
		return "Unknown"
	}
}

// Fatal reports whether errors of this kind should abort the current
// optimization run. Only BudgetExhausted is non-fatal.
func (k Kind) Fatal() bool {
	return k != KindBudgetExhausted
}

// Error is the error type produced by every optimizer package for the
// six named kinds.
type Error struct {
	Kind   Kind
	Detail string
	// Subject names the offending rule or node, when applicable.
	Subject string
	Err     error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Subject, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, esaterrors.Kind(...)) style checks against
// a sentinel built with New(kind, "").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind with a subject and detail
// message, optionally wrapping a cause.
func New(kind Kind, subject, detail string, cause error) *Error {
	return &Error{Kind: kind, Subject: subject, Detail: detail, Err: cause}
}

// Sentinel returns a zero-detail *Error usable with errors.Is to test
// for a particular kind, e.g. errors.Is(err, esaterrors.Sentinel(esaterrors.KindBudgetExhausted)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Is reports whether err, in its chain, carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func MalformedRule(subject, detail string, cause error) *Error {
	return New(KindMalformedRule, subject, detail, cause)
}

func ShapeOverflow(subject string, ndim int) *Error {
	return New(KindShapeOverflow, subject, fmt.Sprintf("shape has %d dimensions, exceeding the limit", ndim), nil)
}

func AnalysisConflict(subject, detail string) *Error {
	return New(KindAnalysisConflict, subject, detail, nil)
}

func CycleDetected(subject, detail string) *Error {
	return New(KindCycleDetected, subject, detail, nil)
}

func SolverFailure(detail string, cause error) *Error {
	return New(KindSolverFailure, "", detail, cause)
}

func BudgetExhausted(reason string) *Error {
	return New(KindBudgetExhausted, "", reason, nil)
}
