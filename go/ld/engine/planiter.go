/*
Copyright 2026 The Lodestone Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package engine executes the driver-side portion of a query plan.
//
// Advanced queries run partially at the driver: the proxy compiles the
// statement and returns a serialized tree of plan iterators, which the
// engine deserializes and runs. Iterators communicate through a shared
// register file; each iterator writes its output to its result register
// and a parent reads it from there. Receive iterators at the leaves
// fetch batches of rows from the service through a Fetcher.
package engine

import (
	"context"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
	"lodestone.io/lodestone/go/wire"
)

// Kind identifies a plan-iterator type. The values are assigned by the
// query compiler and appear in serialized plans.
type Kind int8

const (
	KindConst      Kind = 0
	KindVarRef     Kind = 1
	KindExtVar     Kind = 2
	KindArithOp    Kind = 8
	KindFieldStep  Kind = 11
	KindSFW        Kind = 14
	KindSize       Kind = 15
	KindReceive    Kind = 17
	KindSumFunc    Kind = 39
	KindMinMaxFunc Kind = 41
	KindSorting    Kind = 47
	KindGroup      Kind = 65
	KindSorting2   Kind = 66
	KindCollect    Kind = 78
)

func (k Kind) String() string {
	switch k {
	case KindConst:
		return "CONST"
	case KindVarRef:
		return "VAR_REF"
	case KindExtVar:
		return "EXTERNAL_VAR_REF"
	case KindArithOp:
		return "ARITH_OP"
	case KindFieldStep:
		return "FIELD_STEP"
	case KindSFW:
		return "SFW"
	case KindSize:
		return "FN_SIZE"
	case KindReceive:
		return "RECV"
	case KindSumFunc:
		return "FN_SUM"
	case KindMinMaxFunc:
		return "FN_MIN_MAX"
	case KindSorting, KindSorting2:
		return "SORT"
	case KindGroup:
		return "GROUP"
	case KindCollect:
		return "FN_COLLECT"
	}
	return "UNKNOWN"
}

// Aggregate function codes carried by ArithOp, Group, Sum and MinMax
// iterators.
const (
	fnOpAddSub             = 14
	fnOpMultDiv            = 15
	fnCountStar            = 42
	fnCount                = 43
	fnCountNumbers         = 44
	fnSum                  = 45
	fnMin                  = 47
	fnMax                  = 48
	fnArrayCollect         = 91
	fnArrayCollectDistinct = 92
)

// IterState is the lifecycle of one iterator. Open moves Uninitialized
// to Open; the first Next that does work moves to Running; exhaustion
// moves to Done. Reset returns to Open keeping the configuration.
type IterState int8

const (
	StateUninitialized IterState = iota
	StateOpen
	StateRunning
	StateDone
)

// Location is the position of the iterator's expression in the query
// text, used in error messages.
type Location struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// PlanIter is one node of a deserialized query plan.
//
// Clone returns a copy with the same configuration and a fresh state,
// so a prepared statement can be executed concurrently: each execution
// clones the plan tree.
type PlanIter interface {
	Kind() Kind
	ResultReg() int
	State() IterState

	Open(ctx context.Context, rt *Runtime) error
	Next(ctx context.Context, rt *Runtime) (bool, error)
	Reset() error
	Clone() PlanIter

	// Result reads the iterator's output from its result register.
	Result(rt *Runtime) *types.Value
}

// aggrIter is implemented by iterators that accumulate a value across
// Next calls (Sum, MinMax, Collect). AggrValue returns the accumulated
// value; with reset it also clears the accumulator for the next group.
type aggrIter interface {
	PlanIter
	AggrValue(rt *Runtime, reset bool) (*types.Value, error)
}

// planIterBase carries the fields every serialized iterator starts
// with: the result register, a state position (unused by this driver)
// and the source location.
type planIterBase struct {
	resultReg int
	loc       Location
	state     IterState
}

func (b *planIterBase) readBase(r *wire.Reader) error {
	reg, err := r.ReadIntMin(-1)
	if err != nil {
		return err
	}
	b.resultReg = reg
	if _, err := r.ReadInt(); err != nil { // state position, unused
		return err
	}
	if b.loc.StartLine, err = r.ReadIntMin(0); err != nil {
		return err
	}
	if b.loc.StartColumn, err = r.ReadIntMin(0); err != nil {
		return err
	}
	if b.loc.EndLine, err = r.ReadIntMin(0); err != nil {
		return err
	}
	if b.loc.EndColumn, err = r.ReadIntMin(0); err != nil {
		return err
	}
	return nil
}

func (b *planIterBase) ResultReg() int   { return b.resultReg }
func (b *planIterBase) State() IterState { return b.state }

// setResult publishes a value into the iterator's result register.
func (b *planIterBase) setResult(rt *Runtime, v *types.Value) {
	rt.SetReg(b.resultReg, v)
}

// takeResult moves the value out of the result register.
func (b *planIterBase) takeResult(rt *Runtime) *types.Value {
	return rt.TakeReg(b.resultReg)
}

// deserializeIter reads one iterator. A kind byte of -1 encodes the
// absence of an iterator and yields nil.
func deserializeIter(r *wire.Reader) (PlanIter, error) {
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	kind := Kind(b)
	if int8(b) == -1 {
		return nil, nil
	}
	switch kind {
	case KindConst:
		return newConstIter(r)
	case KindVarRef:
		return newVarRefIter(r)
	case KindExtVar:
		return newExtVarIter(r)
	case KindArithOp:
		return newArithOpIter(r)
	case KindFieldStep:
		return newFieldStepIter(r)
	case KindSFW:
		return newSFWIter(r)
	case KindSize:
		return newSizeIter(r)
	case KindReceive:
		return newReceiveIter(r)
	case KindSumFunc:
		return newSumIter(r)
	case KindMinMaxFunc:
		return newMinMaxIter(r)
	case KindSorting, KindSorting2:
		return newSortIter(r, kind)
	case KindGroup:
		return newGroupIter(r)
	case KindCollect:
		return newCollectIter(r)
	}
	return nil, lderrors.Errorf(lderrors.IllegalArgument, "unknown query plan iterator of kind %d", b)
}

// deserializeIters reads a packed count followed by that many
// iterators, dropping absent ones.
func deserializeIters(r *wire.Reader) ([]PlanIter, error) {
	n, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	if n < -1 {
		return nil, lderrors.New(lderrors.BadProtocolMessage, "invalid iterator array length")
	}
	if n <= 0 {
		return nil, nil
	}
	iters := make([]PlanIter, 0, n)
	for i := 0; i < n; i++ {
		it, err := deserializeIter(r)
		if err != nil {
			return nil, err
		}
		if it != nil {
			iters = append(iters, it)
		}
	}
	return iters, nil
}

func cloneIters(iters []PlanIter) []PlanIter {
	if iters == nil {
		return nil
	}
	out := make([]PlanIter, len(iters))
	for i, it := range iters {
		out[i] = it.Clone()
	}
	return out
}

func cloneIter(it PlanIter) PlanIter {
	if it == nil {
		return nil
	}
	return it.Clone()
}

func readSortSpecs(r *wire.Reader) ([]types.SortSpec, error) {
	n, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	if n < -1 {
		return nil, lderrors.New(lderrors.BadProtocolMessage, "invalid sort spec array length")
	}
	if n <= 0 {
		return nil, nil
	}
	specs := make([]types.SortSpec, 0, n)
	for i := 0; i < n; i++ {
		desc, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		nullsFirst, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		specs = append(specs, types.SortSpec{Descending: desc, NullsFirst: nullsFirst})
	}
	return specs, nil
}

// Plan is a deserialized driver-side query plan together with its
// execution requirements.
type Plan struct {
	Root          PlanIter
	NumIterators  int
	NumRegisters  int
	VariableToIDs map[string]int
}

// ParsePlan decodes the driver plan blob returned by a prepare call.
// An empty blob, or one holding only the no-op iterator, yields a Plan
// with a nil Root: such queries are executed entirely at the service.
func ParsePlan(data []byte) (*Plan, error) {
	if len(data) == 0 {
		return nil, nil
	}
	r := wire.NewReader(data)
	root, err := deserializeIter(r)
	if err != nil {
		return nil, lderrors.Wrap(err, "parsing driver query plan")
	}
	p := &Plan{Root: root}
	if root == nil {
		return p, nil
	}
	if p.NumIterators, err = r.ReadIntMin(1); err != nil {
		return nil, err
	}
	if p.NumRegisters, err = r.ReadIntMin(1); err != nil {
		return nil, err
	}
	n, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return p, nil
	}
	p.VariableToIDs = make(map[string]int, n)
	for i := 0; i < n; i++ {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		id, err := r.ReadInt()
		if err != nil {
			return nil, err
		}
		p.VariableToIDs[name] = id
	}
	return p, nil
}
