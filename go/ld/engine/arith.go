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

package engine

import (
	"context"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
	"lodestone.io/lodestone/go/wire"
)

// arithOpIter implements addition/subtraction or multiplication/
// division over two or more inputs. The only op the driver strictly
// needs is real division, used to compute AVG as SUM/COUNT, but having
// the full set allows arithmetic among aggregates in the SELECT list.
//
// For OpAddSub ops holds one '+' or '-' per input; for OpMultDiv it
// holds '*', '/' or 'd' per input, where 'd' is the real-division
// operator.
type arithOpIter struct {
	planIterBase
	funcCode    int
	args        []PlanIter
	ops         string
	haveRealDiv bool
}

func newArithOpIter(r *wire.Reader) (PlanIter, error) {
	it := &arithOpIter{}
	if err := it.readBase(r); err != nil {
		return nil, err
	}
	code, err := r.ReadInt16()
	if err != nil {
		return nil, err
	}
	it.funcCode = int(code)
	if it.funcCode != fnOpAddSub && it.funcCode != fnOpMultDiv {
		return nil, lderrors.Errorf(lderrors.IllegalArgument, "invalid arithmetic function code %d", code)
	}
	if it.args, err = deserializeIters(r); err != nil {
		return nil, err
	}
	if it.ops, err = r.ReadString(); err != nil {
		return nil, err
	}
	it.haveRealDiv = strings.ContainsRune(it.ops, 'd')
	if len(it.ops) != len(it.args) {
		return nil, lderrors.New(lderrors.IllegalArgument, "mismatched operator and operand counts in arithmetic expression")
	}
	return it, nil
}

func (it *arithOpIter) Kind() Kind { return KindArithOp }

func (it *arithOpIter) Open(ctx context.Context, rt *Runtime) error {
	it.state = StateOpen
	for _, a := range it.args {
		if err := a.Open(ctx, rt); err != nil {
			return err
		}
	}
	return nil
}

func (it *arithOpIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
	if it.state == StateDone {
		return false, nil
	}

	// Evaluate the operands and determine the result type from the
	// numeric promotion rules. Integer is the floor, unless a real
	// division is present, which forces at least Double.
	resType := types.Integer
	if it.haveRealDiv {
		resType = types.Double
	}
	vals := make([]*types.Value, len(it.args))
	for i, a := range it.args {
		more, err := a.Next(ctx, rt)
		if err != nil {
			return false, err
		}
		if !more {
			it.state = StateDone
			return false, nil
		}
		v := a.Result(rt)
		if v == nil {
			return false, lderrors.Errorf(lderrors.IllegalState, "uninitialized operand %d in arithmetic expression", i)
		}
		if v.IsNull() {
			it.setResult(rt, types.NullValue())
			it.state = StateDone
			return true, nil
		}
		switch v.Type() {
		case types.Integer:
		case types.Long:
			if resType == types.Integer {
				resType = types.Long
			}
		case types.Double:
			if resType == types.Integer || resType == types.Long {
				resType = types.Double
			}
		case types.Number:
			resType = types.Number
		default:
			return false, lderrors.Errorf(lderrors.IllegalArgument,
				"operand %d in arithmetic operation has illegal type %s at %v", i, v.Type(), it.loc)
		}
		vals[i] = v
	}

	res, err := it.compute(resType, vals)
	if err != nil {
		return false, err
	}
	it.setResult(rt, res)
	it.state = StateDone
	return true, nil
}

func (it *arithOpIter) compute(resType types.Type, vals []*types.Value) (*types.Value, error) {
	switch resType {
	case types.Integer, types.Long:
		var res int64 = 0
		if it.funcCode == fnOpMultDiv {
			res = 1
		}
		for i, v := range vals {
			n, err := v.AsInt64()
			if err != nil {
				return nil, err
			}
			switch it.ops[i] {
			case '+':
				res += n
			case '-':
				res -= n
			case '*':
				res *= n
			default:
				if n == 0 {
					return nil, lderrors.New(lderrors.IllegalArgument, "division by zero in arithmetic expression")
				}
				res /= n
			}
		}
		if resType == types.Integer {
			return types.NewInteger(int32(res)), nil
		}
		return types.NewLong(res), nil

	case types.Double:
		var res float64 = 0
		if it.funcCode == fnOpMultDiv {
			res = 1
		}
		for i, v := range vals {
			f, err := v.AsFloat64()
			if err != nil {
				return nil, err
			}
			switch it.ops[i] {
			case '+':
				res += f
			case '-':
				res -= f
			case '*':
				res *= f
			default:
				res /= f
			}
		}
		return types.NewDouble(res), nil

	case types.Number:
		res := apd.New(0, 0)
		if it.funcCode == fnOpMultDiv {
			res = apd.New(1, 0)
		}
		ctx := types.NumberContext
		for i, v := range vals {
			d, err := v.AsDecimal()
			if err != nil {
				return nil, err
			}
			var cond apd.Condition
			switch it.ops[i] {
			case '+':
				cond, err = ctx.Add(res, res, d)
			case '-':
				cond, err = ctx.Sub(res, res, d)
			case '*':
				cond, err = ctx.Mul(res, res, d)
			default:
				cond, err = ctx.Quo(res, res, d)
			}
			if err != nil || cond.Any() && cond&apd.DivisionByZero != 0 {
				return nil, lderrors.Errorf(lderrors.IllegalArgument, "decimal arithmetic failed: %v", err)
			}
		}
		return types.NewNumber(res), nil
	}
	return nil, lderrors.Errorf(lderrors.IllegalState, "invalid arithmetic result type %s", resType)
}

func (it *arithOpIter) Reset() error {
	it.state = StateUninitialized
	for _, a := range it.args {
		if err := a.Reset(); err != nil {
			return err
		}
	}
	return nil
}

func (it *arithOpIter) Clone() PlanIter {
	return &arithOpIter{
		planIterBase: planIterBase{resultReg: it.resultReg, loc: it.loc},
		funcCode:     it.funcCode,
		args:         cloneIters(it.args),
		ops:          it.ops,
		haveRealDiv:  it.haveRealDiv,
	}
}

func (it *arithOpIter) Result(rt *Runtime) *types.Value {
	return it.takeResult(rt)
}
