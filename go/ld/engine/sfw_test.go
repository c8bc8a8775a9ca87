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
	"testing"

	"github.com/stretchr/testify/require"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
)

// colStep builds the usual projection column shape: a field step over
// a reference to the from-variable.
func colStep(resultReg, fromReg int, field string) PlanIter {
	return &fieldStepIter{
		planIterBase: planIterBase{resultReg: resultReg},
		input:        &varRefIter{planIterBase: planIterBase{resultReg: fromReg}, name: "$f"},
		field:        field,
	}
}

func constInt(reg int, n int32) PlanIter {
	return &constIter{planIterBase: planIterBase{resultReg: reg}, value: types.NewInteger(n)}
}

func TestSFWProjection(t *testing.T) {
	var rows []*types.Value
	for i := 1; i <= 5; i++ {
		rows = append(rows, types.NewMap(row(t, "id", i, "name", "x")))
	}
	it := &sfwIter{
		planIterBase: planIterBase{resultReg: 0},
		fromIter:     newFakeIter(1, rows...),
		fromVarName:  "$f",
		columnIters:  []PlanIter{colStep(2, 1, "id")},
		columnNames:  []string{"id"},
		numGBColumns: -1,
		offsetIter:   constInt(3, 1),
		limitIter:    constInt(4, 2),
	}
	rt := NewRuntime(5, nil, nil)
	require.NoError(t, it.Open(context.Background(), rt))
	out := drain(t, it, rt)

	require.Equal(t, []int{2, 3}, sortedIDs(t, out))
	// the projection dropped the extra column
	require.Equal(t, 1, out[0].Map().Len())
}

func TestSFWSelectStar(t *testing.T) {
	it := &sfwIter{
		planIterBase: planIterBase{resultReg: 1},
		fromIter:     newFakeIter(1, types.NewMap(row(t, "id", 9))),
		fromVarName:  "$f",
		isSelectStar: true,
		numGBColumns: -1,
	}
	rt := NewRuntime(2, nil, nil)
	require.NoError(t, it.Open(context.Background(), rt))
	out := drain(t, it, rt)
	require.Equal(t, []int{9}, sortedIDs(t, out))
}

func TestSFWMissingColumnIsNull(t *testing.T) {
	it := &sfwIter{
		planIterBase: planIterBase{resultReg: 0},
		fromIter:     newFakeIter(1, types.NewMap(row(t, "id", 1))),
		fromVarName:  "$f",
		columnIters:  []PlanIter{colStep(2, 1, "id"), colStep(3, 1, "age")},
		columnNames:  []string{"id", "age"},
		numGBColumns: -1,
	}
	rt := NewRuntime(4, nil, nil)
	require.NoError(t, it.Open(context.Background(), rt))
	out := drain(t, it, rt)
	require.Len(t, out, 1)
	age, ok := out[0].Map().Get("age")
	require.True(t, ok)
	require.True(t, age.IsNull())
}

func newTestGroupingSFW(t *testing.T, offsetReg int, offset int32) (*sfwIter, *Runtime) {
	t.Helper()
	rows := []*types.Value{
		types.NewMap(row(t, "k", 1, "n", 10)),
		types.NewMap(row(t, "k", 1, "n", 5)),
		types.NewMap(row(t, "k", 2, "n", 7)),
	}
	sum := &sumIter{
		planIterBase: planIterBase{resultReg: 4},
		input:        colStep(3, 1, "n"),
	}
	sum.clearSum()
	it := &sfwIter{
		planIterBase: planIterBase{resultReg: 0},
		fromIter:     newFakeIter(1, rows...),
		fromVarName:  "$f",
		columnIters:  []PlanIter{colStep(2, 1, "k"), sum},
		columnNames:  []string{"k", "n"},
		numGBColumns: 1,
	}
	if offset > 0 {
		it.offsetIter = constInt(offsetReg, offset)
	}
	return it, NewRuntime(6, nil, nil)
}

func TestSFWGrouping(t *testing.T) {
	it, rt := newTestGroupingSFW(t, 5, 0)
	require.NoError(t, it.Open(context.Background(), rt))
	out := drain(t, it, rt)
	require.Len(t, out, 2)

	first := out[0].Map()
	k, _ := first.Get("k")
	require.Equal(t, int32(1), k.Int())
	n, _ := first.Get("n")
	require.Zero(t, types.Compare(types.NewLong(15), n))

	second := out[1].Map()
	k, _ = second.Get("k")
	require.Equal(t, int32(2), k.Int())
	n, _ = second.Get("n")
	require.Zero(t, types.Compare(types.NewLong(7), n))
}

// The group flushed when the input runs out is the only row that will
// ever represent that group, so a pending offset must not drop it.
func TestSFWOffsetKeepsFlushedGroup(t *testing.T) {
	it, rt := newTestGroupingSFW(t, 5, 2)
	require.NoError(t, it.Open(context.Background(), rt))
	out := drain(t, it, rt)
	require.Len(t, out, 1)
	k, _ := out[0].Map().Get("k")
	require.Equal(t, int32(2), k.Int())
}

func TestSFWRejectsNonConstOffset(t *testing.T) {
	it := &sfwIter{
		planIterBase: planIterBase{resultReg: 0},
		fromIter:     newFakeIter(1),
		fromVarName:  "$f",
		isSelectStar: true,
		numGBColumns: -1,
		offsetIter:   &varRefIter{planIterBase: planIterBase{resultReg: 2}, name: "$o"},
	}
	rt := NewRuntime(3, nil, nil)
	err := it.Open(context.Background(), rt)
	require.Error(t, err)
	require.Equal(t, lderrors.IllegalArgument, lderrors.CodeOf(err))
}

func TestSFWNegativeLimit(t *testing.T) {
	it := &sfwIter{
		planIterBase: planIterBase{resultReg: 0},
		fromIter:     newFakeIter(1),
		fromVarName:  "$f",
		isSelectStar: true,
		numGBColumns: -1,
		limitIter:    constInt(2, -3),
	}
	rt := NewRuntime(3, nil, nil)
	err := it.Open(context.Background(), rt)
	require.Error(t, err)
	require.Equal(t, lderrors.IllegalArgument, lderrors.CodeOf(err))
}
