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

	"lodestone.io/lodestone/go/types"
)

func TestSumPromotion(t *testing.T) {
	num := func(s string) *types.Value {
		v, err := types.NewNumberFromString(s)
		require.NoError(t, err)
		return v
	}

	testcases := []struct {
		name string
		in   []*types.Value
		want *types.Value
	}{{
		name: "integers stay long",
		in:   []*types.Value{types.NewInteger(1), types.NewInteger(2), types.NewLong(3)},
		want: types.NewLong(6),
	}, {
		name: "double switches the running sum",
		in:   []*types.Value{types.NewInteger(1), types.NewDouble(2.5), types.NewInteger(3)},
		want: types.NewDouble(6.5),
	}, {
		name: "number wins over everything",
		in:   []*types.Value{types.NewLong(1), num("2.25"), types.NewInteger(1)},
		want: num("4.25"),
	}, {
		name: "nulls are skipped",
		in:   []*types.Value{types.NullValue(), types.NewInteger(5), types.NullValue()},
		want: types.NewLong(5),
	}, {
		name: "non-numerics are skipped",
		in:   []*types.Value{types.NewString("x"), types.NewInteger(5)},
		want: types.NewLong(5),
	}, {
		name: "null input only yields null",
		in:   []*types.Value{types.NullValue(), types.NullValue()},
		want: types.NullValue(),
	}}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			it := &sumIter{
				planIterBase: planIterBase{resultReg: 0},
				input:        newFakeIter(1, tc.in...),
			}
			it.clearSum()
			rt := NewRuntime(2, nil, nil)
			require.NoError(t, it.Open(context.Background(), rt))
			more, err := it.Next(context.Background(), rt)
			require.NoError(t, err)
			require.True(t, more)

			got, err := it.AggrValue(rt, true)
			require.NoError(t, err)
			require.Equal(t, tc.want.Type(), got.Type())
			require.Zero(t, types.Compare(tc.want, got))
		})
	}
}

func TestSumResetClearsState(t *testing.T) {
	it := &sumIter{
		planIterBase: planIterBase{resultReg: 0},
		input:        newFakeIter(1, types.NewInteger(7)),
	}
	it.clearSum()
	rt := NewRuntime(2, nil, nil)
	require.NoError(t, it.Open(context.Background(), rt))
	_, err := it.Next(context.Background(), rt)
	require.NoError(t, err)

	got, err := it.AggrValue(rt, true)
	require.NoError(t, err)
	require.Zero(t, types.Compare(types.NewLong(7), got))

	// after the reset the sum starts over and reports null-input-only
	got, err = it.AggrValue(rt, false)
	require.NoError(t, err)
	require.True(t, got.IsNull())
}

func TestMinMax(t *testing.T) {
	testcases := []struct {
		name string
		code int
		in   []*types.Value
		want *types.Value
	}{{
		name: "min across numeric types",
		code: fnMin,
		in:   []*types.Value{types.NewLong(3), types.NewDouble(1.5), types.NewInteger(2)},
		want: types.NewDouble(1.5),
	}, {
		name: "max across numeric types",
		code: fnMax,
		in:   []*types.Value{types.NewLong(3), types.NewDouble(1.5), types.NewInteger(2)},
		want: types.NewLong(3),
	}, {
		name: "strings sort above numerics",
		code: fnMax,
		in:   []*types.Value{types.NewInteger(100), types.NewString("a")},
		want: types.NewString("a"),
	}, {
		name: "nulls and binaries are skipped",
		code: fnMin,
		in:   []*types.Value{types.NullValue(), types.NewBinary([]byte{1}), types.NewInteger(4)},
		want: types.NewInteger(4),
	}, {
		name: "no eligible input yields null",
		code: fnMin,
		in:   []*types.Value{types.NullValue()},
		want: types.NullValue(),
	}}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			it := &minMaxIter{
				planIterBase: planIterBase{resultReg: 0},
				funcCode:     tc.code,
				input:        newFakeIter(1, tc.in...),
				minMax:       types.NullValue(),
			}
			rt := NewRuntime(2, nil, nil)
			require.NoError(t, it.Open(context.Background(), rt))
			more, err := it.Next(context.Background(), rt)
			require.NoError(t, err)
			require.True(t, more)

			got, err := it.AggrValue(rt, true)
			require.NoError(t, err)
			require.Zero(t, types.Compare(tc.want, got))

			// reset left a fresh accumulator behind
			got, err = it.AggrValue(rt, false)
			require.NoError(t, err)
			require.True(t, got.IsNull())
		})
	}
}
