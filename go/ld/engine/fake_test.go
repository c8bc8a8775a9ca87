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

// fakeIter serves a canned sequence of values through its result
// register, standing in for a child iterator in tests.
type fakeIter struct {
	planIterBase
	rows []*types.Value
	idx  int
}

func newFakeIter(reg int, rows ...*types.Value) *fakeIter {
	return &fakeIter{planIterBase: planIterBase{resultReg: reg}, rows: rows}
}

func (f *fakeIter) Kind() Kind { return KindVarRef }

func (f *fakeIter) Open(ctx context.Context, rt *Runtime) error {
	f.state = StateOpen
	f.idx = 0
	return nil
}

func (f *fakeIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
	if f.idx >= len(f.rows) {
		f.state = StateDone
		return false, nil
	}
	rt.SetReg(f.resultReg, f.rows[f.idx].Clone())
	f.idx++
	return true, nil
}

func (f *fakeIter) Reset() error {
	f.state = StateOpen
	return nil
}

func (f *fakeIter) Clone() PlanIter {
	return newFakeIter(f.resultReg, f.rows...)
}

func (f *fakeIter) Result(rt *Runtime) *types.Value {
	return f.takeResult(rt)
}

// fakeFetcher replays canned batches, recording the requests it saw.
type fakeFetcher struct {
	t       *testing.T
	batches []*FetchResult
	reqs    []FetchRequest
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	f.reqs = append(f.reqs, *req)
	if len(f.batches) == 0 {
		return nil, lderrors.New(lderrors.IllegalState, "unexpected fetch")
	}
	res := f.batches[0]
	f.batches = f.batches[1:]
	return res, nil
}

// shardFetcher replays canned batches per shard (or partition) id.
type shardFetcher struct {
	t       *testing.T
	batches map[int][]*FetchResult
}

func (f *shardFetcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	queue := f.batches[req.ShardID]
	if len(queue) == 0 {
		return nil, lderrors.Errorf(lderrors.IllegalState, "unexpected fetch for shard %d", req.ShardID)
	}
	f.batches[req.ShardID] = queue[1:]
	return queue[0], nil
}

// fakeVars binds external variables by id.
type fakeVars map[int]*types.Value

func (f fakeVars) ExternalVar(id int) *types.Value { return f[id] }

func row(t *testing.T, pairs ...any) *types.MapValue {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	mv := types.NewMapValue()
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		require.True(t, ok)
		switch v := pairs[i+1].(type) {
		case *types.Value:
			mv.Put(name, v)
		case int:
			mv.Put(name, types.NewInteger(int32(v)))
		case int64:
			mv.Put(name, types.NewLong(v))
		case float64:
			mv.Put(name, types.NewDouble(v))
		case string:
			mv.Put(name, types.NewString(v))
		case bool:
			mv.Put(name, types.NewBoolean(v))
		default:
			t.Fatalf("unsupported row value type %T", pairs[i+1])
		}
	}
	return mv
}

// drain runs it to exhaustion within one batch and returns the
// produced values.
func drain(t *testing.T, it PlanIter, rt *Runtime) []*types.Value {
	t.Helper()
	var out []*types.Value
	for {
		more, err := it.Next(context.Background(), rt)
		require.NoError(t, err)
		if !more {
			return out
		}
		out = append(out, it.Result(rt))
	}
}
