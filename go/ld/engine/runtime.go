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
	"fmt"

	"lodestone.io/lodestone/go/types"
)

// VarResolver supplies the values bound to a query's external
// variables, looked up by the compiler-assigned variable id.
type VarResolver interface {
	// ExternalVar returns the value bound at id, or nil if no such
	// binding exists.
	ExternalVar(id int) *types.Value
}

// FetchRequest asks for one batch of remote results on behalf of a
// Receive iterator.
type FetchRequest struct {
	ContinuationKey []byte
	// ShardID scopes the fetch to one shard, or -1 for no scoping.
	ShardID int
}

// FetchResult is one batch of remote results.
type FetchResult struct {
	Rows            []*types.MapValue
	ContinuationKey []byte
	Consumed        types.Capacity
	// ReachedLimit is set when the service stopped the batch on a
	// size limit with more results pending.
	ReachedLimit bool
	// SortPhase1 is present on responses to phase-1 requests of a
	// sorting all-partitions query.
	SortPhase1 *SortPhase1
}

// Fetcher issues internal sub-requests to the service. The driver
// provides the implementation; the engine never talks to the network
// itself.
type Fetcher interface {
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// Runtime is the mutable execution state of one query: the register
// file that iterators communicate through, batch-limit tracking,
// consumed capacity, the service topology, and the externals the plan
// needs (bound variables, the fetcher).
type Runtime struct {
	registers    []*types.Value
	reachedLimit bool
	batchCounter int
	consumed     types.Capacity
	topology     *Topology
	vars         VarResolver
	fetcher      Fetcher
}

// NewRuntime allocates a runtime with every register uninitialized.
func NewRuntime(numRegisters int, vars VarResolver, fetcher Fetcher) *Runtime {
	return &Runtime{
		registers: make([]*types.Value, numRegisters),
		vars:      vars,
		fetcher:   fetcher,
	}
}

func (rt *Runtime) checkReg(i int) {
	if i < 0 || i >= len(rt.registers) {
		panic(fmt.Sprintf("register %d out of range, plan has %d registers", i, len(rt.registers)))
	}
}

// Reg borrows the value in register i; nil means uninitialized.
func (rt *Runtime) Reg(i int) *types.Value {
	rt.checkReg(i)
	return rt.registers[i]
}

// TakeReg moves the value out of register i, leaving it uninitialized.
func (rt *Runtime) TakeReg(i int) *types.Value {
	rt.checkReg(i)
	v := rt.registers[i]
	rt.registers[i] = nil
	return v
}

func (rt *Runtime) SetReg(i int, v *types.Value) {
	rt.checkReg(i)
	rt.registers[i] = v
}

// ReachedLimit reports whether the current batch hit a size limit and
// execution should suspend until the next batch.
func (rt *Runtime) ReachedLimit() bool     { return rt.reachedLimit }
func (rt *Runtime) SetReachedLimit(v bool) { rt.reachedLimit = v }

// BatchCounter counts service round trips, including internal fetches.
func (rt *Runtime) BatchCounter() int  { return rt.batchCounter }
func (rt *Runtime) IncrBatchCounter()  { rt.batchCounter++ }
func (rt *Runtime) ResetBatchCounter() { rt.batchCounter = 0 }

// Consumed is the capacity accumulated so far; callers may add to it.
func (rt *Runtime) Consumed() *types.Capacity { return &rt.consumed }

func (rt *Runtime) Topology() *Topology { return rt.topology }

// SetTopology adopts t when it is newer than the current topology.
func (rt *Runtime) SetTopology(t *Topology) {
	if !t.IsValid() {
		return
	}
	if rt.topology == nil || t.SeqNum > rt.topology.SeqNum {
		rt.topology = t
	}
}

// ExternalVar resolves the external variable bound at id.
func (rt *Runtime) ExternalVar(id int) *types.Value {
	if rt.vars == nil {
		return nil
	}
	return rt.vars.ExternalVar(id)
}

func (rt *Runtime) fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	return rt.fetcher.Fetch(ctx, req)
}
