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

	"github.com/google/btree"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
	"lodestone.io/lodestone/go/wire"
)

// DistributionKind describes how the service distributes a query.
type DistributionKind int16

const (
	// SinglePartition queries specify a complete shard key and go to
	// one partition over the primary index.
	SinglePartition DistributionKind = 0
	// AllPartitions queries use the primary index without a complete
	// shard key and fan out to every partition.
	AllPartitions DistributionKind = 1
	// AllShards queries use a secondary index and fan out to every
	// shard.
	AllShards DistributionKind = 2
)

// receiveIter requests and receives results from the service. For
// sorting queries it merge-sorts the per-shard or per-partition
// streams; it also eliminates duplicates for queries that require it.
// A query can need both.
type receiveIter struct {
	planIterBase
	distributionKind DistributionKind
	sortFields       []string
	sortSpecs        []types.SortSpec
	// names of the primary-key fields inside received rows, used for
	// duplicate elimination; empty means duplicates are allowed
	primKeyFields []string

	// per-execution state, cleared by done() and Reset()
	inSortPhase1   bool
	contKey        []byte
	primKeySet     map[string]struct{}
	scanner        *remoteScanner
	sortedScanners *btree.BTreeG[*remoteScanner]
}

func newReceiveIter(r *wire.Reader) (PlanIter, error) {
	it := &receiveIter{}
	if err := it.readBase(r); err != nil {
		return nil, err
	}
	kind, err := r.ReadInt16()
	if err != nil {
		return nil, err
	}
	it.distributionKind = DistributionKind(kind)
	switch it.distributionKind {
	case SinglePartition, AllPartitions, AllShards:
	default:
		return nil, lderrors.Errorf(lderrors.BadProtocolMessage, "unrecognized distribution kind %d", kind)
	}
	if it.sortFields, err = r.ReadStringArray(); err != nil {
		return nil, err
	}
	if it.sortSpecs, err = readSortSpecs(r); err != nil {
		return nil, err
	}
	if it.primKeyFields, err = r.ReadStringArray(); err != nil {
		return nil, err
	}
	it.resetData()
	return it, nil
}

func (it *receiveIter) resetData() {
	it.state = StateUninitialized
	it.inSortPhase1 = true
	it.contKey = nil
	it.primKeySet = make(map[string]struct{})
	it.scanner = nil
	it.sortedScanners = btree.NewG(8, it.scannerLess)
}

// scannerLess orders scanners by their next row; scanners with no
// cached rows sort first so the merge loop refills them before
// serving rows. Ties break on the scanner id to keep distinct
// scanners distinct inside the tree.
func (it *receiveIter) scannerLess(a, b *remoteScanner) bool {
	if !a.hasLocalResults() {
		if b.hasLocalResults() {
			return true
		}
		return a.id < b.id
	}
	if !b.hasLocalResults() {
		return false
	}
	c := types.CompareRows(a.results[0], b.results[0], it.sortFields, it.sortSpecs)
	if c != 0 {
		return c < 0
	}
	return a.id < b.id
}

func (it *receiveIter) doesSort() bool { return len(it.sortFields) > 0 }

func (it *receiveIter) Kind() Kind { return KindReceive }

func (it *receiveIter) Open(ctx context.Context, rt *Runtime) error {
	if it.state == StateOpen {
		return nil
	}
	switch {
	case it.doesSort() && it.distributionKind == AllPartitions:
		// scanners are created per partition during sort phase 1
	case it.doesSort() && it.distributionKind == AllShards:
		topo := rt.Topology()
		if !topo.IsValid() {
			return lderrors.New(lderrors.IllegalArgument, "no valid store topology for an all-shard query")
		}
		for _, shardID := range topo.ShardIDs {
			it.sortedScanners.ReplaceOrInsert(newRemoteScanner(true, shardID))
		}
	default:
		it.scanner = newRemoteScanner(false, -1)
	}
	it.state = StateOpen
	return nil
}

func (it *receiveIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
	if it.state == StateDone {
		return false, nil
	}
	if !it.doesSort() {
		return it.simpleNext(ctx, rt)
	}
	return it.sortingNext(ctx, rt)
}

func (it *receiveIter) simpleNext(ctx context.Context, rt *Runtime) (bool, error) {
	for {
		mv, err := it.scanner.next(ctx, rt)
		if err != nil {
			return false, err
		}
		if mv == nil {
			break
		}
		dup, err := it.checkDuplicate(mv)
		if err != nil {
			return false, err
		}
		if dup {
			continue
		}
		it.setResult(rt, types.NewMap(mv))
		return true, nil
	}
	if !rt.ReachedLimit() {
		it.done()
	}
	return false, nil
}

// done resets the execution state so a later Reset starts from
// scratch; the iterator configuration is kept. State ends at Done so
// further Next calls return false instead of touching the dropped
// scanners.
func (it *receiveIter) done() {
	it.resetData()
	it.state = StateDone
}

func (it *receiveIter) sortingNext(ctx context.Context, rt *Runtime) (bool, error) {
	if it.distributionKind == AllPartitions && it.inSortPhase1 {
		if err := it.initPartitionSort(ctx, rt); err != nil {
			return false, err
		}
		return false, nil
	}

	for {
		scanner, ok := it.sortedScanners.DeleteMin()
		if !ok {
			it.done()
			return false, nil
		}

		if mv := scanner.nextLocal(); mv != nil {
			if !scanner.isDone() {
				it.sortedScanners.ReplaceOrInsert(scanner)
			}
			mv.ConvertEmptyToNull()
			dup, err := it.checkDuplicate(mv)
			if err != nil {
				return false, err
			}
			if dup {
				continue
			}
			it.setResult(rt, types.NewMap(mv))
			return true, nil
		}

		// The scanner had no cached rows. If it cannot have remote
		// rows either, drop it and move to the next scanner;
		// otherwise fetch.
		if scanner.isDone() {
			continue
		}
		if err := scanner.fetch(ctx, rt); err != nil {
			return false, err
		}
		if !scanner.isDone() {
			it.sortedScanners.ReplaceOrInsert(scanner)
		}

		// Allow at most one remote fetch per batch: end the batch
		// here whether or not the fetch hit a size limit.
		rt.SetReachedLimit(true)
		return false, nil
	}
}

// initPartitionSort runs one batch of sort phase 1 of a sorting
// all-partitions query: it asks the service for at least one row from
// the partition named by the continuation key and from any partition
// co-located with it, then builds one scanner per partition touched.
// Phase 2 merge-sorts those scanners.
func (it *receiveIter) initPartitionSort(ctx context.Context, rt *Runtime) error {
	res, err := rt.fetch(ctx, &FetchRequest{ContinuationKey: it.contKey, ShardID: -1})
	if err != nil {
		return err
	}
	rt.Consumed().Add(res.Consumed)
	it.contKey = res.ContinuationKey

	sp := res.SortPhase1
	if sp != nil {
		it.inSortPhase1 = sp.InPhase1
	}

	rows := res.Rows
	if sp != nil {
		for p, pid := range sp.PIDs {
			numResults := sp.NumResultsPerPID[p]
			if numResults <= 0 {
				return lderrors.Errorf(lderrors.IllegalState, "expected at least one row for partition %d", pid)
			}
			if numResults > len(rows) {
				return lderrors.Errorf(lderrors.IllegalState, "partition %d claims more rows than the batch holds", pid)
			}
			scanner := newRemoteScanner(false, pid)
			scanner.addResults(rows[:numResults], sp.ContinuationKeys[p])
			rows = rows[numResults:]
			it.sortedScanners.ReplaceOrInsert(scanner)
		}
	}

	// If the size limit was not reached during this batch of phase 1
	// we still end the batch: each remote fetch then runs with the
	// full read limit, which reduces the total number of fetches.
	rt.SetReachedLimit(true)
	return nil
}

// checkDuplicate reports whether mv's primary key has been seen
// before, remembering it either way.
func (it *receiveIter) checkDuplicate(mv *types.MapValue) (bool, error) {
	if len(it.primKeyFields) == 0 {
		return false, nil
	}
	key, err := it.binaryPrimKey(mv)
	if err != nil {
		return false, err
	}
	if _, seen := it.primKeySet[key]; seen {
		return true, nil
	}
	it.primKeySet[key] = struct{}{}
	return false, nil
}

func (it *receiveIter) binaryPrimKey(mv *types.MapValue) (string, error) {
	w := wire.NewWriter()
	for _, field := range it.primKeyFields {
		fv, ok := mv.Get(field)
		if !ok {
			return "", lderrors.Errorf(lderrors.IllegalArgument,
				"can't build binary primary key: no field %q in row", field)
		}
		if err := w.WriteFieldValue(fv); err != nil {
			return "", err
		}
	}
	return string(w.Bytes()), nil
}

func (it *receiveIter) Reset() error {
	it.resetData()
	return nil
}

func (it *receiveIter) Clone() PlanIter {
	c := &receiveIter{
		planIterBase:     planIterBase{resultReg: it.resultReg, loc: it.loc},
		distributionKind: it.distributionKind,
		sortFields:       it.sortFields,
		sortSpecs:        it.sortSpecs,
		primKeyFields:    it.primKeyFields,
	}
	c.resetData()
	return c
}

func (it *receiveIter) Result(rt *Runtime) *types.Value {
	return it.takeResult(rt)
}

// remoteScanner pulls one stream of rows from the service: the whole
// query for non-sorting queries, one shard or one partition for
// sorting ones.
type remoteScanner struct {
	isForShard        bool
	id                int
	contKey           []byte
	moreRemoteResults bool
	results           []*types.MapValue
}

func newRemoteScanner(isForShard bool, id int) *remoteScanner {
	return &remoteScanner{
		isForShard:        isForShard,
		id:                id,
		moreRemoteResults: true,
	}
}

func (s *remoteScanner) isDone() bool {
	return len(s.results) == 0 && !s.moreRemoteResults
}

func (s *remoteScanner) hasLocalResults() bool { return len(s.results) > 0 }

func (s *remoteScanner) addResults(rows []*types.MapValue, contKey []byte) {
	s.results = rows
	s.contKey = nil
	if len(contKey) > 0 {
		s.contKey = contKey
	}
	s.moreRemoteResults = s.contKey != nil
}

func (s *remoteScanner) nextLocal() *types.MapValue {
	if len(s.results) == 0 {
		return nil
	}
	mv := s.results[0]
	s.results = s.results[1:]
	return mv
}

func (s *remoteScanner) next(ctx context.Context, rt *Runtime) (*types.MapValue, error) {
	if mv := s.nextLocal(); mv != nil {
		return mv, nil
	}
	if !s.moreRemoteResults || rt.ReachedLimit() {
		return nil, nil
	}
	if err := s.fetch(ctx, rt); err != nil {
		return nil, err
	}
	return s.nextLocal(), nil
}

func (s *remoteScanner) fetch(ctx context.Context, rt *Runtime) error {
	rt.IncrBatchCounter()
	req := &FetchRequest{ContinuationKey: s.contKey, ShardID: -1}
	if s.isForShard {
		req.ShardID = s.id
	}
	res, err := rt.fetch(ctx, req)
	if err != nil {
		return err
	}
	s.addResults(res.Rows, res.ContinuationKey)
	rt.Consumed().Add(res.Consumed)
	rt.SetReachedLimit(rt.ReachedLimit() || res.ReachedLimit)
	if s.moreRemoteResults && !rt.ReachedLimit() {
		return lderrors.New(lderrors.IllegalState, "batch ended below its size limit but more results exist")
	}
	return nil
}

// SortPhase1 is the phase-1 bookkeeping blob a sorting all-partitions
// query carries in its responses: whether phase 1 continues, and, per
// partition touched, how many of the batch rows belong to it along
// with its continuation key.
type SortPhase1 struct {
	InPhase1         bool
	PIDs             []int
	NumResultsPerPID []int
	ContinuationKeys [][]byte
}

// ParseSortPhase1 decodes the phase-1 blob.
func ParseSortPhase1(data []byte) (*SortPhase1, error) {
	r := wire.NewReader(data)
	sp := &SortPhase1{}
	var err error
	if sp.InPhase1, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if sp.PIDs, err = r.ReadIntArray(); err != nil {
		return nil, err
	}
	if len(sp.PIDs) == 0 {
		return sp, nil
	}
	if sp.NumResultsPerPID, err = r.ReadIntArray(); err != nil {
		return nil, err
	}
	if len(sp.NumResultsPerPID) != len(sp.PIDs) {
		return nil, lderrors.New(lderrors.BadProtocolMessage, "mismatched partition id and row count arrays")
	}
	sp.ContinuationKeys = make([][]byte, len(sp.PIDs))
	for i := range sp.PIDs {
		if sp.ContinuationKeys[i], err = r.ReadBinary(); err != nil {
			return nil, err
		}
	}
	return sp, nil
}
