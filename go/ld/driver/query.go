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

package driver

import (
	"context"
	"sort"
	"time"

	"lodestone.io/lodestone/go/ld/engine"
	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
	"lodestone.io/lodestone/go/wire"
)

// Consistency selects the read consistency of a query.
type Consistency int

const (
	Eventual Consistency = iota
	Absolute
)

func (c Consistency) String() string {
	switch c {
	case Eventual:
		return "EVENTUAL"
	case Absolute:
		return "ABSOLUTE"
	default:
		return "UNKNOWN"
	}
}

const (
	opQuery   = 7
	opPrepare = 8

	// maxBatchCount bounds the number of batches a single Execute may
	// issue. A correct service/driver pair finishes long before this;
	// hitting it means a continuation-key loop.
	maxBatchCount = 10000
)

// QueryRequest executes a query statement, either directly or through
// a prepared statement. A request is stateful: it carries the
// continuation state of a multi-batch query and must not be used from
// multiple goroutines concurrently.
type QueryRequest struct {
	tableName   string
	statement   string
	prepared    *PreparedStatement
	prepareOnly bool
	maxReadKB   int
	maxWriteKB  int
	consistency Consistency
	timeout     time.Duration

	// isInternal marks sub-requests issued by the plan's receive
	// iterator. Internal requests never run a local plan themselves.
	isInternal bool
	// hasDriver is set once the local plan of a prepared statement has
	// been bound to a runtime for this request.
	hasDriver bool
	isDone    bool

	shardID      int
	contKey      []byte
	batchCounter int
	reachedLimit bool
	consumed     types.Capacity
	sortPhase1   *engine.SortPhase1
	topology     *engine.Topology

	rt   *engine.Runtime
	root engine.PlanIter
	err  error
}

// NewQuery creates a request for a query statement against a table.
func NewQuery(statement, tableName string) *QueryRequest {
	return &QueryRequest{
		statement: statement,
		tableName: tableName,
		shardID:   -1,
	}
}

// NewPreparedQuery creates a request that executes an already prepared
// statement.
func NewPreparedQuery(ps *PreparedStatement) *QueryRequest {
	return &QueryRequest{
		prepared:  ps,
		tableName: ps.TableName(),
		shardID:   -1,
		topology:  ps.topology,
	}
}

// SetPrepareOnly makes the request compile the statement without
// executing it. The prepared statement is returned in the result.
func (q *QueryRequest) SetPrepareOnly() *QueryRequest {
	q.prepareOnly = true
	return q
}

func (q *QueryRequest) SetTimeout(d time.Duration) *QueryRequest {
	q.timeout = d
	return q
}

func (q *QueryRequest) SetConsistency(c Consistency) *QueryRequest {
	q.consistency = c
	return q
}

// SetMaxReadKB limits the read throughput of each batch, in KB.
func (q *QueryRequest) SetMaxReadKB(kb int) *QueryRequest {
	q.maxReadKB = kb
	return q
}

// SetMaxWriteKB limits the write throughput of each batch, in KB.
func (q *QueryRequest) SetMaxWriteKB(kb int) *QueryRequest {
	q.maxWriteKB = kb
	return q
}

// IsDone reports whether the query has produced all its results.
func (q *QueryRequest) IsDone() bool { return q.isDone }

// PreparedStatement returns the statement prepared by this request, if
// any.
func (q *QueryRequest) PreparedStatement() *PreparedStatement { return q.prepared }

// QueryResult holds the rows and accounting of an executed query.
type QueryResult struct {
	rows     []*types.MapValue
	consumed types.Capacity
	prepared *PreparedStatement
}

func (qr *QueryResult) Rows() []*types.MapValue               { return qr.rows }
func (qr *QueryResult) Consumed() types.Capacity              { return qr.consumed }
func (qr *QueryResult) PreparedStatement() *PreparedStatement { return qr.prepared }

// Execute runs the query to completion, looping over batches until the
// continuation state is exhausted.
func (q *QueryRequest) Execute(ctx context.Context, conn Connection) (*QueryResult, error) {
	if err := q.reset(); err != nil {
		return nil, err
	}
	var rows []*types.MapValue
	for !q.isDone {
		if err := q.ExecuteBatch(ctx, conn, &rows); err != nil {
			return nil, err
		}
		q.batchCounter++
		total := q.batchCounter
		if q.rt != nil {
			total += q.rt.BatchCounter()
		}
		if total > maxBatchCount {
			return nil, lderrors.Errorf(lderrors.IllegalState,
				"query exceeded %d batches without finishing", maxBatchCount)
		}
	}
	res := &QueryResult{rows: rows, consumed: q.consumed, prepared: q.prepared}
	if q.rt != nil {
		res.consumed = *q.rt.Consumed()
	}
	return res, nil
}

// ExecuteBatch runs a single batch of the query, appending its rows to
// results. Callers iterating batch by batch check IsDone between
// calls; Execute is the usual entry point.
func (q *QueryRequest) ExecuteBatch(ctx context.Context, conn Connection, results *[]*types.MapValue) error {
	q.reachedLimit = false

	if !q.isInternal {
		if q.hasDriver {
			return q.getResults(ctx, results)
		}
		if !q.prepared.isEmpty() && !q.prepared.IsSimple() {
			q.bindDriver(conn)
			return q.getResults(ctx, results)
		}
	}

	timeout := q.timeout
	if timeout <= 0 {
		timeout = conn.DefaultTimeout()
	}

	w := wire.NewWriter()
	w.WriteInt16(SerialVersion)
	if err := q.serialize(w, timeout); err != nil {
		return err
	}
	data, err := conn.Roundtrip(ctx, w.Bytes(), timeout)
	if err != nil {
		return err
	}

	q.contKey = nil
	if err := q.deserializeResponse(wire.NewReader(data), results); err != nil {
		return err
	}
	if q.contKey == nil {
		q.isDone = true
	}
	return nil
}

// bindDriver clones the prepared plan and attaches it to a fresh
// runtime whose fetcher issues internal sub-requests over conn.
func (q *QueryRequest) bindDriver(conn Connection) {
	q.rt = engine.NewRuntime(q.prepared.plan.NumRegisters, q.prepared,
		&clientFetcher{conn: conn, parent: q})
	if q.topology.IsValid() {
		q.rt.SetTopology(q.topology)
	}
	q.root = q.prepared.plan.Root.Clone()
	q.hasDriver = true
}

// getResults drives the local plan for one batch.
func (q *QueryRequest) getResults(ctx context.Context, results *[]*types.MapValue) error {
	if q.err != nil {
		return q.err
	}
	if q.prepareOnly || q.prepared.IsSimple() {
		return nil
	}

	rt := q.rt
	if q.root.State() == engine.StateUninitialized {
		rt.SetReachedLimit(false)
		// Cost of the preparation round trip.
		*rt.Consumed() = types.Capacity{ReadKB: 1, ReadUnits: 1}
		if err := q.root.Open(ctx, rt); err != nil {
			q.err = err
			return err
		}
	}

	for {
		more, err := q.root.Next(ctx, rt)
		if err != nil {
			q.err = err
			return err
		}
		if !more {
			break
		}
		v := q.root.Result(rt)
		if v == nil || v.Type() != types.Map {
			q.err = lderrors.New(lderrors.IllegalState,
				"query plan produced a non-map result")
			return q.err
		}
		*results = append(*results, v.Map())
	}

	if rt.ReachedLimit() {
		// The plan suspended on a batch limit. Hand the application a
		// continuation key so it keeps calling, even though the real
		// continuation state is inside the plan.
		q.contKey = []byte{}
		q.isDone = false
		rt.SetReachedLimit(false)
	} else {
		q.contKey = nil
		q.isDone = true
	}
	return nil
}

func (q *QueryRequest) serialize(w *wire.Writer, timeout time.Duration) error {
	op := opQuery
	if q.prepareOnly {
		op = opPrepare
	}
	s := wire.StartRequest(w)
	s.WriteHeader(op, q.tableName, timeout)

	s.StartPayload()
	if q.consistency != Eventual {
		s.WriteIntField(wire.FieldConsistency, int(q.consistency))
	}
	s.WriteNonzeroIntField(wire.FieldMaxReadKB, q.maxReadKB)
	s.WriteNonzeroIntField(wire.FieldMaxWriteKB, q.maxWriteKB)
	s.WriteIntField(wire.FieldQueryVersion, wire.QueryVersion)

	if !q.prepared.isEmpty() {
		s.WriteBoolField(wire.FieldIsPrepared, true)
		s.WriteBoolField(wire.FieldIsSimpleQuery, q.prepared.IsSimple())
		s.WriteBinaryField(wire.FieldPreparedQuery, q.prepared.statement)
		if len(q.prepared.bindVariables) > 0 {
			if err := q.serializeBindVariables(s); err != nil {
				return err
			}
		}
	} else {
		if q.statement == "" {
			return lderrors.New(lderrors.IllegalArgument,
				"query request has no statement and no prepared statement")
		}
		s.WriteStringField(wire.FieldStatement, q.statement)
	}

	if len(q.contKey) > 0 {
		s.WriteBinaryField(wire.FieldContinuationKey, q.contKey)
	}
	if q.shardID > -1 {
		s.WriteIntField(wire.FieldShardID, q.shardID)
	}
	s.EndPayload()
	s.EndRequest()
	return nil
}

func (q *QueryRequest) serializeBindVariables(s *wire.Serializer) error {
	names := make([]string, 0, len(q.prepared.bindVariables))
	for name := range q.prepared.bindVariables {
		names = append(names, name)
	}
	sort.Strings(names)

	s.StartArray(wire.FieldBindVariables)
	for _, name := range names {
		s.StartArrayElement()
		s.StartMap("")
		s.WriteStringField(wire.FieldName, name)
		if err := s.WriteField(wire.FieldValue, q.prepared.bindVariables[name]); err != nil {
			return err
		}
		s.EndMap("")
		s.EndArrayElement()
	}
	s.EndArray(wire.FieldBindVariables)
	return nil
}

func (q *QueryRequest) ensurePrepared() *PreparedStatement {
	if q.prepared == nil {
		q.prepared = &PreparedStatement{}
	}
	return q.prepared
}

func (q *QueryRequest) deserializeResponse(r *wire.Reader, results *[]*types.MapValue) error {
	isPrepared := !q.prepared.isEmpty()
	q.sortPhase1 = nil
	legacy := &engine.Topology{SeqNum: -1}

	mw, err := wire.NewMapWalker(r)
	if err != nil {
		return err
	}
	for mw.HasNext() {
		if err := mw.Next(); err != nil {
			return err
		}
		switch mw.Name() {
		case wire.FieldErrorCode:
			if err := mw.HandleErrorCode(); err != nil {
				return err
			}
		case wire.FieldConsumed:
			c, err := mw.ReadConsumed()
			if err != nil {
				return err
			}
			q.addConsumed(c)
		case wire.FieldQueryResults:
			if err := readQueryResults(mw, results); err != nil {
				return err
			}
		case wire.FieldContinuationKey:
			ck, err := mw.ReadBinary()
			if err != nil {
				return err
			}
			if len(ck) > 0 {
				q.contKey = ck
			}
		case wire.FieldSortPhase1Results:
			blob, err := mw.ReadBinary()
			if err != nil {
				return err
			}
			if q.sortPhase1, err = engine.ParseSortPhase1(blob); err != nil {
				return err
			}
		case wire.FieldPreparedQuery:
			if isPrepared {
				return lderrors.New(lderrors.BadProtocolMessage,
					"response contains a prepared query for an already prepared request")
			}
			stmt, err := mw.ReadBinary()
			if err != nil {
				return err
			}
			q.ensurePrepared().statement = stmt
		case wire.FieldDriverQueryPlan:
			if isPrepared {
				return lderrors.New(lderrors.BadProtocolMessage,
					"response contains a query plan for an already prepared request")
			}
			blob, err := mw.ReadBinary()
			if err != nil {
				return err
			}
			plan, err := engine.ParsePlan(blob)
			if err != nil {
				return err
			}
			q.ensurePrepared().plan = plan
		case wire.FieldReachedLimit:
			if q.reachedLimit, err = mw.ReadBool(); err != nil {
				return err
			}
		case wire.FieldTableName:
			if q.ensurePrepared().tableName, err = mw.ReadString(); err != nil {
				return err
			}
		case wire.FieldNamespace:
			if q.ensurePrepared().namespace, err = mw.ReadString(); err != nil {
				return err
			}
		case wire.FieldQueryPlanString:
			if q.ensurePrepared().queryPlan, err = mw.ReadString(); err != nil {
				return err
			}
		case wire.FieldQueryResultSchema:
			if q.ensurePrepared().querySchema, err = mw.ReadString(); err != nil {
				return err
			}
		case wire.FieldQueryOperation:
			if q.ensurePrepared().operation, err = mw.ReadInt(); err != nil {
				return err
			}
		case wire.FieldTopologyInfo:
			topo, err := readTopologyInfo(mw)
			if err != nil {
				return err
			}
			q.adoptTopology(topo)
		case wire.FieldProxyTopoSeqnum:
			if legacy.SeqNum, err = mw.ReadInt(); err != nil {
				return err
			}
		case wire.FieldShardIDs:
			if legacy.ShardIDs, err = mw.ReadIntArray(); err != nil {
				return err
			}
		default:
			if err := mw.SkipField(); err != nil {
				return err
			}
		}
	}

	if legacy.IsValid() {
		q.adoptTopology(legacy)
	}

	if q.prepareOnly {
		if q.prepared.isEmpty() {
			return lderrors.New(lderrors.BadProtocolMessage,
				"prepare response contains no prepared statement")
		}
		q.isDone = true
		return nil
	}
	// An advanced query is done only when its local plan says so. A
	// batch with no continuation key from the service still needs the
	// driver loop to keep going, so plant a sentinel key.
	if !q.prepared.IsSimple() && q.contKey == nil {
		q.contKey = []byte{}
	}
	return nil
}

func (q *QueryRequest) addConsumed(c types.Capacity) {
	q.consumed.Add(c)
}

// adoptTopology keeps the newest topology and pushes it to the bound
// runtime and the prepared statement.
func (q *QueryRequest) adoptTopology(t *engine.Topology) {
	if !t.IsValid() {
		return
	}
	if q.topology != nil && q.topology.SeqNum >= t.SeqNum {
		return
	}
	q.topology = t
	if q.prepared != nil {
		q.prepared.topology = t
	}
	if q.rt != nil {
		q.rt.SetTopology(t)
	}
}

func readQueryResults(mw *wire.MapWalker, results *[]*types.MapValue) error {
	r := mw.Reader()
	t, err := r.ReadByte()
	if err != nil {
		return err
	}
	if types.Type(t) != types.Array {
		return lderrors.Errorf(lderrors.BadProtocolMessage,
			"query results are type %d, expected an array", t)
	}
	if _, err := r.ReadInt(); err != nil { // byte size, unused
		return err
	}
	n, err := r.ReadIntMin(0)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		v, err := r.ReadFieldValue()
		if err != nil {
			return err
		}
		if v.Type() != types.Map {
			return lderrors.New(lderrors.BadProtocolMessage,
				"query result row is not a map")
		}
		*results = append(*results, v.Map())
	}
	return nil
}

func readTopologyInfo(mw *wire.MapWalker) (*engine.Topology, error) {
	sub, err := wire.NewMapWalker(mw.Reader())
	if err != nil {
		return nil, err
	}
	topo := &engine.Topology{SeqNum: -1}
	for sub.HasNext() {
		if err := sub.Next(); err != nil {
			return nil, err
		}
		switch sub.Name() {
		case wire.FieldProxyTopoSeqnum:
			if topo.SeqNum, err = sub.ReadInt(); err != nil {
				return nil, err
			}
		case wire.FieldShardIDs:
			if topo.ShardIDs, err = sub.ReadIntArray(); err != nil {
				return nil, err
			}
		default:
			if err := sub.SkipField(); err != nil {
				return nil, err
			}
		}
	}
	if !topo.IsValid() {
		return nil, lderrors.New(lderrors.BadProtocolMessage,
			"topology info is missing its sequence number or shard ids")
	}
	return topo, nil
}

// copyForInternal builds the sub-request a receive iterator sends for
// one scanner fetch. The copy shares no continuation state with q.
func (q *QueryRequest) copyForInternal() *QueryRequest {
	return &QueryRequest{
		isInternal:  true,
		tableName:   q.tableName,
		prepared:    q.prepared.copyForInternal(),
		consistency: q.consistency,
		maxReadKB:   q.maxReadKB,
		maxWriteKB:  q.maxWriteKB,
		timeout:     q.timeout,
		shardID:     q.shardID,
	}
}

// reset clears the continuation state so Execute starts from the top.
func (q *QueryRequest) reset() error {
	q.isDone = false
	q.reachedLimit = false
	q.batchCounter = 0
	q.contKey = nil
	q.sortPhase1 = nil
	q.consumed.Reset()
	q.err = nil
	if q.root != nil {
		if err := q.root.Reset(); err != nil {
			return err
		}
	}
	if q.rt != nil {
		q.rt.SetReachedLimit(false)
		q.rt.ResetBatchCounter()
		q.rt.Consumed().Reset()
	}
	return nil
}
