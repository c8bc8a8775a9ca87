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

package wire

// ProtocolVersion is the envelope version written in every request
// header.
const ProtocolVersion = 4

// QueryVersion is the query protocol version understood by the engine.
const QueryVersion = 3

// Envelope field names. These are wire constants; the short names keep
// the serialized form compact.
const (
	FieldBindVariables     = "bv"
	FieldConsistency       = "co"
	FieldConsumed          = "c"
	FieldContinuationKey   = "ck"
	FieldDriverQueryPlan   = "dq"
	FieldErrorCode         = "e"
	FieldException         = "x"
	FieldHeader            = "h"
	FieldIsPrepared        = "is"
	FieldIsSimpleQuery     = "iq"
	FieldMaxReadKB         = "mr"
	FieldMaxWriteKB        = "mw"
	FieldName              = "m"
	FieldNamespace         = "ns"
	FieldOpCode            = "o"
	FieldPayload           = "p"
	FieldPreparedQuery     = "pq"
	FieldProxyTopoSeqnum   = "pn"
	FieldQueryOperation    = "qo"
	FieldQueryPlanString   = "qs"
	FieldQueryResults      = "qr"
	FieldQueryResultSchema = "qc"
	FieldQueryVersion      = "qv"
	FieldReachedLimit      = "re"
	FieldReadKB            = "rk"
	FieldReadUnits         = "ru"
	FieldShardID           = "si"
	FieldShardIDs          = "sa"
	FieldSortPhase1Results = "p1"
	FieldStatement         = "st"
	FieldTableName         = "n"
	FieldTimeout           = "t"
	FieldTopologyInfo      = "tp"
	FieldType              = "y"
	FieldValue             = "l"
	FieldVersion           = "v"
	FieldWriteKB           = "wk"
	FieldWriteUnits        = "wu"
)
