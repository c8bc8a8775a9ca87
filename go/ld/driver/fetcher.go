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

	"lodestone.io/lodestone/go/ld/engine"
	"lodestone.io/lodestone/go/types"
)

// clientFetcher lets a bound query plan fetch batches of remote
// results. Each fetch runs one internal sub-request, scoped by the
// scanner's continuation key and shard.
type clientFetcher struct {
	conn   Connection
	parent *QueryRequest
}

var _ engine.Fetcher = (*clientFetcher)(nil)

func (f *clientFetcher) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	sub := f.parent.copyForInternal()
	sub.contKey = req.ContinuationKey
	sub.shardID = req.ShardID

	var rows []*types.MapValue
	if err := sub.ExecuteBatch(ctx, f.conn, &rows); err != nil {
		return nil, err
	}
	return &engine.FetchResult{
		Rows:            rows,
		ContinuationKey: sub.contKey,
		Consumed:        sub.consumed,
		ReachedLimit:    sub.reachedLimit,
		SortPhase1:      sub.sortPhase1,
	}, nil
}
