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

// Topology describes the shard layout of the store as last reported by
// the service. Responses carry a new topology whenever it changes; the
// sequence number decides which copy is newer.
type Topology struct {
	SeqNum   int
	ShardIDs []int
}

// IsValid reports whether t carries a usable shard layout.
func (t *Topology) IsValid() bool {
	return t != nil && t.SeqNum >= 0 && len(t.ShardIDs) > 0
}
