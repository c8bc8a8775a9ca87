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

package types

// Capacity is the throughput consumed by an operation. A query
// accumulates capacity across every batch and internal fetch it issues.
type Capacity struct {
	ReadKB     int
	ReadUnits  int
	WriteKB    int
	WriteUnits int
}

// Add accumulates o into c.
func (c *Capacity) Add(o Capacity) {
	c.ReadKB += o.ReadKB
	c.ReadUnits += o.ReadUnits
	c.WriteKB += o.WriteKB
	c.WriteUnits += o.WriteUnits
}

// Reset zeroes the accumulated capacity.
func (c *Capacity) Reset() { *c = Capacity{} }
