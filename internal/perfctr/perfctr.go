// Copyright 2024 The HSS Monitor authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package perfctr provides named lap counters used to measure boot
// phase durations.
package perfctr

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/mpfs-soc/hss-monitor/internal/sm"
)

// Uninitialized marks a handle that has not been allocated.
const Uninitialized = -1

const maxCounters = 16

type counter struct {
	name  string
	start uint64
	last  uint64
}

// Pool allocates counters against a single clock.
type Pool struct {
	clock    sm.Clock
	counters []counter
}

// NewPool returns an empty counter pool.
func NewPool(clock sm.Clock) *Pool {
	return &Pool{clock: clock}
}

// Allocate assigns a counter. The handle is left untouched if it is
// already allocated, making repeat allocation on restart harmless.
func (p *Pool) Allocate(handle *int, name string) {
	if *handle != Uninitialized {
		return
	}

	if len(p.counters) >= maxCounters {
		return
	}

	p.counters = append(p.counters, counter{name: name, start: p.clock.Now()})
	*handle = len(p.counters) - 1
}

// Lap records the elapsed time on a counter.
func (p *Pool) Lap(handle int) {
	if handle == Uninitialized || handle >= len(p.counters) {
		return
	}

	c := &p.counters[handle]
	c.last = p.clock.Now() - c.start

	klog.V(2).Infof("perf: %s: %d ms", c.name, c.last)
}

// Dump returns every counter's last lap, one line per counter.
func (p *Pool) Dump() string {
	var out string

	for _, c := range p.counters {
		out += fmt.Sprintf("%s: %d ms\n", c.name, c.last)
	}

	return out
}
