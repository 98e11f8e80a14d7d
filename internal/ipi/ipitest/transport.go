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

// Package ipitest provides an in-memory IPI transport for tests.
package ipitest

import (
	"testing"

	"github.com/mpfs-soc/hss-monitor/api"
	"github.com/mpfs-soc/hss-monitor/internal/ipi"
)

// Delivery records one message handed to the transport.
type Delivery struct {
	Index  uint32
	Target api.HartID
	Msg    api.Message
}

type intent struct {
	target api.HartID
	op     api.Op
}

// Transport is a scriptable in-memory ipi.Transport. The zero
// configuration acknowledges every delivered message on first poll.
type Transport struct {
	t *testing.T

	// AckFunc decides whether a delivered message is acknowledged
	// when polled. Nil means always acknowledge.
	AckFunc func(d Delivery) bool

	// FailDeliver forces Deliver to report failure for matching
	// messages.
	FailDeliver func(target api.HartID, msg api.Message) bool

	slots      [ipi.MaxOutstanding]bool
	delivered  [ipi.MaxOutstanding]*Delivery
	deliveries []Delivery
	sent       []Delivery
	intents    []intent

	live    int
	maxLive int
	frees   int
	allocs  int
}

// New returns an idle transport.
func New(t *testing.T) *Transport {
	t.Helper()

	return &Transport{t: t}
}

func (tr *Transport) Alloc() (uint32, bool) {
	for i := range tr.slots {
		if !tr.slots[i] {
			tr.slots[i] = true
			tr.allocs++
			tr.live++

			if tr.live > tr.maxLive {
				tr.maxLive = tr.live
			}

			return uint32(i), true
		}
	}

	return ipi.Unused, false
}

func (tr *Transport) Deliver(index uint32, target api.HartID, msg api.Message) bool {
	if index >= ipi.MaxOutstanding || !tr.slots[index] {
		tr.t.Fatalf("Deliver on unallocated slot %d", index)
	}

	if tr.FailDeliver != nil && tr.FailDeliver(target, msg) {
		return false
	}

	d := Delivery{Index: index, Target: target, Msg: msg}
	tr.delivered[index] = &d
	tr.deliveries = append(tr.deliveries, d)

	return true
}

func (tr *Transport) CheckIfComplete(index uint32) bool {
	if index >= ipi.MaxOutstanding || !tr.slots[index] {
		tr.t.Fatalf("CheckIfComplete on unallocated slot %d", index)
	}

	d := tr.delivered[index]

	if d == nil {
		return false
	}

	if tr.AckFunc != nil {
		return tr.AckFunc(*d)
	}

	return true
}

func (tr *Transport) Free(index uint32) {
	if index >= ipi.MaxOutstanding || !tr.slots[index] {
		tr.t.Fatalf("Free on unallocated slot %d", index)
	}

	tr.slots[index] = false
	tr.delivered[index] = nil
	tr.frees++
	tr.live--
}

func (tr *Transport) Send(target api.HartID, msg api.Message) bool {
	tr.sent = append(tr.sent, Delivery{Index: ipi.Unused, Target: target, Msg: msg})

	return true
}

func (tr *Transport) ConsumeIntent(target api.HartID, op api.Op) bool {
	for i, in := range tr.intents {
		if in.target == target && in.op == op {
			tr.intents = append(tr.intents[:i], tr.intents[i+1:]...)

			return true
		}
	}

	return false
}

// QueueIntent queues a pending message of kind op from target for the
// monitor to consume.
func (tr *Transport) QueueIntent(target api.HartID, op api.Op) {
	tr.intents = append(tr.intents, intent{target: target, op: op})
}

// Deliveries returns every tracked delivery in order.
func (tr *Transport) Deliveries() []Delivery {
	return tr.deliveries
}

// Sent returns every fire-and-forget message in order.
func (tr *Transport) Sent() []Delivery {
	return tr.sent
}

// Live returns the number of currently allocated slots.
func (tr *Transport) Live() int {
	return tr.live
}

// MaxLive returns the high-water mark of allocated slots.
func (tr *Transport) MaxLive() int {
	return tr.maxLive
}

// Balanced reports whether every allocated slot has been freed.
func (tr *Transport) Balanced() bool {
	return tr.live == 0 && tr.allocs == tr.frees
}
