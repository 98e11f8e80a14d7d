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

// Package ipi tracks the inter-processor message slots a boot machine
// has in flight and polls them for acknowledgement.
//
// The transport owns the message slots; machines reference them by
// index. A slot is freed in exactly one place: its own ack poll, the
// owning state's timeout cleanup, or an explicit delivery failure.
package ipi

import (
	"github.com/mpfs-soc/hss-monitor/api"
)

// MaxOutstanding is the transport's bounded in-flight slot count.
const MaxOutstanding = 8

// Unused is the slot index sentinel for "no message in flight".
const Unused uint32 = MaxOutstanding

// Transport is the message transport between the monitor hart and the
// application harts.
type Transport interface {
	// Alloc reserves a message slot, reporting false when all
	// MaxOutstanding slots are in flight.
	Alloc() (index uint32, ok bool)
	// Deliver sends msg to target using a previously allocated slot.
	Deliver(index uint32, target api.HartID, msg api.Message) bool
	// CheckIfComplete polls a slot for acknowledgement.
	CheckIfComplete(index uint32) bool
	// Free releases a slot.
	Free(index uint32)
	// Send is fire-and-forget delivery without slot tracking.
	Send(target api.HartID, msg api.Message) bool
	// ConsumeIntent consumes a pending message of the given kind
	// addressed to the monitor from target, if one is queued.
	ConsumeIntent(target api.HartID, op api.Op) bool
}
