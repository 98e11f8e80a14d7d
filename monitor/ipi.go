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

//go:build tamago && riscv64

package main

import (
	"github.com/usbarmory/tamago/soc/sifive/fu540"

	"github.com/mpfs-soc/hss-monitor/api"
	"github.com/mpfs-soc/hss-monitor/internal/ipi"
)

// Per-hart message mailboxes in the L2 scratchpad, outside the cached
// monitor runtime. Each application hart polls its own mailbox from
// its machine mode trap handler when the MSIP doorbell rings.
const (
	mailboxBase   = 0x0a000000
	mailboxStride = 0x40

	mboxStatus = 0x00
	mboxOp     = 0x04
	mboxPriv   = 0x08
	mboxEntry  = 0x10
	mboxArg    = 0x18
	mboxIntent = 0x20
	mboxRproc  = 0x24

	mboxEmpty uint32 = 0
	mboxBusy  uint32 = 1
	mboxAcked uint32 = 2
)

func mailbox(target api.HartID) uint64 {
	return mailboxBase + uint64(target)*mailboxStride
}

// ring raises the target hart machine software interrupt through its
// CLINT MSIP register.
func ring(target api.HartID) {
	write32(fu540.CLINT_BASE+4*uint64(target), 1)
}

type slot struct {
	used   bool
	target api.HartID
}

// hwTransport is the mailbox message transport between the monitor
// hart and the application harts. Slot state lives on the monitor
// side only, the mailboxes carry the wire payload and the ack.
type hwTransport struct {
	slots [ipi.MaxOutstanding]slot
}

func (t *hwTransport) Alloc() (index uint32, ok bool) {
	for i := range t.slots {
		if !t.slots[i].used {
			t.slots[i].used = true

			return uint32(i), true
		}
	}

	return ipi.Unused, false
}

func (t *hwTransport) Deliver(index uint32, target api.HartID, msg api.Message) bool {
	if index >= ipi.MaxOutstanding || !t.slots[index].used || !target.Valid() {
		return false
	}

	if !post(target, msg) {
		return false
	}

	t.slots[index].target = target

	return true
}

func (t *hwTransport) CheckIfComplete(index uint32) bool {
	if index >= ipi.MaxOutstanding || !t.slots[index].used {
		return false
	}

	return read32(mailbox(t.slots[index].target)+mboxStatus) == mboxAcked
}

func (t *hwTransport) Free(index uint32) {
	if index >= ipi.MaxOutstanding || !t.slots[index].used {
		return
	}

	box := mailbox(t.slots[index].target)

	if read32(box+mboxStatus) == mboxAcked {
		write32(box+mboxStatus, mboxEmpty)
	}

	t.slots[index] = slot{}
}

func (t *hwTransport) Send(target api.HartID, msg api.Message) bool {
	if !target.Valid() {
		return false
	}

	return post(target, msg)
}

func (t *hwTransport) ConsumeIntent(target api.HartID, op api.Op) bool {
	if !target.Valid() {
		return false
	}

	box := mailbox(target)

	if read32(box+mboxIntent) != uint32(op) {
		return false
	}

	write32(box+mboxIntent, 0)

	return true
}

// post stages msg in the target mailbox and rings the doorbell. A
// mailbox still busy with a previous message fails the delivery.
func post(target api.HartID, msg api.Message) bool {
	box := mailbox(target)

	if read32(box+mboxStatus) == mboxBusy {
		return false
	}

	write32(box+mboxOp, uint32(msg.Op))
	write32(box+mboxPriv, uint32(msg.PrivMode))
	write64(box+mboxEntry, msg.Entry)
	write64(box+mboxArg, msg.Arg)
	write32(box+mboxStatus, mboxBusy)

	ring(target)

	return true
}
