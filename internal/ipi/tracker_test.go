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

package ipi_test

import (
	"testing"

	"github.com/mpfs-soc/hss-monitor/api"
	"github.com/mpfs-soc/hss-monitor/internal/ipi"
	"github.com/mpfs-soc/hss-monitor/internal/ipi/ipitest"
)

func alloc(t *testing.T, tr *ipitest.Transport, target api.HartID, op api.Op) uint32 {
	t.Helper()

	index, ok := tr.Alloc()

	if !ok {
		t.Fatal("out of slots")
	}

	if !tr.Deliver(index, target, api.Message{Op: op}) {
		t.Fatal("delivery failed")
	}

	return index
}

func TestTrackerFreeOnAck(t *testing.T) {
	tr := ipitest.New(t)
	tk := ipi.NewTracker(tr)

	tk.SetPrimary(alloc(t, tr, api.U54_1, api.OpPMPSetup))

	if !tk.PrimaryInFlight() {
		t.Fatal("primary not in flight after SetPrimary")
	}

	if !tk.AllAcked() {
		t.Fatal("AllAcked false with an always-ack transport")
	}

	// The acked slot is freed by the poll itself.
	if !tr.Balanced() {
		t.Fatalf("%d slots still live after ack", tr.Live())
	}

	if tk.PrimaryInFlight() {
		t.Fatal("primary still in flight after ack")
	}

	// Re-polling with no slots in flight reports complete.
	if !tk.AllAcked() {
		t.Fatal("AllAcked false with no slots in flight")
	}
}

func TestTrackerPendingAck(t *testing.T) {
	tr := ipitest.New(t)
	tr.AckFunc = func(d ipitest.Delivery) bool {
		return d.Target != api.U54_2
	}

	tk := ipi.NewTracker(tr)

	tk.SetPrimary(alloc(t, tr, api.U54_1, api.OpPMPSetup))
	tk.SetAux(api.U54_2, alloc(t, tr, api.U54_2, api.OpOpenSBIInit))

	// The primary ack is collected and freed even while the auxiliary
	// slot is still pending.
	if tk.AllAcked() {
		t.Fatal("AllAcked true with a pending auxiliary slot")
	}

	if tk.PrimaryInFlight() {
		t.Fatal("acked primary slot not freed")
	}

	if tr.Live() != 1 {
		t.Fatalf("%d slots live, want 1", tr.Live())
	}

	tr.AckFunc = nil

	if !tk.AllAcked() {
		t.Fatal("AllAcked false after the auxiliary ack")
	}

	if !tr.Balanced() {
		t.Fatalf("%d slots still live", tr.Live())
	}
}

func TestTrackerFreeAll(t *testing.T) {
	tr := ipitest.New(t)
	tr.AckFunc = func(ipitest.Delivery) bool { return false }

	tk := ipi.NewTracker(tr)

	tk.SetPrimary(alloc(t, tr, api.U54_1, api.OpPMPSetup))

	for _, peer := range api.AppHarts {
		tk.SetAux(peer, alloc(t, tr, peer, api.OpOpenSBIInit))
	}

	if tk.AllAcked() {
		t.Fatal("AllAcked true with a never-ack transport")
	}

	tk.FreeAll()

	if !tr.Balanced() {
		t.Fatalf("%d slots still live after FreeAll", tr.Live())
	}

	// FreeAll on quiesced slots is harmless.
	tk.FreeAll()
}

func TestTrackerExhaustion(t *testing.T) {
	tr := ipitest.New(t)

	for i := 0; i < ipi.MaxOutstanding; i++ {
		if _, ok := tr.Alloc(); !ok {
			t.Fatalf("Alloc failed at slot %d", i)
		}
	}

	if index, ok := tr.Alloc(); ok || index != ipi.Unused {
		t.Fatalf("Alloc succeeded past %d slots (index %d)", ipi.MaxOutstanding, index)
	}
}
