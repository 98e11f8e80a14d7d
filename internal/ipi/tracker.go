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

package ipi

import (
	"github.com/mpfs-soc/hss-monitor/api"
)

// Tracker holds the message slots owned by one boot machine: a primary
// slot and one auxiliary slot per application hart. No two trackers
// ever name the same slot.
type Tracker struct {
	transport Transport

	primary uint32
	aux     [api.NumAppHarts]uint32
}

// NewTracker returns a tracker with every slot unused.
func NewTracker(t Transport) *Tracker {
	tk := &Tracker{transport: t}
	tk.Reset()

	return tk
}

// Reset marks every slot unused without freeing. Used when (re)seating
// a machine whose slots are known to be quiesced.
func (tk *Tracker) Reset() {
	tk.primary = Unused

	for i := range tk.aux {
		tk.aux[i] = Unused
	}
}

// PrimaryInFlight reports whether the primary slot holds a message.
func (tk *Tracker) PrimaryInFlight() bool {
	return tk.primary != Unused
}

// SetPrimary records the primary slot index.
func (tk *Tracker) SetPrimary(index uint32) {
	tk.primary = index
}

// SetAux records the auxiliary slot index for peer.
func (tk *Tracker) SetAux(peer api.HartID, index uint32) {
	tk.aux[peer-1] = index
}

// FreePrimary releases the primary slot if in flight.
func (tk *Tracker) FreePrimary() {
	if tk.primary != Unused {
		tk.transport.Free(tk.primary)
		tk.primary = Unused
	}
}

// FreeAux releases peer's auxiliary slot if in flight.
func (tk *Tracker) FreeAux(peer api.HartID) {
	if tk.aux[peer-1] != Unused {
		tk.transport.Free(tk.aux[peer-1])
		tk.aux[peer-1] = Unused
	}
}

// FreeAll releases every slot still in flight. Used on timeout.
func (tk *Tracker) FreeAll() {
	for _, peer := range api.AppHarts {
		tk.FreeAux(peer)
	}

	tk.FreePrimary()
}

// AllAcked polls every in-flight slot, freeing each as it completes,
// and reports whether all have been acknowledged. Acks arrive in any
// order; each slot frees independently, so both the auxiliary walk and
// the primary check must run regardless of the other's result.
func (tk *Tracker) AllAcked() bool {
	result := true

	for _, peer := range api.AppHarts {
		if tk.aux[peer-1] == Unused {
			continue
		}

		complete := tk.transport.CheckIfComplete(tk.aux[peer-1])
		result = result && complete

		if complete {
			tk.FreeAux(peer)
		}
	}

	if tk.primary != Unused {
		complete := tk.transport.CheckIfComplete(tk.primary)
		result = result && complete

		if complete {
			tk.FreePrimary()
		}
	}

	return result
}
