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
	"unsafe"

	"github.com/mpfs-soc/hss-monitor/api"
	"github.com/mpfs-soc/hss-monitor/internal/boot"
)

// Flattened device tree magic as read little-endian from memory.
const fdtMagicLE = 0xedfe0dd0

func dtbPresent() bool {
	return read32(dtbStart) == fdtMagicLE
}

// physMemory performs raw physical memory operations for the download
// phase. The monitor hart runs in machine mode with a flat physical
// address space.
type physMemory struct{}

func (physMemory) DmaMemcpy(dst uint64, src []byte) {
	d := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(dst))), len(src))
	copy(d, src)
}

func (physMemory) Memset(addr, size uint64) {
	d := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size)

	for i := range d {
		d[i] = 0
	}
}

// ddrWindow reports addresses within the application hart DDR
// aperture.
type ddrWindow struct{}

func (ddrWindow) Contains(addr uint64) bool {
	return addr >= ddrStart && addr < ddrStart+ddrSize
}

// domain is one supervisor boot domain as learned from the image.
type domain struct {
	name       string
	mask       api.HartMask
	boot       api.HartID
	privMode   uint8
	entry      uint64
	arg        uint64
	coldReboot bool
	warmReboot bool
}

// domainRegistry records the supervisor domain topology. The monitor
// hart is the only writer.
type domainRegistry struct {
	domains map[api.HartID]*domain
	peers   map[api.HartID]api.HartID
}

func newDomainRegistry() *domainRegistry {
	return &domainRegistry{
		domains: make(map[api.HartID]*domain),
		peers:   make(map[api.HartID]api.HartID),
	}
}

func (r *domainRegistry) RegisterHart(peer, boot api.HartID) {
	r.peers[peer] = boot
}

func (r *domainRegistry) DeregisterHart(peer api.HartID) {
	delete(r.peers, peer)
}

func (r *domainRegistry) RegisterBootHart(name string, mask api.HartMask, boot api.HartID, privMode uint8, entry, arg uint64, coldReboot, warmReboot bool) {
	r.domains[boot] = &domain{
		name:       name,
		mask:       mask,
		boot:       boot,
		privMode:   privMode,
		entry:      entry,
		arg:        arg,
		coldReboot: coldReboot,
		warmReboot: warmReboot,
	}
}

// hartStates publishes per-hart run states for the control interface.
type hartStates struct {
	states [api.NumAppHarts + 1]boot.HartState
}

func (s *hartStates) SetHartState(target api.HartID, st boot.HartState) {
	if !target.Valid() {
		return
	}

	s.states[target] = st
}

func (s *hartStates) HartState(target api.HartID) boot.HartState {
	if !target.Valid() {
		return boot.HartInvalid
	}

	return s.states[target]
}
