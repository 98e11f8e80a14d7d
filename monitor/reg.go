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

	"github.com/usbarmory/tamago/bits"

	"github.com/mpfs-soc/hss-monitor/api"
	"github.com/mpfs-soc/hss-monitor/internal/sysreg"
)

// System controller block registers.
const (
	scbBase    = 0x20003000
	bootFailCR = scbBase + 0x0014
	mssStatus  = scbBase + 0x0104
)

func read32(addr uint64) uint32 {
	return *(*uint32)(unsafe.Pointer(uintptr(addr)))
}

func write32(addr uint64, val uint32) {
	*(*uint32)(unsafe.Pointer(uintptr(addr))) = val
}

func read64(addr uint64) uint64 {
	return *(*uint64)(unsafe.Pointer(uintptr(addr)))
}

func write64(addr uint64, val uint64) {
	*(*uint64)(unsafe.Pointer(uintptr(addr))) = val
}

// scbBank drives the system controller boot indication registers.
type scbBank struct{}

func (scbBank) SetBootFail(fail bool) {
	if fail {
		write32(bootFailCR, 1)
	} else {
		write32(bootFailCR, 0)
	}
}

func (scbBank) BootFail() bool {
	return read32(bootFailCR) != 0
}

func (scbBank) SetBootStatus(target api.HartID) {
	val := read32(mssStatus)
	bits.Set(&val, int(target-1))
	write32(mssStatus, val)
}

func (scbBank) BootStatus() uint32 {
	val := read32(mssStatus)

	return bits.Get(&val, 0, sysreg.BootStatusMask)
}
