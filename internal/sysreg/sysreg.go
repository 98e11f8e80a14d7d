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

// Package sysreg models the system registers the boot service reports
// through: the boot failure control register and the per-hart boot
// status indicator bits.
//
// The status bits are indicators to software only, they have no
// functional side effects.
package sysreg

import (
	"github.com/usbarmory/tamago/bits"

	"github.com/mpfs-soc/hss-monitor/api"
)

const (
	// BootStatusMask covers the per-hart status field of MSS_STATUS,
	// bit n-1 set when application hart n is up.
	BootStatusMask = 0xffff
)

// Bank is the register bank the boot service writes completion and
// failure indications to. The monitor hart is the only writer.
type Bank interface {
	// SetBootFail drives the boot failure control register.
	SetBootFail(fail bool)
	// BootFail returns the boot failure control register.
	BootFail() bool
	// SetBootStatus sets the status indicator bit for an application
	// hart, read-modify-write on the status register.
	SetBootStatus(target api.HartID)
	// BootStatus returns the per-hart status field.
	BootStatus() uint32
}

// Mem is a memory-backed Bank for host builds and tests. It holds the
// register values in plain fields and touches no hardware.
type Mem struct {
	bootFailCR uint32
	mssStatus  uint32
}

func (b *Mem) SetBootFail(fail bool) {
	if fail {
		b.bootFailCR = 1
	} else {
		b.bootFailCR = 0
	}
}

func (b *Mem) BootFail() bool {
	return b.bootFailCR != 0
}

func (b *Mem) SetBootStatus(target api.HartID) {
	bits.Set(&b.mssStatus, int(target-1))
}

func (b *Mem) BootStatus() uint32 {
	return bits.Get(&b.mssStatus, 0, BootStatusMask)
}
