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
	"fmt"

	"github.com/usbarmory/tamago/riscv64"
	"github.com/usbarmory/tamago/soc/sifive/fu540"

	"github.com/mpfs-soc/hss-monitor/api"
)

// MSS sub-block clock control register, peripheral clocks are released
// once the first application hart has its PMPs programmed.
const (
	sysregBase    = 0x20002000
	subblkClockCR = sysregBase + 0x0084
	subblkAllOn   = 0xffffffff
)

// ddrPMP is the write permission oracle consulted before chunk
// placement: application harts may only receive writes within the
// shared DDR window, never in the monitor runtime or peripheral
// space.
type ddrPMP struct{}

func (ddrPMP) CheckWrite(target api.HartID, addr, size uint64) bool {
	if target < api.U54_1 || target > api.U54_4 {
		return false
	}

	end := addr + size

	if end < addr {
		return false
	}

	return addr >= ddrStart && end <= ddrStart+ddrSize
}

// pmpUnit programs the PMP entries of an application hart before its
// payload is placed. Only the entries denying the monitor runtime and
// DMA are locked; the UART, CLINT and DDR grants are left unlocked.
type pmpUnit struct{}

func (pmpUnit) ProgramPMP(hart api.HartID) (err error) {
	if hart < api.U54_1 || hart > api.U54_4 {
		return fmt.Errorf("invalid hart %s", hart)
	}

	i := 0

	// deny monitor runtime and DMA

	if err = fu540.RV64.WritePMP(i, monitorStart, false, false, false, riscv64.PMP_A_OFF, true); err != nil {
		return
	}
	i += 1

	if err = fu540.RV64.WritePMP(i, monitorDMAStart+monitorDMASize, false, false, false, riscv64.PMP_A_TOR, true); err != nil {
		return
	}
	i += 1

	// grant UART1 access

	if err = fu540.RV64.WritePMP(i, fu540.UART1_BASE, false, false, false, riscv64.PMP_A_OFF, false); err != nil {
		return
	}
	i += 1

	if err = fu540.RV64.WritePMP(i, fu540.UART1_BASE+0x1000, true, true, false, riscv64.PMP_A_TOR, false); err != nil {
		return
	}
	i += 1

	// grant CLINT access for supervisor timers and software interrupts

	if err = fu540.RV64.WritePMP(i, fu540.CLINT_BASE, false, false, false, riscv64.PMP_A_OFF, false); err != nil {
		return
	}
	i += 1

	if err = fu540.RV64.WritePMP(i, fu540.CLINT_BASE+0x10000, true, true, false, riscv64.PMP_A_TOR, false); err != nil {
		return
	}
	i += 1

	// grant DDR

	if err = fu540.RV64.WritePMP(i, ddrStart, false, false, false, riscv64.PMP_A_OFF, false); err != nil {
		return
	}
	i += 1

	if err = fu540.RV64.WritePMP(i, ddrStart+ddrSize, true, true, true, riscv64.PMP_A_TOR, false); err != nil {
		return
	}

	// release the peripheral sub-block clocks
	write32(subblkClockCR, subblkAllOn)

	return
}
