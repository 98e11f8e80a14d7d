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

// Package api defines the hart identifiers, inter-processor message
// formats and status reporting types shared between the monitor hart
// service, the application hart handlers and host tooling.
package api

import (
	"bytes"
	"fmt"
)

// HartID identifies a hart on the SoC. The monitor hart is 0, the
// application harts are 1..NumAppHarts.
type HartID uint32

const (
	E51 HartID = iota
	U54_1
	U54_2
	U54_3
	U54_4

	// HartAll addresses every application hart at once.
	HartAll HartID = 0xff
)

// NumAppHarts is the number of application harts in the design instance.
const NumAppHarts = 4

// AppHarts lists the application harts in their fixed boot order.
var AppHarts = [NumAppHarts]HartID{U54_1, U54_2, U54_3, U54_4}

func (h HartID) String() string {
	switch {
	case h == E51:
		return "e51"
	case h == HartAll:
		return "all"
	case h >= U54_1 && h <= U54_4:
		return fmt.Sprintf("u54_%d", h)
	}

	return fmt.Sprintf("hart_%d", uint32(h))
}

// Valid reports whether h names a single application hart.
func (h HartID) Valid() bool {
	return h >= U54_1 && h <= HartID(NumAppHarts)
}

// HartMask is a bitmask of harts, bit n set for hart id n.
type HartMask uint32

// Bit returns the mask containing only h.
func Bit(h HartID) HartMask {
	return 1 << h
}

func (m HartMask) Has(h HartID) bool {
	return m&Bit(h) != 0
}

func (m *HartMask) Set(h HartID) {
	*m |= Bit(h)
}

func (m *HartMask) Clear(other HartMask) {
	*m &^= other
}

// AllAppHarts is the mask of every application hart.
const AllAppHarts = HartMask(0x1e)

// Op enumerates the boot related inter-processor message kinds.
type Op uint32

const (
	// OpPMPSetup requests an application hart to program and lock its
	// physical memory protection registers.
	OpPMPSetup Op = iota + 1
	// OpOpenSBIInit releases an application hart into the supervisor
	// runtime initialisation sequence.
	OpOpenSBIInit
	// OpGoto releases an application hart directly to an entry point.
	OpGoto
	// OpBootRequest is sent by an application hart to ask the monitor
	// for a (re)boot.
	OpBootRequest
)

func (op Op) String() string {
	switch op {
	case OpPMPSetup:
		return "PMP_SETUP"
	case OpOpenSBIInit:
		return "OPENSBI_INIT"
	case OpGoto:
		return "GOTO"
	case OpBootRequest:
		return "BOOT_REQUEST"
	}

	return fmt.Sprintf("op_%d", uint32(op))
}

// RISC-V privilege modes carried in boot messages.
const (
	PrivU uint8 = 0
	PrivS uint8 = 1
	PrivM uint8 = 3
)

// RprocBoot is the immediate argument marking a remote-proc boot
// request, whose extended buffer carries a rpc.RemoteProc payload.
const RprocBoot uint32 = 0x5250524f

// Message is a boot IPI payload. The transport adds a transaction id
// and the source hart.
type Message struct {
	Op       Op
	PrivMode uint8
	Entry    uint64
	Arg      uint64
}

// StatusCode is the result of a control surface or IPI handler call.
type StatusCode int

const (
	Success StatusCode = iota
	Fail
	Pending
	Idle
)

func (s StatusCode) String() string {
	switch s {
	case Success:
		return "success"
	case Fail:
		return "fail"
	case Pending:
		return "pending"
	case Idle:
		return "idle"
	}

	return fmt.Sprintf("status_%d", int(s))
}

// Status is the monitor status report.
type Status struct {
	SetName    string
	Revision   string
	Build      string
	Version    string
	BootFail   bool
	BootStatus HartMask
	Runtime    string
}

// Print returns the monitor status in textual format.
func (p *Status) Print() string {
	var status bytes.Buffer

	status.WriteString("--------------------------------------------------------- Boot Monitor ----\n")
	status.WriteString(fmt.Sprintf("Image set ..............: %s\n", p.SetName))
	status.WriteString(fmt.Sprintf("Revision ...............: %s\n", p.Revision))
	status.WriteString(fmt.Sprintf("Build ..................: %s\n", p.Build))
	status.WriteString(fmt.Sprintf("Version ................: %s\n", p.Version))
	status.WriteString(fmt.Sprintf("Boot failure ...........: %v\n", p.BootFail))
	status.WriteString(fmt.Sprintf("Harts up ...............: %#.2x\n", uint32(p.BootStatus)))
	status.WriteString(fmt.Sprintf("Runtime ................: %s", p.Runtime))

	return status.String()
}
