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

// Package boot drives the application harts of the SoC from reset to
// their payloads. One cooperative state machine per hart runs on the
// monitor hart: it requests PMP programming over IPI, zeroes and
// downloads the hart's image chunks under PMP write checks, delivers
// supervisor initialization to the hart and its co-boot peers, and
// converges to Idle whether or not the hart booted.
//
// Handlers never block. All waiting is expressed by staying in a state
// until the next scheduler tick.
package boot

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/mpfs-soc/hss-monitor/api"
	"github.com/mpfs-soc/hss-monitor/internal/image"
	"github.com/mpfs-soc/hss-monitor/internal/ipi"
	"github.com/mpfs-soc/hss-monitor/internal/perfctr"
	"github.com/mpfs-soc/hss-monitor/internal/sm"
	"github.com/mpfs-soc/hss-monitor/internal/sysreg"
	"github.com/mpfs-soc/hss-monitor/internal/trigger"
)

const (
	// SubChunkSize bounds the bytes copied per scheduler tick so
	// that one machine cannot starve the others on a large chunk.
	SubChunkSize = 256

	// SetupPMPCompleteTimeout is the PMP ack budget in clock ticks.
	SetupPMPCompleteTimeout = 1000
	// BootWaitTimeout is the supervisor init ack budget in clock
	// ticks.
	BootWaitTimeout = 5000
)

// HartState is the application hart run state published outside the
// boot service.
type HartState int

const (
	HartInvalid HartState = iota
	HartIdle
	HartBooting
	HartRunning
)

// PMP is the write permission oracle consulted before every chunk
// placement. A crafted image must not be able to direct the monitor's
// writes into memory its owner hart cannot access.
type PMP interface {
	CheckWrite(target api.HartID, addr, size uint64) bool
}

// Memory performs the physical memory operations of the download
// phase.
type Memory interface {
	// DmaMemcpy copies src to physical address dst.
	DmaMemcpy(dst uint64, src []byte)
	// Memset zeroes size bytes at physical address addr.
	Memset(addr, size uint64)
}

// DDR reports whether an address lies in DDR, which must not be
// touched before training completes.
type DDR interface {
	Contains(addr uint64) bool
}

// Domains is the supervisor domain registry the boot service feeds as
// it learns the boot topology from the image.
type Domains interface {
	RegisterHart(peer, boot api.HartID)
	DeregisterHart(peer api.HartID)
	RegisterBootHart(name string, mask api.HartMask, boot api.HartID, privMode uint8, entry, arg uint64, coldReboot, warmReboot bool)
}

// HartStates publishes per-hart run states.
type HartStates interface {
	SetHartState(target api.HartID, s HartState)
}

// PMPProgrammer is the platform hook PMPSetupHandler programs and
// locks the hart's PMP registers and APB bus control with.
type PMPProgrammer interface {
	ProgramPMP(hart api.HartID) error
}

// Config carries the boot service collaborators.
type Config struct {
	Clock      sm.Clock
	Transport  ipi.Transport
	Triggers   *trigger.Registry
	Registers  sysreg.Bank
	PMP        PMP
	Memory     Memory
	DDR        DDR
	Domains    Domains
	HartStates HartStates
	Perf       *perfctr.Pool
	Programmer PMPProgrammer

	// Verifier, when set, gates image validation on an authentic
	// embedded signature.
	Verifier image.Verifier

	// DTB is the physical address of a built-in device tree used as
	// the supervisor argument when the image carries no ancillary
	// data. Zero means none.
	DTB uint64

	// RemoteProcBoot enables the remote-proc IPI flow, where a
	// payload loaded by a running hart is started without a fresh
	// download.
	RemoteProcBoot bool

	// CustomFlow selects the synchronous single-payload flow from
	// Validate. Jump transfers the monitor hart itself; required
	// when CustomFlow is set.
	CustomFlow bool
	Jump       func(entry uint64)
}

// Service is the boot service. It owns one machine per application
// hart and the shared image handle.
type Service struct {
	clock      sm.Clock
	transport  ipi.Transport
	triggers   *trigger.Registry
	regs       sysreg.Bank
	pmp        PMP
	mem        Memory
	ddr        DDR
	domains    Domains
	harts      HartStates
	perf       *perfctr.Pool
	programmer PMPProgrammer
	verifier   image.Verifier

	dtb        uint64
	rprocBoot  bool
	customFlow bool
	jump       func(entry uint64)

	img *image.Image

	pmpSetup     [api.NumAppHarts + 1]bool
	bootComplete [api.NumAppHarts]atomic.Bool

	machines [api.NumAppHarts]*machine
	sched    *sm.Scheduler
}

// New wires a boot service. Every collaborator in cfg is required
// except Programmer, Verifier, DTB, and the flow selectors.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Clock == nil:
		return nil, errors.New("boot: nil clock")
	case cfg.Transport == nil:
		return nil, errors.New("boot: nil transport")
	case cfg.Triggers == nil:
		return nil, errors.New("boot: nil trigger registry")
	case cfg.Registers == nil:
		return nil, errors.New("boot: nil register bank")
	case cfg.PMP == nil:
		return nil, errors.New("boot: nil PMP oracle")
	case cfg.Memory == nil:
		return nil, errors.New("boot: nil memory")
	case cfg.DDR == nil:
		return nil, errors.New("boot: nil DDR oracle")
	case cfg.Domains == nil:
		return nil, errors.New("boot: nil domain registry")
	case cfg.HartStates == nil:
		return nil, errors.New("boot: nil hart states")
	case cfg.Perf == nil:
		return nil, errors.New("boot: nil perf counter pool")
	case cfg.CustomFlow && cfg.Jump == nil:
		return nil, errors.New("boot: custom flow requires a jump hook")
	}

	svc := &Service{
		clock:      cfg.Clock,
		transport:  cfg.Transport,
		triggers:   cfg.Triggers,
		regs:       cfg.Registers,
		pmp:        cfg.PMP,
		mem:        cfg.Memory,
		ddr:        cfg.DDR,
		domains:    cfg.Domains,
		harts:      cfg.HartStates,
		perf:       cfg.Perf,
		programmer: cfg.Programmer,
		verifier:   cfg.Verifier,
		dtb:        cfg.DTB,
		rprocBoot:  cfg.RemoteProcBoot,
		customFlow: cfg.CustomFlow,
		jump:       cfg.Jump,
	}

	machines := make([]*sm.Machine, 0, api.NumAppHarts)

	for i, target := range api.AppHarts {
		bm := newMachine(svc, target)
		svc.machines[i] = bm
		machines = append(machines, bm.m)
	}

	svc.sched = sm.NewScheduler(machines)

	return svc, nil
}

// Scheduler returns the round-robin scheduler driving the boot
// machines.
func (svc *Service) Scheduler() *sm.Scheduler {
	return svc.sched
}

// State returns the boot machine state for an application hart.
func (svc *Service) State(target api.HartID) sm.StateID {
	return svc.machine(target).m.State()
}

// Image returns the registered boot image, nil before registration.
func (svc *Service) Image() *image.Image {
	return svc.img
}

func (svc *Service) machine(target api.HartID) *machine {
	return svc.machines[target-1]
}

func (svc *Service) machineName(target api.HartID) string {
	return fmt.Sprintf("boot_service(%s)", target)
}
