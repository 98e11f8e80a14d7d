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

package boot

import (
	"k8s.io/klog/v2"

	"github.com/mpfs-soc/hss-monitor/api"
	"github.com/mpfs-soc/hss-monitor/internal/image"
	"github.com/mpfs-soc/hss-monitor/internal/ipi"
	"github.com/mpfs-soc/hss-monitor/internal/perfctr"
	"github.com/mpfs-soc/hss-monitor/internal/sm"
	"github.com/mpfs-soc/hss-monitor/internal/trigger"
)

// Boot machine states.
const (
	Initialization sm.StateID = iota
	SetupPMP
	SetupPMPComplete
	ZeroInitChunks
	DownloadChunks
	OpenSBIInit
	Wait
	Complete
	Idle
	Error
)

// machine is one per-hart boot state machine together with its
// machine-local work set. No machine ever touches another machine's
// fields.
type machine struct {
	svc    *Service
	target api.HartID
	m      *sm.Machine

	tracker *ipi.Tracker

	chunkIdx       uint32
	chunkCount     uint32
	ziIdx          uint32
	subChunkOffset uint64
	hartMask       api.HartMask
	iterator       int
	ancillary      uint64
	perfCtr        int
}

func newMachine(svc *Service, target api.HartID) *machine {
	bm := &machine{
		svc:     svc,
		target:  target,
		tracker: ipi.NewTracker(svc.transport),
		perfCtr: perfctr.Uninitialized,
	}

	descs := []sm.StateDesc{
		Initialization:   {Name: "Initialization", Handler: bm.initHandler},
		SetupPMP:         {Name: "SetupPMP", OnEntry: bm.registerHarts, Handler: bm.setupPMPHandler},
		SetupPMPComplete: {Name: "SetupPMPComplete", Handler: bm.setupPMPCompleteHandler},
		ZeroInitChunks:   {Name: "ZeroInitChunks", OnEntry: bm.zeroInitEntry, Handler: bm.zeroInitHandler},
		DownloadChunks:   {Name: "DownloadChunks", OnEntry: bm.downloadEntry, Handler: bm.downloadHandler, OnExit: bm.registerHarts},
		OpenSBIInit:      {Name: "OpenSBIInit", OnEntry: bm.sbiInitEntry, Handler: bm.sbiInitHandler, OnExit: bm.sbiInitExit},
		Wait:             {Name: "Wait", Handler: bm.waitHandler},
		Complete:         {Name: "Complete", OnEntry: bm.completeEntry, Handler: bm.completeHandler},
		Idle:             {Name: "Idle", OnEntry: bm.idleEntry, Handler: bm.idleHandler},
		Error:            {Name: "Error", Handler: bm.errorHandler},
	}

	bm.m = sm.New(svc.machineName(target), descs, Initialization)

	return bm
}

func (bm *machine) hart() *image.HartEntry {
	return bm.svc.img.Hart(bm.target)
}

func (bm *machine) initHandler() {
	svc := bm.svc

	if !svc.triggers.IsNotified(trigger.DDRTrained) || !svc.triggers.IsNotified(trigger.StartupComplete) {
		return
	}

	if svc.img == nil {
		klog.Errorf("%s: no boot image registered", bm.m.Name)
		bm.m.SetState(Error)

		return
	}

	svc.regs.SetBootFail(false)
	bm.m.StartTime = svc.clock.Now()

	if bm.hart().Flags&image.FlagSkipOpenSBI != 0 {
		klog.Infof("%s: skip-supervisor flag found", bm.m.Name)
	}

	svc.perf.Allocate(&bm.perfCtr, bm.m.Name)
	bm.m.SetState(SetupPMP)
}

// registerHarts seeds the co-boot hart mask and the supervisor domain
// registration for a primary boot hart. It runs once on SetupPMP entry
// and again on DownloadChunks exit, when the ancillary data pointer is
// known.
func (bm *machine) registerHarts() {
	svc := bm.svc

	bm.tracker.Reset()

	h := bm.hart()
	primary := h.NumChunks > 0 && h.EntryPoint != 0

	for _, peer := range api.AppHarts {
		if !primary {
			continue
		}

		ph := svc.img.Hart(peer)

		if ph.Flags&image.FlagSkipOpenSBI != 0 {
			// Skipping the supervisor means the peer is not a
			// domain hart.
			svc.domains.DeregisterHart(peer)
		} else if peer == bm.target || ph.EntryPoint == h.EntryPoint {
			bm.hartMask.Set(peer)
			svc.domains.RegisterHart(peer, bm.target)
		}
	}

	if primary && h.Flags&image.FlagSkipOpenSBI == 0 {
		arg := bm.ancillary

		if arg == 0 && svc.dtb != 0 {
			arg = svc.dtb
			klog.Warningf("%s: using built-in DTB at %#x", bm.m.Name, arg)
		}

		klog.Infof("%s: registering domain %q (hart mask %#x)", bm.m.Name, h.NameString(), uint(bm.hartMask))

		svc.domains.RegisterBootHart(h.NameString(), bm.hartMask, bm.target, h.PrivMode,
			h.EntryPoint, arg,
			h.Flags&image.FlagAllowColdReboot != 0,
			h.Flags&image.FlagAllowWarmReboot != 0)
	}
}

func (bm *machine) setupPMPHandler() {
	if !bm.tracker.PrimaryInFlight() {
		index, err := bm.svc.PMPSetupRequest(bm.target)

		if err != nil {
			klog.Errorf("%s: %v", bm.m.Name, err)

			return
		}

		bm.tracker.SetPrimary(index)
	}

	bm.m.SetState(SetupPMPComplete)
}

func (bm *machine) setupPMPCompleteHandler() {
	if sm.IsElapsed(bm.svc.clock, bm.m.StartTime, SetupPMPCompleteTimeout) {
		klog.Errorf("%s: timeout after %d iterations", bm.m.Name, bm.m.ExecutionCount)

		bm.tracker.FreeAll()
		bm.m.SetState(Error)

		return
	}

	// Acks are freed as received, not all at once.
	if bm.tracker.AllAcked() {
		if bm.hart().Flags&image.FlagSkipAutoboot != 0 {
			bm.m.SetState(Complete)
		} else {
			bm.m.SetState(ZeroInitChunks)
		}
	}
}

func (bm *machine) zeroInitEntry() {
	bm.ziIdx = 0
}

func (bm *machine) zeroInitHandler() {
	svc := bm.svc

	d, ok := svc.img.ZIChunk(bm.ziIdx)

	if !ok {
		bm.m.SetState(DownloadChunks)

		return
	}

	if api.HartID(d.Owner) != bm.target {
		bm.ziIdx++

		return
	}

	if svc.ddr.Contains(d.ExecAddr) && !svc.triggers.IsNotified(trigger.DDRTrained) {
		// DDR not trained yet, try again next tick.
		return
	}

	klog.V(2).Infof("%s: %d: ziChunk->%#x, %d bytes", bm.m.Name, bm.ziIdx, d.ExecAddr, d.Size)

	svc.mem.Memset(d.ExecAddr, d.Size)
	bm.ziIdx++
}

func (bm *machine) downloadEntry() {
	h := bm.hart()

	if h.NumChunks == 0 {
		return
	}

	klog.Infof("%s: processing boot image: %q", bm.m.Name, h.NameString())

	bm.chunkIdx = h.FirstChunk
	bm.chunkCount = 0
	bm.subChunkOffset = 0
}

// downloadHandler places at most one sub-chunk per tick, gated on
// ownership and a PMP write check. The write check before every copy
// is what stops a crafted image from steering the monitor's writes
// into memory the owning hart cannot access.
func (bm *machine) downloadHandler() {
	svc := bm.svc
	h := bm.hart()

	if h.NumChunks == 0 {
		bm.m.SetState(Complete)

		return
	}

	d, ok := svc.img.Chunk(bm.chunkIdx)

	if bm.chunkCount > h.LastChunk || !ok {
		// Sentinel chunk, the image is fully processed.
		bm.m.SetState(OpenSBIInit)

		return
	}

	if d.OwnerHart() == bm.target && svc.pmp.CheckWrite(bm.target, d.ExecAddr, d.Size) {
		bm.downloadSubChunk(d)

		if d.Ancillary() && bm.ancillary == 0 {
			klog.Infof("%s: %d: ancillary data found at %#x", bm.m.Name, bm.chunkCount, d.ExecAddr)
			bm.ancillary = d.ExecAddr
		}

		bm.subChunkOffset += SubChunkSize

		if bm.subChunkOffset > d.Size {
			bm.subChunkOffset = 0
			bm.chunkCount++
			bm.chunkIdx++
		}
	} else {
		if d.OwnerHart() == bm.target {
			klog.Errorf("%s: skipping chunk %d due to invalid permissions", bm.m.Name, bm.chunkIdx)
		} else {
			klog.Warningf("%s: skipping chunk %d due to ownership %d", bm.m.Name, bm.chunkIdx, d.Owner)
		}

		bm.chunkIdx++
	}
}

func (bm *machine) downloadSubChunk(d image.ChunkDesc) {
	src := bm.svc.img.ChunkBytes(d)
	off := bm.subChunkOffset

	if off >= uint64(len(src)) {
		return
	}

	end := off + SubChunkSize

	if end > uint64(len(src)) {
		end = uint64(len(src))
	}

	if off == 0 {
		klog.V(2).Infof("%s: %d: chunk@%#x->%#x, %d bytes", bm.m.Name, bm.chunkCount, d.LoadAddr, d.ExecAddr, d.Size)
	}

	bm.svc.mem.DmaMemcpy(d.ExecAddr+off, src[off:end])
}

func (bm *machine) sbiInitEntry() {
	if bm.hart().EntryPoint != 0 {
		bm.iterator = 0
	}
}

// sbiInitHandler walks the peers of a primary boot hart one per tick,
// delivering supervisor init (or a direct goto) to every hart sharing
// the entry point.
func (bm *machine) sbiInitHandler() {
	h := bm.hart()

	if h.NumChunks == 0 || h.EntryPoint == 0 {
		return
	}

	if bm.iterator >= len(api.AppHarts) {
		bm.m.SetState(Wait)

		return
	}

	peer := api.AppHarts[bm.iterator]

	if peer != bm.target && bm.svc.img.Hart(peer).EntryPoint == h.EntryPoint {
		bm.deliverBootMessage(peer)
	}

	bm.iterator++
}

func (bm *machine) sbiInitExit() {
	if bm.hart().EntryPoint == 0 {
		klog.Infof("%s: no entry point, skipping goto/sbi init", bm.m.Name)

		return
	}

	bm.deliverBootMessage(bm.target)
}

// deliverBootMessage allocates the peer's auxiliary slot and delivers
// the supervisor init (or goto) message carrying the entry point and
// the ancillary argument.
func (bm *machine) deliverBootMessage(peer api.HartID) {
	svc := bm.svc

	index, ok := svc.transport.Alloc()

	if !ok {
		klog.Errorf("%s: %s: out of message slots", bm.m.Name, peer)
		bm.m.SetState(Error)

		return
	}

	bm.tracker.SetAux(peer, index)

	ph := svc.img.Hart(peer)
	op := api.OpOpenSBIInit

	if ph.Flags&image.FlagSkipOpenSBI != 0 {
		op = api.OpGoto
	}

	msg := api.Message{
		Op:       op,
		PrivMode: ph.PrivMode,
		Entry:    ph.EntryPoint,
		Arg:      bm.ancillary,
	}

	if !svc.transport.Deliver(index, peer, msg) {
		klog.Errorf("%s: %s: sbi init delivery failed", bm.m.Name, peer)
		bm.tracker.FreeAux(peer)
		bm.m.SetState(Error)
	}
}

func (bm *machine) waitHandler() {
	svc := bm.svc

	bm.m.StartTime = svc.clock.Now()

	if bm.hart().EntryPoint == 0 {
		// Nothing to do, no goto ack expected.
		svc.harts.SetHartState(bm.target, HartIdle)
		bm.m.SetState(Complete)

		return
	}

	if sm.IsElapsed(svc.clock, bm.m.StartTime, BootWaitTimeout) {
		klog.Errorf("%s: IPI ack timeout after %d iterations", bm.m.Name, bm.m.ExecutionCount)

		bm.tracker.FreeAll()
		bm.m.SetState(Error)

		return
	}

	if bm.tracker.AllAcked() {
		// Status bit only, an indicator to software with no
		// functional side effects.
		svc.regs.SetBootStatus(bm.target)
		bm.m.SetState(Complete)
	}
}

func (bm *machine) errorHandler() {
	klog.Errorf("%s:\n"+
		"*******************************************************************\n"+
		"* WARNING: Boot Error - transitioning to IDLE                     *\n"+
		"*******************************************************************",
		bm.m.Name)

	// Indicate to the fabric that the boot process failed.
	bm.svc.regs.SetBootFail(true)

	bm.m.SetState(Complete)
}

func (bm *machine) completeEntry() {
	bm.svc.bootComplete[bm.target-1].Store(true)
}

func (bm *machine) completeHandler() {
	svc := bm.svc

	for i := range svc.bootComplete {
		if !svc.bootComplete[i].Load() {
			return
		}
	}

	svc.triggers.Notify(trigger.BootComplete)
	bm.m.SetState(Idle)
}

func (bm *machine) idleEntry() {
	bm.svc.perf.Lap(bm.perfCtr)
}

func (bm *machine) idleHandler() {
	if bm.svc.transport.ConsumeIntent(bm.target, api.OpBootRequest) {
		bm.svc.RestartCore(bm.target)
	}
}
