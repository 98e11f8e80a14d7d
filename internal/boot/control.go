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
	"fmt"

	"k8s.io/klog/v2"

	"github.com/mpfs-soc/hss-monitor/api"
	"github.com/mpfs-soc/hss-monitor/api/rpc"
	"github.com/mpfs-soc/hss-monitor/internal/image"
	"github.com/mpfs-soc/hss-monitor/internal/trigger"
)

// RegisterImage assigns the current boot image. Replacement is
// allowed; the image is treated as read-only from here on.
func (svc *Service) RegisterImage(img *image.Image) {
	svc.img = img
}

// Validate checks the registered image: magic, header CRC, and the
// embedded signature when a verifier is configured. When the custom
// flow is selected a successful validation also runs it.
func (svc *Service) Validate() error {
	if err := svc.img.Validate(); err != nil {
		return err
	}

	if svc.verifier != nil {
		if err := svc.verifier.Verify(svc.img); err != nil {
			return err
		}
	}

	if svc.customFlow {
		return svc.BootCustom()
	}

	return nil
}

// SkipBootIsSet reports whether target's payload opts out of autoboot.
func (svc *Service) SkipBootIsSet(target api.HartID) bool {
	return svc.img.Hart(target).Flags&image.FlagSkipAutoboot != 0
}

// restartMask drives every machine selected by mask back into the
// boot flow. A machine parked in OpenSBIInit is left to re-deliver
// from there; a machine in Idle, SetupPMPComplete or Initialization
// restarts from the top; anything else is recovered to Initialization
// with a complaint.
func (svc *Service) restartMask(mask api.HartMask) bool {
	result := false

	for _, bm := range svc.machines {
		if !mask.Has(bm.target) {
			continue
		}

		switch bm.m.State() {
		case OpenSBIInit:
			bm.m.SetState(OpenSBIInit)
			result = true
		case SetupPMPComplete, Idle, Initialization:
			bm.m.SetState(Initialization)
			result = true
		default:
			klog.Errorf("invalid machine state %s for %s", bm.m.StateName(), bm.target)
			// Try to recover anyway.
			bm.m.SetState(Initialization)
			result = true
		}
	}

	svc.triggers.Notify(trigger.PostBoot)

	return result
}

// RestartCore reboots source and its co-boot peers. api.HartAll
// validates the image and restarts every application hart.
func (svc *Service) RestartCore(source api.HartID) api.StatusCode {
	if source != api.HartAll {
		var mask api.HartMask
		mask.Set(source)

		return svc.RestartCores(mask)
	}

	if err := svc.Validate(); err != nil {
		klog.Errorf("validation failed for %s: %v", source, err)

		return api.Fail
	}

	if svc.restartMask(api.AllAppHarts) {
		return api.Success
	}

	return api.Fail
}

// RestartCores reboots every hart selected by mask, expanding each to
// its co-boot group so that a group is restarted exactly once.
func (svc *Service) RestartCores(mask api.HartMask) api.StatusCode {
	result := api.Fail

	if svc.img == nil {
		klog.Errorf("no boot image registered")

		return result
	}

	if err := svc.Validate(); err != nil {
		klog.Errorf("validation failed for hart mask %#x: %v", uint(mask), err)

		return result
	}

	for _, source := range api.AppHarts {
		if !mask.Has(source) {
			continue
		}

		var local api.HartMask

		// Boot secondary cores first and have them all wait.
		for _, peer := range api.AppHarts {
			if peer == source {
				continue
			}

			if svc.img.Hart(peer).EntryPoint == svc.img.Hart(source).EntryPoint {
				local.Set(peer)
			}
		}

		local.Set(source)

		if svc.img.Hart(source).NumChunks > 0 && svc.restartMask(local) {
			result = api.Success
		}

		mask &^= local
	}

	return result
}

// PMPSetupRequest allocates a message slot and delivers a PMP setup
// request to target. The slot is freed again if delivery fails.
func (svc *Service) PMPSetupRequest(target api.HartID) (uint32, error) {
	index, ok := svc.transport.Alloc()

	if !ok {
		return 0, fmt.Errorf("%s: out of message slots", target)
	}

	if !svc.transport.Deliver(index, target, api.Message{Op: api.OpPMPSetup}) {
		svc.transport.Free(index)

		return 0, fmt.Errorf("%s: failed to send message, so freeing", target)
	}

	return index, nil
}

// SBISetupRequest allocates a message slot and delivers a bare
// supervisor init request to target. The slot is freed again if
// delivery fails.
func (svc *Service) SBISetupRequest(target api.HartID) (uint32, error) {
	index, ok := svc.transport.Alloc()

	if !ok {
		return 0, fmt.Errorf("%s: out of message slots", target)
	}

	if !svc.transport.Deliver(index, target, api.Message{Op: api.OpOpenSBIInit}) {
		svc.transport.Free(index)

		return 0, fmt.Errorf("%s: failed to send message, so freeing", target)
	}

	return index, nil
}

// PMPSetupHandler services a PMP setup request on the application
// hart itself. The PMP CSRs are local to each hart, so the monitor
// cannot program them remotely; they are programmed and locked here,
// at most once between resets. Repeat calls succeed without effect.
func (svc *Service) PMPSetupHandler(hart api.HartID) api.StatusCode {
	if svc.pmpSetup[hart] {
		return api.Success
	}

	svc.pmpSetup[hart] = true
	svc.harts.SetHartState(hart, HartBooting)

	if svc.programmer != nil {
		if err := svc.programmer.ProgramPMP(hart); err != nil {
			klog.Errorf("%s: PMP programming failed: %v", hart, err)

			return api.Fail
		}
	}

	return api.Success
}

// IPIHandler is the entry point for boot request IPIs from the
// application harts. With the remote-proc flow enabled, an RprocBoot
// immediate carries the true target in the extended buffer and skips
// the payload download for it.
func (svc *Service) IPIHandler(source api.HartID, immediate uint32, extended *rpc.RemoteProc) api.StatusCode {
	if svc.rprocBoot && immediate == api.RprocBoot && extended != nil {
		source = extended.Target
		svc.machine(source).m.SetState(OpenSBIInit)
	}

	return svc.RestartCore(source)
}
