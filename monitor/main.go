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
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"log"
	"os"
	"runtime"
	"unsafe"

	"k8s.io/klog/v2"

	"github.com/mpfs-soc/hss-monitor/api"
	"github.com/mpfs-soc/hss-monitor/api/rpc"
	"github.com/mpfs-soc/hss-monitor/internal/boot"
	"github.com/mpfs-soc/hss-monitor/internal/image"
	"github.com/mpfs-soc/hss-monitor/internal/perfctr"
	"github.com/mpfs-soc/hss-monitor/internal/sm"
	"github.com/mpfs-soc/hss-monitor/internal/trigger"
)

// initialized at compile time through the Makefile
var (
	Build    string
	Revision string
	Version  string

	// ImagePublicKey is the hex encoded ed25519 public key used to
	// authenticate boot images. Empty disables signature verification.
	ImagePublicKey string
)

var (
	monitor  *boot.Service
	bank     = scbBank{}
	states   = &hartStates{}
	triggers = &trigger.Registry{}
)

func init() {
	log.SetFlags(log.Ltime)

	flags := flag.NewFlagSet("", flag.ContinueOnError)
	klog.InitFlags(flags)
	_ = flags.Set("logtostderr", "false")
	_ = flags.Set("one_output", "true")
	klog.SetOutput(os.Stdout)
}

func imageVerifier() image.Verifier {
	if len(ImagePublicKey) == 0 {
		return nil
	}

	pub, err := hex.DecodeString(ImagePublicKey)

	if err != nil || len(pub) != ed25519.PublicKeySize {
		panic("invalid image verification key")
	}

	return &image.Ed25519Verifier{Public: ed25519.PublicKey(pub)}
}

// pollRemoteProc services remote-proc boot doorbells rung by running
// application harts on behalf of a peer they loaded a payload for.
func pollRemoteProc() {
	for _, source := range api.AppHarts {
		box := mailbox(source)

		target := read32(box + mboxRproc)

		if target == 0 {
			continue
		}

		write32(box+mboxRproc, 0)
		monitor.IPIHandler(source, api.RprocBoot, &rpc.RemoteProc{Target: api.HartID(target)})
	}
}

func main() {
	klog.Infof("%s/%s (%s) • boot monitor %s", runtime.GOOS, runtime.GOARCH, runtime.Version(), Version)

	clock := sm.NewWallClock()

	cfg := boot.Config{
		Clock:          clock,
		Transport:      &hwTransport{},
		Triggers:       triggers,
		Registers:      bank,
		PMP:            ddrPMP{},
		Memory:         physMemory{},
		DDR:            ddrWindow{},
		Domains:        newDomainRegistry(),
		HartStates:     states,
		Perf:           perfctr.NewPool(clock),
		Programmer:     pmpUnit{},
		Verifier:       imageVerifier(),
		RemoteProcBoot: true,
	}

	if dtbPresent() {
		cfg.DTB = dtbStart
	}

	var err error

	if monitor, err = boot.New(cfg); err != nil {
		panic(err)
	}

	// The previous boot stage trains DDR and stages the boot image
	// before releasing the monitor hart.
	triggers.Notify(trigger.DDRTrained)

	buf := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(imageStart))), imageSize)

	if img, err := image.New(buf); err != nil {
		klog.Errorf("no boot image at %#x: %v", uint64(imageStart), err)
	} else {
		monitor.RegisterImage(img)
	}

	triggers.Notify(trigger.StartupComplete)

	klog.Infof("%s", getStatus().Print())

	sched := monitor.Scheduler()

	for {
		sched.Tick()
		pollRemoteProc()
		runtime.Gosched()
	}
}
