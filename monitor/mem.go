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
	_ "unsafe"

	"github.com/usbarmory/tamago/dma"
)

const (
	// Monitor hart runtime (L2 LIM)
	monitorStart = 0x08000000
	monitorSize  = 0x00200000 // 2MB

	// Monitor DMA
	monitorDMAStart = 0x08200000
	monitorDMASize  = 0x00180000 // 1.5MB

	// Shared DDR window where the previous boot stage stages the
	// boot image for the monitor to validate and download from.
	imageStart = 0xa0000000
	imageSize  = 0x10000000 // 256MB

	// A device tree may be staged right after the image window for
	// payloads that do not carry their own ancillary data.
	dtbStart = 0xb0000000

	// DDR as seen by the application harts.
	ddrStart = 0x80000000
	ddrSize  = 0x40000000 // 1GB
)

//go:linkname ramStart runtime.ramStart
var ramStart uint64 = monitorStart

//go:linkname ramSize runtime.ramSize
var ramSize uint64 = monitorSize

var imageRegion *dma.Region

func init() {
	imageRegion, _ = dma.NewRegion(imageStart, imageSize, false)
	imageRegion.Reserve(imageSize, 0)

	dma.Init(monitorDMAStart, monitorDMASize)
}
