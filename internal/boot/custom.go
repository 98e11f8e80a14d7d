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
	"errors"

	"k8s.io/klog/v2"

	"github.com/mpfs-soc/hss-monitor/api"
)

// BootCustom performs the single-payload boot flow synchronously on
// the monitor hart: zero-init and download for the last hart entry
// carrying chunks, then every application hart and the monitor itself
// jump to the common entry point in M-mode.
func (svc *Service) BootCustom() error {
	if svc.img == nil {
		return errors.New("no boot image registered")
	}

	var (
		target     api.HartID
		numChunks  uint32
		firstChunk uint32
	)

	// The last hart with chunks wins, matching the selection the
	// flow has always made.
	for _, peer := range api.AppHarts {
		if h := svc.img.Hart(peer); h.NumChunks > 0 {
			target = peer
			numChunks = h.NumChunks
			firstChunk = h.FirstChunk
		}
	}

	if numChunks == 0 || target == 0 {
		return errors.New("failed to find target hart")
	}

	klog.Infof("zeroing chunks for %s", target)

	for i := uint32(0); ; i++ {
		d, ok := svc.img.ZIChunk(i)

		if !ok {
			break
		}

		if api.HartID(d.Owner) == target {
			svc.mem.Memset(d.ExecAddr, d.Size)
		}
	}

	klog.Infof("downloading chunks for %s", target)

	var subChunkOffset uint64

	for i := firstChunk; ; {
		d, ok := svc.img.Chunk(i)

		if !ok {
			break
		}

		if api.HartID(d.Owner) != target || !svc.pmp.CheckWrite(target, d.ExecAddr, d.Size) {
			i++

			continue
		}

		src := svc.img.ChunkBytes(d)
		end := subChunkOffset + SubChunkSize

		if end > uint64(len(src)) {
			end = uint64(len(src))
		}

		if subChunkOffset < end {
			svc.mem.DmaMemcpy(d.ExecAddr+subChunkOffset, src[subChunkOffset:end])
		}

		subChunkOffset += SubChunkSize

		if subChunkOffset > d.Size {
			subChunkOffset = 0
			i++
		}
	}

	entry := svc.img.Hart(target).EntryPoint

	klog.Infof("all harts jumping to entry address %#x in M-mode", entry)

	for _, peer := range api.AppHarts {
		svc.transport.Send(peer, api.Message{
			Op:       api.OpOpenSBIInit,
			PrivMode: api.PrivM,
			Entry:    entry,
		})
	}

	svc.jump(entry)

	return nil
}
