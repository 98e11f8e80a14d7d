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

package image

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/mpfs-soc/hss-monitor/api"
)

// Builder assembles a boot image: header, chunk tables and payload
// bytes. Payload load addresses and the header CRC are resolved when
// the image is serialized.
type Builder struct {
	SetName string
	Version uint32
	Hart    [api.NumAppHarts]HartEntry

	chunks   []chunkRec
	ziChunks []ZIChunkDesc
}

type chunkRec struct {
	desc ChunkDesc
	data []byte
}

// NewBuilder returns a builder for a header of the given version.
func NewBuilder(setName string, version uint32) *Builder {
	return &Builder{SetName: setName, Version: version}
}

// AddChunk appends a chunk carrying data and returns its table index.
// The load address is assigned during serialization.
func (b *Builder) AddChunk(owner uint32, execAddr uint64, data []byte) uint32 {
	b.chunks = append(b.chunks, chunkRec{
		desc: ChunkDesc{Owner: owner, ExecAddr: execAddr, Size: uint64(len(data))},
		data: data,
	})

	return uint32(len(b.chunks) - 1)
}

// AddRawChunk appends a descriptor as given, with no payload bytes.
// Used to craft malformed tables in tests.
func (b *Builder) AddRawChunk(d ChunkDesc) uint32 {
	b.chunks = append(b.chunks, chunkRec{desc: d})

	return uint32(len(b.chunks) - 1)
}

// AddZIChunk appends a zero-init record and returns its table index.
func (b *Builder) AddZIChunk(owner uint32, execAddr, size uint64) uint32 {
	b.ziChunks = append(b.ziChunks, ZIChunkDesc{Owner: owner, ExecAddr: execAddr, Size: size})

	return uint32(len(b.ziChunks) - 1)
}

func (b *Builder) headerLen() int {
	if b.Version == 0 {
		return HeaderLenV0
	}

	return HeaderLenV1
}

// Bytes serializes the image.
func (b *Builder) Bytes() ([]byte, error) {
	if len(b.SetName) >= NameLen {
		return nil, fmt.Errorf("set name %q longer than %d bytes", b.SetName, NameLen-1)
	}

	hdrLen := b.headerLen()
	chunkTable := hdrLen
	ziTable := chunkTable + (len(b.chunks)+1)*ChunkDescLen
	payload := ziTable + (len(b.ziChunks)+1)*ZIChunkDescLen

	total := payload

	for _, c := range b.chunks {
		total += len(c.data)
	}

	out := make([]byte, total)

	binary.LittleEndian.PutUint32(out[0:], BootMagic)
	copy(out[4:4+NameLen], b.SetName)

	off := 4 + NameLen
	binary.LittleEndian.PutUint32(out[off:], b.Version)
	binary.LittleEndian.PutUint32(out[off+4:], uint32(hdrLen))
	// CRC at off+8 is filled in last.
	binary.LittleEndian.PutUint32(out[off+12:], uint32(chunkTable))
	binary.LittleEndian.PutUint32(out[off+16:], uint32(ziTable))
	off += 20

	for i := range b.Hart {
		h := &b.Hart[i]

		copy(out[off:off+NameLen], h.Name[:])
		binary.LittleEndian.PutUint64(out[off+NameLen:], h.EntryPoint)
		out[off+NameLen+8] = h.PrivMode
		binary.LittleEndian.PutUint32(out[off+NameLen+12:], h.FirstChunk)
		binary.LittleEndian.PutUint32(out[off+NameLen+16:], h.LastChunk)
		binary.LittleEndian.PutUint32(out[off+NameLen+20:], h.NumChunks)
		binary.LittleEndian.PutUint32(out[off+NameLen+24:], h.Flags)

		off += hartEntryLen
	}

	load := payload

	for i, c := range b.chunks {
		d := c.desc

		if c.data != nil {
			d.LoadAddr = uint64(load)
			copy(out[load:], c.data)
			load += len(c.data)
		}

		putChunk(out[chunkTable+i*ChunkDescLen:], d)
	}

	for i, d := range b.ziChunks {
		putZIChunk(out[ziTable+i*ZIChunkDescLen:], d)
	}

	binary.LittleEndian.PutUint32(out[4+NameLen+8:], crc32.ChecksumIEEE(out[:hdrLen]))

	return out, nil
}

func putChunk(out []byte, d ChunkDesc) {
	binary.LittleEndian.PutUint32(out[0:], d.Owner)
	binary.LittleEndian.PutUint64(out[4:], d.LoadAddr)
	binary.LittleEndian.PutUint64(out[12:], d.ExecAddr)
	binary.LittleEndian.PutUint64(out[20:], d.Size)
}

func putZIChunk(out []byte, d ZIChunkDesc) {
	binary.LittleEndian.PutUint32(out[0:], d.Owner)
	binary.LittleEndian.PutUint64(out[4:], d.ExecAddr)
	binary.LittleEndian.PutUint64(out[12:], d.Size)
}
