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

// Package image models the boot image the monitor hart validates and
// downloads from: a fixed header describing up to four application hart
// payloads, a chunk table of copy descriptors and a zero-init table.
//
// All multi-byte fields are little-endian and packed. Offsets in the
// header and the chunk tables are relative to the start of the image.
package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"k8s.io/klog/v2"

	"github.com/mpfs-soc/hss-monitor/api"
)

const (
	// BootMagic identifies an uncompressed boot image.
	BootMagic = 0xB007C0DE
	// CompressedMagic identifies a compressed boot image, accepted by
	// magic verification and decoded before registration.
	CompressedMagic = 0xC08B007C
)

const (
	// NameLen is the fixed length of set and hart name fields.
	NameLen = 32
	// SignatureLen is the embedded ed25519 signature length.
	SignatureLen = 64

	hartEntryLen = NameLen + 8 + 4 + 4*4

	// HeaderLenV0 is the version 0 header size, without signature.
	HeaderLenV0 = 4 + NameLen + 5*4 + api.NumAppHarts*hartEntryLen
	// HeaderLenV1 is the version 1 header size, signature included.
	HeaderLenV1 = HeaderLenV0 + SignatureLen

	// ChunkDescLen is the wire size of one chunk table record.
	ChunkDescLen = 4 + 8 + 8 + 8
	// ZIChunkDescLen is the wire size of one zero-init table record.
	ZIChunkDescLen = 4 + 8 + 8
)

// Per-hart boot flags.
const (
	// FlagSkipOpenSBI boots the hart by direct jump instead of
	// supervisor initialization.
	FlagSkipOpenSBI = 1 << iota
	// FlagSkipAutoboot stops the hart's machine after PMP setup.
	FlagSkipAutoboot
	// FlagAllowColdReboot permits cold reboot requests from the hart.
	FlagAllowColdReboot
	// FlagAllowWarmReboot permits warm reboot requests from the hart.
	FlagAllowWarmReboot
)

// AncillaryData marks a chunk whose execution address is remembered as
// the supervisor initialization argument, typically a device tree.
const AncillaryData uint32 = 1 << 31

var (
	ErrNilImage  = errors.New("nil boot image")
	ErrBadMagic  = errors.New("invalid magic")
	ErrBadCRC    = errors.New("header CRC mismatch")
	ErrShort     = errors.New("image too short")
	ErrSignature = errors.New("invalid signature")
)

// HartEntry describes one application hart's payload.
type HartEntry struct {
	Name       [NameLen]byte
	EntryPoint uint64
	PrivMode   uint8
	FirstChunk uint32
	LastChunk  uint32
	NumChunks  uint32
	Flags      uint32
}

// NameString returns the hart payload name with padding stripped.
func (h *HartEntry) NameString() string {
	return cString(h.Name[:])
}

// Header is the decoded boot image header.
type Header struct {
	Magic              uint32
	SetName            [NameLen]byte
	Version            uint32
	HeaderLength       uint32
	HeaderCRC          uint32
	ChunkTableOffset   uint32
	ZIChunkTableOffset uint32
	Hart               [api.NumAppHarts]HartEntry
	Signature          [SignatureLen]byte
}

// ChunkDesc is one copy descriptor: size bytes at image base + LoadAddr
// are copied to ExecAddr on behalf of Owner. A zero Size terminates the
// table.
type ChunkDesc struct {
	Owner    uint32
	LoadAddr uint64
	ExecAddr uint64
	Size     uint64
}

// OwnerHart returns the owning hart with the ancillary bit cleared.
func (c ChunkDesc) OwnerHart() api.HartID {
	return api.HartID(c.Owner &^ AncillaryData)
}

// Ancillary reports whether the chunk carries the supervisor argument.
func (c ChunkDesc) Ancillary() bool {
	return c.Owner&AncillaryData != 0
}

// ZIChunkDesc is one zero-init descriptor: size bytes at ExecAddr are
// zeroed on behalf of Owner. A zero Size terminates the table.
type ZIChunkDesc struct {
	Owner    uint32
	ExecAddr uint64
	Size     uint64
}

// Image is a read-only view over boot image bytes. Once registered with
// the boot service it is never mutated.
type Image struct {
	data []byte
	hdr  Header
}

// ReadHeader decodes the header at the start of data without copying
// the payload.
func ReadHeader(data []byte) (*Header, error) {
	if len(data) < HeaderLenV0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShort, len(data))
	}

	hdr := &Header{}

	hdr.Magic = binary.LittleEndian.Uint32(data[0:])
	copy(hdr.SetName[:], data[4:4+NameLen])

	off := 4 + NameLen
	hdr.Version = binary.LittleEndian.Uint32(data[off:])
	hdr.HeaderLength = binary.LittleEndian.Uint32(data[off+4:])
	hdr.HeaderCRC = binary.LittleEndian.Uint32(data[off+8:])
	hdr.ChunkTableOffset = binary.LittleEndian.Uint32(data[off+12:])
	hdr.ZIChunkTableOffset = binary.LittleEndian.Uint32(data[off+16:])
	off += 20

	for i := range hdr.Hart {
		h := &hdr.Hart[i]

		copy(h.Name[:], data[off:off+NameLen])
		h.EntryPoint = binary.LittleEndian.Uint64(data[off+NameLen:])
		h.PrivMode = data[off+NameLen+8]
		h.FirstChunk = binary.LittleEndian.Uint32(data[off+NameLen+12:])
		h.LastChunk = binary.LittleEndian.Uint32(data[off+NameLen+16:])
		h.NumChunks = binary.LittleEndian.Uint32(data[off+NameLen+20:])
		h.Flags = binary.LittleEndian.Uint32(data[off+NameLen+24:])

		off += hartEntryLen
	}

	if hdr.Version >= 1 {
		if len(data) < HeaderLenV1 {
			return nil, fmt.Errorf("%w: %d bytes for version %d header", ErrShort, len(data), hdr.Version)
		}

		copy(hdr.Signature[:], data[off:off+SignatureLen])
	}

	return hdr, nil
}

// New decodes data as a boot image. No validation beyond a bounds
// checked header decode is performed, use Validate.
func New(data []byte) (*Image, error) {
	hdr, err := ReadHeader(data)

	if err != nil {
		return nil, err
	}

	return &Image{data: data, hdr: *hdr}, nil
}

// Header returns the decoded header.
func (img *Image) Header() *Header {
	return &img.hdr
}

// Bytes returns the underlying image bytes.
func (img *Image) Bytes() []byte {
	return img.data
}

// SetName returns the image set name with trailing padding stripped.
func (img *Image) SetName() string {
	return cString(img.hdr.SetName[:])
}

// Hart returns the boot table entry for an application hart, nil for
// the monitor hart or an out of range id.
func (img *Image) Hart(id api.HartID) *HartEntry {
	if id < api.U54_1 || id > api.HartID(api.NumAppHarts) {
		return nil
	}

	return &img.hdr.Hart[id-1]
}

// VerifyMagic reports whether the image starts with a known magic,
// plain or compressed.
func (img *Image) VerifyMagic() bool {
	return img != nil && (img.hdr.Magic == BootMagic || img.hdr.Magic == CompressedMagic)
}

// Validate checks magic and header CRC. It is pure with respect to the
// image; on success chunk table iteration is well defined up to the
// zero-size sentinel.
func (img *Image) Validate() error {
	if img == nil || img.data == nil {
		return ErrNilImage
	}

	if !img.VerifyMagic() {
		return fmt.Errorf("%w: %#08x", ErrBadMagic, img.hdr.Magic)
	}

	if err := img.validateCRC(); err != nil {
		return err
	}

	klog.Infof("boot image set name: %q", img.SetName())

	return nil
}

// crcLen returns the number of header bytes covered by the CRC. The
// version 0 header predates the signature field.
func (img *Image) crcLen() int {
	if img.hdr.Version == 0 {
		return HeaderLenV0
	}

	return HeaderLenV1
}

func (img *Image) validateCRC() error {
	crcLen := img.crcLen()

	if len(img.data) < crcLen {
		return fmt.Errorf("%w: %d bytes", ErrShort, len(img.data))
	}

	// The CRC is computed over the header with the CRC field itself
	// and the signature zeroed.
	scratch := make([]byte, crcLen)
	copy(scratch, img.data[:crcLen])

	binary.LittleEndian.PutUint32(scratch[4+NameLen+8:], 0)

	if img.hdr.Version >= 1 {
		for i := HeaderLenV0; i < HeaderLenV1; i++ {
			scratch[i] = 0
		}
	}

	if sum := crc32.ChecksumIEEE(scratch); sum != img.hdr.HeaderCRC {
		return fmt.Errorf("%w: computed %#08x, header %#08x", ErrBadCRC, sum, img.hdr.HeaderCRC)
	}

	return nil
}

// Chunk returns the i'th chunk table record. The second return is
// false past the end of the image or at the zero-size sentinel.
func (img *Image) Chunk(i uint32) (ChunkDesc, bool) {
	off := int(img.hdr.ChunkTableOffset) + int(i)*ChunkDescLen

	if off < 0 || off+ChunkDescLen > len(img.data) {
		return ChunkDesc{}, false
	}

	d := ChunkDesc{
		Owner:    binary.LittleEndian.Uint32(img.data[off:]),
		LoadAddr: binary.LittleEndian.Uint64(img.data[off+4:]),
		ExecAddr: binary.LittleEndian.Uint64(img.data[off+12:]),
		Size:     binary.LittleEndian.Uint64(img.data[off+20:]),
	}

	if d.Size == 0 {
		return d, false
	}

	return d, true
}

// ZIChunk returns the i'th zero-init table record. The second return
// is false past the end of the image or at the zero-size sentinel.
func (img *Image) ZIChunk(i uint32) (ZIChunkDesc, bool) {
	off := int(img.hdr.ZIChunkTableOffset) + int(i)*ZIChunkDescLen

	if off < 0 || off+ZIChunkDescLen > len(img.data) {
		return ZIChunkDesc{}, false
	}

	d := ZIChunkDesc{
		Owner:    binary.LittleEndian.Uint32(img.data[off:]),
		ExecAddr: binary.LittleEndian.Uint64(img.data[off+4:]),
		Size:     binary.LittleEndian.Uint64(img.data[off+12:]),
	}

	if d.Size == 0 {
		return d, false
	}

	return d, true
}

// ChunkBytes returns the source bytes of a chunk, clamped to the image.
func (img *Image) ChunkBytes(d ChunkDesc) []byte {
	start := int(d.LoadAddr)

	if start < 0 || start > len(img.data) {
		return nil
	}

	end := start + int(d.Size)

	if end > len(img.data) {
		end = len(img.data)
	}

	return img.data[start:end]
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return string(b)
}
