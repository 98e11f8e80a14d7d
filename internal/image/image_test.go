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
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mpfs-soc/hss-monitor/api"
)

func testPayload(n int) []byte {
	buf := make([]byte, n)

	for i := range buf {
		buf[i] = byte(i)
	}

	return buf
}

func testBuilder(version uint32) *Builder {
	b := NewBuilder("test-set", version)

	idx := b.AddChunk(uint32(api.U54_1), 0x80200000, testPayload(600))

	copy(b.Hart[0].Name[:], "payload-1")
	b.Hart[0].EntryPoint = 0x80200000
	b.Hart[0].PrivMode = api.PrivS
	b.Hart[0].FirstChunk = idx
	b.Hart[0].LastChunk = idx
	b.Hart[0].NumChunks = 1

	b.AddZIChunk(uint32(api.U54_1), 0x80300000, 0x1000)

	return b
}

func testImage(t *testing.T, version uint32) *Image {
	t.Helper()

	buf, err := testBuilder(version).Bytes()

	if err != nil {
		t.Fatal(err)
	}

	img, err := New(buf)

	if err != nil {
		t.Fatal(err)
	}

	return img
}

func TestHeaderRoundTrip(t *testing.T) {
	for _, version := range []uint32{0, 1} {
		img := testImage(t, version)
		hdr := img.Header()

		if hdr.Magic != BootMagic {
			t.Errorf("version %d: magic %#08x, want %#08x", version, hdr.Magic, uint32(BootMagic))
		}

		if got := img.SetName(); got != "test-set" {
			t.Errorf("version %d: set name %q, want %q", version, got, "test-set")
		}

		if hdr.Version != version {
			t.Errorf("version %d: header version %d", version, hdr.Version)
		}

		h := img.Hart(api.U54_1)

		want := HartEntry{
			EntryPoint: 0x80200000,
			PrivMode:   api.PrivS,
			NumChunks:  1,
		}
		copy(want.Name[:], "payload-1")

		if diff := cmp.Diff(want, *h); diff != "" {
			t.Errorf("version %d: hart entry diff (-want +got):\n%s", version, diff)
		}

		if err := img.Validate(); err != nil {
			t.Errorf("version %d: Validate: %v", version, err)
		}
	}
}

func TestValidateErrors(t *testing.T) {
	valid, err := testBuilder(1).Bytes()

	if err != nil {
		t.Fatal(err)
	}

	corrupt := func(off int, val byte) []byte {
		buf := bytes.Clone(valid)
		buf[off] = val

		return buf
	}

	for _, tc := range []struct {
		name string
		data []byte
		want error
	}{
		{"bad magic", corrupt(0, 0xff), ErrBadMagic},
		{"corrupt name", corrupt(10, 'X'), ErrBadCRC},
		{"corrupt hart entry", corrupt(100, 0xff), ErrBadCRC},
	} {
		t.Run(tc.name, func(t *testing.T) {
			img, err := New(tc.data)

			if err != nil {
				t.Fatal(err)
			}

			if err = img.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("Validate: %v, want %v", err, tc.want)
			}
		})
	}

	t.Run("short", func(t *testing.T) {
		if _, err := New(valid[:HeaderLenV0-1]); !errors.Is(err, ErrShort) {
			t.Errorf("New: %v, want %v", err, ErrShort)
		}
	})

	t.Run("nil", func(t *testing.T) {
		var img *Image

		if err := img.Validate(); !errors.Is(err, ErrNilImage) {
			t.Errorf("Validate: %v, want %v", err, ErrNilImage)
		}
	})
}

func TestSignatureOutsideCRC(t *testing.T) {
	buf, err := testBuilder(1).Bytes()

	if err != nil {
		t.Fatal(err)
	}

	// A signature embedded after packing must not invalidate the CRC.
	for i := HeaderLenV0; i < HeaderLenV1; i++ {
		buf[i] = 0xa5
	}

	img, err := New(buf)

	if err != nil {
		t.Fatal(err)
	}

	if err = img.Validate(); err != nil {
		t.Errorf("Validate after signature patch: %v", err)
	}
}

func TestCompressedMagic(t *testing.T) {
	buf, err := testBuilder(0).Bytes()

	if err != nil {
		t.Fatal(err)
	}

	binary.LittleEndian.PutUint32(buf[0:], CompressedMagic)

	img, err := New(buf)

	if err != nil {
		t.Fatal(err)
	}

	if !img.VerifyMagic() {
		t.Error("VerifyMagic rejected compressed magic")
	}
}

func TestChunkIteration(t *testing.T) {
	b := NewBuilder("chunks", 0)

	b.AddChunk(uint32(api.U54_1), 0x80000000, testPayload(16))
	b.AddChunk(uint32(api.U54_2), 0x81000000, testPayload(32))
	b.AddChunk(uint32(api.U54_1)|AncillaryData, 0x82000000, testPayload(8))

	buf, err := b.Bytes()

	if err != nil {
		t.Fatal(err)
	}

	img, err := New(buf)

	if err != nil {
		t.Fatal(err)
	}

	var got []ChunkDesc

	for i := uint32(0); ; i++ {
		d, ok := img.Chunk(i)

		if !ok {
			break
		}

		got = append(got, d)
	}

	if len(got) != 3 {
		t.Fatalf("iterated %d chunks, want 3", len(got))
	}

	if got[0].OwnerHart() != api.U54_1 || got[0].Ancillary() {
		t.Errorf("chunk 0: owner %s ancillary %v", got[0].OwnerHart(), got[0].Ancillary())
	}

	if got[2].OwnerHart() != api.U54_1 || !got[2].Ancillary() {
		t.Errorf("chunk 2: owner %s ancillary %v", got[2].OwnerHart(), got[2].Ancillary())
	}

	if src := img.ChunkBytes(got[1]); !bytes.Equal(src, testPayload(32)) {
		t.Errorf("chunk 1 bytes mismatch (%d bytes)", len(src))
	}
}

func TestZIChunkIteration(t *testing.T) {
	img := testImage(t, 0)

	d, ok := img.ZIChunk(0)

	if !ok {
		t.Fatal("ZIChunk(0) not found")
	}

	want := ZIChunkDesc{Owner: uint32(api.U54_1), ExecAddr: 0x80300000, Size: 0x1000}

	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("zero-init chunk diff (-want +got):\n%s", diff)
	}

	if _, ok = img.ZIChunk(1); ok {
		t.Error("ZIChunk(1) did not hit the sentinel")
	}
}

func TestChunkBytesClamp(t *testing.T) {
	b := NewBuilder("clamp", 0)
	b.AddChunk(uint32(api.U54_1), 0x80000000, testPayload(100))

	buf, err := b.Bytes()

	if err != nil {
		t.Fatal(err)
	}

	img, err := New(buf)

	if err != nil {
		t.Fatal(err)
	}

	d, ok := img.Chunk(0)

	if !ok {
		t.Fatal("Chunk(0) not found")
	}

	// A descriptor claiming more bytes than the image holds is clamped
	// at the image boundary.
	d.Size = 1 << 20

	if got := img.ChunkBytes(d); len(got) != len(img.Bytes())-int(d.LoadAddr) {
		t.Errorf("ChunkBytes returned %d bytes past the image end", len(got))
	}

	d.LoadAddr = uint64(len(img.Bytes()) + 1)

	if got := img.ChunkBytes(d); got != nil {
		t.Errorf("ChunkBytes returned %d bytes for an out of range load address", len(got))
	}
}

func TestHartLookup(t *testing.T) {
	img := testImage(t, 0)

	for _, tc := range []struct {
		id  api.HartID
		nil bool
	}{
		{api.E51, true},
		{api.U54_1, false},
		{api.U54_4, false},
		{api.HartID(5), true},
		{api.HartAll, true},
	} {
		if got := img.Hart(tc.id); (got == nil) != tc.nil {
			t.Errorf("Hart(%s): nil=%v, want nil=%v", tc.id, got == nil, tc.nil)
		}
	}
}
