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

//go:build !tamago
// +build !tamago

package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/cheggaaa/pb/v3"

	"github.com/mpfs-soc/hss-monitor/api"
	"github.com/mpfs-soc/hss-monitor/internal/image"
)

type payloadSpec struct {
	hart api.HartID
	priv uint8
	exec uint64
	path string
}

type ziSpec struct {
	hart api.HartID
	addr uint64
	size uint64
}

func parsePayload(s string) (p payloadSpec, err error) {
	f := strings.SplitN(s, ":", 4)

	if len(f) != 4 {
		return p, fmt.Errorf("invalid payload spec %q", s)
	}

	hart, err := strconv.ParseUint(f[0], 0, 32)

	if err != nil {
		return
	}

	priv, err := strconv.ParseUint(f[1], 0, 8)

	if err != nil {
		return
	}

	exec, err := strconv.ParseUint(f[2], 0, 64)

	if err != nil {
		return
	}

	p = payloadSpec{
		hart: api.HartID(hart),
		priv: uint8(priv),
		exec: exec,
		path: f[3],
	}

	if !p.hart.Valid() {
		return p, fmt.Errorf("invalid hart %d", hart)
	}

	return
}

func parseZI(s string) (z ziSpec, err error) {
	f := strings.SplitN(s, ":", 3)

	if len(f) != 3 {
		return z, fmt.Errorf("invalid zero-init spec %q", s)
	}

	hart, err := strconv.ParseUint(f[0], 0, 32)

	if err != nil {
		return
	}

	addr, err := strconv.ParseUint(f[1], 0, 64)

	if err != nil {
		return
	}

	size, err := strconv.ParseUint(f[2], 0, 64)

	if err != nil {
		return
	}

	z = ziSpec{hart: api.HartID(hart), addr: addr, size: size}

	if !z.hart.Valid() {
		return z, fmt.Errorf("invalid hart %d", hart)
	}

	return
}

func load(path string) (*image.Image, error) {
	buf, err := os.ReadFile(path)

	if err != nil {
		return nil, err
	}

	return image.New(buf)
}

func inspect(path string) error {
	img, err := load(path)

	if err != nil {
		return err
	}

	hdr := img.Header()

	log.Printf("Set name .......: %s", img.SetName())
	log.Printf("Magic ..........: %#08x", hdr.Magic)
	log.Printf("Version ........: %d", hdr.Version)
	log.Printf("Header length ..: %d", hdr.HeaderLength)
	log.Printf("Header CRC .....: %#08x", hdr.HeaderCRC)

	for _, hart := range api.AppHarts {
		h := img.Hart(hart)

		if h.NumChunks == 0 && h.EntryPoint == 0 {
			log.Printf("%s ..........: no payload", hart)

			continue
		}

		log.Printf("%s ..........: %q entry %#x priv %d chunks %d..%d (%d) flags %#x",
			hart, h.NameString(), h.EntryPoint, h.PrivMode, h.FirstChunk, h.LastChunk, h.NumChunks, h.Flags)
	}

	return nil
}

func validate(path string) (err error) {
	img, err := load(path)

	if err != nil {
		return
	}

	if err = img.Validate(); err != nil {
		return
	}

	if len(conf.pub) > 0 {
		var pub []byte

		if pub, err = hex.DecodeString(conf.pub); err != nil {
			return
		}

		if len(pub) != ed25519.PublicKeySize {
			return errors.New("invalid public key size")
		}

		v := &image.Ed25519Verifier{Public: ed25519.PublicKey(pub)}

		if err = v.Verify(img); err != nil {
			return
		}

		log.Printf("embedded signature verified")
	}

	if len(conf.note) > 0 {
		if len(conf.notePub) == 0 {
			return errors.New("a note verifier key is required")
		}

		var v *image.NoteVerifier

		if v, err = image.NewNoteVerifier(conf.notePub); err != nil {
			return
		}

		var signed []byte

		if signed, err = os.ReadFile(conf.note); err != nil {
			return
		}

		if err = v.VerifyDetached(img, signed); err != nil {
			return
		}

		log.Printf("detached note verified")
	}

	log.Printf("%s: valid boot image", path)

	return
}

func readPayload(path string, bar *pb.ProgressBar) ([]byte, error) {
	f, err := os.Open(path)

	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer

	if _, err = io.Copy(&buf, bar.NewProxyReader(f)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func pack(path string) (err error) {
	if len(conf.payloads) == 0 {
		return errors.New("at least one payload chunk is required")
	}

	b := image.NewBuilder(conf.setName, uint32(conf.version))

	var total int64

	for _, p := range conf.payloads {
		var info os.FileInfo

		if info, err = os.Stat(p.path); err != nil {
			return
		}

		total += info.Size()
	}

	bar := pb.Full.Start64(total)
	defer bar.Finish()

	for _, p := range conf.payloads {
		var data []byte

		if data, err = readPayload(p.path, bar); err != nil {
			return
		}

		idx := b.AddChunk(uint32(p.hart), p.exec, data)

		h := &b.Hart[p.hart-1]

		if h.NumChunks == 0 {
			h.FirstChunk = idx
			h.EntryPoint = p.exec
			h.PrivMode = p.priv
			copy(h.Name[:], conf.setName)
		}

		h.LastChunk = idx
		h.NumChunks++
	}

	if len(conf.ancillary) > 0 {
		var data []byte

		if data, err = os.ReadFile(conf.ancillary); err != nil {
			return
		}

		b.AddChunk(uint32(conf.ancHart)|image.AncillaryData, conf.ancAddr, data)
	}

	for _, z := range conf.ziChunks {
		b.AddZIChunk(uint32(z.hart), z.addr, z.size)
	}

	buf, err := b.Bytes()

	if err != nil {
		return
	}

	if len(conf.key) > 0 {
		if buf, err = sign(buf); err != nil {
			return
		}
	}

	log.Printf("packed %d bytes to %s", len(buf), path)

	return os.WriteFile(path, buf, 0o644)
}

// sign embeds the version 1 header signature. The header CRC does not
// cover the signature field, so no CRC update is required.
func sign(buf []byte) ([]byte, error) {
	if conf.version < 1 {
		return nil, errors.New("version 0 headers carry no signature")
	}

	seed, err := hex.DecodeString(conf.key)

	if err != nil {
		return nil, err
	}

	if len(seed) != ed25519.SeedSize {
		return nil, errors.New("invalid private key seed size")
	}

	sig, err := image.SignHeader(ed25519.NewKeyFromSeed(seed), buf)

	if err != nil {
		return nil, err
	}

	copy(buf[image.HeaderLenV0:image.HeaderLenV1], sig)

	return buf, nil
}
