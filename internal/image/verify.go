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
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/mod/sumdb/note"
)

// Verifier authenticates a boot image before registration.
type Verifier interface {
	// Verify returns nil when img is authentic.
	Verify(img *Image) error
}

// Ed25519Verifier checks the version 1 embedded header signature: an
// ed25519 signature over the SHA-256 digest of the header with the CRC
// and signature fields zeroed.
type Ed25519Verifier struct {
	Public ed25519.PublicKey
}

func (v *Ed25519Verifier) Verify(img *Image) error {
	if img == nil || img.data == nil {
		return ErrNilImage
	}

	if img.hdr.Version < 1 {
		return fmt.Errorf("%w: version %d header carries no signature", ErrSignature, img.hdr.Version)
	}

	digest := signedDigest(img)

	if !ed25519.Verify(v.Public, digest[:], img.hdr.Signature[:]) {
		return ErrSignature
	}

	return nil
}

// SignHeader computes the version 1 embedded signature for a header
// already serialized in data. Used by the image packing tool.
func SignHeader(priv ed25519.PrivateKey, data []byte) ([]byte, error) {
	img, err := New(data)

	if err != nil {
		return nil, err
	}

	if img.hdr.Version < 1 {
		return nil, fmt.Errorf("%w: version %d header carries no signature", ErrSignature, img.hdr.Version)
	}

	digest := signedDigest(img)

	return ed25519.Sign(priv, digest[:]), nil
}

func signedDigest(img *Image) [sha256.Size]byte {
	scratch := make([]byte, HeaderLenV1)
	copy(scratch, img.data[:HeaderLenV1])

	binary.LittleEndian.PutUint32(scratch[4+NameLen+8:], 0)

	for i := HeaderLenV0; i < HeaderLenV1; i++ {
		scratch[i] = 0
	}

	return sha256.Sum256(scratch)
}

// NoteVerifier authenticates a whole image file against a detached
// signed note whose text is the image's SHA-256 sum.
type NoteVerifier struct {
	verifiers note.Verifiers
}

// NewNoteVerifier builds a verifier from a public key in note key
// syntax.
func NewNoteVerifier(pub string) (*NoteVerifier, error) {
	v, err := note.NewVerifier(pub)

	if err != nil {
		return nil, err
	}

	return &NoteVerifier{verifiers: note.VerifierList(v)}, nil
}

// VerifyDetached checks a signed note against the image bytes.
func (v *NoteVerifier) VerifyDetached(img *Image, signed []byte) error {
	n, err := note.Open(signed, v.verifiers)

	if err != nil {
		return err
	}

	sum := sha256.Sum256(img.data)
	want := fmt.Sprintf("%x\n", sum)

	if n.Text != want {
		return fmt.Errorf("%w: note digest does not match image", ErrSignature)
	}

	return nil
}

// FormatDetached returns the note text VerifyDetached expects, for the
// signing side.
func FormatDetached(img *Image) string {
	sum := sha256.Sum256(img.data)

	return fmt.Sprintf("%x\n", sum)
}
