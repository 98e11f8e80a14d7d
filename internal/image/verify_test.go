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
	"crypto/rand"
	"errors"
	"testing"

	"golang.org/x/mod/sumdb/note"
)

func TestEmbeddedSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)

	if err != nil {
		t.Fatal(err)
	}

	buf, err := testBuilder(1).Bytes()

	if err != nil {
		t.Fatal(err)
	}

	sig, err := SignHeader(priv, buf)

	if err != nil {
		t.Fatal(err)
	}

	copy(buf[HeaderLenV0:HeaderLenV1], sig)

	img, err := New(buf)

	if err != nil {
		t.Fatal(err)
	}

	// Signing must not invalidate the header CRC.
	if err = img.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	v := &Ed25519Verifier{Public: pub}

	if err = v.Verify(img); err != nil {
		t.Errorf("Verify: %v", err)
	}

	otherPub, _, err := ed25519.GenerateKey(rand.Reader)

	if err != nil {
		t.Fatal(err)
	}

	v = &Ed25519Verifier{Public: otherPub}

	if err = v.Verify(img); !errors.Is(err, ErrSignature) {
		t.Errorf("Verify with wrong key: %v, want %v", err, ErrSignature)
	}
}

func TestEmbeddedSignatureTamper(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)

	if err != nil {
		t.Fatal(err)
	}

	buf, err := testBuilder(1).Bytes()

	if err != nil {
		t.Fatal(err)
	}

	sig, err := SignHeader(priv, buf)

	if err != nil {
		t.Fatal(err)
	}

	copy(buf[HeaderLenV0:HeaderLenV1], sig)

	// Flip an entry point bit after signing.
	buf[4+NameLen+20+NameLen] ^= 1

	img, err := New(buf)

	if err != nil {
		t.Fatal(err)
	}

	v := &Ed25519Verifier{Public: pub}

	if err = v.Verify(img); !errors.Is(err, ErrSignature) {
		t.Errorf("Verify of tampered header: %v, want %v", err, ErrSignature)
	}
}

func TestVersion0HasNoSignature(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)

	if err != nil {
		t.Fatal(err)
	}

	buf, err := testBuilder(0).Bytes()

	if err != nil {
		t.Fatal(err)
	}

	if _, err = SignHeader(priv, buf); !errors.Is(err, ErrSignature) {
		t.Errorf("SignHeader on version 0: %v, want %v", err, ErrSignature)
	}

	img, err := New(buf)

	if err != nil {
		t.Fatal(err)
	}

	v := &Ed25519Verifier{Public: make([]byte, ed25519.PublicKeySize)}

	if err = v.Verify(img); !errors.Is(err, ErrSignature) {
		t.Errorf("Verify on version 0: %v, want %v", err, ErrSignature)
	}
}

func TestDetachedNote(t *testing.T) {
	skey, vkey, err := note.GenerateKey(rand.Reader, "boot-image")

	if err != nil {
		t.Fatal(err)
	}

	signer, err := note.NewSigner(skey)

	if err != nil {
		t.Fatal(err)
	}

	img := testImage(t, 1)

	signed, err := note.Sign(&note.Note{Text: FormatDetached(img)}, signer)

	if err != nil {
		t.Fatal(err)
	}

	v, err := NewNoteVerifier(vkey)

	if err != nil {
		t.Fatal(err)
	}

	if err = v.VerifyDetached(img, signed); err != nil {
		t.Errorf("VerifyDetached: %v", err)
	}

	other := testImage(t, 0)

	if err = v.VerifyDetached(other, signed); err == nil {
		t.Error("VerifyDetached accepted a note for a different image")
	}
}
