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

package api

import (
	"strings"
	"testing"
)

func TestHartID(t *testing.T) {
	for _, tc := range []struct {
		id    HartID
		s     string
		valid bool
	}{
		{E51, "e51", false},
		{U54_1, "u54_1", true},
		{U54_4, "u54_4", true},
		{HartAll, "all", false},
		{HartID(7), "hart_7", false},
	} {
		if got := tc.id.String(); got != tc.s {
			t.Errorf("String(%d): %q, want %q", uint32(tc.id), got, tc.s)
		}

		if got := tc.id.Valid(); got != tc.valid {
			t.Errorf("Valid(%s): %v, want %v", tc.id, got, tc.valid)
		}
	}
}

func TestHartMask(t *testing.T) {
	var m HartMask

	m.Set(U54_1)
	m.Set(U54_3)

	if !m.Has(U54_1) || !m.Has(U54_3) || m.Has(U54_2) {
		t.Errorf("mask %#x has wrong members", uint(m))
	}

	m.Clear(Bit(U54_1))

	if m.Has(U54_1) || !m.Has(U54_3) {
		t.Errorf("mask %#x after clear", uint(m))
	}

	var all HartMask

	for _, hart := range AppHarts {
		all.Set(hart)
	}

	if all != AllAppHarts {
		t.Errorf("mask of every application hart %#x, want %#x", uint(all), uint(AllAppHarts))
	}
}

func TestStatusPrint(t *testing.T) {
	s := &Status{
		SetName:  "test-set",
		Version:  "1.0.0",
		BootFail: false,
	}

	out := s.Print()

	for _, want := range []string{"test-set", "1.0.0", "Boot Monitor"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q", want)
		}
	}
}
