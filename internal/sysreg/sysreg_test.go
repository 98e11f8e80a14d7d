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

package sysreg

import (
	"testing"

	"github.com/mpfs-soc/hss-monitor/api"
)

func TestBootFail(t *testing.T) {
	b := &Mem{}

	if b.BootFail() {
		t.Error("boot failure set at reset")
	}

	b.SetBootFail(true)

	if !b.BootFail() {
		t.Error("boot failure not set")
	}

	b.SetBootFail(false)

	if b.BootFail() {
		t.Error("boot failure not cleared")
	}
}

func TestBootStatus(t *testing.T) {
	b := &Mem{}

	if got := b.BootStatus(); got != 0 {
		t.Errorf("boot status %#x at reset", got)
	}

	b.SetBootStatus(api.U54_1)
	b.SetBootStatus(api.U54_3)

	if got := b.BootStatus(); got != 0b101 {
		t.Errorf("boot status %#x, want 0b101", got)
	}

	// Status bits accumulate, a repeat set is harmless.
	b.SetBootStatus(api.U54_1)

	if got := b.BootStatus(); got != 0b101 {
		t.Errorf("boot status %#x after repeat set", got)
	}
}
