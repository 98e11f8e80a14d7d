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

package trigger

import (
	"testing"
)

func TestLatch(t *testing.T) {
	r := &Registry{}

	if r.IsNotified(DDRTrained) {
		t.Error("event notified before Notify")
	}

	r.Notify(DDRTrained)

	if !r.IsNotified(DDRTrained) {
		t.Error("event not latched")
	}

	if r.IsNotified(BootComplete) {
		t.Error("unrelated event latched")
	}

	// Repeat notification is harmless.
	r.Notify(DDRTrained)

	if !r.IsNotified(DDRTrained) {
		t.Error("event lost on repeat notification")
	}

	r.Reset()

	if r.IsNotified(DDRTrained) {
		t.Error("event survived reset")
	}
}

func TestEventString(t *testing.T) {
	for _, tc := range []struct {
		e    Event
		want string
	}{
		{DDRTrained, "DDR_TRAINED"},
		{StartupComplete, "STARTUP_COMPLETE"},
		{BootComplete, "BOOT_COMPLETE"},
		{PostBoot, "POST_BOOT"},
		{Event(99), "unknown"},
	} {
		if got := tc.e.String(); got != tc.want {
			t.Errorf("%d: %q, want %q", int(tc.e), got, tc.want)
		}
	}
}
