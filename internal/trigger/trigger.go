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

// Package trigger tracks one-shot system events that gate boot
// progress. Events latch once notified and stay notified until reset.
package trigger

import (
	"sync/atomic"
)

// Event identifies a system event.
type Event int

const (
	DDRTrained Event = iota
	StartupComplete
	BootComplete
	PostBoot

	numEvents
)

func (e Event) String() string {
	switch e {
	case DDRTrained:
		return "DDR_TRAINED"
	case StartupComplete:
		return "STARTUP_COMPLETE"
	case BootComplete:
		return "BOOT_COMPLETE"
	case PostBoot:
		return "POST_BOOT"
	}

	return "unknown"
}

// Registry latches event notifications. The zero value is ready for
// use with no event notified.
type Registry struct {
	notified [numEvents]atomic.Bool
}

// Notify latches e as having occurred.
func (r *Registry) Notify(e Event) {
	r.notified[e].Store(true)
}

// IsNotified reports whether e has occurred since the last reset.
func (r *Registry) IsNotified(e Event) bool {
	return r.notified[e].Load()
}

// Reset clears every latched event.
func (r *Registry) Reset() {
	for i := range r.notified {
		r.notified[i].Store(false)
	}
}
