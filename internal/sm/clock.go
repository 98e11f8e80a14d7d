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

package sm

import (
	"time"
)

// Clock provides the monotonic time base used for state timeouts. One
// tick is one millisecond.
type Clock interface {
	Now() uint64
}

// IsElapsed reports whether timeout ticks have passed since start.
func IsElapsed(c Clock, start, timeout uint64) bool {
	return c.Now()-start >= timeout
}

// WallClock is a Clock over the runtime monotonic clock.
type WallClock struct {
	epoch time.Time
}

// NewWallClock returns a Clock starting at zero.
func NewWallClock() *WallClock {
	return &WallClock{epoch: time.Now()}
}

func (c *WallClock) Now() uint64 {
	return uint64(time.Since(c.epoch) / time.Millisecond)
}
