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

// Package rpc defines the extended payloads carried by boot IPIs.
package rpc

import (
	"github.com/mpfs-soc/hss-monitor/api"
)

// RemoteProc is the extended buffer of a remote-proc boot request. The
// payload has already been placed in memory by an external loader, so
// the monitor only releases the target hart.
type RemoteProc struct {
	// Target is the hart the request is really for, regardless of
	// which hart raised the IPI.
	Target api.HartID
}

// BootRequest represents a boot request raised by an application hart.
type BootRequest struct {
	Source api.HartID
}
