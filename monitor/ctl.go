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

//go:build tamago && riscv64

package main

import (
	"runtime"
	"strings"

	"github.com/coreos/go-semver/semver"

	"github.com/mpfs-soc/hss-monitor/api"
)

func parseVersion(s string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(s, "v"))
}

func getStatus() *api.Status {
	s := &api.Status{
		Revision:   Revision,
		Build:      Build,
		Version:    Version,
		BootFail:   bank.BootFail(),
		BootStatus: api.HartMask(bank.BootStatus() << 1),
		Runtime:    runtime.Version(),
	}

	if v, err := parseVersion(Version); err == nil {
		s.Version = v.String()
	}

	if monitor != nil && monitor.Image() != nil {
		s.SetName = monitor.Image().SetName()
	}

	return s
}
