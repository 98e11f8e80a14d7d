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

//go:build tamago && riscv64 && debug

package main

import (
	_ "unsafe"

	"github.com/usbarmory/tamago/soc/sifive/fu540"
)

//go:linkname printk runtime.printk
func printk(c byte) {
	fu540.UART1.Tx(c)

	_ = bufferedStdoutLog(c)
}
