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

//go:build !tamago
// +build !tamago

// bootctl assembles, signs and inspects boot images for the monitor.
package main

import (
	"flag"
	"log"
	"os"
)

type Config struct {
	inspect  string
	validate string

	pub     string
	note    string
	notePub string

	pack    string
	setName string
	version uint

	payloads  []payloadSpec
	ziChunks  []ziSpec
	ancillary string
	ancHart   uint
	ancAddr   uint64

	key string
}

var conf *Config

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stdout)

	conf = &Config{}

	flag.StringVar(&conf.inspect, "s", "", "show boot image summary")
	flag.StringVar(&conf.validate, "v", "", "validate boot image magic and header CRC")
	flag.StringVar(&conf.pub, "P", "", "hex ed25519 public key, verify embedded signature (with -v)")
	flag.StringVar(&conf.note, "n", "", "detached signed note (with -v)")
	flag.StringVar(&conf.notePub, "N", "", "note verifier key (with -v -n)")

	flag.StringVar(&conf.pack, "p", "", "pack a boot image to the given path")
	flag.StringVar(&conf.setName, "i", "default", "image set name (with -p)")
	flag.UintVar(&conf.version, "V", 1, "header version (with -p)")
	flag.Func("c", "payload chunk as hart:priv:exec:file (with -p, repeatable)", func(s string) error {
		p, err := parsePayload(s)

		if err != nil {
			return err
		}

		conf.payloads = append(conf.payloads, p)

		return nil
	})
	flag.Func("z", "zero-init chunk as hart:addr:size (with -p, repeatable)", func(s string) error {
		z, err := parseZI(s)

		if err != nil {
			return err
		}

		conf.ziChunks = append(conf.ziChunks, z)

		return nil
	})
	flag.StringVar(&conf.ancillary, "d", "", "ancillary data (e.g. device tree) file (with -p)")
	flag.UintVar(&conf.ancHart, "D", 1, "ancillary data owner hart (with -d)")
	flag.Uint64Var(&conf.ancAddr, "A", 0, "ancillary data execution address (with -d)")

	flag.StringVar(&conf.key, "k", "", "hex ed25519 private key seed, embed header signature (with -p)")
}

func main() {
	var err error

	defer func() {
		if flag.NFlag() == 0 {
			flag.PrintDefaults()
		}

		if err != nil {
			log.Fatalf("fatal error, %s", err)
		}
	}()

	flag.Parse()

	switch {
	case len(conf.inspect) > 0:
		err = inspect(conf.inspect)
	case len(conf.validate) > 0:
		err = validate(conf.validate)
	case len(conf.pack) > 0:
		err = pack(conf.pack)
	}
}
