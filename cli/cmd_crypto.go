//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
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
//

package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/cli/flags"
	"github.com/pa-cotte/hal-alif-sub005/cli/ourutil"
	"github.com/pa-cotte/hal-alif-sub005/common/services"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

var (
	aesModes = map[string]uint32{
		"ecb": frame.AESModeECB,
		"cbc": frame.AESModeCBC,
		"ctr": frame.AESModeCTR,
	}
	directions = map[string]uint32{
		"enc": frame.DirectionEncrypt,
		"dec": frame.DirectionDecrypt,
	}
	lcsNames = map[uint32]string{
		frame.LCSChipManufacture:   "chip manufacture",
		frame.LCSDeviceManufacture: "device manufacture",
		frame.LCSSecureEnabled:     "secure enabled",
		frame.LCSRMA:               "RMA",
	}
)

func rnd(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 1, 1, "rnd N"); err != nil {
		return errors.Trace(err)
	}
	n, err := argU32("N", args, 0, 0)
	if err != nil {
		return errors.Trace(err)
	}
	var data []byte
	if *flags.Async {
		done := make(chan error, 1)
		call, err := ch.GetRNDAsync(int(n), func(b []byte, err error) {
			data = b
			done <- err
		})
		if err != nil {
			return errors.Trace(err)
		}
		if err := waitAsync(ctx, call, done); err != nil {
			return errors.Trace(err)
		}
	} else if data, err = ch.GetRND(ctx, int(n)); err != nil {
		return errors.Trace(err)
	}
	return printBytes(data)
}

func lcs(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 0, 0, "lcs"); err != nil {
		return errors.Trace(err)
	}
	state, err := ch.GetLCS(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	name, ok := lcsNames[state]
	if !ok {
		name = "unknown"
	}
	fmt.Fprintf(out, "%d (%s)\n", state, name)
	return nil
}

func sha256Cmd(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 1, 1, "sha256 FILE"); err != nil {
		return errors.Trace(err)
	}
	var data []byte
	var err error
	if args[0] == "-" {
		data, err = ioutil.ReadAll(os.Stdin)
	} else {
		data, err = ioutil.ReadFile(args[0])
	}
	if err != nil {
		return errors.Trace(err)
	}
	digest, err := ch.SHA256(ctx, data)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(out, "%x  %s\n", digest, args[0])
	return nil
}

func aes(ctx context.Context, ch *services.Channel, args []string) error {
	const usage = "aes ecb|cbc|ctr enc|dec HEXKEY HEXIV HEXDATA"
	if err := checkArgs(args, 5, 5, usage); err != nil {
		return errors.Trace(err)
	}
	mode, ok := aesModes[args[0]]
	if !ok {
		return errors.Errorf("usage: %s", usage)
	}
	dir, ok := directions[args[1]]
	if !ok {
		return errors.Errorf("usage: %s", usage)
	}
	var bufs [3][]byte
	for i, what := range []string{"key", "iv", "data"} {
		var err error
		if bufs[i], err = ourutil.ParseHex(what, args[2+i]); err != nil {
			return errors.Trace(err)
		}
	}
	res, err := ch.AES(ctx, mode, dir, bufs[0], bufs[1], bufs[2])
	if err != nil {
		return errors.Trace(err)
	}
	return printBytes(res)
}
