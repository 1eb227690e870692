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
	"encoding/hex"
	"fmt"

	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/cli/flags"
	"github.com/pa-cotte/hal-alif-sub005/cli/ourutil"
	"github.com/pa-cotte/hal-alif-sub005/common/services"
)

func reportf(f string, args ...interface{}) {
	ourutil.Reportf(f, args...)
}

func checkArgs(args []string, min, max int, usage string) error {
	if len(args) < min || len(args) > max {
		return errors.Errorf("usage: %s", usage)
	}
	return nil
}

func argU32(what string, args []string, i int, def uint32) (uint32, error) {
	if i >= len(args) {
		return def, nil
	}
	v, err := ourutil.ParseUint(what, args[i], 32)
	return uint32(v), err
}

func argU8(what string, args []string, i int) (uint8, error) {
	v, err := ourutil.ParseUint(what, args[i], 8)
	return uint8(v), err
}

// printBytes writes binary results in the --format encoding.
func printBytes(b []byte) error {
	switch *flags.Format {
	case "hex":
		fmt.Fprintln(out, hex.EncodeToString(b))
	case "raw":
		if _, err := out.Write(b); err != nil {
			return errors.Trace(err)
		}
	default:
		return errors.NotSupportedf("--format %q", *flags.Format)
	}
	return nil
}

// waitAsync waits for the callback of an asynchronous call to report on done.
// Asynchronous calls have no deadline of their own, so the call is cancelled
// once the client timeout passes or ctx ends.
func waitAsync(ctx context.Context, call *services.Call, done <-chan error) error {
	ctx, cancel := context.WithTimeout(ctx, call.Channel().Client().Timeout())
	defer cancel()
	select {
	case err := <-done:
		return errors.Trace(err)
	case <-ctx.Done():
		call.Cancel()
		return errors.Trace(<-done)
	}
}
