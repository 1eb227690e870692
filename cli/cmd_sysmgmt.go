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

	"github.com/fatih/color"
	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/cli/flags"
	"github.com/pa-cotte/hal-alif-sub005/cli/ourutil"
	"github.com/pa-cotte/hal-alif-sub005/common/services"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

func seRevision(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 0, 0, "se-revision"); err != nil {
		return errors.Trace(err)
	}
	rev, err := ch.GetSERevision(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintln(out, rev)
	if *flags.MinRevision == "" {
		return nil
	}
	v, err := services.SEVersion(rev)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err := ch.CheckSERevision(ctx, *flags.MinRevision); err != nil {
		color.New(color.FgRed).Fprintf(out, "%s is older than %s\n", v, *flags.MinRevision)
		return errors.Trace(err)
	}
	color.New(color.FgGreen).Fprintf(out, "%s >= %s\n", v, *flags.MinRevision)
	return nil
}

func partNumber(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 0, 0, "part-number"); err != nil {
		return errors.Trace(err)
	}
	pn, err := ch.GetDevicePartNumber(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(out, "%#08x\n", pn)
	return nil
}

func printTOCEntry(e *frame.TOCEntry) {
	fmt.Fprintf(out, "%-8s  version %#08x  cpu %d  dest %#08x  boot %#08x  size %d  flags %#x\n",
		e.Name, e.Version, e.CPU, e.DestAddr, e.BootAddr, e.Size, e.Flags)
}

func toc(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 0, 1, "toc [NAME]"); err != nil {
		return errors.Trace(err)
	}
	if len(args) == 1 {
		e, err := ch.GetTOCViaName(ctx, args[0])
		if err != nil {
			return errors.Trace(err)
		}
		printTOCEntry(e)
		return nil
	}
	ver, err := ch.GetTOCVersion(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	n, err := ch.GetTOCNumber(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(out, "TOC version %#08x, %d image(s)\n", ver, n)
	for cpu := uint32(frame.CPUA32_0); cpu <= frame.CPUM55_HE; cpu++ {
		entries, err := ch.GetTOCViaCPUID(ctx, cpu)
		if err != nil {
			return errors.Trace(err)
		}
		for i := range entries {
			printTOCEntry(&entries[i])
		}
	}
	return nil
}

func tocCPU(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 1, 1, "toc-cpu CPU"); err != nil {
		return errors.Trace(err)
	}
	cpu, err := argU32("CPU", args, 0, 0)
	if err != nil {
		return errors.Trace(err)
	}
	entries, err := ch.GetTOCViaCPUID(ctx, cpu)
	if err != nil {
		return errors.Trace(err)
	}
	for i := range entries {
		printTOCEntry(&entries[i])
	}
	return nil
}

func processTOC(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 1, 1, "process-toc NAME"); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ch.ProcessTOCEntry(ctx, args[0]))
}

func otpRead(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 1, 2, "otp-read OFFSET [WORDS]"); err != nil {
		return errors.Trace(err)
	}
	offset, err := argU32("OFFSET", args, 0, 0)
	if err != nil {
		return errors.Trace(err)
	}
	words, err := argU32("WORDS", args, 1, 1)
	if err != nil {
		return errors.Trace(err)
	}
	var data []byte
	if *flags.Async {
		done := make(chan error, 1)
		call, err := ch.ReadOTPAsync(offset, words, func(b []byte, err error) {
			data = b
			done <- err
		})
		if err != nil {
			return errors.Trace(err)
		}
		if err := waitAsync(ctx, call, done); err != nil {
			return errors.Trace(err)
		}
	} else if data, err = ch.ReadOTP(ctx, offset, words); err != nil {
		return errors.Trace(err)
	}
	return printBytes(data)
}

func otpWriteKey(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 2, 2, "otp-write-key OFFSET HEXKEY"); err != nil {
		return errors.Trace(err)
	}
	offset, err := argU32("OFFSET", args, 0, 0)
	if err != nil {
		return errors.Trace(err)
	}
	key, err := ourutil.ParseHex("key", args[1])
	if err != nil {
		return errors.Trace(err)
	}
	if err := ch.WriteOTPKey(ctx, offset, key); err != nil {
		return errors.Trace(err)
	}
	reportf("Wrote %d key bytes at OTP word %#x", len(key), offset)
	return nil
}
