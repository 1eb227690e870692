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
	"io"
	"os"
	"os/signal"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/pa-cotte/hal-alif-sub005/common/pflagenv"
	"github.com/pa-cotte/hal-alif-sub005/common/services"
	"github.com/pa-cotte/hal-alif-sub005/version"
)

const (
	envPrefix = "SETOOL_"
)

var (
	versionFlag = flag.Bool("version", false, "Print version and exit")
	helpFull    = flag.Bool("helpfull", false, "Show full help, including advanced flags")

	out io.Writer = os.Stdout
)

var (
	// put all commands here
	commands = []command{
		{"heartbeat", heartbeat, `Check that the secure enclave answers on the channel`, nil, []string{"count", "async"}, false},
		{"sync", synchronize, `Wait until the secure enclave answers, retrying with backoff`, nil, []string{"timeout"}, false},
		{"stats", showStats, `Send heartbeats and print client counters`, nil, []string{"count"}, true},
		{"se-revision", seRevision, `Print the secure firmware revision`, nil, []string{"min-revision"}, false},
		{"part-number", partNumber, `Print the device part number`, nil, nil, false},
		{"toc", toc, `List TOC images, or show one: toc [NAME]`, nil, nil, false},
		{"toc-cpu", tocCPU, `List TOC images for a CPU: toc-cpu CPU`, nil, nil, false},
		{"process-toc", processTOC, `Load and verify a TOC image: process-toc NAME`, nil, nil, true},
		{"otp-read", otpRead, `Read OTP words: otp-read OFFSET [WORDS]`, nil, []string{"async", "format"}, false},
		{"otp-write-key", otpWriteKey, `Program a key into OTP: otp-write-key OFFSET HEXKEY`, nil, nil, true},
		{"rnd", rnd, `Get random bytes: rnd N`, nil, []string{"async", "format"}, false},
		{"lcs", lcs, `Print the lifecycle state`, nil, nil, false},
		{"sha256", sha256Cmd, `Digest a file (or - for stdin) on the enclave: sha256 FILE`, nil, []string{"mem-mode"}, false},
		{"aes", aes, `AES block operation: aes ecb|cbc|ctr enc|dec HEXKEY HEXIV HEXDATA`, nil, []string{"mem-mode", "format"}, false},
		{"pinmux", pinmux, `Set a pin function: pinmux PORT PIN FUNCTION`, nil, nil, false},
		{"padctl", padControl, `Set pad configuration: padctl PORT PIN CONFIG`, nil, nil, false},
		{"boot-cpu", bootCPU, `Boot a CPU: boot-cpu CPU ADDRESS`, nil, nil, true},
		{"release-cpu", releaseCPU, `Release a CPU from reset: release-cpu CPU`, nil, nil, true},
		{"reset-cpu", resetCPU, `Reset a CPU: reset-cpu CPU`, nil, nil, true},
		{"reset-soc", resetSoC, `Reset the whole SoC`, nil, nil, true},
		{"power-mode", powerMode, `Set power mode: power-mode idle|standby|stop [WAKEUP]`, nil, nil, false},
		{"mem-retention", memRetention, `Set the memory retention mask: mem-retention MASK`, nil, nil, false},
		{"clock-source", clockSource, `Select a clock source: clock-source CLOCK SOURCE`, nil, nil, false},
		{"clock-enable", clockEnable, `Gate a clock: clock-enable CLOCK on|off`, nil, nil, false},
		{"clock-divider", clockDivider, `Set a clock divider: clock-divider DIVIDER VALUE`, nil, nil, false},
		{"pll-xtal-start", pllXtalStart, `Start the crystal oscillator: pll-xtal-start [fast] [boost] [DELAY]`, nil, nil, true},
		{"pll-clk-start", pllClkStart, `Start the PLL: pll-clk-start [fast] [DELAY]`, nil, nil, true},
		{"pll-stop", pllStop, `Stop the PLL`, nil, nil, true},
	}
)

type command struct {
	name     string
	handler  handler
	short    string
	required []string
	optional []string
	extended bool
}

type handler func(ctx context.Context, ch *services.Channel, args []string) error

func findCommand(name string) *command {
	for i := range commands {
		if commands[i].name == name {
			return &commands[i]
		}
	}
	return nil
}

// runCommand opens a session on the selected channel and runs the command on it.
func runCommand(ctx context.Context, name string, args []string) error {
	c := findCommand(name)
	if c == nil {
		return errors.NotFoundf("command %q", name)
	}
	// check required flags
	if err := checkFlags(c.required); err != nil {
		return errors.Trace(err)
	}
	s, err := openSession(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()
	// run the handler
	if err := c.handler(ctx, s.ch, args); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func run() error {
	if flag.NArg() == 0 {
		usage()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			glog.Infof("interrupted")
			cancel()
		case <-ctx.Done():
		}
	}()

	err := runCommand(ctx, flag.Arg(0), flag.Args()[1:])
	if errors.IsNotFound(err) && findCommand(flag.Arg(0)) == nil {
		// not found
		usage()
		return nil
	}
	return err
}

func main() {
	initFlags()
	flag.Parse()
	if err := pflagenv.Parse(envPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if *helpFull {
		setGlogFlagsHidden(false)
		usage()
		return
	} else if *versionFlag {
		fmt.Printf(
			"%s\nVersion: %s\nBuild ID: %s\n",
			"The secure enclave services tool", version.Version, version.BuildId,
		)
		return
	}

	err := run()
	glog.Flush()
	if err != nil {
		glog.Infof("Error: %+v", err)
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
