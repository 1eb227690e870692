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

	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

var powerModes = map[string]uint32{
	"idle":    frame.PowerModeIdle,
	"standby": frame.PowerModeStandby,
	"stop":    frame.PowerModeStop,
}

func pinmux(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 3, 3, "pinmux PORT PIN FUNCTION"); err != nil {
		return errors.Trace(err)
	}
	var v [3]uint8
	for i, what := range []string{"port", "pin", "function"} {
		var err error
		if v[i], err = argU8(what, args, i); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(ch.Pinmux(ctx, v[0], v[1], v[2]))
}

func padControl(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 3, 3, "padctl PORT PIN CONFIG"); err != nil {
		return errors.Trace(err)
	}
	port, err := argU8("port", args, 0)
	if err != nil {
		return errors.Trace(err)
	}
	pin, err := argU8("pin", args, 1)
	if err != nil {
		return errors.Trace(err)
	}
	config, err := argU32("config", args, 2, 0)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ch.PadControl(ctx, port, pin, config))
}

func bootCPU(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 2, 2, "boot-cpu CPU ADDRESS"); err != nil {
		return errors.Trace(err)
	}
	cpu, err := argU32("CPU", args, 0, 0)
	if err != nil {
		return errors.Trace(err)
	}
	addr, err := argU32("address", args, 1, 0)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ch.BootCPU(ctx, cpu, addr))
}

func cpuCommand(name string, f func(*services.Channel, context.Context, uint32) error) handler {
	return func(ctx context.Context, ch *services.Channel, args []string) error {
		if err := checkArgs(args, 1, 1, name+" CPU"); err != nil {
			return errors.Trace(err)
		}
		cpu, err := argU32("CPU", args, 0, 0)
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(f(ch, ctx, cpu))
	}
}

var (
	releaseCPU = cpuCommand("release-cpu", (*services.Channel).ReleaseCPU)
	resetCPU   = cpuCommand("reset-cpu", (*services.Channel).ResetCPU)
)

func resetSoC(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 0, 0, "reset-soc"); err != nil {
		return errors.Trace(err)
	}
	if err := ch.ResetSoC(ctx); err != nil {
		return errors.Trace(err)
	}
	reportf("SoC reset requested")
	return nil
}

func powerMode(ctx context.Context, ch *services.Channel, args []string) error {
	const usage = "power-mode idle|standby|stop [WAKEUP]"
	if err := checkArgs(args, 1, 2, usage); err != nil {
		return errors.Trace(err)
	}
	mode, ok := powerModes[args[0]]
	if !ok {
		return errors.Errorf("usage: %s", usage)
	}
	wakeup, err := argU32("wakeup mask", args, 1, frame.WakeupSourceRTC)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ch.SetPowerMode(ctx, mode, wakeup))
}

func memRetention(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 1, 1, "mem-retention MASK"); err != nil {
		return errors.Trace(err)
	}
	mask, err := argU32("mask", args, 0, 0)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ch.SetMemRetention(ctx, mask))
}

func clockSource(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 2, 2, "clock-source CLOCK SOURCE"); err != nil {
		return errors.Trace(err)
	}
	clock, err := argU32("clock", args, 0, 0)
	if err != nil {
		return errors.Trace(err)
	}
	source, err := argU32("source", args, 1, 0)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ch.ClockSelectSource(ctx, clock, source))
}

func clockEnable(ctx context.Context, ch *services.Channel, args []string) error {
	const usage = "clock-enable CLOCK on|off"
	if err := checkArgs(args, 2, 2, usage); err != nil {
		return errors.Trace(err)
	}
	clock, err := argU32("clock", args, 0, 0)
	if err != nil {
		return errors.Trace(err)
	}
	var enable bool
	switch args[1] {
	case "on":
		enable = true
	case "off":
	default:
		return errors.Errorf("usage: %s", usage)
	}
	return errors.Trace(ch.ClockSetEnable(ctx, clock, enable))
}

func clockDivider(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 2, 2, "clock-divider DIVIDER VALUE"); err != nil {
		return errors.Trace(err)
	}
	div, err := argU32("divider", args, 0, 0)
	if err != nil {
		return errors.Trace(err)
	}
	value, err := argU32("value", args, 1, 0)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ch.ClockSetDivider(ctx, div, value))
}

// pllArgs splits optional "fast"/"boost" words from a trailing delay count.
func pllArgs(args []string, words ...string) (map[string]bool, uint32, error) {
	set := map[string]bool{}
	var delay uint32
	for i, a := range args {
		known := false
		for _, w := range words {
			if a == w {
				set[w], known = true, true
			}
		}
		if known {
			continue
		}
		if i != len(args)-1 {
			return nil, 0, errors.Errorf("unexpected %q", a)
		}
		var err error
		if delay, err = argU32("delay count", args, i, 0); err != nil {
			return nil, 0, errors.Trace(err)
		}
	}
	return set, delay, nil
}

func pllXtalStart(ctx context.Context, ch *services.Channel, args []string) error {
	set, delay, err := pllArgs(args, "fast", "boost")
	if err != nil {
		return errors.Annotatef(err, "usage: pll-xtal-start [fast] [boost] [DELAY]")
	}
	return errors.Trace(ch.PLLXtalStart(ctx, set["fast"], set["boost"], delay))
}

func pllClkStart(ctx context.Context, ch *services.Channel, args []string) error {
	set, delay, err := pllArgs(args, "fast")
	if err != nil {
		return errors.Annotatef(err, "usage: pll-clk-start [fast] [DELAY]")
	}
	return errors.Trace(ch.PLLClkStart(ctx, set["fast"], delay))
}

func pllStop(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 0, 0, "pll-stop"); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ch.PLLStop(ctx))
}
