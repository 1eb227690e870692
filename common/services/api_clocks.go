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

package services

import (
	"context"

	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

func (ch *Channel) ClockSelectSource(ctx context.Context, clock, source uint32) error {
	return errors.Trace(ch.Call(ctx, frame.SvcClockSelectSource, &frame.ClockSourceParams{Clock: clock, Source: source}, nil))
}

func (ch *Channel) ClockSetEnable(ctx context.Context, clock uint32, enable bool) error {
	return errors.Trace(ch.Call(ctx, frame.SvcClockSetEnable, &frame.ClockEnableParams{Clock: clock, Enable: uint32(frame.Bool(enable))}, nil))
}

func (ch *Channel) ClockSetDivider(ctx context.Context, divider, value uint32) error {
	return errors.Trace(ch.Call(ctx, frame.SvcClockSetDivider, &frame.ClockDividerParams{Divider: divider, Value: value}, nil))
}

// PLLXtalStart starts the crystal oscillator feeding the PLL.
func (ch *Channel) PLLXtalStart(ctx context.Context, fastStart, boost bool, delayCount uint32) error {
	return errors.Trace(ch.Call(ctx, frame.SvcPLLXtalStart, &frame.PLLXtalStartParams{
		FastStart:  frame.Bool(fastStart),
		Boost:      frame.Bool(boost),
		DelayCount: delayCount,
	}, nil))
}

func (ch *Channel) PLLClkStart(ctx context.Context, fastStart bool, delayCount uint32) error {
	return errors.Trace(ch.Call(ctx, frame.SvcPLLClkStart, &frame.PLLClkStartParams{
		FastStart:  frame.Bool(fastStart),
		DelayCount: delayCount,
	}, nil))
}

func (ch *Channel) PLLStop(ctx context.Context) error {
	return errors.Trace(ch.Call(ctx, frame.SvcPLLStop, nil, nil))
}
