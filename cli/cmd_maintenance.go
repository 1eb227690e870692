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
	"time"

	"github.com/fatih/color"
	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/cli/flags"
	"github.com/pa-cotte/hal-alif-sub005/common/services"
)

func heartbeat(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 0, 0, "heartbeat"); err != nil {
		return errors.Trace(err)
	}
	for i := 0; i < *flags.Count; i++ {
		start := time.Now()
		var err error
		if *flags.Async {
			done := make(chan error, 1)
			var call *services.Call
			call, err = ch.HeartbeatAsync(func(err error) { done <- err })
			if err == nil {
				err = waitAsync(ctx, call, done)
			}
		} else {
			err = ch.Heartbeat(ctx)
		}
		if err != nil {
			return errors.Annotatef(err, "%s", ch)
		}
		color.New(color.FgGreen).Fprintf(out, "%s: alive", ch)
		fmt.Fprintf(out, " (%s)\n", time.Since(start).Round(time.Microsecond))
	}
	return nil
}

func synchronize(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 0, 0, "sync"); err != nil {
		return errors.Trace(err)
	}
	start := time.Now()
	if err := ch.Synchronize(ctx); err != nil {
		return errors.Trace(err)
	}
	color.New(color.FgGreen).Fprintf(out, "%s: in sync after %s\n", ch, time.Since(start).Round(time.Millisecond))
	return nil
}

func showStats(ctx context.Context, ch *services.Channel, args []string) error {
	if err := checkArgs(args, 0, 0, "stats"); err != nil {
		return errors.Trace(err)
	}
	for i := 0; i < *flags.Count; i++ {
		if err := ch.Heartbeat(ctx); err != nil {
			reportf("%s: heartbeat: %s", ch, err)
		}
	}
	st := ch.Client().Stats()
	fmt.Fprintf(out, "sent: %d\nreceived: %d\nresolved: %d\ntimeouts: %d\ncancelled: %d\ndropped: %d\nserialization violations: %d\n",
		st.Sent, st.Received, st.Resolved, st.Timeouts, st.Cancelled, st.Dropped, st.SerializationViolations)
	return nil
}
