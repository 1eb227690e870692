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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services/errcode"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

const (
	syncAttemptTimeout = 500 * time.Millisecond
	syncMaxElapsed     = 30 * time.Second
)

// Heartbeat checks that the secure subsystem answers on the channel.
func (ch *Channel) Heartbeat(ctx context.Context) error {
	return errors.Trace(ch.Call(ctx, frame.SvcHeartbeat, nil, nil))
}

func (ch *Channel) HeartbeatAsync(cb func(error)) (*Call, error) {
	return ch.Go(frame.SvcHeartbeat, nil, nil, cb)
}

// Synchronize sends heartbeats with exponential backoff until one succeeds,
// e.g. while the secure subsystem is still booting. It gives up when ctx is
// done or, if ctx has no deadline, after 30 seconds. Remote failures are not
// retried.
func (ch *Channel) Synchronize(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = syncMaxElapsed
	if _, ok := ctx.Deadline(); ok {
		bo.MaxElapsedTime = 0
	}
	attempt := syncAttemptTimeout
	if t := ch.c.opts.timeout; t > 0 && t < attempt {
		attempt = t
	}
	n := 0
	err := backoff.RetryNotify(func() error {
		n++
		actx, cancel := context.WithTimeout(ctx, attempt)
		defer cancel()
		err := ch.Heartbeat(actx)
		switch errcode.KindOf(err) {
		case errcode.KindNone:
			return nil
		case errcode.Timeout, errcode.TransportUnavailable:
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx), func(err error, d time.Duration) {
		glog.V(1).Infof("%s: not in sync (%s), retrying in %s", ch, err, d)
	})
	if err != nil {
		return errors.Annotatef(err, "%s: no heartbeat after %d attempts", ch, n)
	}
	glog.V(1).Infof("%s: in sync after %d attempts", ch, n)
	return nil
}
