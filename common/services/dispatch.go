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

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services/errcode"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

// Call issues a synchronous request and waits for the response, which is
// decoded into result (a pointer to a fixed-size block, or nil).
//
// Only one synchronous call may be outstanding on a channel; a concurrent one
// fails immediately with SerializationViolation and sends nothing. If ctx has
// no deadline the client's default timeout applies. On timeout the call is
// invalidated and a late response is dropped.
func (ch *Channel) Call(ctx context.Context, id frame.ServiceID, params, result interface{}) error {
	if !ch.syncMu.TryLock() {
		ch.c.stats.violations.Add(1)
		return errcode.New(errcode.SerializationViolation, id.String(), "%s has a synchronous call outstanding", ch)
	}
	defer ch.syncMu.Unlock()

	if _, ok := ctx.Deadline(); !ok && ch.c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ch.c.opts.timeout)
		defer cancel()
	}

	call := newCall(ch, id, result, nil)
	if err := ch.send(ctx, call, params); err != nil {
		return errors.Trace(err)
	}

	select {
	case <-call.done:
		return errors.Trace(call.err)
	case <-ctx.Done():
	}

	kind, state := errcode.Timeout, stateAbandoned
	if ctx.Err() == context.Canceled {
		kind, state = errcode.Cancelled, stateCancelled
	}
	if !call.claim(state) {
		// The response won the race; it is being delivered.
		<-call.done
		return errors.Trace(call.err)
	}
	ch.remove(call)
	if kind == errcode.Timeout {
		ch.c.stats.timeouts.Add(1)
		glog.Warningf("%s %s tok=%d: no response", ch, id, call.token)
	} else {
		ch.c.stats.cancelled.Add(1)
	}
	err := errcode.New(kind, id.String(), "%s", ctx.Err())
	call.complete(err)
	return errors.Trace(err)
}

// Go issues an asynchronous request. It returns once the request has been
// handed to the mailbox; cb is invoked with the outcome on the mailbox reader
// goroutine after result has been filled in. If Go returns an error the
// request was not sent and cb is never invoked.
//
// cb must not block or make synchronous calls: no other response on the
// mailbox is read until it returns. Issue further requests with Go, or hand
// the work to another goroutine.
//
// Asynchronous calls have no timeout; use Call.Cancel or CancelPending.
func (ch *Channel) Go(id frame.ServiceID, params, result interface{}, cb func(error)) (*Call, error) {
	call := newCall(ch, id, result, cb)
	ctx := context.Background()
	if t := ch.c.opts.timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	if err := ch.send(ctx, call, params); err != nil {
		return nil, errors.Trace(err)
	}
	return call, nil
}

// send makes call pending and transmits it. On error the call is not pending.
func (ch *Channel) send(ctx context.Context, call *Call, params interface{}) error {
	op := call.id.String()
	mb := ch.mb
	if mb.closed.Load() {
		return errcode.New(errcode.TransportUnavailable, op, "%s is closed", mb)
	}
	if mb.codec.MaxNumFrames() == 0 {
		return errcode.New(errcode.TransportUnavailable, op, "%s is busy", mb)
	}
	// The call is pending before it is sent so that a fast response finds it.
	if err := ch.insert(call); err != nil {
		return errors.Trace(err)
	}
	p, err := frame.Encode(call.id, call.token, params)
	if err != nil {
		ch.abort(call)
		return errcode.New(errcode.ProtocolMismatch, op, "%s", err)
	}
	f := &frame.Frame{Channel: ch.num, Packet: *p}
	glog.V(3).Infof("%s -> %s", ch, f)
	if err := mb.codec.Send(ctx, f); err != nil {
		ch.abort(call)
		return errcode.New(errcode.TransportUnavailable, op, "send: %s", err)
	}
	ch.c.stats.sent.Add(1)
	return nil
}

// abort withdraws a call that never made it out. Its callback is not run.
func (ch *Channel) abort(call *Call) {
	if call.claim(stateCancelled) {
		ch.remove(call)
		close(call.done)
	}
}
