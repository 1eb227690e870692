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
	"sync/atomic"

	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services/errcode"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

// Pending call states. A call leaves statePending exactly once.
const (
	statePending int32 = iota
	stateResolved
	stateAbandoned
	stateCancelled
)

// Call is an outstanding request.
type Call struct {
	ch     *Channel
	id     frame.ServiceID
	sub    errcode.Subsystem
	token  uint32
	result interface{}
	cb     func(error)

	state atomic.Int32
	err   error
	done  chan struct{}
}

func newCall(ch *Channel, id frame.ServiceID, result interface{}, cb func(error)) *Call {
	return &Call{
		ch:     ch,
		id:     id,
		sub:    subsystemOf(id),
		result: result,
		cb:     cb,
		done:   make(chan struct{}),
	}
}

// claim moves the call out of statePending. Only the winner may complete it.
func (call *Call) claim(to int32) bool {
	return call.state.CompareAndSwap(statePending, to)
}

func (call *Call) complete(err error) {
	call.err = err
	close(call.done)
	if call.cb != nil {
		call.cb(err)
	}
}

func (call *Call) Service() frame.ServiceID { return call.id }
func (call *Call) Token() uint32            { return call.token }
func (call *Call) Channel() *Channel        { return call.ch }

// Done is closed once the call is finished.
func (call *Call) Done() <-chan struct{} {
	return call.done
}

// Err returns the outcome of a finished call, nil while it is in flight.
func (call *Call) Err() error {
	select {
	case <-call.done:
		return call.err
	default:
		return nil
	}
}

// Wait blocks until the call finishes or ctx is done. Giving up the wait does
// not cancel the call.
func (call *Call) Wait(ctx context.Context) error {
	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}

// Cancel abandons the call. Its callback runs with a Cancelled error on the
// calling goroutine. Returns false if the call had already finished.
func (call *Call) Cancel() bool {
	if !call.claim(stateCancelled) {
		return false
	}
	call.ch.remove(call)
	call.ch.c.stats.cancelled.Add(1)
	call.complete(errcode.New(errcode.Cancelled, call.id.String(), "cancelled by caller"))
	return true
}
