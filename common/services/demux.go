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

	"github.com/pa-cotte/hal-alif-sub005/common/services/codec"
	"github.com/pa-cotte/hal-alif-sub005/common/services/errcode"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

func (c *Client) readLoop(ctx context.Context, mb *mailbox) {
	defer close(mb.done)
	for {
		mb.inReader.Store(false)
		f, err := mb.codec.Recv(ctx)
		// From here on, callbacks and hooks may run on this goroutine.
		mb.inReader.Store(true)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if codec.IsReconnecting(err) {
				// Whatever was in flight is lost with the link.
				glog.Warningf("%s: %s", mb, err)
				c.failMailbox(mb, errcode.TransportUnavailable, "link dropped")
				continue
			}
			if codec.IsEOF(err) {
				glog.Infof("%s closed", mb)
			} else {
				glog.Errorf("%s: receive error: %s", mb, err)
			}
			mb.closed.Store(true)
			c.failMailbox(mb, errcode.TransportUnavailable, "mailbox closed")
			return
		}
		c.stats.received.Add(1)
		glog.V(3).Infof("%s <- %s", mb, f)
		c.dispatchFrame(mb, f)
	}
}

func (c *Client) anomaly(mb *mailbox, num uint8, h frame.Header, reason string) {
	c.stats.dropped.Add(1)
	a := Anomaly{Mailbox: mb.id, Channel: num, Header: h, Reason: reason}
	glog.Warningf("dropped packet: %s", a)
	if c.opts.onAnomaly != nil {
		c.opts.onAnomaly(a)
	}
}

func (c *Client) dispatchFrame(mb *mailbox, f *frame.Frame) {
	h, payload, err := frame.Decode(&f.Packet)
	if err != nil {
		c.anomaly(mb, f.Channel, h, "malformed: "+err.Error())
		return
	}
	if !h.IsResponse() {
		c.anomaly(mb, f.Channel, h, "not a response")
		return
	}
	ch := c.lookup(mb, f.Channel)
	if ch == nil {
		c.anomaly(mb, f.Channel, h, "unknown channel")
		return
	}
	ch.deliver(h, payload)
}

// deliver resolves the call matching h.Token. The entry is removed from the
// pending table before the call is claimed, so a call resolves at most once.
func (ch *Channel) deliver(h frame.Header, payload []byte) {
	call := ch.take(h.Token)
	if call == nil {
		ch.c.anomaly(ch.mb, ch.num, h, "no pending call")
		return
	}
	if !call.claim(stateResolved) {
		ch.c.anomaly(ch.mb, ch.num, h, "call already finished")
		return
	}
	ch.c.stats.resolved.Add(1)
	call.complete(call.decode(h, payload))
}

func (call *Call) decode(h frame.Header, payload []byte) error {
	op := call.id.String()
	if h.ServiceID != call.id {
		glog.Errorf("%s tok=%d: response for %s", call.ch, h.Token, h.ServiceID)
		return errcode.New(errcode.ProtocolMismatch, op, "response is for %s", h.ServiceID)
	}
	switch h.Ack {
	case frame.AckSuccess:
	case frame.AckTimeout:
		return errcode.New(errcode.Timeout, op, "remote: %s", h.Ack)
	case frame.AckUnknownCommand, frame.AckPacketError:
		glog.Errorf("%s tok=%d: %s", call.ch, h.Token, h.Ack)
		return errcode.New(errcode.ProtocolMismatch, op, "remote: %s", h.Ack)
	default:
		return errcode.New(errcode.TransportUnavailable, op, "remote: %s", h.Ack)
	}
	if err := errcode.Translate(h.ErrorCode, call.sub); err != nil {
		if e, ok := err.(*errcode.Error); ok {
			e.Op = op
		}
		return err
	}
	if call.result == nil {
		return nil
	}
	if want := frame.Size(call.result); int(h.Length) < want {
		glog.Errorf("%s tok=%d: short result, %d < %d", call.ch, h.Token, h.Length, want)
		return errcode.New(errcode.ProtocolMismatch, op, "result is %d bytes, want %d", h.Length, want)
	}
	if err := frame.DecodeBlock(payload, call.result); err != nil {
		return errcode.New(errcode.ProtocolMismatch, op, "%s", err)
	}
	return nil
}

// failMailbox finishes every pending call on mb with an error of the given kind.
func (c *Client) failMailbox(mb *mailbox, kind errcode.Kind, msg string) {
	c.mu.Lock()
	chs := make([]*Channel, 0, len(mb.channels))
	for _, ch := range mb.channels {
		chs = append(chs, ch)
	}
	c.mu.Unlock()
	state := stateResolved
	if kind == errcode.Cancelled {
		state = stateCancelled
	}
	for _, ch := range chs {
		ch.finishAll(state, kind, msg)
	}
}

// subsystemOf selects the error-code range of a service.
func subsystemOf(id frame.ServiceID) errcode.Subsystem {
	switch {
	case id == frame.SvcPinmux || id == frame.SvcPadControl:
		return errcode.SubsystemPinmux
	case id == frame.SvcWriteOTPKey:
		return errcode.SubsystemOTPKeyWrite
	case id.Group() == frame.GroupCrypto:
		return errcode.SubsystemCrypto
	}
	return errcode.SubsystemService
}
