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
	"bytes"
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services/codec"
	"github.com/pa-cotte/hal-alif-sub005/common/services/errcode"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

// rawRemote is the far end of a mailbox driven by hand.
type rawRemote struct {
	t  *testing.T
	mb codec.Codec
}

func newRawClient(t *testing.T, depth int, opts ...Option) (*Client, *Channel, *rawRemote, chan Anomaly) {
	t.Helper()
	local, remote := codec.Pipe(t.Name(), depth)
	anomalies := make(chan Anomaly, 16)
	opts = append([]Option{
		Mailbox(1, local),
		WithTimeout(2 * time.Second),
		OnAnomaly(func(a Anomaly) { anomalies <- a }),
	}, opts...)
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	t.Cleanup(func() { c.Close() })
	ch, err := c.Register(1, 0)
	if err != nil {
		t.Fatalf("Register: %s", err)
	}
	return c, ch, &rawRemote{t: t, mb: remote}, anomalies
}

func (r *rawRemote) recv() (uint8, frame.Header, []byte) {
	r.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	f, err := r.mb.Recv(ctx)
	if err != nil {
		r.t.Fatalf("remote Recv: %s", err)
	}
	h, payload, err := frame.Decode(&f.Packet)
	if err != nil {
		r.t.Fatalf("remote Decode: %s", err)
	}
	return f.Channel, h, payload
}

func (r *rawRemote) respond(ch uint8, req frame.Header, ack frame.Ack, code uint32, result interface{}) {
	r.t.Helper()
	p, err := frame.NewResponse(req, ack, code, result)
	if err != nil {
		r.t.Fatalf("NewResponse: %s", err)
	}
	if err := r.mb.Send(context.Background(), &frame.Frame{Channel: ch, Packet: *p}); err != nil {
		r.t.Fatalf("remote Send: %s", err)
	}
}

func (r *rawRemote) expectNothing() {
	r.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if f, err := r.mb.Recv(ctx); err == nil {
		r.t.Errorf("unexpected packet %s", f)
	}
}

func waitAnomaly(t *testing.T, anomalies chan Anomaly) Anomaly {
	t.Helper()
	select {
	case a := <-anomalies:
		return a
	case <-time.After(2 * time.Second):
		t.Fatalf("no anomaly reported")
	}
	return Anomaly{}
}

func TestRegisterUnregisterRoundTrip(t *testing.T) {
	local, _ := codec.Pipe("rt", 4)
	c, err := New(Mailbox(1, local))
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	defer c.Close()

	for num := uint8(0); num < 4; num++ {
		before := c.Channels()
		ch, err := c.Register(1, num)
		if err != nil {
			t.Fatalf("Register(1, %d): %s", num, err)
		}
		if got, want := c.Channels(), before+1; got != want {
			t.Errorf("Channels after Register: got %d, want %d", got, want)
		}
		if err := c.Unregister(ch); err != nil {
			t.Fatalf("Unregister: %s", err)
		}
		if got := c.Channels(); got != before {
			t.Errorf("Channels after Unregister: got %d, want %d", got, before)
		}
	}
	// The pair is free again.
	ch, err := c.Register(1, 0)
	if err != nil {
		t.Fatalf("re-Register: %s", err)
	}
	if err := c.Unregister(ch); err != nil {
		t.Fatalf("Unregister: %s", err)
	}
	if err := c.Unregister(ch); !errors.IsNotFound(err) {
		t.Errorf("double Unregister: got %v, want NotFound", err)
	}
}

func TestRegisterErrors(t *testing.T) {
	local, _ := codec.Pipe("reg", 4)
	c, err := New(Mailbox(1, local))
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	defer c.Close()
	if _, err := c.Register(1, 3); err != nil {
		t.Fatalf("Register: %s", err)
	}
	if _, err := c.Register(1, 3); !errors.IsAlreadyExists(err) {
		t.Errorf("duplicate Register: got %v, want AlreadyExists", err)
	}
	if _, err := c.Register(2, 3); !errcode.Is(err, errcode.TransportUnavailable) {
		t.Errorf("Register on unattached mailbox: got %v, want TransportUnavailable", err)
	}
	other, _ := codec.Pipe("reg2", 4)
	if err := c.AttachMailbox(1, other); !errors.IsAlreadyExists(err) {
		t.Errorf("duplicate AttachMailbox: got %v, want AlreadyExists", err)
	}
	if err := c.AttachMailbox(2, other); err != nil {
		t.Fatalf("AttachMailbox: %s", err)
	}
	if _, err := c.Register(2, 3); err != nil {
		t.Errorf("same channel number on another mailbox: %s", err)
	}
}

func TestHeartbeatSuccess(t *testing.T) {
	_, ch, remote, _ := newRawClient(t, 4)
	done := make(chan error, 1)
	go func() { done <- ch.Heartbeat(context.Background()) }()

	num, h, _ := remote.recv()
	if num != 0 || h.ServiceID != frame.SvcHeartbeat || h.IsResponse() || h.Token == 0 {
		t.Fatalf("unexpected request ch=%d %s", num, h)
	}
	remote.respond(num, h, frame.AckSuccess, 0, nil)
	if err := <-done; err != nil {
		t.Errorf("Heartbeat: %s", err)
	}
	if got := ch.Pending(); got != 0 {
		t.Errorf("Pending after response: %d", got)
	}
}

func TestHeartbeatTimeout(t *testing.T) {
	c, ch, remote, anomalies := newRawClient(t, 4, WithTimeout(50*time.Millisecond))
	start := time.Now()
	err := ch.Heartbeat(context.Background())
	if !errcode.Is(err, errcode.Timeout) {
		t.Fatalf("got %v, want Timeout", err)
	}
	if d := time.Since(start); d < 50*time.Millisecond {
		t.Errorf("timed out after %s, before the bound", d)
	}
	if got := ch.Pending(); got != 0 {
		t.Errorf("Pending after timeout: %d", got)
	}

	// A late response resolves nothing.
	num, h, _ := remote.recv()
	remote.respond(num, h, frame.AckSuccess, 0, nil)
	if a := waitAnomaly(t, anomalies); a.Header.Token != h.Token {
		t.Errorf("anomaly for token %d, want %d", a.Header.Token, h.Token)
	}
	if got := c.Stats().Timeouts; got != 1 {
		t.Errorf("Timeouts: got %d, want 1", got)
	}

	// The channel stays usable.
	done := make(chan error, 1)
	go func() { done <- ch.Heartbeat(context.Background()) }()
	num, h2, _ := remote.recv()
	if h2.Token == h.Token {
		t.Errorf("token %d reused", h.Token)
	}
	remote.respond(num, h2, frame.AckSuccess, 0, nil)
	if err := <-done; err != nil {
		t.Errorf("Heartbeat after timeout: %s", err)
	}
}

func TestSyncCallCancelledByContext(t *testing.T) {
	_, ch, remote, _ := newRawClient(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ch.Heartbeat(ctx) }()
	remote.recv()
	cancel()
	if err := <-done; !errcode.Is(err, errcode.Cancelled) {
		t.Errorf("got %v, want Cancelled", err)
	}
}

func TestSerializationViolation(t *testing.T) {
	c, ch, remote, _ := newRawClient(t, 4)
	done := make(chan error, 1)
	go func() { done <- ch.Heartbeat(context.Background()) }()
	num, h, _ := remote.recv()

	err := ch.Heartbeat(context.Background())
	if !errcode.Is(err, errcode.SerializationViolation) {
		t.Fatalf("second sync call: got %v, want SerializationViolation", err)
	}
	remote.expectNothing()
	if got := ch.Pending(); got != 1 {
		t.Errorf("Pending: got %d, want 1", got)
	}

	remote.respond(num, h, frame.AckSuccess, 0, nil)
	if err := <-done; err != nil {
		t.Errorf("first call: %s", err)
	}
	if got := c.Stats().SerializationViolations; got != 1 {
		t.Errorf("SerializationViolations: got %d, want 1", got)
	}
}

type rndResult struct {
	data []byte
	err  error
}

func TestNoCrossTalk(t *testing.T) {
	_, ch, remote, _ := newRawClient(t, 4)
	r1 := make(chan rndResult, 1)
	r2 := make(chan rndResult, 1)
	c1, err := ch.GetRNDAsync(4, func(b []byte, err error) { r1 <- rndResult{b, err} })
	if err != nil {
		t.Fatalf("GetRNDAsync: %s", err)
	}
	c2, err := ch.GetRNDAsync(4, func(b []byte, err error) { r2 <- rndResult{b, err} })
	if err != nil {
		t.Fatalf("GetRNDAsync: %s", err)
	}
	if c1.Token() == c2.Token() {
		t.Fatalf("both calls have token %d", c1.Token())
	}
	_, h1, _ := remote.recv()
	num, h2, _ := remote.recv()

	// Answer out of order.
	remote.respond(num, h2, frame.AckSuccess, 0, &frame.GetRNDResult{Length: 4, Data: [32]byte{2, 2, 2, 2}})
	got2 := <-r2
	if got2.err != nil || !bytes.Equal(got2.data, []byte{2, 2, 2, 2}) {
		t.Errorf("second call: got % x, %v", got2.data, got2.err)
	}
	select {
	case r := <-r1:
		t.Fatalf("first call resolved by the second response: %+v", r)
	default:
	}
	if c1.Err() != nil {
		t.Errorf("first call finished early: %v", c1.Err())
	}

	remote.respond(num, h1, frame.AckSuccess, 0, &frame.GetRNDResult{Length: 4, Data: [32]byte{1, 1, 1, 1}})
	got1 := <-r1
	if got1.err != nil || !bytes.Equal(got1.data, []byte{1, 1, 1, 1}) {
		t.Errorf("first call: got % x, %v", got1.data, got1.err)
	}
}

func TestUnmatchedResponseDropped(t *testing.T) {
	c, ch, remote, anomalies := newRawClient(t, 4)
	call, err := ch.HeartbeatAsync(func(error) {})
	if err != nil {
		t.Fatalf("HeartbeatAsync: %s", err)
	}
	num, h, _ := remote.recv()

	stale := h
	stale.Token += 100
	remote.respond(num, stale, frame.AckSuccess, 0, nil)
	if a := waitAnomaly(t, anomalies); a.Reason != "no pending call" {
		t.Errorf("anomaly reason %q", a.Reason)
	}
	// Unknown channel.
	remote.respond(7, h, frame.AckSuccess, 0, nil)
	if a := waitAnomaly(t, anomalies); a.Channel != 7 {
		t.Errorf("anomaly on channel %d, want 7", a.Channel)
	}
	if got := ch.Pending(); got != 1 {
		t.Fatalf("Pending: got %d, want 1", got)
	}

	remote.respond(num, h, frame.AckSuccess, 0, nil)
	if err := call.Wait(context.Background()); err != nil {
		t.Errorf("call: %s", err)
	}
	if got := c.Stats().Dropped; got != 2 {
		t.Errorf("Dropped: got %d, want 2", got)
	}
}

func TestRequestsAreNotResponses(t *testing.T) {
	_, _, remote, anomalies := newRawClient(t, 4)
	p, err := frame.Encode(frame.SvcHeartbeat, 1, nil)
	if err != nil {
		t.Fatalf("Encode: %s", err)
	}
	if err := remote.mb.Send(context.Background(), &frame.Frame{Channel: 0, Packet: *p}); err != nil {
		t.Fatalf("Send: %s", err)
	}
	if a := waitAnomaly(t, anomalies); a.Reason != "not a response" {
		t.Errorf("anomaly reason %q", a.Reason)
	}
}

func TestAsyncOTPRead(t *testing.T) {
	_, ch, remote, _ := newRawClient(t, 4)
	type result struct {
		data []byte
		err  error
	}
	results := make(chan result, 1)
	_, err := ch.ReadOTPAsync(frame.OTPManufactureInfoSerialNumberLow, 1, func(data []byte, err error) {
		results <- result{data, err}
	})
	if err != nil {
		t.Fatalf("ReadOTPAsync: %s", err)
	}
	num, h, payload := remote.recv()
	var p frame.ReadOTPParams
	if err := frame.DecodeBlock(payload, &p); err != nil {
		t.Fatalf("DecodeBlock: %s", err)
	}
	if p.Offset != frame.OTPManufactureInfoSerialNumberLow || p.Words != 1 {
		t.Errorf("unexpected params %+v", p)
	}
	res := &frame.ReadOTPResult{Words: 1}
	copy(res.Data[:], []byte{0xAA, 0xBB, 0xCC, 0xDD})
	remote.respond(num, h, frame.AckSuccess, 0, res)

	r := <-results
	if r.err != nil {
		t.Fatalf("callback error: %s", r.err)
	}
	if want := []byte{0xAA, 0xBB, 0xCC, 0xDD}; !bytes.Equal(r.data, want) {
		t.Errorf("got % x, want % x", r.data, want)
	}
}

func TestResponseErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		svc  frame.ServiceID
		ack  frame.Ack
		code uint32
		want errcode.Kind
		sub  errcode.SubKind
	}{
		{"wrong service", frame.SvcGetLCS, frame.AckSuccess, 0, errcode.ProtocolMismatch, errcode.SubKindNone},
		{"unknown command", frame.SvcPinmux, frame.AckUnknownCommand, 0, errcode.ProtocolMismatch, errcode.SubKindNone},
		{"packet error", frame.SvcPinmux, frame.AckPacketError, 0, errcode.ProtocolMismatch, errcode.SubKindNone},
		{"remote timeout", frame.SvcPinmux, frame.AckTimeout, 0, errcode.Timeout, errcode.SubKindNone},
		{"nak", frame.SvcPinmux, frame.AckNotAcknowledge, 0, errcode.TransportUnavailable, errcode.SubKindNone},
		{"invalid parameter", frame.SvcPinmux, frame.AckSuccess, 0x200, errcode.RemoteFailure, errcode.SubKindInvalidParameter},
		{"unknown code", frame.SvcPinmux, frame.AckSuccess, 0x1234, errcode.RemoteFailure, errcode.SubKindUnknown},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, ch, remote, _ := newRawClient(t, 4)
			done := make(chan error, 1)
			go func() { done <- ch.Pinmux(context.Background(), 1, 2, 3) }()
			num, h, _ := remote.recv()
			h.ServiceID = tc.svc
			remote.respond(num, h, tc.ack, tc.code, nil)
			err := <-done
			if got := errcode.KindOf(err); got != tc.want {
				t.Errorf("kind: got %s, want %s (%v)", got, tc.want, err)
			}
			if got := errcode.SubKindOf(err); got != tc.sub {
				t.Errorf("subkind: got %q, want %q", got, tc.sub)
			}
		})
	}
}

func TestShortResult(t *testing.T) {
	_, ch, remote, _ := newRawClient(t, 4)
	done := make(chan error, 1)
	go func() {
		_, err := ch.GetTOCViaName(context.Background(), "A32_APP")
		done <- err
	}()
	num, h, _ := remote.recv()
	remote.respond(num, h, frame.AckSuccess, 0, &frame.TOCVersionResult{Version: 1})
	if err := <-done; !errcode.Is(err, errcode.ProtocolMismatch) {
		t.Errorf("got %v, want ProtocolMismatch", err)
	}
}

func TestSendFailureNeverPending(t *testing.T) {
	_, ch, remote, _ := newRawClient(t, 1)
	var called atomic.Int32
	cb := func(error) { called.Add(1) }
	if _, err := ch.HeartbeatAsync(cb); err != nil {
		t.Fatalf("first HeartbeatAsync: %s", err)
	}
	// The mailbox has room for one frame and nobody is reading.
	if _, err := ch.HeartbeatAsync(cb); !errcode.Is(err, errcode.TransportUnavailable) {
		t.Errorf("busy mailbox: got %v, want TransportUnavailable", err)
	}
	if err := ch.Heartbeat(context.Background()); !errcode.Is(err, errcode.TransportUnavailable) {
		t.Errorf("busy mailbox, sync: got %v, want TransportUnavailable", err)
	}
	if got := ch.Pending(); got != 1 {
		t.Errorf("Pending: got %d, want 1", got)
	}
	if got := called.Load(); got != 0 {
		t.Errorf("callback invoked %d times", got)
	}
	// Encoding failures are rejected before anything is sent.
	remote.recv()
	if err := ch.Call(context.Background(), frame.SvcHeartbeat, &struct{ Name string }{"x"}, nil); !errcode.Is(err, errcode.ProtocolMismatch) {
		t.Errorf("bad params: got %v, want ProtocolMismatch", err)
	}
	remote.expectNothing()
}

func TestUnregisterWithPendingCalls(t *testing.T) {
	c, ch, remote, _ := newRawClient(t, 4)
	errs := make(chan error, 1)
	if _, err := ch.HeartbeatAsync(func(err error) { errs <- err }); err != nil {
		t.Fatalf("HeartbeatAsync: %s", err)
	}
	remote.recv()
	if err := c.Unregister(ch); errors.Cause(err) != ErrPendingCalls {
		t.Fatalf("Unregister: got %v, want ErrPendingCalls", err)
	}
	if got, want := ch.CancelPending(), 1; got != want {
		t.Errorf("CancelPending: got %d, want %d", got, want)
	}
	if err := <-errs; !errcode.Is(err, errcode.Cancelled) {
		t.Errorf("callback: got %v, want Cancelled", err)
	}
	if err := c.Unregister(ch); err != nil {
		t.Fatalf("Unregister: %s", err)
	}
	if err := ch.Heartbeat(context.Background()); !errcode.Is(err, errcode.TransportUnavailable) {
		t.Errorf("call on unregistered channel: got %v, want TransportUnavailable", err)
	}
}

func TestCallCancel(t *testing.T) {
	_, ch, remote, anomalies := newRawClient(t, 4)
	errs := make(chan error, 2)
	call, err := ch.HeartbeatAsync(func(err error) { errs <- err })
	if err != nil {
		t.Fatalf("HeartbeatAsync: %s", err)
	}
	num, h, _ := remote.recv()
	if !call.Cancel() {
		t.Fatalf("Cancel returned false")
	}
	if call.Cancel() {
		t.Errorf("second Cancel returned true")
	}
	if err := <-errs; !errcode.Is(err, errcode.Cancelled) {
		t.Errorf("callback: got %v, want Cancelled", err)
	}
	remote.respond(num, h, frame.AckSuccess, 0, nil)
	waitAnomaly(t, anomalies)
	select {
	case err := <-errs:
		t.Errorf("callback invoked twice, second with %v", err)
	default:
	}
}

func TestMailboxClosedFailsPending(t *testing.T) {
	c, ch, remote, _ := newRawClient(t, 4)
	errs := make(chan error, 1)
	if _, err := ch.HeartbeatAsync(func(err error) { errs <- err }); err != nil {
		t.Fatalf("HeartbeatAsync: %s", err)
	}
	remote.recv()
	remote.mb.Close()
	if err := <-errs; !errcode.Is(err, errcode.TransportUnavailable) {
		t.Errorf("callback: got %v, want TransportUnavailable", err)
	}
	if err := ch.Heartbeat(context.Background()); !errcode.Is(err, errcode.TransportUnavailable) {
		t.Errorf("call on closed mailbox: got %v, want TransportUnavailable", err)
	}
	if _, err := c.Register(1, 5); !errcode.Is(err, errcode.TransportUnavailable) {
		t.Errorf("Register on closed mailbox: got %v, want TransportUnavailable", err)
	}
}

func TestReattachAfterClose(t *testing.T) {
	c, ch, remote, _ := newRawClient(t, 4)
	errs := make(chan error, 1)
	if _, err := ch.HeartbeatAsync(func(err error) { errs <- err }); err != nil {
		t.Fatalf("HeartbeatAsync: %s", err)
	}
	remote.recv()
	remote.mb.Close()
	if err := <-errs; !errcode.Is(err, errcode.TransportUnavailable) {
		t.Fatalf("callback: got %v, want TransportUnavailable", err)
	}

	local2, remote2 := codec.Pipe("reattach", 4)
	if err := c.AttachMailbox(1, local2); err != nil {
		t.Fatalf("AttachMailbox over a closed mailbox: %s", err)
	}
	spare, _ := codec.Pipe("spare", 1)
	defer spare.Close()
	if err := c.AttachMailbox(1, spare); !errors.IsAlreadyExists(err) {
		t.Errorf("AttachMailbox over a live mailbox: got %v, want AlreadyExists", err)
	}

	if err := ch.Heartbeat(context.Background()); !errcode.Is(err, errcode.TransportUnavailable) {
		t.Errorf("channel of the old transport: got %v, want TransportUnavailable", err)
	}
	ch2, err := c.Register(1, 0)
	if err != nil {
		t.Fatalf("Register after reattach: %s", err)
	}
	done := make(chan error, 1)
	go func() { done <- ch2.Heartbeat(context.Background()) }()
	r2 := &rawRemote{t: t, mb: remote2}
	num, h, _ := r2.recv()
	r2.respond(num, h, frame.AckSuccess, 0, nil)
	if err := <-done; err != nil {
		t.Errorf("Heartbeat over the new transport: %s", err)
	}
}

func TestCloseFromCallback(t *testing.T) {
	c, ch, remote, _ := newRawClient(t, 4)
	type closeResult struct {
		err     error
		elapsed time.Duration
	}
	closed := make(chan closeResult, 1)
	if _, err := ch.HeartbeatAsync(func(error) {
		start := time.Now()
		err := c.Close()
		closed <- closeResult{err, time.Since(start)}
	}); err != nil {
		t.Fatalf("HeartbeatAsync: %s", err)
	}
	num, h, _ := remote.recv()
	remote.respond(num, h, frame.AckSuccess, 0, nil)

	select {
	case r := <-closed:
		if r.err != nil {
			t.Errorf("Close: %s", r.err)
		}
		if r.elapsed >= readerStopTimeout/2 {
			t.Errorf("Close from the callback took %s", r.elapsed)
		}
	case <-time.After(readerStopTimeout + time.Second):
		t.Fatalf("Close from the callback did not return")
	}
}

func TestCloseCancelsPending(t *testing.T) {
	c, ch, remote, _ := newRawClient(t, 4)
	errs := make(chan error, 1)
	if _, err := ch.HeartbeatAsync(func(err error) { errs <- err }); err != nil {
		t.Fatalf("HeartbeatAsync: %s", err)
	}
	remote.recv()
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %s", err)
	}
	if err := <-errs; !errcode.Is(err, errcode.Cancelled) {
		t.Errorf("callback: got %v, want Cancelled", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %s", err)
	}
	if _, err := c.Register(1, 1); !errcode.Is(err, errcode.TransportUnavailable) {
		t.Errorf("Register after Close: got %v, want TransportUnavailable", err)
	}
}

func TestTokens(t *testing.T) {
	local, _ := codec.Pipe("tok", 4)
	c, err := New(Mailbox(1, local))
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	defer c.Close()
	ch, err := c.Register(1, 0)
	if err != nil {
		t.Fatalf("Register: %s", err)
	}

	ch.lastToken = math.MaxUint32 - 1
	var calls []*Call
	for i := 0; i < 3; i++ {
		call := newCall(ch, frame.SvcHeartbeat, nil, nil)
		if err := ch.insert(call); err != nil {
			t.Fatalf("insert: %s", err)
		}
		calls = append(calls, call)
	}
	want := []uint32{math.MaxUint32, 1, 2}
	for i, call := range calls {
		if call.token != want[i] {
			t.Errorf("token %d: got %d, want %d", i, call.token, want[i])
		}
	}

	// Wrap around again: 1 and 2 are still pending and must be skipped.
	ch.lastToken = math.MaxUint32
	call := newCall(ch, frame.SvcHeartbeat, nil, nil)
	if err := ch.insert(call); err != nil {
		t.Fatalf("insert: %s", err)
	}
	if got, want := call.token, uint32(3); got != want {
		t.Errorf("token after wrap: got %d, want %d", got, want)
	}
}

func TestSubsystemOf(t *testing.T) {
	for id, want := range map[frame.ServiceID]errcode.Subsystem{
		frame.SvcHeartbeat:   errcode.SubsystemService,
		frame.SvcPinmux:      errcode.SubsystemPinmux,
		frame.SvcPadControl:  errcode.SubsystemPinmux,
		frame.SvcReadOTP:     errcode.SubsystemService,
		frame.SvcWriteOTPKey: errcode.SubsystemOTPKeyWrite,
		frame.SvcGetRND:      errcode.SubsystemCrypto,
		frame.SvcCMAC:        errcode.SubsystemCrypto,
		frame.SvcBootCPU:     errcode.SubsystemService,
		frame.SvcPLLStop:     errcode.SubsystemService,
	} {
		if got := subsystemOf(id); got != want {
			t.Errorf("%s: got %s, want %s", id, got, want)
		}
	}
}
