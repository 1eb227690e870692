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

package sim

import (
	"context"
	"testing"
	"time"

	"github.com/pa-cotte/hal-alif-sub005/common/services/codec"
	"github.com/pa-cotte/hal-alif-sub005/common/services/errcode"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

func roundTrip(t *testing.T, mb codec.Codec, ch uint8, p *frame.Packet) frame.Header {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := mb.Send(ctx, &frame.Frame{Channel: ch, Packet: *p}); err != nil {
		t.Fatalf("Send: %s", err)
	}
	f, err := mb.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %s", err)
	}
	if f.Channel != ch {
		t.Errorf("response on channel %d, want %d", f.Channel, ch)
	}
	return f.Packet.Header()
}

func encode(t *testing.T, id frame.ServiceID, token uint32, params interface{}) *frame.Packet {
	t.Helper()
	p, err := frame.Encode(id, token, params)
	if err != nil {
		t.Fatalf("Encode: %s", err)
	}
	return p
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mb := New().Loopback(ctx, "serve", 4)
	defer mb.Close()

	h := roundTrip(t, mb, 2, encode(t, frame.SvcHeartbeat, 11, nil))
	if !h.IsResponse() || h.Token != 11 || h.Ack != frame.AckSuccess || h.ErrorCode != 0 {
		t.Errorf("heartbeat: unexpected %s", h)
	}

	h = roundTrip(t, mb, 2, encode(t, frame.ServiceID(999), 12, nil))
	if h.Ack != frame.AckUnknownCommand {
		t.Errorf("unknown service: got ack %s", h.Ack)
	}

	// Too short for the parameter block.
	h = roundTrip(t, mb, 2, encode(t, frame.SvcPinmux, 13, nil))
	if h.Ack != frame.AckPacketError {
		t.Errorf("short params: got ack %s", h.Ack)
	}

	h = roundTrip(t, mb, 2, encode(t, frame.SvcPinmux, 14, &frame.PinmuxParams{Port: 200}))
	if h.Ack != frame.AckSuccess || h.ErrorCode != errcode.PinmuxInvalidParameter {
		t.Errorf("bad pinmux: got %s", h)
	}
}

func TestDropAndServeAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dev := New(WithIntercept(func(ch uint8, h frame.Header) Verdict {
		if h.Token == 1 {
			return Drop
		}
		return Respond
	}))
	a, aDev := codec.Pipe("a", 4)
	b, bDev := codec.Pipe("b", 4)
	done := make(chan error, 1)
	go func() { done <- dev.ServeAll(ctx, aDev, bDev) }()

	sctx, scancel := context.WithTimeout(ctx, 2*time.Second)
	defer scancel()
	if err := a.Send(sctx, &frame.Frame{Packet: *encode(t, frame.SvcHeartbeat, 1, nil)}); err != nil {
		t.Fatalf("Send: %s", err)
	}
	h := roundTrip(t, b, 0, encode(t, frame.SvcGetLCS, 2, nil))
	if h.Token != 2 || h.Ack != frame.AckSuccess {
		t.Errorf("mailbox b: unexpected %s", h)
	}
	h = roundTrip(t, a, 0, encode(t, frame.SvcHeartbeat, 3, nil))
	if h.Token != 3 {
		t.Errorf("mailbox a: got token %d, want 3 (token 1 must be dropped)", h.Token)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeAll: %s", err)
		}
	case <-time.After(2 * time.Second):
		t.Errorf("ServeAll did not return")
	}
}

func TestWriteOTPKeyOnce(t *testing.T) {
	d := New()
	params := frame.WriteOTPKeyParams{Offset: frame.OTPCustomerKeyStart, Length: 4, Key: [32]byte{0xEF, 0xBE, 0xAD, 0xDE}}
	p := encode(t, frame.SvcWriteOTPKey, 1, &params)
	_, payload, _ := frame.Decode(p)

	if r := writeOTPKey(d, payload); r.code != 0 {
		t.Fatalf("first write: code %#x", r.code)
	}
	if got := d.OTP(frame.OTPCustomerKeyStart); got != 0xDEADBEEF {
		t.Errorf("OTP: got %#x", got)
	}
	if r := writeOTPKey(d, payload); r.code != errcode.OTPKeyWriteFailed {
		t.Errorf("second write: code %#x, want %#x", r.code, errcode.OTPKeyWriteFailed)
	}
}
