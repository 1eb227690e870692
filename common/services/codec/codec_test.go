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

package codec

import (
	"bytes"
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"golang.org/x/net/websocket"

	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

func testFrame(t *testing.T, ch uint8, token uint32) *frame.Frame {
	t.Helper()
	p, err := frame.Encode(frame.SvcHeartbeat, token, nil)
	if err != nil {
		t.Fatalf("Encode: %s", err)
	}
	return &frame.Frame{Channel: ch, Packet: *p}
}

func TestPipe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, b := Pipe("test", 2)

	if got, want := a.MaxNumFrames(), 2; got != want {
		t.Errorf("MaxNumFrames: got %d, want %d", got, want)
	}
	for i := uint32(1); i <= 2; i++ {
		if err := a.Send(ctx, testFrame(t, 3, i)); err != nil {
			t.Fatalf("Send: %s", err)
		}
	}
	if got, want := a.MaxNumFrames(), 0; got != want {
		t.Errorf("MaxNumFrames when full: got %d, want %d", got, want)
	}
	for i := uint32(1); i <= 2; i++ {
		f, err := b.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv: %s", err)
		}
		if f.Channel != 3 || f.Packet.Header().Token != i {
			t.Errorf("got %s, want channel 3 token %d", f, i)
		}
	}
}

func TestPipeCloseDrains(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, b := Pipe("test", 4)
	if err := a.Send(ctx, testFrame(t, 1, 7)); err != nil {
		t.Fatalf("Send: %s", err)
	}
	a.Close()
	f, err := b.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv after peer close: %s", err)
	}
	if got, want := f.Packet.Header().Token, uint32(7); got != want {
		t.Errorf("token: got %d, want %d", got, want)
	}
	if _, err := b.Recv(ctx); !IsEOF(err) {
		t.Errorf("Recv on drained pipe: got %v, want EOF", err)
	}
	if err := b.Send(ctx, testFrame(t, 1, 8)); !IsEOF(err) {
		t.Errorf("Send to closed peer: got %v, want EOF", err)
	}
	select {
	case <-b.CloseNotify():
	default:
		t.Errorf("b is not closed")
	}
}

func TestWireFrame(t *testing.T) {
	f := testFrame(t, 9, 0x01020304)
	b := marshalFrame(f)
	if len(b) != wireFrameSize {
		t.Fatalf("len: got %d, want %d", len(b), wireFrameSize)
	}
	f2, err := unmarshalFrame(b)
	if err != nil {
		t.Fatalf("unmarshalFrame: %s", err)
	}
	if *f2 != *f {
		t.Errorf("got %s, want %s", f2, f)
	}
	if _, err := unmarshalFrame(b[1:]); err == nil {
		t.Errorf("short frame accepted")
	}
}

func TestStreamResync(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	local, remote := net.Pipe()
	var mu sync.Mutex
	var junk []byte
	c := newStreamConn(&tcpCodec{conn: local}, func(j []byte) {
		mu.Lock()
		junk = append(junk, j...)
		mu.Unlock()
	})
	defer c.Close()

	good := encodeStreamFrame(testFrame(t, 2, 42))
	bad := encodeStreamFrame(testFrame(t, 2, 41))
	bad[len(bad)-1] ^= 0xff
	var stream []byte
	stream = append(stream, []byte("boot log\r\n")...)
	stream = append(stream, bad...)
	stream = append(stream, good...)
	go remote.Write(stream)

	f, err := c.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %s", err)
	}
	if got, want := f.Packet.Header().Token, uint32(42); got != want {
		t.Errorf("token: got %d, want %d", got, want)
	}
	mu.Lock()
	defer mu.Unlock()
	if !bytes.HasPrefix(junk, []byte("boot log\r\n")) {
		t.Errorf("junk: got %q", junk)
	}
	if got, want := len(junk), len("boot log\r\n")+len(bad); got != want {
		t.Errorf("junk length: got %d, want %d", got, want)
	}
}

func TestStreamSendRecv(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l, r := net.Pipe()
	a, b := TCP(l), TCP(r)
	defer a.Close()
	defer b.Close()

	go a.Send(ctx, testFrame(t, 5, 99))
	f, err := b.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %s", err)
	}
	if f.Channel != 5 || f.Packet.Header().Token != 99 {
		t.Errorf("got %s", f)
	}
	a.Close()
	if _, err := b.Recv(ctx); !IsEOF(err) {
		t.Errorf("Recv after close: got %v, want EOF", err)
	}
}

func TestConnectUnsupported(t *testing.T) {
	_, err := Connect(context.Background(), "gopher://x/y", nil)
	if !errors.IsNotSupported(err) {
		t.Errorf("got %v, want NotSupported", err)
	}
}

func TestConnectTCP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %s", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		peer := TCP(conn)
		defer peer.Close()
		f, err := peer.Recv(ctx)
		if err != nil {
			return
		}
		peer.Send(ctx, f)
	}()

	c, err := Connect(ctx, "tcp://"+ln.Addr().String(), nil)
	if err != nil {
		t.Fatalf("Connect: %s", err)
	}
	defer c.Close()
	if err := c.Send(ctx, testFrame(t, 1, 5)); err != nil {
		t.Fatalf("Send: %s", err)
	}
	f, err := c.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %s", err)
	}
	if got, want := f.Packet.Header().Token, uint32(5); got != want {
		t.Errorf("echoed token: got %d, want %d", got, want)
	}
}

func TestConnectWebSocket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		peer := WebSocket(conn)
		defer peer.Close()
		for {
			f, err := peer.Recv(ctx)
			if err != nil {
				return
			}
			if err := peer.Send(ctx, f); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := Connect(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Connect: %s", err)
	}
	defer c.Close()
	for token := uint32(1); token <= 3; token++ {
		if err := c.Send(ctx, testFrame(t, 2, token)); err != nil {
			t.Fatalf("Send: %s", err)
		}
		f, err := c.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv: %s", err)
		}
		if got, want := f.Packet.Header().Token, token; got != want {
			t.Errorf("echoed token: got %d, want %d", got, want)
		}
		if got, want := f.Channel, uint8(2); got != want {
			t.Errorf("echoed channel: got %d, want %d", got, want)
		}
	}
	if !c.Info().IsConnected {
		t.Errorf("Info: not connected")
	}
}

func TestParseMQTTEndpoint(t *testing.T) {
	co := &MQTTCodecOptions{User: "flag-user", Password: "flag-pass"}
	for _, tc := range []struct {
		addr                     string
		broker, prefix, user, pw string
		tls                      bool
	}{
		{"mqtt://broker.local/boards/e7", "tcp://broker.local:1883", "boards/e7", "flag-user", "flag-pass", false},
		{"mqtts://broker.local/e7", "tcps://broker.local:8883", "e7", "flag-user", "flag-pass", true},
		{"mqtt://u:p@broker.local:1999/e7", "tcp://broker.local:1999", "e7", "u", "p", false},
		{"mqtt://u@broker.local/e7", "tcp://broker.local:1883", "e7", "u", "flag-pass", false},
	} {
		ep, err := parseMQTTEndpoint(tc.addr, co)
		if err != nil {
			t.Errorf("%s: %s", tc.addr, err)
			continue
		}
		got := [...]string{ep.broker, ep.prefix, ep.user, ep.pass}
		want := [...]string{tc.broker, tc.prefix, tc.user, tc.pw}
		if got != want {
			t.Errorf("%s: got %q, want %q", tc.addr, got, want)
		}
		if ep.tls != tc.tls {
			t.Errorf("%s: tls: got %v, want %v", tc.addr, ep.tls, tc.tls)
		}
	}
	if _, err := parseMQTTEndpoint("mqtt://broker.local", co); !isPermanent(err) {
		t.Errorf("missing prefix: got %v, want a permanent error", err)
	}
}

func TestLockPath(t *testing.T) {
	for _, tc := range []struct{ dir, port, want string }{
		{"/run/lock", "/dev/ttyUSB0", "/run/lock/setool-ttyUSB0.lock"},
		{"/run/lock", "/dev/serial/by-id/usb-1", "/run/lock/setool-serial_by-id_usb-1.lock"},
		{"/tmp", "COM3", "/tmp/setool-COM3.lock"},
	} {
		if got := lockPath(tc.dir, tc.port); got != tc.want {
			t.Errorf("lockPath(%q, %q): got %q, want %q", tc.dir, tc.port, got, tc.want)
		}
	}
}

func TestRedial(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	peers := make(chan Codec, 4)
	rwc := Redial("pipe", func(ctx context.Context, addr string) (Codec, error) {
		a, b := Pipe(addr, 4)
		peers <- b
		return a, nil
	})
	defer rwc.Close()

	if err := rwc.Send(ctx, testFrame(t, 1, 1)); err != nil {
		t.Fatalf("Send: %s", err)
	}
	first := <-peers
	if _, err := first.Recv(ctx); err != nil {
		t.Fatalf("first peer Recv: %s", err)
	}
	first.Close()

	// Recv notices the drop, subsequent sends go over a new link.
	if _, err := rwc.Recv(ctx); !IsReconnecting(err) {
		t.Fatalf("Recv after drop: got %v, want reconnecting", err)
	}
	if err := rwc.Send(ctx, testFrame(t, 1, 2)); err != nil {
		t.Fatalf("Send after reconnect: %s", err)
	}
	second := <-peers
	f, err := second.Recv(ctx)
	if err != nil {
		t.Fatalf("second peer Recv: %s", err)
	}
	if got, want := f.Packet.Header().Token, uint32(2); got != want {
		t.Errorf("token: got %d, want %d", got, want)
	}
}

func TestRedialPermanent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rwc := Redial("nowhere", func(ctx context.Context, addr string) (Codec, error) {
		return nil, Permanent(errors.New("bad address"))
	})
	defer rwc.Close()
	if err := rwc.Send(ctx, testFrame(t, 1, 1)); err == nil {
		t.Errorf("Send succeeded over a permanently failed link")
	}
}
