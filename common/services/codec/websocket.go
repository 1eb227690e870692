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
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"golang.org/x/net/websocket"

	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

// WSProtocol is the websocket subprotocol spoken by mailbox bridges.
const WSProtocol = "services.mailbox"

// frameCodec carries one services frame per binary websocket message.
var frameCodec = websocket.Codec{
	Marshal: func(v interface{}) ([]byte, byte, error) {
		f, ok := v.(*frame.Frame)
		if !ok {
			return nil, websocket.BinaryFrame, errors.Errorf("cannot send %T", v)
		}
		return marshalFrame(f), websocket.BinaryFrame, nil
	},
	Unmarshal: func(data []byte, payloadType byte, v interface{}) error {
		if payloadType != websocket.BinaryFrame {
			return errors.Errorf("text message on a mailbox socket")
		}
		fp, ok := v.(**frame.Frame)
		if !ok {
			return errors.Errorf("cannot receive into %T", v)
		}
		f, err := unmarshalFrame(data)
		if err != nil {
			return errors.Trace(err)
		}
		*fp = f
		return nil
	},
}

type wsCodec struct {
	conn *websocket.Conn

	sendMu    sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// WebSocket returns a mailbox on an established websocket.
func WebSocket(conn *websocket.Conn) Codec {
	return &wsCodec{conn: conn, done: make(chan struct{})}
}

// DialWebSocket connects to a websocket mailbox bridge. tlsConfig is used
// for wss:// addresses and may be nil.
func DialWebSocket(addr, origin string, tlsConfig *tls.Config) (Codec, error) {
	cfg, err := websocket.NewConfig(addr, origin)
	if err != nil {
		return nil, Permanent(errors.Annotatef(err, "bad websocket address %q", addr))
	}
	cfg.Protocol = []string{WSProtocol}
	cfg.TlsConfig = tlsConfig
	conn, err := websocket.DialConfig(cfg)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", addr)
	}
	return WebSocket(conn), nil
}

func (c *wsCodec) String() string {
	return fmt.Sprintf("[ws %s]", c.conn.RemoteAddr())
}

func (c *wsCodec) Recv(ctx context.Context) (*frame.Frame, error) {
	var f *frame.Frame
	if err := frameCodec.Receive(c.conn, &f); err != nil {
		glog.V(2).Infof("%s: receive: %s", c, err)
		c.Close()
		return nil, errors.Trace(err)
	}
	return f, nil
}

func (c *wsCodec) Send(ctx context.Context, f *frame.Frame) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return errors.Trace(frameCodec.Send(c.conn, f))
}

func (c *wsCodec) Close() {
	c.closeOnce.Do(func() {
		glog.V(1).Infof("%s: closing", c)
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsCodec) CloseNotify() <-chan struct{} { return c.done }

func (c *wsCodec) MaxNumFrames() int { return -1 }

func (c *wsCodec) Info() ConnectionInfo {
	connected := true
	select {
	case <-c.done:
		connected = false
	default:
	}
	return ConnectionInfo{
		IsConnected: connected,
		TLS:         c.conn.Config().TlsConfig != nil,
		RemoteAddr:  c.conn.RemoteAddr().String(),
	}
}

func (c *wsCodec) SetOptions(opts *Options) error {
	return errors.NotImplementedf("SetOptions")
}
