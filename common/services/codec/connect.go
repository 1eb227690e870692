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
	"net"
	"net/url"
	"strings"

	"github.com/juju/errors"
)

var (
	errClosed       = errors.New("mailbox closed")
	errReconnecting = errors.New("link dropped, reconnecting")
)

// IsReconnecting returns true if err means the link dropped and a reconnect
// is in progress. Frames in flight at that point are lost.
func IsReconnecting(err error) bool {
	return errors.Cause(err) == errReconnecting
}

// ConnectOptions controls how Connect establishes a mailbox.
type ConnectOptions struct {
	Codec     Options
	TLSConfig *tls.Config
	// Reconnect wraps network mailboxes in a reconnecting codec.
	Reconnect bool
	// Origin is sent with websocket handshakes.
	Origin string
}

// Connect establishes a mailbox given its address. Supported schemes:
//
//	serial:///dev/ttyUSB0, serial://COM3
//	tcp://host:port
//	ws://host/path, wss://host/path
//	mqtt://broker/prefix, mqtts://broker/prefix
//
// A bare device path is treated as a serial port.
func Connect(ctx context.Context, addr string, opts *ConnectOptions) (Codec, error) {
	if opts == nil {
		opts = &ConnectOptions{}
	}
	if !strings.Contains(addr, "://") {
		return Serial(ctx, addr, &opts.Codec.Serial)
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid mailbox address %q", addr)
	}
	var connect DialFunc
	switch u.Scheme {
	case "serial":
		port := u.Path
		if u.Host != "" {
			port = u.Host + u.Path
		}
		return Serial(ctx, port, &opts.Codec.Serial)
	case "tcp":
		connect = func(ctx context.Context, addr string) (Codec, error) {
			var d net.Dialer
			conn, err := d.DialContext(ctx, "tcp", u.Host)
			if err != nil {
				return nil, errors.Annotatef(err, "failed to connect to %s", u.Host)
			}
			return TCP(conn), nil
		}
	case "ws", "wss":
		origin := opts.Origin
		if origin == "" {
			origin = "http://localhost/"
		}
		connect = func(ctx context.Context, addr string) (Codec, error) {
			return DialWebSocket(addr, origin, opts.TLSConfig)
		}
	case "mqtt", "mqtts":
		connect = func(ctx context.Context, addr string) (Codec, error) {
			return MQTT(addr, opts.TLSConfig, &opts.Codec.MQTT)
		}
	default:
		return nil, errors.NotSupportedf("mailbox scheme %q", u.Scheme)
	}
	if opts.Reconnect {
		return Redial(addr, connect), nil
	}
	return connect(ctx, addr)
}
