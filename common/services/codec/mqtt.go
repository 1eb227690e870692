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
	"io"
	"math/rand"
	"net/url"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

const (
	mqttQoS         = 1
	mqttPort        = 1883
	mqttsPort       = 8883
	mqttReqSuffix   = "/req"
	mqttRespSuffix  = "/resp"
	mqttClientIDFmt = "setool-%08x"
)

// MQTTCodecOptions holds broker credentials. Credentials in the URL win.
type MQTTCodecOptions struct {
	User     string
	Password string
	ClientID string
}

// mqttEndpoint is a parsed mqtt:// or mqtts:// mailbox address.
type mqttEndpoint struct {
	broker string
	prefix string
	user   string
	pass   string
	tls    bool
}

func parseMQTTEndpoint(addr string, co *MQTTCodecOptions) (*mqttEndpoint, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, Permanent(errors.Trace(err))
	}
	if len(u.Path) < 2 {
		return nil, Permanent(errors.Errorf("%s: topic prefix is required", addr))
	}
	ep := &mqttEndpoint{prefix: u.Path[1:], user: co.User, pass: co.Password}
	scheme, port := "tcp", mqttPort
	if u.Scheme == "mqtts" {
		scheme, port, ep.tls = "tcps", mqttsPort, true
	}
	host := u.Host
	if u.Port() == "" {
		host = fmt.Sprintf("%s:%d", u.Hostname(), port)
	}
	if u.User != nil {
		ep.user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			ep.pass = p
		}
	}
	ep.broker = (&url.URL{Scheme: scheme, Host: host}).String()
	return ep, nil
}

func (ep *mqttEndpoint) clientOptions(clientID string) *mqtt.ClientOptions {
	if clientID == "" {
		clientID = fmt.Sprintf(mqttClientIDFmt, rand.Uint32())
	}
	return mqtt.NewClientOptions().
		AddBroker(ep.broker).
		SetClientID(clientID).
		SetUsername(ep.user).
		SetPassword(ep.pass)
}

// mqttCodec talks to a board bridge that consumes requests from
// <prefix>/req and publishes responses to <prefix>/resp.
type mqttCodec struct {
	ep        *mqttEndpoint
	cli       mqtt.Client
	incoming  chan *frame.Frame
	done      chan struct{}
	closeOnce sync.Once
}

// MQTT connects to a mailbox bridged through an MQTT broker.
func MQTT(addr string, tlsConfig *tls.Config, co *MQTTCodecOptions) (Codec, error) {
	ep, err := parseMQTTEndpoint(addr, co)
	if err != nil {
		return nil, err
	}
	c := &mqttCodec{
		ep:       ep,
		incoming: make(chan *frame.Frame),
		done:     make(chan struct{}),
	}
	opts := ep.clientOptions(co.ClientID).SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		glog.Errorf("%s: broker connection lost: %s", c, err)
		c.Close()
	})
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}
	glog.V(1).Infof("%s: connecting to %s", c, ep.broker)
	c.cli = mqtt.NewClient(opts)
	if err := wait(c.cli.Connect()); err != nil {
		return nil, errors.Annotatef(err, "%s: connect", ep.broker)
	}
	if err := wait(c.cli.Subscribe(ep.prefix+mqttRespSuffix, mqttQoS, c.deliver)); err != nil {
		c.cli.Disconnect(0)
		return nil, errors.Annotatef(err, "%s: subscribe", ep.broker)
	}
	return c, nil
}

func wait(t mqtt.Token) error {
	t.Wait()
	return t.Error()
}

func (c *mqttCodec) deliver(_ mqtt.Client, msg mqtt.Message) {
	glog.V(4).Infof("%s: %d bytes on %s", c, len(msg.Payload()), msg.Topic())
	f, err := unmarshalFrame(msg.Payload())
	if err != nil {
		glog.Errorf("%s: dropping message: %s", c, err)
		return
	}
	select {
	case c.incoming <- f:
	case <-c.done:
	}
}

func (c *mqttCodec) String() string {
	return fmt.Sprintf("[mqtt %s]", c.ep.prefix)
}

func (c *mqttCodec) Recv(ctx context.Context) (*frame.Frame, error) {
	select {
	case f := <-c.incoming:
		return f, nil
	case <-c.done:
		return nil, errors.Trace(io.EOF)
	case <-ctx.Done():
		return nil, errors.Trace(ctx.Err())
	}
}

func (c *mqttCodec) Send(ctx context.Context, f *frame.Frame) error {
	topic := c.ep.prefix + mqttReqSuffix
	glog.V(4).Infof("%s: publish %s to %s", c, f, topic)
	if err := wait(c.cli.Publish(topic, mqttQoS, false, marshalFrame(f))); err != nil {
		return errors.Annotatef(err, "%s: publish", topic)
	}
	return nil
}

func (c *mqttCodec) Close() {
	c.closeOnce.Do(func() {
		glog.V(1).Infof("%s: closing", c)
		close(c.done)
		c.cli.Disconnect(0)
	})
}

func (c *mqttCodec) CloseNotify() <-chan struct{} { return c.done }

func (c *mqttCodec) MaxNumFrames() int { return -1 }

func (c *mqttCodec) Info() ConnectionInfo {
	return ConnectionInfo{IsConnected: c.cli.IsConnected(), TLS: c.ep.tls, RemoteAddr: c.ep.broker + "/" + c.ep.prefix}
}

func (c *mqttCodec) SetOptions(opts *Options) error {
	return errors.NotImplementedf("SetOptions")
}
