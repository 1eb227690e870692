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
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

// Pipe returns the two ends of an in-process mailbox. Each direction buffers
// up to depth frames; MaxNumFrames reports the free room so a full pipe looks
// busy to the sender.
func Pipe(name string, depth int) (Codec, Codec) {
	if depth <= 0 {
		depth = 1
	}
	ab := make(chan frame.Frame, depth)
	ba := make(chan frame.Frame, depth)
	a := &pipeCodec{name: name + "/a", in: ba, out: ab, closeNotify: make(chan struct{})}
	b := &pipeCodec{name: name + "/b", in: ab, out: ba, closeNotify: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

type pipeCodec struct {
	name        string
	in          <-chan frame.Frame
	out         chan<- frame.Frame
	peer        *pipeCodec
	closeNotify chan struct{}
	closeOnce   sync.Once
}

func (c *pipeCodec) String() string {
	return fmt.Sprintf("[pipeCodec %s]", c.name)
}

func (c *pipeCodec) Recv(ctx context.Context) (*frame.Frame, error) {
	select {
	case f := <-c.in:
		glog.V(4).Infof("%s recv %s", c, &f)
		return &f, nil
	case <-c.closeNotify:
		return nil, errors.Trace(io.EOF)
	case <-c.peer.closeNotify:
		// Deliver what the peer sent before it went away.
		select {
		case f := <-c.in:
			return &f, nil
		default:
		}
		c.Close()
		return nil, errors.Trace(io.EOF)
	case <-ctx.Done():
		return nil, errors.Trace(ctx.Err())
	}
}

func (c *pipeCodec) Send(ctx context.Context, f *frame.Frame) error {
	select {
	case <-c.closeNotify:
		return errors.Trace(io.EOF)
	case <-c.peer.closeNotify:
		return errors.Trace(io.EOF)
	default:
	}
	glog.V(4).Infof("%s send %s", c, f)
	select {
	case c.out <- *f:
		return nil
	case <-c.closeNotify:
		return errors.Trace(io.EOF)
	case <-c.peer.closeNotify:
		return errors.Trace(io.EOF)
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}

func (c *pipeCodec) Close() {
	c.closeOnce.Do(func() {
		glog.V(1).Infof("Closing %s", c)
		close(c.closeNotify)
	})
}

func (c *pipeCodec) CloseNotify() <-chan struct{} {
	return c.closeNotify
}

func (c *pipeCodec) MaxNumFrames() int {
	return cap(c.out) - len(c.out)
}

func (c *pipeCodec) Info() ConnectionInfo {
	connected := true
	select {
	case <-c.closeNotify:
		connected = false
	case <-c.peer.closeNotify:
		connected = false
	default:
	}
	return ConnectionInfo{IsConnected: connected, RemoteAddr: c.peer.name}
}

func (c *pipeCodec) SetOptions(opts *Options) error {
	return errors.NotImplementedf("SetOptions")
}
