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
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	"github.com/juju/errors"
	"golang.org/x/net/websocket"

	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

// DialFunc opens one link to a mailbox bridge.
type DialFunc func(ctx context.Context, addr string) (Codec, error)

// Permanent marks a dial error that redialing cannot fix, e.g. a malformed address.
func Permanent(err error) error {
	return &backoff.PermanentError{Err: err}
}

func isPermanent(err error) bool {
	if _, ok := err.(*backoff.PermanentError); ok {
		return true
	}
	return errors.Cause(err) == websocket.ErrBadStatus
}

// redialCodec keeps one link to a bridge up, dialing again with exponential
// backoff whenever the current link drops. Frames in flight on a dropped link
// are lost; Recv reports the drop so the client can fail the affected calls.
type redialCodec struct {
	addr string
	dial DialFunc
	bo   *backoff.ExponentialBackOff

	mu      sync.Mutex
	link    Codec
	linkUp  chan struct{} // closed once link is set or fatal is known
	fatal   error
	retryAt time.Time

	closed    chan struct{}
	closeOnce sync.Once
}

// Redial returns a mailbox that dials addr in the background and redials
// whenever the link drops, until closed or a permanent error is hit.
func Redial(addr string, dial DialFunc) Codec {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0
	c := &redialCodec{
		addr:   addr,
		dial:   dial,
		bo:     bo,
		linkUp: make(chan struct{}),
		closed: make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *redialCodec) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.link != nil:
		return fmt.Sprintf("[redial %s: up]", c.addr)
	case c.fatal != nil:
		return fmt.Sprintf("[redial %s: failed]", c.addr)
	case time.Now().Before(c.retryAt):
		return fmt.Sprintf("[redial %s: retry in %s]", c.addr, time.Until(c.retryAt).Round(time.Millisecond))
	}
	return fmt.Sprintf("[redial %s: dialing]", c.addr)
}

func (c *redialCodec) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.closed
		cancel()
	}()
	for {
		var link Codec
		err := backoff.RetryNotify(func() error {
			l, err := c.dial(ctx, c.addr)
			if err != nil {
				if isPermanent(err) || ctx.Err() != nil {
					if pe, ok := err.(*backoff.PermanentError); ok {
						return pe
					}
					return backoff.Permanent(err)
				}
				return err
			}
			link = l
			return nil
		}, backoff.WithContext(c.bo, ctx), func(err error, d time.Duration) {
			c.mu.Lock()
			c.retryAt = time.Now().Add(d)
			c.mu.Unlock()
			glog.Errorf("%s: %s", c, err)
		})
		if err != nil {
			if ctx.Err() == nil {
				glog.Errorf("%s: giving up: %+v", c, err)
				c.mu.Lock()
				c.fatal = err
				close(c.linkUp)
				c.mu.Unlock()
			}
			return
		}

		c.mu.Lock()
		c.link = link
		close(c.linkUp)
		c.mu.Unlock()
		glog.Infof("%s: link established", c)

		select {
		case <-c.closed:
			link.Close()
			return
		case <-link.CloseNotify():
		}
		select {
		case <-c.closed:
			return
		default:
		}
		glog.Warningf("%s: link dropped", c.addr)
		c.drop(link)
	}
}

// drop retires link if it is still current. Safe to call more than once.
func (c *redialCodec) drop(link Codec) {
	c.mu.Lock()
	if c.link == link {
		c.link = nil
		c.linkUp = make(chan struct{})
	}
	c.mu.Unlock()
	link.Close()
}

// current waits for a live link.
func (c *redialCodec) current(ctx context.Context) (Codec, error) {
	for {
		c.mu.Lock()
		link, up, fatal := c.link, c.linkUp, c.fatal
		c.mu.Unlock()
		switch {
		case link != nil:
			return link, nil
		case fatal != nil:
			return nil, errors.Annotatef(fatal, "%s: not redialing", c.addr)
		}
		select {
		case <-ctx.Done():
			return nil, errors.Trace(ctx.Err())
		case <-c.closed:
			return nil, errors.Trace(errClosed)
		case <-up:
		}
	}
}

func (c *redialCodec) Recv(ctx context.Context) (*frame.Frame, error) {
	link, err := c.current(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	f, err := link.Recv(ctx)
	if err == nil {
		return f, nil
	}
	if !IsEOF(err) {
		return nil, errors.Trace(err)
	}
	c.drop(link)
	select {
	case <-c.closed:
		return nil, errors.Trace(err)
	default:
	}
	return nil, errors.Annotatef(errReconnecting, "%s", err)
}

func (c *redialCodec) Send(ctx context.Context, f *frame.Frame) error {
	for {
		link, err := c.current(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		if err := link.Send(ctx, f); err != nil {
			if ctx.Err() != nil {
				return errors.Trace(err)
			}
			glog.V(1).Infof("%s: send failed, waiting for a new link: %s", c.addr, err)
			c.drop(link)
			continue
		}
		return nil
	}
}

func (c *redialCodec) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		link := c.link
		c.mu.Unlock()
		if link != nil {
			link.Close()
		}
	})
}

func (c *redialCodec) CloseNotify() <-chan struct{} {
	return c.closed
}

// MaxNumFrames is unlimited while dialing: Send blocks until a link is up.
func (c *redialCodec) MaxNumFrames() int {
	c.mu.Lock()
	link := c.link
	c.mu.Unlock()
	if link == nil {
		return -1
	}
	return link.MaxNumFrames()
}

func (c *redialCodec) Info() ConnectionInfo {
	c.mu.Lock()
	link := c.link
	c.mu.Unlock()
	if link == nil {
		return ConnectionInfo{RemoteAddr: c.addr}
	}
	return link.Info()
}

func (c *redialCodec) SetOptions(opts *Options) error {
	c.mu.Lock()
	link := c.link
	c.mu.Unlock()
	if link == nil {
		return errors.Errorf("%s: no link", c.addr)
	}
	return errors.Trace(link.SetOptions(opts))
}
