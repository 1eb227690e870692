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

// Package services is a client for the secure subsystem's services protocol.
//
// A Client owns a set of mailboxes (transports to the secure subsystem) and
// the channels registered on them. Requests are fixed-size packets carrying a
// service id, a correlation token and a positional parameter block; responses
// are matched back to the pending call by channel and token.
//
// Calls are either synchronous (Channel.Call, at most one outstanding per
// channel) or asynchronous (Channel.Go, completion delivered to a callback on
// the mailbox reader goroutine).
package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/multierror"
	"github.com/pa-cotte/hal-alif-sub005/common/services/codec"
	"github.com/pa-cotte/hal-alif-sub005/common/services/errcode"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
	"github.com/pa-cotte/hal-alif-sub005/common/services/memmap"
)

const (
	DefaultTimeout = 5 * time.Second

	readerStopTimeout = 5 * time.Second
)

// Anomaly describes an inbound packet that could not be matched to a call.
type Anomaly struct {
	Mailbox uint8
	Channel uint8
	Header  frame.Header
	Reason  string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("mbox %d ch %d: %s: %s", a.Mailbox, a.Channel, a.Reason, a.Header)
}

// Stats are cumulative client counters.
type Stats struct {
	Sent                    uint64
	Received                uint64
	Resolved                uint64
	Timeouts                uint64
	Cancelled               uint64
	Dropped                 uint64
	SerializationViolations uint64
}

type stats struct {
	sent, received, resolved, timeouts, cancelled, dropped, violations atomic.Uint64
}

type clientOptions struct {
	timeout   time.Duration
	memory    memmap.Space
	onAnomaly func(Anomaly)
	mailboxes map[uint8]codec.Codec
}

type Option func(*clientOptions)

// Mailbox attaches a mailbox at construction time.
func Mailbox(id uint8, c codec.Codec) Option {
	return func(o *clientOptions) {
		o.mailboxes[id] = c
	}
}

// WithTimeout sets the bound applied to synchronous calls whose context has no
// deadline. Zero means wait indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithMemory sets the address space used to stage buffers referenced by
// parameter blocks (crypto services).
func WithMemory(space memmap.Space) Option {
	return func(o *clientOptions) {
		o.memory = space
	}
}

// OnAnomaly installs a hook invoked for every dropped inbound packet. It runs
// on the mailbox reader goroutine: it must not block or make synchronous
// calls, since no response on that mailbox is read until it returns.
func OnAnomaly(f func(Anomaly)) Option {
	return func(o *clientOptions) {
		o.onAnomaly = f
	}
}

type mailbox struct {
	id       uint8
	codec    codec.Codec
	channels map[uint8]*Channel
	cancel   context.CancelFunc
	done     chan struct{}
	closed   atomic.Bool
	// inReader is set while the reader goroutine runs callbacks and hooks.
	inReader atomic.Bool
}

func (mb *mailbox) String() string {
	return fmt.Sprintf("mbox %d", mb.id)
}

// Client is a services protocol endpoint. It is safe for concurrent use.
type Client struct {
	opts  clientOptions
	stats stats

	mu        sync.Mutex
	mailboxes map[uint8]*mailbox
	closed    bool
}

// New returns a client. Mailboxes given as options are attached immediately.
func New(opts ...Option) (*Client, error) {
	o := clientOptions{
		timeout:   DefaultTimeout,
		mailboxes: make(map[uint8]codec.Codec),
	}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{
		opts:      o,
		mailboxes: make(map[uint8]*mailbox),
	}
	for id, mc := range o.mailboxes {
		if err := c.AttachMailbox(id, mc); err != nil {
			c.Close()
			return nil, errors.Trace(err)
		}
	}
	return c, nil
}

// Timeout returns the default bound of synchronous calls.
func (c *Client) Timeout() time.Duration {
	return c.opts.timeout
}

// Memory returns the staging space, nil if none was configured.
func (c *Client) Memory() memmap.Space {
	return c.opts.memory
}

// AttachMailbox starts serving the mailbox id over mc. The client owns mc from
// now on and closes it on Close. A mailbox whose transport has gone away can
// be replaced; channels registered on it stay unusable and must be registered
// again.
func (c *Client) AttachMailbox(id uint8, mc codec.Codec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errcode.New(errcode.TransportUnavailable, "AttachMailbox", "client is closed")
	}
	if old, ok := c.mailboxes[id]; ok {
		if !old.closed.Load() {
			return errors.AlreadyExistsf("mailbox %d", id)
		}
		glog.Infof("%s: replacing closed transport", old)
		old.cancel()
		old.codec.Close()
	}
	ctx, cancel := context.WithCancel(context.Background())
	mb := &mailbox{
		id:       id,
		codec:    mc,
		channels: make(map[uint8]*Channel),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	c.mailboxes[id] = mb
	glog.Infof("%s attached: %+v", mb, mc.Info())
	go c.readLoop(ctx, mb)
	return nil
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	return Stats{
		Sent:                    c.stats.sent.Load(),
		Received:                c.stats.received.Load(),
		Resolved:                c.stats.resolved.Load(),
		Timeouts:                c.stats.timeouts.Load(),
		Cancelled:               c.stats.cancelled.Load(),
		Dropped:                 c.stats.dropped.Load(),
		SerializationViolations: c.stats.violations.Load(),
	}
}

// Close stops all mailboxes and cancels every pending call. Channels become
// unusable. Close is idempotent. Called from a callback, it does not wait for
// that mailbox's reader to stop.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var mbs []*mailbox
	for _, mb := range c.mailboxes {
		mbs = append(mbs, mb)
	}
	c.mu.Unlock()

	var errs error
	for _, mb := range mbs {
		mb.closed.Store(true)
		mb.cancel()
		mb.codec.Close()
		if mb.inReader.Load() {
			// The reader exits once it returns to Recv.
			glog.V(1).Infof("%s: not waiting for the reader", mb)
		} else {
			select {
			case <-mb.done:
			case <-time.After(readerStopTimeout):
				errs = multierror.Append(errs, errors.Errorf("%s: reader did not stop", mb))
			}
		}
		c.failMailbox(mb, errcode.Cancelled, "client closed")
	}
	glog.V(1).Infof("client closed, %+v", c.Stats())
	return errs
}
