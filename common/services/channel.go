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
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services/errcode"
)

// ErrPendingCalls is returned by Unregister while calls are outstanding.
var ErrPendingCalls = errors.New("channel has pending calls")

// Channel is a registered (mailbox, channel number) endpoint. It is owned by
// the Client that returned it.
type Channel struct {
	c   *Client
	mb  *mailbox
	num uint8

	// Held for the duration of a synchronous call.
	syncMu sync.Mutex

	mu         sync.Mutex
	registered bool
	pending    map[uint32]*Call
	lastToken  uint32
}

func (ch *Channel) String() string {
	return fmt.Sprintf("[mbox %d ch %d]", ch.mb.id, ch.num)
}

func (ch *Channel) MailboxID() uint8 { return ch.mb.id }
func (ch *Channel) Number() uint8    { return ch.num }
func (ch *Channel) Client() *Client  { return ch.c }

// Register creates the channel (mailboxID, num). The mailbox must be attached
// and the pair must not be registered already.
func (c *Client) Register(mailboxID, num uint8) (*Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errcode.New(errcode.TransportUnavailable, "Register", "client is closed")
	}
	mb, ok := c.mailboxes[mailboxID]
	if !ok || mb.closed.Load() {
		return nil, errcode.New(errcode.TransportUnavailable, "Register", "mailbox %d is not attached", mailboxID)
	}
	if _, ok := mb.channels[num]; ok {
		return nil, errors.AlreadyExistsf("channel %d on mailbox %d", num, mailboxID)
	}
	ch := &Channel{
		c:          c,
		mb:         mb,
		num:        num,
		registered: true,
		pending:    make(map[uint32]*Call),
	}
	mb.channels[num] = ch
	glog.Infof("%s registered", ch)
	return ch, nil
}

// Unregister removes the channel. It fails with ErrPendingCalls if calls are
// still outstanding; cancel them with CancelPending first.
func (c *Client) Unregister(ch *Channel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if !ch.registered {
		return errors.NotFoundf("channel %s", ch)
	}
	if n := len(ch.pending); n > 0 {
		return errors.Annotatef(ErrPendingCalls, "%s: %d outstanding", ch, n)
	}
	if ch.mb.channels[ch.num] == ch {
		delete(ch.mb.channels, ch.num)
	}
	ch.registered = false
	glog.Infof("%s unregistered", ch)
	return nil
}

// Channels returns the number of registered channels.
func (c *Client) Channels() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, mb := range c.mailboxes {
		n += len(mb.channels)
	}
	return n
}

func (c *Client) lookup(mb *mailbox, num uint8) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return mb.channels[num]
}

// Pending returns the number of outstanding calls.
func (ch *Channel) Pending() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.pending)
}

// CancelPending cancels all outstanding calls. Callbacks of asynchronous calls
// observe a Cancelled error. Returns the number of calls cancelled.
func (ch *Channel) CancelPending() int {
	return ch.finishAll(stateCancelled, errcode.Cancelled, "cancelled by caller")
}

func (ch *Channel) finishAll(state int32, kind errcode.Kind, msg string) int {
	ch.mu.Lock()
	calls := make([]*Call, 0, len(ch.pending))
	for tok, call := range ch.pending {
		calls = append(calls, call)
		delete(ch.pending, tok)
	}
	ch.mu.Unlock()

	n := 0
	for _, call := range calls {
		if !call.claim(state) {
			continue
		}
		if kind == errcode.Cancelled {
			ch.c.stats.cancelled.Add(1)
		}
		call.complete(errcode.New(kind, call.id.String(), "%s", msg))
		n++
	}
	if n > 0 {
		glog.V(1).Infof("%s: %d calls finished: %s", ch, n, msg)
	}
	return n
}

// insert allocates a token for call and adds it to the pending table.
// Tokens are never zero and skip values still pending.
func (ch *Channel) insert(call *Call) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if !ch.registered {
		return errcode.New(errcode.TransportUnavailable, call.id.String(), "channel %s is not registered", ch)
	}
	for {
		ch.lastToken++
		if ch.lastToken == 0 {
			continue
		}
		if _, ok := ch.pending[ch.lastToken]; !ok {
			break
		}
	}
	call.token = ch.lastToken
	ch.pending[call.token] = call
	return nil
}

// take removes and returns the pending call for token, nil if there is none.
func (ch *Channel) take(token uint32) *Call {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	call := ch.pending[token]
	if call != nil {
		delete(ch.pending, token)
	}
	return call
}

// remove drops call from the pending table if it is still there.
func (ch *Channel) remove(call *Call) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.pending[call.token] == call {
		delete(ch.pending, call.token)
	}
}
