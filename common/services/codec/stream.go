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
	"bufio"
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

// Frames on byte streams are framed as
//
//	A5 5A | channel | packet (256 bytes) | crc32 (LE, over channel and packet)
//
// A receiver that loses sync skips bytes until the next valid frame.
const (
	streamMagic0 byte = 0xA5
	streamMagic1 byte = 0x5A

	streamFrameSize = 2 + wireFrameSize + 4
)

var crcTable = crc32.MakeTable(crc32.IEEE)

// streamConnImpl is the byte stream underneath a stream codec.
type streamConnImpl interface {
	Read(buf []byte) (int, error)
	WriteWithContext(ctx context.Context, b []byte) (int, error)
	Close() error
	RemoteAddr() string
	SetOptions(opts *Options) error
}

type streamConn struct {
	conn        streamConnImpl
	junkHandler func(junk []byte)

	writeLock   sync.Mutex
	rchan       chan *frame.Frame
	closeNotify chan struct{}
	closeOnce   sync.Once
}

func newStreamConn(conn streamConnImpl, junkHandler func(junk []byte)) Codec {
	sc := &streamConn{
		conn:        conn,
		junkHandler: junkHandler,
		rchan:       make(chan *frame.Frame),
		closeNotify: make(chan struct{}),
	}
	go sc.readLoop()
	return sc
}

func (c *streamConn) String() string {
	return fmt.Sprintf("[streamConn to %s]", c.conn.RemoteAddr())
}

func encodeStreamFrame(f *frame.Frame) []byte {
	b := make([]byte, 0, streamFrameSize)
	b = append(b, streamMagic0, streamMagic1)
	wf := marshalFrame(f)
	b = append(b, wf...)
	crc := crc32.Checksum(wf, crcTable)
	return append(b, byte(crc), byte(crc>>8), byte(crc>>16), byte(crc>>24))
}

func (c *streamConn) readLoop() {
	defer c.Close()
	br := bufio.NewReaderSize(readerFunc(c.conn.Read), 4*streamFrameSize)
	var junk []byte
	flushJunk := func() {
		if len(junk) == 0 {
			return
		}
		glog.V(2).Infof("%s: %d bytes of junk", c, len(junk))
		if c.junkHandler != nil {
			c.junkHandler(junk)
		}
		junk = nil
	}
	for {
		b, err := br.Peek(streamFrameSize)
		if err != nil {
			if len(b) > 0 && b[0] != streamMagic0 {
				// Not a frame start, nothing will make it one.
				br.Discard(1)
				junk = append(junk, b[0])
				continue
			}
			if err == bufio.ErrBufferFull || err == io.ErrNoProgress {
				continue
			}
			flushJunk()
			glog.V(1).Infof("%s: read error: %s", c, err)
			return
		}
		if b[0] != streamMagic0 || b[1] != streamMagic1 {
			br.Discard(1)
			junk = append(junk, b[0])
			continue
		}
		body := b[2 : 2+wireFrameSize]
		want := frame.ByteOrder.Uint32(b[2+wireFrameSize:])
		if crc32.Checksum(body, crcTable) != want {
			glog.Warningf("%s: checksum mismatch, resyncing", c)
			br.Discard(1)
			junk = append(junk, b[0])
			continue
		}
		f, err := unmarshalFrame(body)
		br.Discard(streamFrameSize)
		flushJunk()
		if err != nil {
			glog.Errorf("%s: %s", c, err)
			continue
		}
		select {
		case c.rchan <- f:
		case <-c.closeNotify:
			return
		}
	}
}

type readerFunc func(b []byte) (int, error)

func (f readerFunc) Read(b []byte) (int, error) { return f(b) }

func (c *streamConn) Recv(ctx context.Context) (*frame.Frame, error) {
	select {
	case f := <-c.rchan:
		return f, nil
	case <-c.closeNotify:
		return nil, errors.Trace(io.EOF)
	case <-ctx.Done():
		return nil, errors.Trace(ctx.Err())
	}
}

func (c *streamConn) Send(ctx context.Context, f *frame.Frame) error {
	select {
	case <-c.closeNotify:
		return errors.Trace(io.EOF)
	default:
	}
	b := encodeStreamFrame(f)
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	glog.V(4).Infof("%s send %s", c, f)
	for written := 0; written < len(b); {
		n, err := c.conn.WriteWithContext(ctx, b[written:])
		written += n
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (c *streamConn) Close() {
	c.closeOnce.Do(func() {
		glog.V(1).Infof("Closing %s", c)
		close(c.closeNotify)
		c.conn.Close()
	})
}

func (c *streamConn) CloseNotify() <-chan struct{} {
	return c.closeNotify
}

func (c *streamConn) MaxNumFrames() int {
	return -1
}

func (c *streamConn) Info() ConnectionInfo {
	connected := true
	select {
	case <-c.closeNotify:
		connected = false
	default:
	}
	return ConnectionInfo{IsConnected: connected, RemoteAddr: c.conn.RemoteAddr()}
}

func (c *streamConn) SetOptions(opts *Options) error {
	return c.conn.SetOptions(opts)
}
