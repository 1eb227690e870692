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
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cesanta/go-serial/serial"
	"github.com/golang/glog"
	"github.com/juju/errors"
	flock "github.com/theckman/go-flock"
)

// serialReadTimeout is the inter-character timeout; the driver reports it as io.EOF.
const serialReadTimeout = 200 * time.Millisecond

// SerialCodecOptions configures a mailbox bridged over a UART.
type SerialCodecOptions struct {
	BaudRate            uint
	HardwareFlowControl bool
	// SetControlLines drives DTR and RTS low after open, InvertedControlLines high.
	SetControlLines      bool
	InvertedControlLines bool
	// JunkHandler receives bytes that were not part of any frame, e.g. boot logs.
	JunkHandler func(junk []byte)
	// LockDir holds the per-port lock file; empty means os.TempDir().
	LockDir string
}

func (o *SerialCodecOptions) openOptions(port string) serial.OpenOptions {
	baud := o.BaudRate
	if baud == 0 {
		baud = 115200
	}
	return serial.OpenOptions{
		PortName:              port,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		HardwareFlowControl:   o.HardwareFlowControl,
		InterCharacterTimeout: uint(serialReadTimeout / time.Millisecond),
	}
}

// serialPort is the byte stream under a serial mailbox.
type serialPort struct {
	name string
	port serial.Serial
	lock *flock.Flock
	opts *SerialCodecOptions

	// The driver tolerates concurrent Read and Write but not Close during
	// either, so I/O holds mu for reading and Close for writing.
	mu      sync.RWMutex
	closed  bool
	lastEOF time.Time
}

func lockPath(dir, port string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return filepath.Join(dir, "setool-"+r.Replace(strings.TrimPrefix(port, "/dev/"))+".lock")
}

// Serial opens a mailbox bridged over a serial port. The port stays locked
// while the mailbox is open so that two processes cannot interleave frames.
func Serial(ctx context.Context, port string, opts *SerialCodecOptions) (Codec, error) {
	lock := flock.NewFlock(lockPath(opts.LockDir, port))
	switch ok, err := lock.TryLock(); {
	case err != nil:
		return nil, errors.Annotatef(err, "%s: lock", port)
	case !ok:
		return nil, errors.Errorf("%s: in use by another process (%s)", port, lock.Path())
	}

	s, err := serial.Open(opts.openOptions(port))
	if err != nil {
		lock.Unlock()
		return nil, errors.Annotatef(err, "%s: open", port)
	}
	glog.V(1).Infof("%s: opened at %d baud", port, opts.openOptions(port).BaudRate)

	if opts.SetControlLines || opts.InvertedControlLines {
		level := opts.InvertedControlLines
		s.SetDTR(level)
		s.SetRTS(level)
	}
	// Drop whatever the bridge sent before we were listening.
	s.Flush()

	return newStreamConn(&serialPort{name: port, port: s, lock: lock, opts: opts}, opts.JunkHandler), nil
}

func (p *serialPort) Read(buf []byte) (int, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return 0, io.EOF
	}
	n, err := p.port.Read(buf)
	p.mu.RUnlock()

	// An idle line yields io.EOF once per read timeout. Two EOFs closer
	// together than half the timeout mean the device is gone.
	if errors.Cause(err) == io.EOF {
		now := time.Now()
		gone := now.Sub(p.lastEOF) < serialReadTimeout/2
		p.lastEOF = now
		if !gone {
			err = nil
		}
	}
	return n, errors.Trace(err)
}

func (p *serialPort) WriteWithContext(ctx context.Context, b []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return 0, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return 0, errors.Trace(err)
	}
	n, err := p.port.Write(b)
	return n, errors.Trace(err)
}

func (p *serialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	glog.V(1).Infof("%s: closing", p.name)
	err := p.port.Close()
	if uerr := p.lock.Unlock(); err == nil {
		err = uerr
	}
	return errors.Trace(err)
}

func (p *serialPort) RemoteAddr() string { return p.name }

func (p *serialPort) SetOptions(opts *Options) error {
	p.opts = &opts.Serial
	return nil
}
