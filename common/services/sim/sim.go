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

// Package sim is a simulated secure subsystem. It answers services requests
// arriving on a mailbox the way the real firmware does, closely enough to
// exercise clients end to end.
package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"

	"github.com/pa-cotte/hal-alif-sub005/common/services/codec"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
	"github.com/pa-cotte/hal-alif-sub005/common/services/memmap"
)

const (
	DefaultRevision   = "SES A1 v1.2.0 (sim)"
	DefaultPartNumber = 0xAE722F80
	DefaultTOCVersion = 0x00010000

	otpWords = frame.OTPCustomerAreaEnd + 1
)

// Verdict tells the device what to do with a request.
type Verdict int

const (
	Respond Verdict = iota
	// Drop swallows the request; the caller sees no response.
	Drop
)

// Device is the simulated secure subsystem. Its zero value is not usable; use New.
type Device struct {
	latency   time.Duration
	intercept func(ch uint8, h frame.Header) Verdict
	mem       memmap.Memory

	mu         sync.Mutex
	rnd        *rand.Rand
	revision   string
	partNumber uint32
	lcs        uint32
	tocVersion uint32
	toc        []frame.TOCEntry
	otp        [otpWords]uint32
	state      State
}

// State is the device state changed by control services.
type State struct {
	Pinmux       map[[2]uint8]uint8
	PadConfig    map[[2]uint8]uint32
	CPUs         map[uint32]string
	Loaded       []string
	PowerMode    uint32
	Wakeup       uint32
	MemRetention uint32
	ClockSources map[uint32]uint32
	ClockEnabled map[uint32]bool
	Dividers     map[uint32]uint32
	XtalRunning  bool
	PLLRunning   bool
	Resets       int
}

type Option func(d *Device)

// WithMemory gives the device access to the staging region used for buffers
// referenced by crypto requests.
func WithMemory(m memmap.Memory) Option {
	return func(d *Device) { d.mem = m }
}

// WithLatency delays every response.
func WithLatency(l time.Duration) Option {
	return func(d *Device) { d.latency = l }
}

// WithIntercept installs a filter consulted for every request.
func WithIntercept(f func(ch uint8, h frame.Header) Verdict) Option {
	return func(d *Device) { d.intercept = f }
}

func WithSeed(seed int64) Option {
	return func(d *Device) { d.rnd = rand.New(rand.NewSource(seed)) }
}

func WithRevision(rev string) Option {
	return func(d *Device) { d.revision = rev }
}

func WithLCS(lcs uint32) Option {
	return func(d *Device) { d.lcs = lcs }
}

func WithTOC(entries ...frame.TOCEntry) Option {
	return func(d *Device) { d.toc = append([]frame.TOCEntry(nil), entries...) }
}

// WithOTP presets OTP words starting at word offset.
func WithOTP(offset uint32, words ...uint32) Option {
	return func(d *Device) { copy(d.otp[offset:], words) }
}

// New returns a device with factory defaults.
func New(opts ...Option) *Device {
	d := &Device{
		rnd:        rand.New(rand.NewSource(1)),
		revision:   DefaultRevision,
		partNumber: DefaultPartNumber,
		lcs:        frame.LCSSecureEnabled,
		tocVersion: DefaultTOCVersion,
		toc: []frame.TOCEntry{
			{Name: frame.MakeTOCName("A32_APP"), Version: 0x00010000, CPU: frame.CPUA32_0, DestAddr: 0x08000000, BootAddr: 0x08000000, Size: 0x40000},
			{Name: frame.MakeTOCName("M55_HP"), Version: 0x00010002, CPU: frame.CPUM55_HP, DestAddr: 0x50000000, BootAddr: 0x50000000, Size: 0x20000},
			{Name: frame.MakeTOCName("M55_HE"), Version: 0x00010001, CPU: frame.CPUM55_HE, DestAddr: 0x58000000, BootAddr: 0x58000000, Size: 0x10000},
		},
		state: State{
			Pinmux:       make(map[[2]uint8]uint8),
			PadConfig:    make(map[[2]uint8]uint32),
			CPUs:         make(map[uint32]string),
			ClockSources: make(map[uint32]uint32),
			ClockEnabled: make(map[uint32]bool),
			Dividers:     make(map[uint32]uint32),
		},
	}
	d.otp[frame.OTPManufactureInfoSerialNumberLow] = 0x12345678
	d.otp[frame.OTPManufactureInfoSerialNumberHigh] = 0x9ABCDEF0
	d.otp[frame.OTPManufactureInfoPartNumberStart] = DefaultPartNumber
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OTP returns the OTP word at offset.
func (d *Device) OTP(offset uint32) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.otp[offset]
}

// State returns a copy of the device state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.state
	s.Pinmux = make(map[[2]uint8]uint8)
	for k, v := range d.state.Pinmux {
		s.Pinmux[k] = v
	}
	s.PadConfig = make(map[[2]uint8]uint32)
	for k, v := range d.state.PadConfig {
		s.PadConfig[k] = v
	}
	s.CPUs = make(map[uint32]string)
	for k, v := range d.state.CPUs {
		s.CPUs[k] = v
	}
	s.ClockSources = make(map[uint32]uint32)
	for k, v := range d.state.ClockSources {
		s.ClockSources[k] = v
	}
	s.ClockEnabled = make(map[uint32]bool)
	for k, v := range d.state.ClockEnabled {
		s.ClockEnabled[k] = v
	}
	s.Dividers = make(map[uint32]uint32)
	for k, v := range d.state.Dividers {
		s.Dividers[k] = v
	}
	s.Loaded = append([]string(nil), d.state.Loaded...)
	return s
}

// Serve answers requests arriving on mb until ctx is done or mb is closed.
func (d *Device) Serve(ctx context.Context, mb codec.Codec) error {
	for {
		f, err := mb.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil || codec.IsEOF(err) {
				return nil
			}
			return errors.Trace(err)
		}
		resp := d.handle(f)
		if resp == nil {
			continue
		}
		if d.latency > 0 {
			select {
			case <-time.After(d.latency):
			case <-ctx.Done():
				return nil
			}
		}
		if err := mb.Send(ctx, resp); err != nil {
			if ctx.Err() != nil || codec.IsEOF(err) {
				return nil
			}
			return errors.Trace(err)
		}
	}
}

// ServeAll serves several mailboxes at once. It returns when all of them are
// done, or with the first error.
func (d *Device) ServeAll(ctx context.Context, mbs ...codec.Codec) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, mb := range mbs {
		mb := mb
		eg.Go(func() error {
			return d.Serve(ctx, mb)
		})
	}
	return eg.Wait()
}

// Loopback starts serving one end of an in-process mailbox and returns the
// other end for a client. Serving stops when ctx is done or the client end is
// closed.
func (d *Device) Loopback(ctx context.Context, name string, depth int) codec.Codec {
	client, dev := codec.Pipe(name, depth)
	go func() {
		if err := d.Serve(ctx, dev); err != nil {
			glog.Errorf("sim %s: %s", name, err)
		}
		dev.Close()
	}()
	return client
}

func (d *Device) handle(f *frame.Frame) *frame.Frame {
	h, payload, err := frame.Decode(&f.Packet)
	if err != nil {
		glog.Warningf("sim: bad packet on ch %d: %s", f.Channel, err)
		return d.reply(f.Channel, h, reply{ack: frame.AckPacketError})
	}
	if h.IsResponse() {
		glog.Warningf("sim: ignoring response on ch %d: %s", f.Channel, h)
		return nil
	}
	if d.intercept != nil && d.intercept(f.Channel, h) == Drop {
		glog.V(2).Infof("sim: dropping %s", h)
		return nil
	}
	hf, ok := handlers[h.ServiceID]
	if !ok {
		return d.reply(f.Channel, h, reply{ack: frame.AckUnknownCommand})
	}
	d.mu.Lock()
	r := hf(d, payload)
	d.mu.Unlock()
	glog.V(3).Infof("sim: %s -> ack=%s code=%#x", h, r.ack, r.code)
	return d.reply(f.Channel, h, r)
}

func (d *Device) reply(ch uint8, req frame.Header, r reply) *frame.Frame {
	p, err := frame.NewResponse(req, r.ack, r.code, r.result)
	if err != nil {
		glog.Errorf("sim: %s: %s", req.ServiceID, err)
		p, _ = frame.NewResponse(req, frame.AckPacketError, 0, nil)
	}
	return &frame.Frame{Channel: ch, Packet: *p}
}
