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

package main

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/pa-cotte/hal-alif-sub005/cli/config"
	"github.com/pa-cotte/hal-alif-sub005/cli/flags"
	"github.com/pa-cotte/hal-alif-sub005/cli/ourutil"
	"github.com/pa-cotte/hal-alif-sub005/common/services"
	"github.com/pa-cotte/hal-alif-sub005/common/services/codec"
	"github.com/pa-cotte/hal-alif-sub005/common/services/memmap"
	"github.com/pa-cotte/hal-alif-sub005/common/services/sim"
	"github.com/pa-cotte/hal-alif-sub005/version"
)

const simDepth = 16

// session is one client with the selected channel registered on it.
type session struct {
	board  *config.Board
	client *services.Client
	ch     *services.Channel

	cancel  context.CancelFunc
	closers []io.Closer
}

// loadBoard reads the board file, if any, and applies command line overrides.
func loadBoard() (*config.Board, error) {
	b := &config.Board{Memory: config.Memory{Mode: config.MemNone}}
	if *flags.Config != "" {
		var err error
		if b, err = config.Load(*flags.Config); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if *flags.Mailbox != "" {
		mb, err := b.Mailbox(*flags.MailboxID)
		if err != nil {
			mb = &config.Mailbox{ID: *flags.MailboxID}
			b.Mailboxes = append(b.Mailboxes, mb)
		}
		mb.URL = *flags.Mailbox
		mb.BaudRate = *flags.BaudRate
		mb.HardwareFlowControl = *flags.HWFC
		mb.InvertedControlLines = *flags.InvertedControlLines
		mb.SetControlLines = flags.SetControlLines
		mb.Reconnect = *flags.Reconnect
	}
	if b.Timeout == 0 || flag.CommandLine.Changed("timeout") {
		b.Timeout = *flags.Timeout
	}
	if *flags.MemMode != "" {
		b.Memory.Mode = *flags.MemMode
	}
	if *flags.MemBase != "" {
		base, err := ourutil.ParseUint("--mem-base", *flags.MemBase, 32)
		if err != nil {
			return nil, errors.Trace(err)
		}
		b.Memory.Base = uint32(base)
	}
	if *flags.MemSize > 0 {
		b.Memory.Size = *flags.MemSize
	}
	if b.Memory.Mode == config.MemDevMem && b.Memory.Device == "" {
		b.Memory.Device = *flags.MemDevice
	}
	if len(b.Mailboxes) == 0 {
		return nil, errors.Errorf("no mailbox: use --mailbox or --config")
	}
	if err := b.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return b, nil
}

func openSession(ctx context.Context) (*session, error) {
	b, err := loadBoard()
	if err != nil {
		return nil, errors.Trace(err)
	}
	sel, err := b.ResolveChannel(*flags.Channel, *flags.MailboxID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	mbc, err := b.Mailbox(sel.Mailbox)
	if err != nil {
		return nil, errors.Trace(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &session{board: b, cancel: cancel}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	simulated := strings.HasPrefix(mbc.URL, "sim:")
	space, err := s.openMemory(b.Memory, simulated)
	if err != nil {
		return nil, errors.Trace(err)
	}

	mb, err := s.connect(ctx, mbc, space)
	if err != nil {
		return nil, errors.Annotatef(err, "mailbox %d", mbc.ID)
	}

	opts := []services.Option{
		services.Mailbox(mbc.ID, mb),
		services.WithTimeout(b.Timeout),
		services.OnAnomaly(func(a services.Anomaly) {
			if *flags.Verbose {
				ourutil.Reportf("Dropped frame: %s", a)
			}
		}),
	}
	if space != nil {
		opts = append(opts, services.WithMemory(space))
	}
	if s.client, err = services.New(opts...); err != nil {
		mb.Close()
		return nil, errors.Trace(err)
	}
	if s.ch, err = s.client.Register(sel.Mailbox, sel.Channel); err != nil {
		return nil, errors.Trace(err)
	}
	glog.V(1).Infof("%s: using %s, timeout %s", s.ch, mbc.URL, b.Timeout)
	ok = true
	return s, nil
}

// openMemory sets up staging for address parameters. A simulated enclave
// without explicit memory gets a private window so crypto calls work.
func (s *session) openMemory(m config.Memory, simulated bool) (memmap.Space, error) {
	switch m.Mode {
	case config.MemWindow:
		return memmap.NewWindow(memmap.Addr(m.Base), make([]byte, m.Size)), nil
	case config.MemDevMem:
		if simulated {
			return nil, errors.NotSupportedf("devmem with a simulated mailbox")
		}
		space, closer, err := openDevMem(m.Device, memmap.Addr(m.Base), m.Size)
		if err != nil {
			return nil, errors.Trace(err)
		}
		s.closers = append(s.closers, closer)
		return space, nil
	case config.MemDirect:
		if simulated {
			return nil, errors.NotSupportedf("direct memory with a simulated mailbox")
		}
		return &memmap.Direct{}, nil
	}
	if simulated {
		return memmap.NewWindow(config.DefaultSimWindowBase, make([]byte, config.DefaultSimWindowSize)), nil
	}
	return nil, nil
}

func (s *session) connect(ctx context.Context, mbc *config.Mailbox, space memmap.Space) (codec.Codec, error) {
	u, err := url.Parse(mbc.URL)
	if err == nil && u.Scheme == "sim" {
		mem, _ := space.(memmap.Memory)
		dev, err := simDevice(u.Query(), mem)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return dev.Loopback(ctx, mbc.URL, simDepth), nil
	}

	opts := &codec.ConnectOptions{
		Reconnect: mbc.Reconnect,
		Origin:    "http://setool/" + version.GetVersion(),
	}
	opts.Codec.Serial = codec.SerialCodecOptions{
		BaudRate:             mbc.BaudRate,
		HardwareFlowControl:  mbc.HardwareFlowControl,
		InvertedControlLines: mbc.InvertedControlLines,
		SetControlLines:      mbc.SetControlLines == nil || *mbc.SetControlLines,
		JunkHandler: func(junk []byte) {
			glog.V(2).Infof("%s: junk: %q", mbc.URL, junk)
		},
	}
	opts.Codec.MQTT = codec.MQTTCodecOptions{
		User:     *flags.MQTTUser,
		Password: *flags.MQTTPass,
		ClientID: *flags.MQTTClient,
	}
	if err == nil && (u.Scheme == "wss" || u.Scheme == "mqtts") {
		if opts.TLSConfig, err = flags.TLSConfigFromFlags(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	cctx, cancel := context.WithTimeout(ctx, *flags.Timeout)
	defer cancel()
	mb, err := codec.Connect(cctx, mbc.URL, opts)
	if err != nil {
		return nil, errors.Trace(err)
	}
	glog.V(1).Infof("connected to %s (%+v)", mbc.URL, mb.Info())
	return mb, nil
}

// simDevice builds a simulated enclave from sim:// query parameters:
// latency, seed, revision and lcs.
func simDevice(q url.Values, mem memmap.Memory) (*sim.Device, error) {
	var opts []sim.Option
	if mem != nil {
		opts = append(opts, sim.WithMemory(mem))
	}
	if v := q.Get("latency"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.Annotatef(err, "sim latency")
		}
		opts = append(opts, sim.WithLatency(d))
	}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseInt(v, 0, 64)
		if err != nil {
			return nil, errors.Annotatef(err, "sim seed")
		}
		opts = append(opts, sim.WithSeed(seed))
	}
	if v := q.Get("revision"); v != "" {
		opts = append(opts, sim.WithRevision(v))
	}
	if v := q.Get("lcs"); v != "" {
		lcs, err := ourutil.ParseUint("sim lcs", v, 32)
		if err != nil {
			return nil, errors.Trace(err)
		}
		opts = append(opts, sim.WithLCS(uint32(lcs)))
	}
	return sim.New(opts...), nil
}

func (s *session) Close() error {
	var err error
	if s.client != nil {
		err = s.client.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	for _, c := range s.closers {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return errors.Trace(err)
}
