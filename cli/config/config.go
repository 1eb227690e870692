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

// Package config loads board files: which mailboxes a board exposes, how to
// reach them, named channels and the memory used to stage address parameters.
//
//	timeout: 2s
//	mailboxes:
//	  - id: 1
//	    url: serial:///dev/ttyUSB0
//	    baud_rate: 921600
//	channels:
//	  apps: {mailbox: 1, channel: 0}
//	memory:
//	  mode: devmem
//	  base: 0x02000000
//	  size: 0x10000
package config

import (
	"fmt"
	"io/ioutil"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/pa-cotte/hal-alif-sub005/common/multierror"
)

const (
	MemNone   = "none"
	MemWindow = "window"
	MemDevMem = "devmem"
	MemDirect = "direct"

	DefaultSimWindowBase = 0x20000000
	DefaultSimWindowSize = 64 * 1024
)

type Board struct {
	Name      string             `yaml:"name,omitempty"`
	Timeout   time.Duration      `yaml:"timeout,omitempty"`
	Mailboxes []*Mailbox         `yaml:"mailboxes"`
	Channels  map[string]Channel `yaml:"channels,omitempty"`
	Memory    Memory             `yaml:"memory,omitempty"`
}

type Mailbox struct {
	ID        uint8  `yaml:"id"`
	URL       string `yaml:"url"`
	Reconnect bool   `yaml:"reconnect,omitempty"`

	BaudRate             uint  `yaml:"baud_rate,omitempty"`
	HardwareFlowControl  bool  `yaml:"hw_flow_control,omitempty"`
	InvertedControlLines bool  `yaml:"inverted_control_lines,omitempty"`
	SetControlLines      *bool `yaml:"set_control_lines,omitempty"`
}

type Channel struct {
	Mailbox uint8 `yaml:"mailbox"`
	Channel uint8 `yaml:"channel"`
}

func (c Channel) String() string {
	return fmt.Sprintf("%d/%d", c.Mailbox, c.Channel)
}

type Memory struct {
	Mode   string `yaml:"mode,omitempty"`
	Base   uint32 `yaml:"base,omitempty"`
	Size   int    `yaml:"size,omitempty"`
	Device string `yaml:"device,omitempty"`
}

var mailboxSchemes = map[string]bool{
	"serial": true, "tcp": true, "ws": true, "wss": true, "mqtt": true, "mqtts": true, "sim": true,
}

// Load reads and validates a board file.
func Load(path string) (*Board, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", path)
	}
	return b, nil
}

// Parse decodes and validates a board file. Unknown keys are rejected.
func Parse(data []byte) (*Board, error) {
	var b Board
	if err := yaml.UnmarshalStrict(data, &b); err != nil {
		return nil, errors.Annotatef(err, "invalid board file")
	}
	b.setDefaults()
	if err := b.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &b, nil
}

func (b *Board) setDefaults() {
	if b.Memory.Mode == "" {
		b.Memory.Mode = MemNone
		if b.Memory.Size > 0 {
			b.Memory.Mode = MemWindow
		}
	}
	if b.Memory.Mode == MemDevMem && b.Memory.Device == "" {
		b.Memory.Device = "/dev/mem"
	}
	for _, mb := range b.Mailboxes {
		if mb != nil && mb.BaudRate == 0 {
			mb.BaudRate = 115200
		}
	}
}

// Validate reports every problem found in the board, not just the first one.
func (b *Board) Validate() error {
	var errs error
	if b.Timeout < 0 {
		errs = multierror.Append(errs, errors.Errorf("timeout must not be negative"))
	}
	seen := map[uint8]bool{}
	for i, mb := range b.Mailboxes {
		if mb == nil {
			errs = multierror.Append(errs, errors.Errorf("mailbox #%d: empty entry", i))
			continue
		}
		if seen[mb.ID] {
			errs = multierror.Append(errs, errors.AlreadyExistsf("mailbox %d", mb.ID))
		}
		seen[mb.ID] = true
		if err := validateURL(mb.URL); err != nil {
			errs = multierror.Append(errs, errors.Annotatef(err, "mailbox %d", mb.ID))
		}
	}
	for _, name := range b.ChannelNames() {
		c := b.Channels[name]
		if !seen[c.Mailbox] {
			errs = multierror.Append(errs, errors.NotFoundf("channel %q: mailbox %d", name, c.Mailbox))
		}
	}
	switch b.Memory.Mode {
	case MemNone, MemDirect:
	case MemWindow, MemDevMem:
		if b.Memory.Size <= 0 {
			errs = multierror.Append(errs, errors.Errorf("memory: %s mode needs a positive size", b.Memory.Mode))
		}
		if uint64(b.Memory.Base)+uint64(b.Memory.Size) > 1<<32 {
			errs = multierror.Append(errs, errors.Errorf("memory: window %#x+%#x exceeds the 32-bit address space", b.Memory.Base, b.Memory.Size))
		}
	default:
		errs = multierror.Append(errs, errors.NotSupportedf("memory mode %q", b.Memory.Mode))
	}
	return errs
}

func validateURL(addr string) error {
	if addr == "" {
		return errors.Errorf("url is required")
	}
	if !strings.Contains(addr, "://") {
		// Bare serial device path.
		return nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return errors.Trace(err)
	}
	if !mailboxSchemes[u.Scheme] {
		return errors.NotSupportedf("scheme %q", u.Scheme)
	}
	return nil
}

// ChannelNames returns the named channels, sorted.
func (b *Board) ChannelNames() []string {
	var names []string
	for name := range b.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mailbox returns the mailbox with the given id.
func (b *Board) Mailbox(id uint8) (*Mailbox, error) {
	for _, mb := range b.Mailboxes {
		if mb.ID == id {
			return mb, nil
		}
	}
	return nil, errors.NotFoundf("mailbox %d", id)
}

// ResolveChannel accepts a channel name from the board, "mailbox/channel", or a
// bare channel number on defaultMailbox.
func (b *Board) ResolveChannel(s string, defaultMailbox uint8) (Channel, error) {
	if c, ok := b.Channels[s]; ok {
		return c, nil
	}
	var c Channel
	if n, _ := fmt.Sscanf(s, "%d/%d", &c.Mailbox, &c.Channel); n == 2 && s == c.String() {
		return c, nil
	}
	var num uint8
	if n, _ := fmt.Sscanf(s, "%d", &num); n == 1 && s == fmt.Sprint(num) {
		return Channel{Mailbox: defaultMailbox, Channel: num}, nil
	}
	return Channel{}, errors.NotFoundf("channel %q", s)
}
