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

package memmap

import (
	"sort"
	"sync"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// Buffers are placed on this boundary inside a window.
const windowAlign = 8

type span struct {
	off, size uint32
}

// Window is a copy-based staging region: caller buffers are copied into a
// region that both sides address with the same global base.
type Window struct {
	base Addr

	mu        sync.Mutex
	mem       []byte
	used      []span // sorted by offset
	abandoned int
}

// NewWindow returns a window over mem whose first byte is at global address base.
func NewWindow(base Addr, mem []byte) *Window {
	return &Window{base: base, mem: mem}
}

func (w *Window) Base() Addr { return w.base }
func (w *Window) Size() int  { return len(w.mem) }

// InUse returns the number of bytes currently allocated, including abandoned areas.
func (w *Window) InUse() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, s := range w.used {
		n += int(s.size)
	}
	return n
}

// Reset drops every allocation, abandoned ones included.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.abandoned > 0 {
		glog.V(1).Infof("window %s: dropping %d abandoned areas", w.base, w.abandoned)
	}
	w.used = nil
	w.abandoned = 0
}

func (w *Window) alloc(size int) (uint32, error) {
	sz := (uint32(size) + windowAlign - 1) &^ (windowAlign - 1)
	w.mu.Lock()
	defer w.mu.Unlock()
	var off uint32
	idx := len(w.used)
	for i, s := range w.used {
		if s.off-off >= sz {
			idx = i
			break
		}
		off = s.off + s.size
	}
	if idx == len(w.used) && uint32(len(w.mem))-off < sz {
		return 0, errors.Errorf("window %s: no room for %d bytes", w.base, size)
	}
	w.used = append(w.used, span{})
	copy(w.used[idx+1:], w.used[idx:])
	w.used[idx] = span{off: off, size: sz}
	return off, nil
}

func (w *Window) free(off uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := sort.Search(len(w.used), func(i int) bool { return w.used[i].off >= off })
	if i < len(w.used) && w.used[i].off == off {
		w.used = append(w.used[:i], w.used[i+1:]...)
	}
}

func (w *Window) region(addr Addr, n int) ([]byte, error) {
	if addr < w.base {
		return nil, errors.Annotatef(ErrOutOfRange, "%s", addr)
	}
	off := uint64(addr - w.base)
	if off+uint64(n) > uint64(len(w.mem)) {
		return nil, errors.Annotatef(ErrOutOfRange, "%s+%d", addr, n)
	}
	return w.mem[off : off+uint64(n)], nil
}

// ReadAt copies len(b) bytes at addr into b.
func (w *Window) ReadAt(addr Addr, b []byte) error {
	r, err := w.region(addr, len(b))
	if err != nil {
		return errors.Trace(err)
	}
	w.mu.Lock()
	copy(b, r)
	w.mu.Unlock()
	return nil
}

// WriteAt copies b into the window at addr.
func (w *Window) WriteAt(addr Addr, b []byte) error {
	r, err := w.region(addr, len(b))
	if err != nil {
		return errors.Trace(err)
	}
	w.mu.Lock()
	copy(r, b)
	w.mu.Unlock()
	return nil
}

func (w *Window) NewStage() Stage {
	return &windowStage{w: w}
}

type staged struct {
	off  uint32
	buf  []byte
	back bool
}

type windowStage struct {
	w     *Window
	areas []staged
	done  bool
}

func (s *windowStage) put(b []byte, in, back bool) (Addr, error) {
	if s.done {
		return Null, errors.New("stage already released")
	}
	if len(b) == 0 {
		return Null, nil
	}
	off, err := s.w.alloc(len(b))
	if err != nil {
		return Null, errors.Trace(err)
	}
	s.areas = append(s.areas, staged{off: off, buf: b, back: back})
	addr := s.w.base + Addr(off)
	if in {
		if err := s.w.WriteAt(addr, b); err != nil {
			return Null, errors.Trace(err)
		}
	}
	glog.V(4).Infof("staged %d bytes at %s (in=%v out=%v)", len(b), addr, in, back)
	return addr, nil
}

func (s *windowStage) In(b []byte) (Addr, error)    { return s.put(b, true, false) }
func (s *windowStage) Out(b []byte) (Addr, error)   { return s.put(b, false, true) }
func (s *windowStage) InOut(b []byte) (Addr, error) { return s.put(b, true, true) }

func (s *windowStage) Sync() error {
	for _, a := range s.areas {
		if !a.back {
			continue
		}
		if err := s.w.ReadAt(s.w.base+Addr(a.off), a.buf); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (s *windowStage) Release() {
	if s.done {
		return
	}
	s.done = true
	for _, a := range s.areas {
		s.w.free(a.off)
	}
	s.areas = nil
}

func (s *windowStage) Abandon() {
	if s.done {
		return
	}
	s.done = true
	s.w.mu.Lock()
	s.w.abandoned += len(s.areas)
	s.w.mu.Unlock()
	glog.Warningf("window %s: %d staged areas abandoned", s.w.base, len(s.areas))
	s.areas = nil
}
