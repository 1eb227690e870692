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
	"runtime"
	"sync"
	"unsafe"

	"github.com/juju/errors"
)

// Direct passes the caller's own buffer addresses to the secure subsystem.
//
// It is only valid when the caller runs on a core that shares the physical
// memory map with the secure subsystem and the Go heap lives in memory the
// subsystem may access. Translate maps a local pointer to the global address
// the subsystem uses (e.g. for tightly-coupled memories); nil means identity.
//
// Buffers are pinned only for the lifetime of the stage. After Abandon the
// subsystem may still write into them, so they must not be reused.
type Direct struct {
	Translate func(p uintptr) (Addr, error)

	mu         sync.Mutex
	quarantine [][]byte
}

func (d *Direct) NewStage() Stage {
	return &directStage{d: d}
}

type directStage struct {
	d    *Direct
	bufs [][]byte
}

func (s *directStage) addr(b []byte) (Addr, error) {
	if len(b) == 0 {
		return Null, nil
	}
	p := uintptr(unsafe.Pointer(&b[0]))
	s.bufs = append(s.bufs, b)
	if s.d.Translate != nil {
		a, err := s.d.Translate(p)
		return a, errors.Trace(err)
	}
	if uint64(p)+uint64(len(b)) > 1<<32 {
		return Null, errors.Errorf("buffer at %#x is outside the 32-bit address space", p)
	}
	return Addr(p), nil
}

func (s *directStage) In(b []byte) (Addr, error)    { return s.addr(b) }
func (s *directStage) Out(b []byte) (Addr, error)   { return s.addr(b) }
func (s *directStage) InOut(b []byte) (Addr, error) { return s.addr(b) }
func (s *directStage) Sync() error                  { return nil }

func (s *directStage) Release() {
	runtime.KeepAlive(s.bufs)
	s.bufs = nil
}

func (s *directStage) Abandon() {
	// Keep the buffers reachable forever: the remote side may still write.
	s.d.mu.Lock()
	s.d.quarantine = append(s.d.quarantine, s.bufs...)
	s.d.mu.Unlock()
	s.bufs = nil
}
