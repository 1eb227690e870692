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

// Package memmap implements the address capability used by parameter blocks
// that carry buffer addresses to the secure subsystem.
//
// The secure subsystem dereferences those addresses in its own view of the
// physical memory map, so a caller must either live in the same address space
// (Direct) or stage its buffers in a region both sides can reach (Window,
// OpenDevMem).
package memmap

import (
	"fmt"

	"github.com/juju/errors"
)

// Addr is a 32-bit global address as seen by the secure subsystem.
type Addr uint32

func (a Addr) String() string {
	return fmt.Sprintf("%#08x", uint32(a))
}

// Space hands out staging areas, one per call.
type Space interface {
	NewStage() Stage
}

// Stage tracks the buffers referenced by a single request.
type Stage interface {
	// In makes b readable by the remote side and returns its address.
	In(b []byte) (Addr, error)
	// Out reserves space the remote side writes into; Sync copies it back into b.
	Out(b []byte) (Addr, error)
	// InOut combines In and Out.
	InOut(b []byte) (Addr, error)
	// Sync copies Out and InOut areas back into the caller's buffers.
	Sync() error
	// Release returns staged areas to the space.
	Release()
	// Abandon is used when the remote side may still touch the areas (e.g. after
	// a timeout). The areas stay reserved until the space is reset.
	Abandon()
}

// Memory is the remote side's view of a staging region.
type Memory interface {
	ReadAt(addr Addr, b []byte) error
	WriteAt(addr Addr, b []byte) error
}

// ErrOutOfRange is returned when an address does not fall inside a region.
var ErrOutOfRange = errors.New("address out of range")

// Null is returned for empty buffers.
const Null Addr = 0
