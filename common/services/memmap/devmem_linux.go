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

//go:build linux

package memmap

import (
	"os"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

// DevMem is a Window backed by a mapping of physical memory, typically the
// shared SRAM region reserved for services packets.
type DevMem struct {
	*Window
	f   *os.File
	raw []byte
}

// OpenDevMem maps size bytes of physical memory at base from path (usually /dev/mem).
func OpenDevMem(path string, base Addr, size int) (*DevMem, error) {
	pageSize := uint32(os.Getpagesize())
	if uint32(base)%pageSize != 0 {
		return nil, errors.Errorf("base %s is not page aligned", base)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open %s", path)
	}
	raw, err := unix.Mmap(int(f.Fd()), int64(base), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Annotatef(err, "failed to map %d bytes at %s", size, base)
	}
	glog.Infof("mapped %s: %d bytes at %s", path, size, base)
	return &DevMem{Window: NewWindow(base, raw), f: f, raw: raw}, nil
}

func (m *DevMem) Close() error {
	err := unix.Munmap(m.raw)
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return errors.Trace(err)
}
