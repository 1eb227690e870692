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
	"bytes"
	"testing"

	"github.com/juju/errors"
)

func TestWindowStageRoundTrip(t *testing.T) {
	w := NewWindow(0x20000000, make([]byte, 256))
	st := w.NewStage()

	in := []byte("hello")
	out := make([]byte, 4)
	inAddr, err := st.In(in)
	if err != nil {
		t.Fatalf("In: %s", err)
	}
	outAddr, err := st.Out(out)
	if err != nil {
		t.Fatalf("Out: %s", err)
	}
	if inAddr != 0x20000000 {
		t.Errorf("first area at %s, want window base", inAddr)
	}
	if outAddr%windowAlign != 0 || outAddr == inAddr {
		t.Errorf("bad out address %s", outAddr)
	}

	// The remote side reads the input and writes the output.
	got := make([]byte, len(in))
	if err := w.ReadAt(inAddr, got); err != nil {
		t.Fatalf("ReadAt: %s", err)
	}
	if !bytes.Equal(got, in) {
		t.Errorf("remote read %q, want %q", got, in)
	}
	if err := w.WriteAt(outAddr, []byte{0xAA, 0xBB, 0xCC, 0xDD}); err != nil {
		t.Fatalf("WriteAt: %s", err)
	}
	if err := st.Sync(); err != nil {
		t.Fatalf("Sync: %s", err)
	}
	if want := []byte{0xAA, 0xBB, 0xCC, 0xDD}; !bytes.Equal(out, want) {
		t.Errorf("out: got % x, want % x", out, want)
	}
	st.Release()
	if got := w.InUse(); got != 0 {
		t.Errorf("InUse after Release: %d", got)
	}
}

func TestWindowEmptyBuffer(t *testing.T) {
	w := NewWindow(0x1000, make([]byte, 64))
	st := w.NewStage()
	defer st.Release()
	a, err := st.In(nil)
	if err != nil || a != Null {
		t.Errorf("got %s, %v; want Null, nil", a, err)
	}
}

func TestWindowExhaustionAndReuse(t *testing.T) {
	w := NewWindow(0x1000, make([]byte, 32))
	st1 := w.NewStage()
	if _, err := st1.In(make([]byte, 20)); err != nil {
		t.Fatalf("In: %s", err)
	}
	st2 := w.NewStage()
	if _, err := st2.In(make([]byte, 16)); err == nil {
		t.Errorf("allocation beyond window size succeeded")
	}
	st2.Release()
	st1.Release()
	st3 := w.NewStage()
	defer st3.Release()
	if _, err := st3.In(make([]byte, 32)); err != nil {
		t.Errorf("whole window after release: %s", err)
	}
}

func TestWindowAbandon(t *testing.T) {
	w := NewWindow(0x1000, make([]byte, 64))
	st := w.NewStage()
	if _, err := st.Out(make([]byte, 16)); err != nil {
		t.Fatalf("Out: %s", err)
	}
	st.Abandon()
	st.Release()
	if got, want := w.InUse(), 16; got != want {
		t.Errorf("InUse after Abandon: got %d, want %d", got, want)
	}
	if _, err := st.In([]byte{1}); err == nil {
		t.Errorf("abandoned stage accepted a buffer")
	}
	w.Reset()
	if got := w.InUse(); got != 0 {
		t.Errorf("InUse after Reset: %d", got)
	}
}

func TestWindowOutOfRange(t *testing.T) {
	w := NewWindow(0x1000, make([]byte, 16))
	for _, a := range []Addr{0x0fff, 0x1010, 0x100c} {
		err := w.ReadAt(a, make([]byte, 8))
		if errors.Cause(err) != ErrOutOfRange {
			t.Errorf("%s: got %v, want out of range", a, err)
		}
	}
}

func TestDirectTranslate(t *testing.T) {
	d := &Direct{Translate: func(p uintptr) (Addr, error) { return 0x30000000, nil }}
	st := d.NewStage()
	a, err := st.In([]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("In: %s", err)
	}
	if a != 0x30000000 {
		t.Errorf("got %s", a)
	}
	if a, _ := st.Out(nil); a != Null {
		t.Errorf("empty buffer: got %s", a)
	}
	st.Abandon()
	if got := len(d.quarantine); got != 1 {
		t.Errorf("quarantined %d buffers, want 1", got)
	}
}

func TestAddrString(t *testing.T) {
	if got, want := Addr(0x1000).String(), "0x00001000"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
