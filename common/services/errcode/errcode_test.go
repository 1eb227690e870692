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

package errcode

import (
	"testing"

	"github.com/juju/errors"
)

func TestTranslate(t *testing.T) {
	for _, tc := range []struct {
		raw  uint32
		sub  Subsystem
		kind Kind
		sk   SubKind
	}{
		{0, SubsystemService, KindNone, SubKindNone},
		{0, SubsystemCrypto, KindNone, SubKindNone},
		{0x200, SubsystemService, RemoteFailure, SubKindFailure},
		{0x200, SubsystemPinmux, RemoteFailure, SubKindInvalidParameter},
		{0x200, SubsystemOTPKeyWrite, RemoteFailure, SubKindInvalidParameter},
		{0x201, SubsystemOTPKeyWrite, RemoteFailure, SubKindWriteFailed},
		{0x201, SubsystemService, RemoteFailure, SubKindUnknown},
		{0xFFFFFFFF, SubsystemCrypto, RemoteFailure, SubKindInvalidParameter},
		{0xFFFFFFFE, SubsystemCrypto, RemoteFailure, SubKindInvalidKeyType},
		{0xFFFFFFFD, SubsystemCrypto, RemoteFailure, SubKindInvalidMode},
		{0xFFFFFFFC, SubsystemCrypto, RemoteFailure, SubKindInvalidLength},
		{0x1234, SubsystemCrypto, RemoteFailure, SubKindUnknown},
		{0xFFFFFFFF, SubsystemPinmux, RemoteFailure, SubKindUnknown},
	} {
		err := Translate(tc.raw, tc.sub)
		if got := KindOf(err); got != tc.kind {
			t.Errorf("%#x/%s: kind got %s, want %s", tc.raw, tc.sub, got, tc.kind)
		}
		if got := SubKindOf(err); got != tc.sk {
			t.Errorf("%#x/%s: subkind got %q, want %q", tc.raw, tc.sub, got, tc.sk)
		}
		if err != nil {
			if got := CodeOf(err); got != tc.raw {
				t.Errorf("%#x/%s: code got %#x", tc.raw, tc.sub, got)
			}
		}
	}
}

func TestKindThroughAnnotations(t *testing.T) {
	err := errors.Annotatef(Translate(0x200, SubsystemPinmux), "pinmux port %d", 3)
	if !Is(err, RemoteFailure) {
		t.Errorf("annotated error lost its kind: %v", err)
	}
	if got, want := SubKindOf(err), SubKindInvalidParameter; got != want {
		t.Errorf("subkind: got %s, want %s", got, want)
	}
	if got, want := KindOf(errors.New("boom")), TransportUnavailable; got != want {
		t.Errorf("foreign error: got %s, want %s", got, want)
	}
	if got, want := KindOf(nil), KindNone; got != want {
		t.Errorf("nil: got %s, want %s", got, want)
	}
}

func TestErrorString(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want string
	}{
		{New(Timeout, "Heartbeat", "no response in %s", "1s"), "Heartbeat: timeout: no response in 1s"},
		{New(SerializationViolation, "", "busy"), "serialization violation: busy"},
		{Translate(0x201, SubsystemOTPKeyWrite), "remote failure (otp-key-write write failed, code 0x201)"},
	} {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("got %q, want %q", got, tc.want)
		}
	}
}
