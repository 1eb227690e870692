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

package ourutil

import (
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFindNamedSubmatches(t *testing.T) {
	re := regexp.MustCompile(`^(?P<mailbox>\d+)/(?P<channel>\d+)$`)
	got := FindNamedSubmatches(re, "1/3")
	want := map[string]string{"mailbox": "1", "channel": "3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FindNamedSubmatches mismatch (-want +got):\n%s", diff)
	}
	if got := FindNamedSubmatches(re, "1-3"); got != nil {
		t.Errorf("got: %v, want: nil", got)
	}
}

func TestParseUint(t *testing.T) {
	for _, c := range []struct {
		s    string
		bits int
		want uint64
		ok   bool
	}{
		{"17", 8, 17, true},
		{"0x20000000", 32, 0x20000000, true},
		{"0b101", 8, 5, true},
		{"0x1_0000", 32, 0x10000, true},
		{"256", 8, 0, false},
		{"-1", 32, 0, false},
		{"pin", 8, 0, false},
	} {
		got, err := ParseUint("value", c.s, c.bits)
		if (err == nil) != c.ok {
			t.Errorf("%q: got err %v, want ok=%t", c.s, err, c.ok)
			continue
		}
		if got != c.want {
			t.Errorf("%q: got: %#x, want: %#x", c.s, got, c.want)
		}
	}
}

func TestParseHex(t *testing.T) {
	for _, s := range []string{"aabbccdd", "0xAABBCCDD", "aa:bb:cc:dd", "aa bb cc dd"} {
		got, err := ParseHex("key", s)
		if err != nil {
			t.Errorf("%q: %s", s, err)
			continue
		}
		if diff := cmp.Diff([]byte{0xaa, 0xbb, 0xcc, 0xdd}, got); diff != "" {
			t.Errorf("%q: mismatch (-want +got):\n%s", s, diff)
		}
	}
	if _, err := ParseHex("key", "abc"); err == nil {
		t.Errorf("odd length should be rejected")
	}
}
