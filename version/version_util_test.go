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

package version

import (
	"testing"
)

func setVersion(t *testing.T, v string) {
	old := Version
	Version = v
	t.Cleanup(func() { Version = old })
}

func TestGetVersion(t *testing.T) {
	setVersion(t, "1.2.3")
	if got, want := GetVersion(), "1.2.3"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}

	setVersion(t, "20191017-101010/master@0123abcd")
	if got, want := GetVersion(), LatestVersionName; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestAtLeast(t *testing.T) {
	for _, c := range []struct {
		version string
		min     string
		want    bool
	}{
		{"1.2.0", "1.2", true},
		{"1.10.0", "1.9.1", true},
		{"1.1.9", "1.2.0", false},
		{"latest", "99.0", true},
	} {
		setVersion(t, c.version)
		if got := AtLeast(c.min); got != c.want {
			t.Errorf("%s >= %s: got: %t, want: %t", c.version, c.min, got, c.want)
		}
	}
}

func TestGetBuildIDParts(t *testing.T) {
	parts := GetBuildIDParts("20191017-101010/master@0123abcd+")
	if parts == nil {
		t.Fatalf("build id not recognized")
	}
	if got, want := parts["branch"], "master"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if got, want := parts["hash"], "0123abcd"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if got, want := parts["dirty"], "+"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}

	if parts := GetBuildIDParts("1.2.3"); parts != nil {
		t.Errorf("got: %v, want: nil", parts)
	}
}
