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

package flags

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestTLSConfigFromFlags(t *testing.T) {
	tc, err := TLSConfigFromFlags()
	if err != nil {
		t.Fatalf("TLSConfigFromFlags: %s", err)
	}
	if !tc.InsecureSkipVerify {
		t.Errorf("no CA file: want InsecureSkipVerify")
	}

	*CertFile = "client.crt"
	defer func() { *CertFile = "" }()
	if _, err := TLSConfigFromFlags(); err == nil {
		t.Errorf("cert without key should be rejected")
	}
	*CertFile = ""

	dir, err := ioutil.TempDir("", "flags")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	ca := filepath.Join(dir, "ca.pem")
	if err := ioutil.WriteFile(ca, []byte("not a certificate"), 0644); err != nil {
		t.Fatal(err)
	}
	*CAFile = ca
	defer func() { *CAFile = "" }()
	if _, err := TLSConfigFromFlags(); err == nil {
		t.Errorf("CA file without certificates should be rejected")
	}
}
