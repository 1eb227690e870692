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

package main

import (
	"io"

	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services/memmap"
)

func openDevMem(path string, base memmap.Addr, size int) (memmap.Space, io.Closer, error) {
	m, err := memmap.OpenDevMem(path, base, size)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return m, m, nil
}
