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

package services

import (
	"context"

	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

// ProcessTOCEntry asks the secure subsystem to load the named image.
func (ch *Channel) ProcessTOCEntry(ctx context.Context, name string) error {
	if len(name) > frame.TOCNameSize {
		return errors.Errorf("image name %q is longer than %d", name, frame.TOCNameSize)
	}
	return errors.Trace(ch.Call(ctx, frame.SvcProcessTOCEntry, &frame.ProcessTOCEntryParams{Name: frame.MakeTOCName(name)}, nil))
}

// BootCPU starts cpu at address.
func (ch *Channel) BootCPU(ctx context.Context, cpu, address uint32) error {
	return errors.Trace(ch.Call(ctx, frame.SvcBootCPU, &frame.BootCPUParams{CPUID: cpu, Address: address}, nil))
}

func (ch *Channel) ReleaseCPU(ctx context.Context, cpu uint32) error {
	return errors.Trace(ch.Call(ctx, frame.SvcReleaseCPU, &frame.CPUParams{CPUID: cpu}, nil))
}

func (ch *Channel) ResetCPU(ctx context.Context, cpu uint32) error {
	return errors.Trace(ch.Call(ctx, frame.SvcResetCPU, &frame.CPUParams{CPUID: cpu}, nil))
}

// ResetSoC resets the whole chip. The response may be lost in the reset, in
// which case the call times out.
func (ch *Channel) ResetSoC(ctx context.Context) error {
	return errors.Trace(ch.Call(ctx, frame.SvcResetSoC, nil, nil))
}
