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

// SetPowerMode requests a power mode. wakeup is a mask of frame.WakeupSource*.
func (ch *Channel) SetPowerMode(ctx context.Context, mode, wakeup uint32) error {
	return errors.Trace(ch.Call(ctx, frame.SvcSetPowerMode, &frame.PowerModeParams{Mode: mode, WakeupSources: wakeup}, nil))
}

// SetMemRetention selects the memories retained in low power modes, a mask of
// frame.MemRetain*.
func (ch *Channel) SetMemRetention(ctx context.Context, mask uint32) error {
	return errors.Trace(ch.Call(ctx, frame.SvcMemRetentionConfig, &frame.MemRetentionParams{Mask: mask}, nil))
}
