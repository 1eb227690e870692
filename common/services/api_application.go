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

// Pinmux selects the alternate function of a pin.
func (ch *Channel) Pinmux(ctx context.Context, port, pin, function uint8) error {
	return errors.Trace(ch.Call(ctx, frame.SvcPinmux, &frame.PinmuxParams{
		Port:     port,
		Pin:      pin,
		Function: function,
	}, nil))
}

// PadControl writes the pad configuration (drive strength, pulls, etc.) of a pin.
func (ch *Channel) PadControl(ctx context.Context, port, pin uint8, config uint32) error {
	return errors.Trace(ch.Call(ctx, frame.SvcPadControl, &frame.PadControlParams{
		Port:   port,
		Pin:    pin,
		Config: config,
	}, nil))
}
