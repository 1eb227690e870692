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

package codec

import (
	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

// A frame on message-oriented links is the channel number followed by the packet.
const wireFrameSize = 1 + frame.MaxPacketSize

func marshalFrame(f *frame.Frame) []byte {
	b := make([]byte, wireFrameSize)
	b[0] = f.Channel
	copy(b[1:], f.Packet[:])
	return b
}

func unmarshalFrame(b []byte) (*frame.Frame, error) {
	if len(b) != wireFrameSize {
		return nil, errors.Errorf("bad frame size %d, want %d", len(b), wireFrameSize)
	}
	f := &frame.Frame{Channel: b[0]}
	copy(f.Packet[:], b[1:])
	return f, nil
}
