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

// Package codec implements mailbox transports for services frames.
package codec

import (
	"context"
	"io"
	"runtime"
	"strings"

	"github.com/juju/errors"

	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

// Codec is a mailbox: a frame transport between the host and the enclave.
// Implementations are safe for one concurrent sender and one receiver.
type Codec interface {
	Recv(context.Context) (*frame.Frame, error)
	Send(context.Context, *frame.Frame) error
	Close()
	// CloseNotify is closed once the mailbox has been closed.
	CloseNotify() <-chan struct{}
	// MaxNumFrames is how many frames Send can take right now; negative means no limit.
	MaxNumFrames() int
	Info() ConnectionInfo
	SetOptions(opts *Options) error
}

// Options holds transport specific settings. Codecs ignore fields for other transports.
type Options struct {
	MQTT   MQTTCodecOptions
	Serial SerialCodecOptions
}

// ConnectionInfo describes the link under a mailbox.
type ConnectionInfo struct {
	IsConnected bool
	TLS         bool
	RemoteAddr  string
}

// IsEOF returns true when err means "end of file".
func IsEOF(err error) bool {
	if err == nil {
		return false
	}
	if errors.Cause(err) == io.EOF {
		return true
	}
	// A COM port that disappears on Windows fails reads with an abort instead.
	return runtime.GOOS == "windows" && strings.Contains(err.Error(), "I/O operation has been aborted")
}
