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

// Package errcode maps raw status values returned by the secure subsystem to
// the error taxonomy seen by callers.
package errcode

import (
	"fmt"

	"github.com/juju/errors"
)

// Kind is the coarse error class.
type Kind int

const (
	KindNone Kind = iota
	// TransportUnavailable: channel not registered, mailbox closed or busy, or the
	// remote side refused the packet.
	TransportUnavailable
	// Timeout: no response within the bound of a synchronous call.
	Timeout
	// ProtocolMismatch: the response does not fit the request.
	ProtocolMismatch
	// RemoteFailure: the remote side executed the request and reported a failure.
	RemoteFailure
	// SerializationViolation: a second synchronous call on a busy channel.
	SerializationViolation
	// Cancelled: the call was cancelled before a response arrived.
	Cancelled
)

var kindNames = map[Kind]string{
	KindNone:               "none",
	TransportUnavailable:   "transport unavailable",
	Timeout:                "timeout",
	ProtocolMismatch:       "protocol mismatch",
	RemoteFailure:          "remote failure",
	SerializationViolation: "serialization violation",
	Cancelled:              "cancelled",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// SubKind refines RemoteFailure when the code range allows it.
type SubKind int

const (
	SubKindNone SubKind = iota
	// SubKindUnknown: a nonzero code outside the known set of the subsystem.
	SubKindUnknown
	SubKindFailure
	SubKindInvalidParameter
	SubKindInvalidKeyType
	SubKindInvalidMode
	SubKindInvalidLength
	SubKindWriteFailed
)

var subKindNames = map[SubKind]string{
	SubKindNone:             "",
	SubKindUnknown:          "subsystem failure",
	SubKindFailure:          "failure",
	SubKindInvalidParameter: "invalid parameter",
	SubKindInvalidKeyType:   "invalid key type",
	SubKindInvalidMode:      "invalid mode",
	SubKindInvalidLength:    "invalid buffer length",
	SubKindWriteFailed:      "write failed",
}

func (s SubKind) String() string {
	if n, ok := subKindNames[s]; ok {
		return n
	}
	return fmt.Sprintf("subkind(%d)", int(s))
}

// Subsystem selects the code range used to interpret a raw status.
type Subsystem int

const (
	SubsystemService Subsystem = iota
	SubsystemPinmux
	SubsystemOTPKeyWrite
	SubsystemCrypto
)

func (s Subsystem) String() string {
	switch s {
	case SubsystemService:
		return "service"
	case SubsystemPinmux:
		return "pinmux"
	case SubsystemOTPKeyWrite:
		return "otp-key-write"
	case SubsystemCrypto:
		return "crypto"
	}
	return fmt.Sprintf("subsystem(%d)", int(s))
}

// Raw status values.
const (
	Success uint32 = 0x0

	ServiceFail uint32 = 0x200

	PinmuxInvalidParameter uint32 = 0x200

	OTPKeyWriteInvalidParameter uint32 = 0x200
	OTPKeyWriteFailed           uint32 = 0x201

	CryptoInvalidBufferLength uint32 = 0xFFFFFFFC
	CryptoInvalidMode         uint32 = 0xFFFFFFFD
	CryptoInvalidKeyType      uint32 = 0xFFFFFFFE
	CryptoInvalidParameter    uint32 = 0xFFFFFFFF
)

var ranges = map[Subsystem]map[uint32]SubKind{
	SubsystemService: {
		ServiceFail: SubKindFailure,
	},
	SubsystemPinmux: {
		PinmuxInvalidParameter: SubKindInvalidParameter,
	},
	SubsystemOTPKeyWrite: {
		OTPKeyWriteInvalidParameter: SubKindInvalidParameter,
		OTPKeyWriteFailed:           SubKindWriteFailed,
	},
	SubsystemCrypto: {
		CryptoInvalidParameter:    SubKindInvalidParameter,
		CryptoInvalidKeyType:      SubKindInvalidKeyType,
		CryptoInvalidMode:         SubKindInvalidMode,
		CryptoInvalidBufferLength: SubKindInvalidLength,
	},
}

// Error is the error value produced by the services client.
type Error struct {
	Kind      Kind
	Sub       SubKind
	Subsystem Subsystem
	// Code is the raw status returned by the remote side, if any.
	Code uint32
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Kind == RemoteFailure {
		s += fmt.Sprintf(" (%s %s, code %#x)", e.Subsystem, e.Sub, e.Code)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

// New returns an error of the given kind.
func New(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Translate maps a raw status from the given subsystem to an error. Zero maps
// to nil; codes outside the subsystem's known set map to SubKindUnknown.
func Translate(raw uint32, sub Subsystem) error {
	if raw == Success {
		return nil
	}
	sk, ok := ranges[sub][raw]
	if !ok {
		sk = SubKindUnknown
	}
	return &Error{Kind: RemoteFailure, Sub: sk, Subsystem: sub, Code: raw}
}

func asError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := errors.Cause(err).(*Error); ok {
		return e
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return nil
}

// KindOf returns the Kind of err. Errors that did not come from the services
// client report TransportUnavailable; nil reports KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	if e := asError(err); e != nil {
		return e.Kind
	}
	return TransportUnavailable
}

// SubKindOf returns the SubKind of err, SubKindNone if it has none.
func SubKindOf(err error) SubKind {
	if e := asError(err); e != nil {
		return e.Sub
	}
	return SubKindNone
}

// CodeOf returns the raw remote status carried by err, 0 if none.
func CodeOf(err error) uint32 {
	if e := asError(err); e != nil {
		return e.Code
	}
	return 0
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
