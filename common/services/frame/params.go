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

package frame

import (
	"bytes"

	"github.com/pa-cotte/hal-alif-sub005/common/services/memmap"
)

// Parameter and result blocks. Layouts are positional; field order and sizes
// are part of the contract with the secure subsystem.

const (
	TOCNameSize       = 8
	TOCMaxEntries     = 4
	SERevisionSize    = 80
	OTPMaxReadWords   = 32
	OTPMaxKeySize     = 32
	MaxRNDLength      = 32
	SHA256DigestSize  = 32
	AEADMaxTagSize    = 16
	ChaChaPolyKeySize = 32
)

type PinmuxParams struct {
	Port     uint8
	Pin      uint8
	Function uint8
	_        uint8
}

type PadControlParams struct {
	Port   uint8
	Pin    uint8
	_      [2]byte
	Config uint32
}

type TOCVersionResult struct {
	Version uint32
}

type TOCNumberResult struct {
	Number uint32
}

// TOCName is a fixed-size, zero-padded image name.
type TOCName [TOCNameSize]byte

func MakeTOCName(s string) TOCName {
	var n TOCName
	copy(n[:], s)
	return n
}

func (n TOCName) String() string {
	return string(bytes.TrimRight(n[:], "\x00"))
}

type TOCViaNameParams struct {
	Name TOCName
}

type TOCEntry struct {
	Name       TOCName
	Version    uint32
	CPU        uint32
	StoreAddr  uint32
	ObjectAddr uint32
	DestAddr   uint32
	BootAddr   uint32
	Size       uint32
	Flags      uint32
}

type TOCEntryResult struct {
	Entry TOCEntry
}

type TOCViaCPUIDParams struct {
	CPUID uint32
}

type TOCViaCPUIDResult struct {
	Count   uint32
	Entries [TOCMaxEntries]TOCEntry
}

type PartNumberResult struct {
	PartNumber uint32
}

type SERevisionResult struct {
	Revision [SERevisionSize]byte
}

type ReadOTPParams struct {
	Offset uint32
	Words  uint32
}

type ReadOTPResult struct {
	Words uint32
	Data  [OTPMaxReadWords * 4]byte
}

type WriteOTPKeyParams struct {
	Offset uint32
	Length uint32
	Key    [OTPMaxKeySize]byte
}

type GetRNDParams struct {
	Length uint32
}

type GetRNDResult struct {
	Length uint32
	Data   [MaxRNDLength]byte
}

type LCSResult struct {
	LCS uint32
}

type AESParams struct {
	Mode      uint32
	Direction uint32
	KeyAddr   memmap.Addr
	KeyBits   uint32
	IVAddr    memmap.Addr
	InputAddr memmap.Addr
	Length    uint32
	OutAddr   memmap.Addr
}

type SHAParams struct {
	Type       uint32
	InputAddr  memmap.Addr
	Length     uint32
	DigestAddr memmap.Addr
}

type AEADParams struct {
	Alg       uint32
	Direction uint32
	KeyAddr   memmap.Addr
	KeyBits   uint32
	NonceAddr memmap.Addr
	NonceLen  uint32
	AADAddr   memmap.Addr
	AADLen    uint32
	InputAddr memmap.Addr
	Length    uint32
	OutAddr   memmap.Addr
	TagAddr   memmap.Addr
	TagLen    uint32
}

type ChaChaPolyParams struct {
	Direction uint32
	KeyAddr   memmap.Addr
	NonceAddr memmap.Addr
	AADAddr   memmap.Addr
	AADLen    uint32
	InputAddr memmap.Addr
	Length    uint32
	OutAddr   memmap.Addr
	TagAddr   memmap.Addr
}

type CMACParams struct {
	KeyAddr   memmap.Addr
	KeyBits   uint32
	InputAddr memmap.Addr
	Length    uint32
	MACAddr   memmap.Addr
}

type ProcessTOCEntryParams struct {
	Name TOCName
}

type BootCPUParams struct {
	CPUID   uint32
	Address uint32
}

type CPUParams struct {
	CPUID uint32
}

type PowerModeParams struct {
	Mode          uint32
	WakeupSources uint32
}

type MemRetentionParams struct {
	Mask uint32
}

type ClockSourceParams struct {
	Clock  uint32
	Source uint32
}

type ClockEnableParams struct {
	Clock  uint32
	Enable uint32
}

type ClockDividerParams struct {
	Divider uint32
	Value   uint32
}

type PLLXtalStartParams struct {
	FastStart  uint8
	Boost      uint8
	_          [2]byte
	DelayCount uint32
}

type PLLClkStartParams struct {
	FastStart  uint8
	_          [3]byte
	DelayCount uint32
}

func Bool(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
