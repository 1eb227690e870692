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

// Everything in this file is part of the persisted or wire contract with the
// secure subsystem. Do not renumber.

// OTP word offsets.
const (
	OTPManufactureInfoSerialNumberLow  = 0x5F
	OTPManufactureInfoSerialNumberHigh = 0x60
	OTPManufactureInfoPartNumberStart  = 0x61
	OTPManufactureInfoPartNumberWords  = 4
	OTPManufactureInfoWaferLot         = 0x65
	OTPManufactureInfoWaferXY          = 0x66
	OTPCustomerKeyStart                = 0x100
	OTPCustomerKeyWords                = 8
	OTPCustomerAreaEnd                 = 0x1FF
)

// Memory retention masks for SvcMemRetentionConfig.
const (
	MemRetainSRAM0     = 1 << 0
	MemRetainSRAM1     = 1 << 1
	MemRetainSERAM     = 1 << 2
	MemRetainFWRAM     = 1 << 3
	MemRetainBackupRAM = 1 << 4
	MemRetainHETCM     = 1 << 5
)

// Wake-up source masks for SvcSetPowerMode.
//
// These are built exactly as the vendor header builds them, with a right
// shift. Every mask except WakeupSourceRTC evaluates to zero; verify against
// the PMU register description before relying on them.
const (
	WakeupSourceRTC        = 1 >> 0
	WakeupSourceLPGPIO     = 1 >> 1
	WakeupSourceLPTimer    = 1 >> 2
	WakeupSourceComparator = 1 >> 3
	WakeupSourceVBAT       = 1 >> 4
)

// Power modes.
const (
	PowerModeIdle    = 0
	PowerModeStandby = 1
	PowerModeStop    = 2
)

// Lifecycle states as reported by SvcGetLCS.
const (
	LCSChipManufacture   = 0
	LCSDeviceManufacture = 1
	LCSSecureEnabled     = 5
	LCSRMA               = 7
)

// CPU ids used by boot and TOC services.
const (
	CPUA32_0  = 0
	CPUA32_1  = 1
	CPUM55_HP = 2
	CPUM55_HE = 3
)

// Crypto selectors.
const (
	AESModeECB = 0
	AESModeCBC = 1
	AESModeCTR = 2

	DirectionEncrypt = 0
	DirectionDecrypt = 1

	SHATypeSHA1   = 0
	SHATypeSHA224 = 1
	SHATypeSHA256 = 2

	AEADAlgCCM = 0
	AEADAlgGCM = 1
)

// Clocks, clock sources and dividers.
const (
	ClockCAN     = 0
	ClockI3C     = 1
	ClockADC     = 2
	ClockUSB     = 3
	ClockHFOSC   = 4
	ClockCryptoC = 5

	ClockSourceHFRC = 0
	ClockSourceHFXO = 1
	ClockSourcePLL  = 2
	ClockSourceLFXO = 3
	ClockSourceLFRC = 4

	DividerCPUSPIN = 0
	DividerSYSREF  = 1
	DividerACLK    = 2
	DividerHCLK    = 3
	DividerPCLK    = 4
)
