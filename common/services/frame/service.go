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

import "fmt"

// ServiceID identifies a remote operation (the request opcode).
type ServiceID uint16

const (
	SvcHeartbeat ServiceID = 0

	SvcPinmux     ServiceID = 11
	SvcPadControl ServiceID = 12

	SvcGetTOCVersion       ServiceID = 100
	SvcGetTOCNumber        ServiceID = 101
	SvcGetTOCViaName       ServiceID = 102
	SvcGetTOCViaCPUID      ServiceID = 103
	SvcGetDevicePartNumber ServiceID = 106
	SvcGetSERevision       ServiceID = 107
	SvcReadOTP             ServiceID = 109
	SvcWriteOTPKey         ServiceID = 110

	SvcGetRND     ServiceID = 200
	SvcGetLCS     ServiceID = 201
	SvcAES        ServiceID = 202
	SvcSHA        ServiceID = 203
	SvcAEAD       ServiceID = 204
	SvcChaChaPoly ServiceID = 205
	SvcCMAC       ServiceID = 206

	SvcProcessTOCEntry ServiceID = 300
	SvcBootCPU         ServiceID = 301
	SvcReleaseCPU      ServiceID = 302
	SvcResetCPU        ServiceID = 303
	SvcResetSoC        ServiceID = 304

	SvcSetPowerMode       ServiceID = 400
	SvcMemRetentionConfig ServiceID = 401

	SvcClockSelectSource ServiceID = 500
	SvcClockSetEnable    ServiceID = 501
	SvcClockSetDivider   ServiceID = 502
	SvcPLLXtalStart      ServiceID = 503
	SvcPLLClkStart       ServiceID = 504
	SvcPLLStop           ServiceID = 505
)

var serviceNames = map[ServiceID]string{
	SvcHeartbeat:           "Heartbeat",
	SvcPinmux:              "Pinmux",
	SvcPadControl:          "PadControl",
	SvcGetTOCVersion:       "GetTOCVersion",
	SvcGetTOCNumber:        "GetTOCNumber",
	SvcGetTOCViaName:       "GetTOCViaName",
	SvcGetTOCViaCPUID:      "GetTOCViaCPUID",
	SvcGetDevicePartNumber: "GetDevicePartNumber",
	SvcGetSERevision:       "GetSERevision",
	SvcReadOTP:             "ReadOTP",
	SvcWriteOTPKey:         "WriteOTPKey",
	SvcGetRND:              "GetRND",
	SvcGetLCS:              "GetLCS",
	SvcAES:                 "AES",
	SvcSHA:                 "SHA",
	SvcAEAD:                "AEAD",
	SvcChaChaPoly:          "ChaChaPoly",
	SvcCMAC:                "CMAC",
	SvcProcessTOCEntry:     "ProcessTOCEntry",
	SvcBootCPU:             "BootCPU",
	SvcReleaseCPU:          "ReleaseCPU",
	SvcResetCPU:            "ResetCPU",
	SvcResetSoC:            "ResetSoC",
	SvcSetPowerMode:        "SetPowerMode",
	SvcMemRetentionConfig:  "MemRetentionConfig",
	SvcClockSelectSource:   "ClockSelectSource",
	SvcClockSetEnable:      "ClockSetEnable",
	SvcClockSetDivider:     "ClockSetDivider",
	SvcPLLXtalStart:        "PLLXtalStart",
	SvcPLLClkStart:         "PLLClkStart",
	SvcPLLStop:             "PLLStop",
}

func (id ServiceID) String() string {
	if n, ok := serviceNames[id]; ok {
		return n
	}
	return fmt.Sprintf("Service(%d)", uint16(id))
}

// Known reports whether id is a service this library knows about.
func (id ServiceID) Known() bool {
	_, ok := serviceNames[id]
	return ok
}

// Group returns the service group id belongs to.
func (id ServiceID) Group() Group {
	switch {
	case id < 10:
		return GroupMaintenance
	case id < 100:
		return GroupApplication
	case id < 200:
		return GroupSystemManagement
	case id < 300:
		return GroupCrypto
	case id < 400:
		return GroupBoot
	case id < 500:
		return GroupPower
	default:
		return GroupClocks
	}
}

type Group int

const (
	GroupMaintenance Group = iota
	GroupApplication
	GroupSystemManagement
	GroupCrypto
	GroupBoot
	GroupPower
	GroupClocks
)

// Ack is the transport-level acknowledgement carried in every response.
type Ack uint8

const (
	AckSuccess        Ack = 0x00
	AckUnknownCommand Ack = 0xFC
	AckTimeout        Ack = 0xFD
	AckPacketError    Ack = 0xFE
	AckNotAcknowledge Ack = 0xFF
)

func (a Ack) String() string {
	switch a {
	case AckSuccess:
		return "ok"
	case AckUnknownCommand:
		return "unknown-command"
	case AckTimeout:
		return "remote-timeout"
	case AckPacketError:
		return "packet-error"
	case AckNotAcknowledge:
		return "nak"
	}
	return fmt.Sprintf("ack(%#x)", uint8(a))
}
