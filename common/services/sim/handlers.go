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

package sim

import (
	"encoding/binary"

	"github.com/pa-cotte/hal-alif-sub005/common/services/errcode"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

const (
	maxPort      = 15
	maxPin       = 7
	maxFunction  = 7
	maxCPU       = frame.CPUM55_HE
	maxClock     = frame.ClockCryptoC
	maxSource    = frame.ClockSourceLFRC
	maxDivider   = frame.DividerPCLK
	maxPowerMode = frame.PowerModeStop
	memRetainAll = frame.MemRetainSRAM0 | frame.MemRetainSRAM1 | frame.MemRetainSERAM |
		frame.MemRetainFWRAM | frame.MemRetainBackupRAM | frame.MemRetainHETCM
)

type reply struct {
	ack    frame.Ack
	code   uint32
	result interface{}
}

func ok(result interface{}) reply { return reply{result: result} }
func fail(code uint32) reply      { return reply{code: code} }

var badPacket = reply{ack: frame.AckPacketError}

type handler func(d *Device, payload []byte) reply

var handlers map[frame.ServiceID]handler

func init() {
	handlers = map[frame.ServiceID]handler{
		frame.SvcHeartbeat:           heartbeat,
		frame.SvcPinmux:              pinmux,
		frame.SvcPadControl:          padControl,
		frame.SvcGetTOCVersion:       getTOCVersion,
		frame.SvcGetTOCNumber:        getTOCNumber,
		frame.SvcGetTOCViaName:       getTOCViaName,
		frame.SvcGetTOCViaCPUID:      getTOCViaCPUID,
		frame.SvcGetDevicePartNumber: getDevicePartNumber,
		frame.SvcGetSERevision:       getSERevision,
		frame.SvcReadOTP:             readOTP,
		frame.SvcWriteOTPKey:         writeOTPKey,
		frame.SvcGetRND:              getRND,
		frame.SvcGetLCS:              getLCS,
		frame.SvcAES:                 aesOp,
		frame.SvcSHA:                 shaOp,
		frame.SvcAEAD:                aeadOp,
		frame.SvcChaChaPoly:          chachaPolyOp,
		frame.SvcCMAC:                cmacOp,
		frame.SvcProcessTOCEntry:     processTOCEntry,
		frame.SvcBootCPU:             bootCPU,
		frame.SvcReleaseCPU:          releaseCPU,
		frame.SvcResetCPU:            resetCPU,
		frame.SvcResetSoC:            resetSoC,
		frame.SvcSetPowerMode:        setPowerMode,
		frame.SvcMemRetentionConfig:  memRetention,
		frame.SvcClockSelectSource:   clockSelectSource,
		frame.SvcClockSetEnable:      clockSetEnable,
		frame.SvcClockSetDivider:     clockSetDivider,
		frame.SvcPLLXtalStart:        pllXtalStart,
		frame.SvcPLLClkStart:         pllClkStart,
		frame.SvcPLLStop:             pllStop,
	}
}

func heartbeat(d *Device, payload []byte) reply {
	return ok(nil)
}

func pinmux(d *Device, payload []byte) reply {
	var p frame.PinmuxParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.Port > maxPort || p.Pin > maxPin || p.Function > maxFunction {
		return fail(errcode.PinmuxInvalidParameter)
	}
	d.state.Pinmux[[2]uint8{p.Port, p.Pin}] = p.Function
	return ok(nil)
}

func padControl(d *Device, payload []byte) reply {
	var p frame.PadControlParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.Port > maxPort || p.Pin > maxPin || p.Config > 0xFF {
		return fail(errcode.PinmuxInvalidParameter)
	}
	d.state.PadConfig[[2]uint8{p.Port, p.Pin}] = p.Config
	return ok(nil)
}

func getTOCVersion(d *Device, payload []byte) reply {
	return ok(&frame.TOCVersionResult{Version: d.tocVersion})
}

func getTOCNumber(d *Device, payload []byte) reply {
	return ok(&frame.TOCNumberResult{Number: uint32(len(d.toc))})
}

func (d *Device) findTOC(name frame.TOCName) *frame.TOCEntry {
	for i := range d.toc {
		if d.toc[i].Name == name {
			return &d.toc[i]
		}
	}
	return nil
}

func getTOCViaName(d *Device, payload []byte) reply {
	var p frame.TOCViaNameParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	e := d.findTOC(p.Name)
	if e == nil {
		return fail(errcode.ServiceFail)
	}
	return ok(&frame.TOCEntryResult{Entry: *e})
}

func getTOCViaCPUID(d *Device, payload []byte) reply {
	var p frame.TOCViaCPUIDParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.CPUID > maxCPU {
		return fail(errcode.ServiceFail)
	}
	res := &frame.TOCViaCPUIDResult{}
	for _, e := range d.toc {
		if e.CPU == p.CPUID && res.Count < frame.TOCMaxEntries {
			res.Entries[res.Count] = e
			res.Count++
		}
	}
	return ok(res)
}

func getDevicePartNumber(d *Device, payload []byte) reply {
	return ok(&frame.PartNumberResult{PartNumber: d.partNumber})
}

func getSERevision(d *Device, payload []byte) reply {
	res := &frame.SERevisionResult{}
	copy(res.Revision[:frame.SERevisionSize-1], d.revision)
	return ok(res)
}

func readOTP(d *Device, payload []byte) reply {
	var p frame.ReadOTPParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.Words == 0 || p.Words > frame.OTPMaxReadWords || p.Offset+p.Words > otpWords {
		return fail(errcode.ServiceFail)
	}
	res := &frame.ReadOTPResult{Words: p.Words}
	for i := uint32(0); i < p.Words; i++ {
		binary.LittleEndian.PutUint32(res.Data[i*4:], d.otp[p.Offset+i])
	}
	return ok(res)
}

// OTP bits can only be programmed once: a key write fails if any target word
// is already nonzero.
func writeOTPKey(d *Device, payload []byte) reply {
	var p frame.WriteOTPKeyParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	words := p.Length / 4
	end := uint32(frame.OTPCustomerKeyStart + frame.OTPCustomerKeyWords)
	if p.Length == 0 || p.Length%4 != 0 || p.Length > frame.OTPMaxKeySize ||
		p.Offset < frame.OTPCustomerKeyStart || p.Offset+words > end {
		return fail(errcode.OTPKeyWriteInvalidParameter)
	}
	for i := uint32(0); i < words; i++ {
		if d.otp[p.Offset+i] != 0 {
			return fail(errcode.OTPKeyWriteFailed)
		}
	}
	for i := uint32(0); i < words; i++ {
		d.otp[p.Offset+i] = binary.LittleEndian.Uint32(p.Key[i*4:])
	}
	return ok(nil)
}

func processTOCEntry(d *Device, payload []byte) reply {
	var p frame.ProcessTOCEntryParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if d.findTOC(p.Name) == nil {
		return fail(errcode.ServiceFail)
	}
	d.state.Loaded = append(d.state.Loaded, p.Name.String())
	return ok(nil)
}

func bootCPU(d *Device, payload []byte) reply {
	var p frame.BootCPUParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.CPUID > maxCPU {
		return fail(errcode.ServiceFail)
	}
	d.state.CPUs[p.CPUID] = "running"
	return ok(nil)
}

func cpuOp(state string) handler {
	return func(d *Device, payload []byte) reply {
		var p frame.CPUParams
		if frame.DecodeBlock(payload, &p) != nil {
			return badPacket
		}
		if p.CPUID > maxCPU {
			return fail(errcode.ServiceFail)
		}
		d.state.CPUs[p.CPUID] = state
		return ok(nil)
	}
}

var (
	releaseCPU = cpuOp("released")
	resetCPU   = cpuOp("reset")
)

func resetSoC(d *Device, payload []byte) reply {
	d.state.Resets++
	d.state.CPUs = make(map[uint32]string)
	d.state.Loaded = nil
	return ok(nil)
}

func setPowerMode(d *Device, payload []byte) reply {
	var p frame.PowerModeParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.Mode > maxPowerMode {
		return fail(errcode.ServiceFail)
	}
	d.state.PowerMode = p.Mode
	d.state.Wakeup = p.WakeupSources
	return ok(nil)
}

func memRetention(d *Device, payload []byte) reply {
	var p frame.MemRetentionParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.Mask&^memRetainAll != 0 {
		return fail(errcode.ServiceFail)
	}
	d.state.MemRetention = p.Mask
	return ok(nil)
}

func clockSelectSource(d *Device, payload []byte) reply {
	var p frame.ClockSourceParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.Clock > maxClock || p.Source > maxSource {
		return fail(errcode.ServiceFail)
	}
	if p.Source == frame.ClockSourcePLL && !d.state.PLLRunning {
		return fail(errcode.ServiceFail)
	}
	d.state.ClockSources[p.Clock] = p.Source
	return ok(nil)
}

func clockSetEnable(d *Device, payload []byte) reply {
	var p frame.ClockEnableParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.Clock > maxClock || p.Enable > 1 {
		return fail(errcode.ServiceFail)
	}
	d.state.ClockEnabled[p.Clock] = p.Enable == 1
	return ok(nil)
}

func clockSetDivider(d *Device, payload []byte) reply {
	var p frame.ClockDividerParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.Divider > maxDivider || p.Value == 0 || p.Value > 0x1FF {
		return fail(errcode.ServiceFail)
	}
	d.state.Dividers[p.Divider] = p.Value
	return ok(nil)
}

func pllXtalStart(d *Device, payload []byte) reply {
	var p frame.PLLXtalStartParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	d.state.XtalRunning = true
	return ok(nil)
}

func pllClkStart(d *Device, payload []byte) reply {
	var p frame.PLLClkStartParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if !d.state.XtalRunning {
		return fail(errcode.ServiceFail)
	}
	d.state.PLLRunning = true
	return ok(nil)
}

func pllStop(d *Device, payload []byte) reply {
	d.state.PLLRunning = false
	d.state.XtalRunning = false
	return ok(nil)
}
