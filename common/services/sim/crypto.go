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
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pa-cotte/hal-alif-sub005/common/services/errcode"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
	"github.com/pa-cotte/hal-alif-sub005/common/services/memmap"
)

func getRND(d *Device, payload []byte) reply {
	var p frame.GetRNDParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.Length == 0 || p.Length > frame.MaxRNDLength {
		return fail(errcode.CryptoInvalidBufferLength)
	}
	res := &frame.GetRNDResult{Length: p.Length}
	d.rnd.Read(res.Data[:p.Length])
	return ok(res)
}

func getLCS(d *Device, payload []byte) reply {
	return ok(&frame.LCSResult{LCS: d.lcs})
}

// load reads n bytes at addr from the staging region.
func (d *Device) load(addr memmap.Addr, n uint32) ([]byte, bool) {
	if d.mem == nil {
		return nil, false
	}
	b := make([]byte, n)
	if n == 0 {
		return b, true
	}
	if addr == memmap.Null || d.mem.ReadAt(addr, b) != nil {
		return nil, false
	}
	return b, true
}

func (d *Device) store(addr memmap.Addr, b []byte) bool {
	if len(b) == 0 {
		return true
	}
	return d.mem != nil && addr != memmap.Null && d.mem.WriteAt(addr, b) == nil
}

func (d *Device) aesKey(addr memmap.Addr, bits uint32) (cipher.Block, uint32) {
	switch bits {
	case 128, 192, 256:
	default:
		return nil, errcode.CryptoInvalidKeyType
	}
	key, found := d.load(addr, bits/8)
	if !found {
		return nil, errcode.CryptoInvalidParameter
	}
	b, err := aes.NewCipher(key)
	if err != nil {
		return nil, errcode.CryptoInvalidKeyType
	}
	return b, 0
}

func aesOp(d *Device, payload []byte) reply {
	var p frame.AESParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.Direction > frame.DirectionDecrypt {
		return fail(errcode.CryptoInvalidParameter)
	}
	switch p.Mode {
	case frame.AESModeECB, frame.AESModeCBC:
		if p.Length%aes.BlockSize != 0 {
			return fail(errcode.CryptoInvalidBufferLength)
		}
	case frame.AESModeCTR:
	default:
		return fail(errcode.CryptoInvalidMode)
	}
	block, code := d.aesKey(p.KeyAddr, p.KeyBits)
	if code != 0 {
		return fail(code)
	}
	in, found := d.load(p.InputAddr, p.Length)
	if !found {
		return fail(errcode.CryptoInvalidParameter)
	}
	var iv []byte
	if p.Mode != frame.AESModeECB {
		if iv, found = d.load(p.IVAddr, aes.BlockSize); !found {
			return fail(errcode.CryptoInvalidParameter)
		}
	}
	out := make([]byte, len(in))
	switch {
	case p.Mode == frame.AESModeECB:
		for i := 0; i < len(in); i += aes.BlockSize {
			if p.Direction == frame.DirectionEncrypt {
				block.Encrypt(out[i:], in[i:])
			} else {
				block.Decrypt(out[i:], in[i:])
			}
		}
	case p.Mode == frame.AESModeCBC && p.Direction == frame.DirectionEncrypt:
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, in)
	case p.Mode == frame.AESModeCBC:
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, in)
	default:
		cipher.NewCTR(block, iv).XORKeyStream(out, in)
	}
	if !d.store(p.OutAddr, out) {
		return fail(errcode.CryptoInvalidParameter)
	}
	return ok(nil)
}

func shaOp(d *Device, payload []byte) reply {
	var p frame.SHAParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	in, found := d.load(p.InputAddr, p.Length)
	if !found {
		return fail(errcode.CryptoInvalidParameter)
	}
	var digest []byte
	switch p.Type {
	case frame.SHATypeSHA1:
		s := sha1.Sum(in)
		digest = s[:]
	case frame.SHATypeSHA224:
		s := sha256.Sum224(in)
		digest = s[:]
	case frame.SHATypeSHA256:
		s := sha256.Sum256(in)
		digest = s[:]
	default:
		return fail(errcode.CryptoInvalidMode)
	}
	if !d.store(p.DigestAddr, digest) {
		return fail(errcode.CryptoInvalidParameter)
	}
	return ok(nil)
}

// Only GCM is simulated.
func aeadOp(d *Device, payload []byte) reply {
	var p frame.AEADParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.Alg != frame.AEADAlgGCM {
		return fail(errcode.CryptoInvalidMode)
	}
	if p.Direction > frame.DirectionDecrypt {
		return fail(errcode.CryptoInvalidParameter)
	}
	if p.TagLen < 12 || p.TagLen > frame.AEADMaxTagSize || p.NonceLen == 0 {
		return fail(errcode.CryptoInvalidBufferLength)
	}
	block, code := d.aesKey(p.KeyAddr, p.KeyBits)
	if code != 0 {
		return fail(code)
	}
	aead, err := cipher.NewGCMWithTagSize(block, int(p.TagLen))
	if err != nil {
		return fail(errcode.CryptoInvalidParameter)
	}
	if p.NonceLen != uint32(aead.NonceSize()) {
		return fail(errcode.CryptoInvalidBufferLength)
	}
	nonce, found1 := d.load(p.NonceAddr, p.NonceLen)
	aad, found2 := d.load(p.AADAddr, p.AADLen)
	in, found3 := d.load(p.InputAddr, p.Length)
	if !found1 || !found2 || !found3 {
		return fail(errcode.CryptoInvalidParameter)
	}
	return d.sealOrOpen(aead, p.Direction, nonce, aad, in, p.OutAddr, p.TagAddr, int(p.TagLen))
}

func chachaPolyOp(d *Device, payload []byte) reply {
	var p frame.ChaChaPolyParams
	if frame.DecodeBlock(payload, &p) != nil {
		return badPacket
	}
	if p.Direction > frame.DirectionDecrypt {
		return fail(errcode.CryptoInvalidParameter)
	}
	key, found1 := d.load(p.KeyAddr, chacha20poly1305.KeySize)
	nonce, found2 := d.load(p.NonceAddr, chacha20poly1305.NonceSize)
	aad, found3 := d.load(p.AADAddr, p.AADLen)
	in, found4 := d.load(p.InputAddr, p.Length)
	if !found1 || !found2 || !found3 || !found4 {
		return fail(errcode.CryptoInvalidParameter)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return fail(errcode.CryptoInvalidKeyType)
	}
	return d.sealOrOpen(aead, p.Direction, nonce, aad, in, p.OutAddr, p.TagAddr, chacha20poly1305.Overhead)
}

func (d *Device) sealOrOpen(aead cipher.AEAD, dir uint32, nonce, aad, in []byte, outAddr, tagAddr memmap.Addr, tagLen int) reply {
	if dir == frame.DirectionEncrypt {
		sealed := aead.Seal(nil, nonce, in, aad)
		n := len(sealed) - tagLen
		if !d.store(outAddr, sealed[:n]) || !d.store(tagAddr, sealed[n:]) {
			return fail(errcode.CryptoInvalidParameter)
		}
		return ok(nil)
	}
	tag, found := d.load(tagAddr, uint32(tagLen))
	if !found {
		return fail(errcode.CryptoInvalidParameter)
	}
	plain, err := aead.Open(nil, nonce, append(append([]byte(nil), in...), tag...), aad)
	if err != nil {
		return fail(errcode.CryptoInvalidParameter)
	}
	if !d.store(outAddr, plain) {
		return fail(errcode.CryptoInvalidParameter)
	}
	return ok(nil)
}

func cmacOp(d *Device, payload []byte) reply {
	if frame.DecodeBlock(payload, &frame.CMACParams{}) != nil {
		return badPacket
	}
	return fail(errcode.CryptoInvalidMode)
}
