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

	"github.com/pa-cotte/hal-alif-sub005/common/services/errcode"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
	"github.com/pa-cotte/hal-alif-sub005/common/services/memmap"
)

// GetRND returns n random bytes from the secure subsystem's generator.
// Requests larger than frame.MaxRNDLength are split.
func (ch *Channel) GetRND(ctx context.Context, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		chunk := n - len(out)
		if chunk > frame.MaxRNDLength {
			chunk = frame.MaxRNDLength
		}
		var res frame.GetRNDResult
		if err := ch.Call(ctx, frame.SvcGetRND, &frame.GetRNDParams{Length: uint32(chunk)}, &res); err != nil {
			return nil, errors.Trace(err)
		}
		b, err := rndData(&res, chunk)
		if err != nil {
			return nil, errors.Trace(err)
		}
		out = append(out, b...)
	}
	return out, nil
}

// GetRNDAsync requests up to frame.MaxRNDLength random bytes.
func (ch *Channel) GetRNDAsync(n int, cb func(data []byte, err error)) (*Call, error) {
	if n <= 0 || n > frame.MaxRNDLength {
		return nil, errors.Errorf("random request of %d bytes, must be 1..%d", n, frame.MaxRNDLength)
	}
	res := &frame.GetRNDResult{}
	return ch.Go(frame.SvcGetRND, &frame.GetRNDParams{Length: uint32(n)}, res, func(err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(rndData(res, n))
	})
}

func rndData(res *frame.GetRNDResult, n int) ([]byte, error) {
	if int(res.Length) != n {
		return nil, errcode.New(errcode.ProtocolMismatch, frame.SvcGetRND.String(), "asked for %d bytes, got %d", n, res.Length)
	}
	return append([]byte(nil), res.Data[:n]...), nil
}

// GetLCS returns the device lifecycle state.
func (ch *Channel) GetLCS(ctx context.Context) (uint32, error) {
	var res frame.LCSResult
	if err := ch.Call(ctx, frame.SvcGetLCS, nil, &res); err != nil {
		return 0, errors.Trace(err)
	}
	return res.LCS, nil
}

// stagedCall runs a request whose parameter block refers to caller buffers.
// build stages the buffers and returns the parameter block. If the call times
// out the staged areas are abandoned, since the remote side may still use them.
func (ch *Channel) stagedCall(ctx context.Context, id frame.ServiceID, build func(st memmap.Stage) (interface{}, error)) error {
	space := ch.c.opts.memory
	if space == nil {
		return errors.NotSupportedf("%s without a memory space", id)
	}
	st := space.NewStage()
	params, err := build(st)
	if err != nil {
		st.Release()
		return errors.Annotatef(err, "%s", id)
	}
	err = ch.Call(ctx, id, params, nil)
	switch errcode.KindOf(err) {
	case errcode.Timeout, errcode.Cancelled:
		st.Abandon()
		return errors.Trace(err)
	case errcode.KindNone:
		err = st.Sync()
	}
	st.Release()
	return errors.Trace(err)
}

// AES runs a block cipher operation. iv is ignored in ECB mode.
func (ch *Channel) AES(ctx context.Context, mode, direction uint32, key, iv, in []byte) ([]byte, error) {
	out := make([]byte, len(in))
	err := ch.stagedCall(ctx, frame.SvcAES, func(st memmap.Stage) (interface{}, error) {
		p := &frame.AESParams{Mode: mode, Direction: direction, KeyBits: uint32(len(key) * 8), Length: uint32(len(in))}
		var err error
		if p.KeyAddr, err = st.In(key); err != nil {
			return nil, err
		}
		if p.IVAddr, err = st.In(iv); err != nil {
			return nil, err
		}
		if p.InputAddr, err = st.In(in); err != nil {
			return nil, err
		}
		if p.OutAddr, err = st.Out(out); err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return out, nil
}

// SHA256 digests data.
func (ch *Channel) SHA256(ctx context.Context, data []byte) ([frame.SHA256DigestSize]byte, error) {
	var digest [frame.SHA256DigestSize]byte
	err := ch.stagedCall(ctx, frame.SvcSHA, func(st memmap.Stage) (interface{}, error) {
		p := &frame.SHAParams{Type: frame.SHATypeSHA256, Length: uint32(len(data))}
		var err error
		if p.InputAddr, err = st.In(data); err != nil {
			return nil, err
		}
		if p.DigestAddr, err = st.Out(digest[:]); err != nil {
			return nil, err
		}
		return p, nil
	})
	return digest, errors.Trace(err)
}

// AEADRequest describes a CCM or GCM operation. For encryption Tag is
// ignored and a TagLen byte tag is returned; for decryption Tag is verified.
type AEADRequest struct {
	Alg       uint32
	Direction uint32
	Key       []byte
	Nonce     []byte
	AAD       []byte
	Input     []byte
	Tag       []byte
	TagLen    int
}

// AEAD runs an authenticated encryption operation. It returns the output and,
// when encrypting, the tag.
func (ch *Channel) AEAD(ctx context.Context, req *AEADRequest) ([]byte, []byte, error) {
	encrypt := req.Direction == frame.DirectionEncrypt
	tagLen := req.TagLen
	if !encrypt {
		tagLen = len(req.Tag)
	}
	if tagLen <= 0 || tagLen > frame.AEADMaxTagSize {
		return nil, nil, errors.Errorf("tag length %d, must be 1..%d", tagLen, frame.AEADMaxTagSize)
	}
	out := make([]byte, len(req.Input))
	tag := make([]byte, tagLen)
	err := ch.stagedCall(ctx, frame.SvcAEAD, func(st memmap.Stage) (interface{}, error) {
		p := &frame.AEADParams{
			Alg:       req.Alg,
			Direction: req.Direction,
			KeyBits:   uint32(len(req.Key) * 8),
			NonceLen:  uint32(len(req.Nonce)),
			AADLen:    uint32(len(req.AAD)),
			Length:    uint32(len(req.Input)),
			TagLen:    uint32(tagLen),
		}
		var err error
		if p.KeyAddr, err = st.In(req.Key); err != nil {
			return nil, err
		}
		if p.NonceAddr, err = st.In(req.Nonce); err != nil {
			return nil, err
		}
		if p.AADAddr, err = st.In(req.AAD); err != nil {
			return nil, err
		}
		if p.InputAddr, err = st.In(req.Input); err != nil {
			return nil, err
		}
		if p.OutAddr, err = st.Out(out); err != nil {
			return nil, err
		}
		if encrypt {
			p.TagAddr, err = st.Out(tag)
		} else {
			p.TagAddr, err = st.In(req.Tag)
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	if !encrypt {
		tag = nil
	}
	return out, tag, nil
}

// ChaChaPoly runs ChaCha20-Poly1305. When encrypting the 16-byte tag is
// returned; when decrypting tag is verified and nil is returned in its place.
func (ch *Channel) ChaChaPoly(ctx context.Context, direction uint32, key, nonce, aad, in, tag []byte) ([]byte, []byte, error) {
	if len(key) != frame.ChaChaPolyKeySize {
		return nil, nil, errors.Errorf("key is %d bytes, want %d", len(key), frame.ChaChaPolyKeySize)
	}
	encrypt := direction == frame.DirectionEncrypt
	if encrypt {
		tag = make([]byte, frame.AEADMaxTagSize)
	} else if len(tag) != frame.AEADMaxTagSize {
		return nil, nil, errors.Errorf("tag is %d bytes, want %d", len(tag), frame.AEADMaxTagSize)
	}
	out := make([]byte, len(in))
	err := ch.stagedCall(ctx, frame.SvcChaChaPoly, func(st memmap.Stage) (interface{}, error) {
		p := &frame.ChaChaPolyParams{Direction: direction, AADLen: uint32(len(aad)), Length: uint32(len(in))}
		var err error
		if p.KeyAddr, err = st.In(key); err != nil {
			return nil, err
		}
		if p.NonceAddr, err = st.In(nonce); err != nil {
			return nil, err
		}
		if p.AADAddr, err = st.In(aad); err != nil {
			return nil, err
		}
		if p.InputAddr, err = st.In(in); err != nil {
			return nil, err
		}
		if p.OutAddr, err = st.Out(out); err != nil {
			return nil, err
		}
		if encrypt {
			p.TagAddr, err = st.Out(tag)
		} else {
			p.TagAddr, err = st.In(tag)
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	if !encrypt {
		return out, nil, nil
	}
	return out, tag, nil
}

// CMAC computes an AES-CMAC over data.
func (ch *Channel) CMAC(ctx context.Context, key, data []byte) ([]byte, error) {
	mac := make([]byte, 16)
	err := ch.stagedCall(ctx, frame.SvcCMAC, func(st memmap.Stage) (interface{}, error) {
		p := &frame.CMACParams{KeyBits: uint32(len(key) * 8), Length: uint32(len(data))}
		var err error
		if p.KeyAddr, err = st.In(key); err != nil {
			return nil, err
		}
		if p.InputAddr, err = st.In(data); err != nil {
			return nil, err
		}
		if p.MACAddr, err = st.Out(mac); err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return mac, nil
}
