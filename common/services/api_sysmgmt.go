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
	"bytes"
	"context"
	"regexp"

	"github.com/juju/errors"
	goversion "github.com/mcuadros/go-version"

	"github.com/pa-cotte/hal-alif-sub005/common/services/errcode"
	"github.com/pa-cotte/hal-alif-sub005/common/services/frame"
)

func (ch *Channel) GetTOCVersion(ctx context.Context) (uint32, error) {
	var res frame.TOCVersionResult
	if err := ch.Call(ctx, frame.SvcGetTOCVersion, nil, &res); err != nil {
		return 0, errors.Trace(err)
	}
	return res.Version, nil
}

// GetTOCNumber returns the number of entries in the table of contents.
func (ch *Channel) GetTOCNumber(ctx context.Context) (uint32, error) {
	var res frame.TOCNumberResult
	if err := ch.Call(ctx, frame.SvcGetTOCNumber, nil, &res); err != nil {
		return 0, errors.Trace(err)
	}
	return res.Number, nil
}

// GetTOCViaName looks up an image by name (at most 8 characters).
func (ch *Channel) GetTOCViaName(ctx context.Context, name string) (*frame.TOCEntry, error) {
	if len(name) > frame.TOCNameSize {
		return nil, errors.Errorf("image name %q is longer than %d", name, frame.TOCNameSize)
	}
	var res frame.TOCEntryResult
	if err := ch.Call(ctx, frame.SvcGetTOCViaName, &frame.TOCViaNameParams{Name: frame.MakeTOCName(name)}, &res); err != nil {
		return nil, errors.Trace(err)
	}
	return &res.Entry, nil
}

// GetTOCViaCPUID returns the images destined for a CPU.
func (ch *Channel) GetTOCViaCPUID(ctx context.Context, cpu uint32) ([]frame.TOCEntry, error) {
	var res frame.TOCViaCPUIDResult
	if err := ch.Call(ctx, frame.SvcGetTOCViaCPUID, &frame.TOCViaCPUIDParams{CPUID: cpu}, &res); err != nil {
		return nil, errors.Trace(err)
	}
	if res.Count > frame.TOCMaxEntries {
		return nil, errcode.New(errcode.ProtocolMismatch, frame.SvcGetTOCViaCPUID.String(), "bad entry count %d", res.Count)
	}
	return append([]frame.TOCEntry(nil), res.Entries[:res.Count]...), nil
}

func (ch *Channel) GetDevicePartNumber(ctx context.Context) (uint32, error) {
	var res frame.PartNumberResult
	if err := ch.Call(ctx, frame.SvcGetDevicePartNumber, nil, &res); err != nil {
		return 0, errors.Trace(err)
	}
	return res.PartNumber, nil
}

// GetSERevision returns the secure firmware banner, e.g. "SES B2 v1.94.0 ...".
func (ch *Channel) GetSERevision(ctx context.Context) (string, error) {
	var res frame.SERevisionResult
	if err := ch.Call(ctx, frame.SvcGetSERevision, nil, &res); err != nil {
		return "", errors.Trace(err)
	}
	if i := bytes.IndexByte(res.Revision[:], 0); i >= 0 {
		return string(res.Revision[:i]), nil
	}
	return string(res.Revision[:]), nil
}

var regexpSEVersion = regexp.MustCompile(`\bv?(\d+\.\d+(?:\.\d+)?)\b`)

// SEVersion extracts the version number from a revision banner.
func SEVersion(revision string) (string, error) {
	m := regexpSEVersion.FindStringSubmatch(revision)
	if m == nil {
		return "", errors.Errorf("no version in %q", revision)
	}
	return m[1], nil
}

// CheckSERevision fails unless the secure firmware version is at least min.
// Returns the version found.
func (ch *Channel) CheckSERevision(ctx context.Context, min string) (string, error) {
	rev, err := ch.GetSERevision(ctx)
	if err != nil {
		return "", errors.Trace(err)
	}
	v, err := SEVersion(rev)
	if err != nil {
		return "", errors.Trace(err)
	}
	if goversion.Compare(v, min, "<") {
		return v, errors.Errorf("secure firmware %s is older than %s", v, min)
	}
	return v, nil
}

// ReadOTP reads words 32-bit words starting at word offset. The returned
// bytes are in wire order.
func (ch *Channel) ReadOTP(ctx context.Context, offset, words uint32) ([]byte, error) {
	params, err := otpReadParams(offset, words)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var res frame.ReadOTPResult
	if err := ch.Call(ctx, frame.SvcReadOTP, params, &res); err != nil {
		return nil, errors.Trace(err)
	}
	return otpData(&res, words)
}

// ReadOTPAsync is the asynchronous form of ReadOTP.
func (ch *Channel) ReadOTPAsync(offset, words uint32, cb func(data []byte, err error)) (*Call, error) {
	params, err := otpReadParams(offset, words)
	if err != nil {
		return nil, errors.Trace(err)
	}
	res := &frame.ReadOTPResult{}
	return ch.Go(frame.SvcReadOTP, params, res, func(err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(otpData(res, words))
	})
}

func otpReadParams(offset, words uint32) (*frame.ReadOTPParams, error) {
	if words == 0 || words > frame.OTPMaxReadWords {
		return nil, errors.Errorf("OTP read of %d words, must be 1..%d", words, frame.OTPMaxReadWords)
	}
	return &frame.ReadOTPParams{Offset: offset, Words: words}, nil
}

func otpData(res *frame.ReadOTPResult, words uint32) ([]byte, error) {
	if res.Words != words {
		return nil, errcode.New(errcode.ProtocolMismatch, frame.SvcReadOTP.String(), "asked for %d words, got %d", words, res.Words)
	}
	return append([]byte(nil), res.Data[:words*4]...), nil
}

// WriteOTPKey programs a key into the customer key area at word offset.
func (ch *Channel) WriteOTPKey(ctx context.Context, offset uint32, key []byte) error {
	if len(key) == 0 || len(key) > frame.OTPMaxKeySize || len(key)%4 != 0 {
		return errors.Errorf("key length %d, must be a multiple of 4 up to %d", len(key), frame.OTPMaxKeySize)
	}
	params := &frame.WriteOTPKeyParams{Offset: offset, Length: uint32(len(key))}
	copy(params.Key[:], key)
	return errors.Trace(ch.Call(ctx, frame.SvcWriteOTPKey, params, nil))
}
