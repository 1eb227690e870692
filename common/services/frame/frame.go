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
	"encoding/binary"
	"fmt"

	"github.com/juju/errors"
)

const (
	// MaxPacketSize is the size of every packet exchanged with the secure subsystem.
	MaxPacketSize = 256
	// HeaderSize is the size of the fixed packet header.
	HeaderSize = 16
	// MaxPayloadSize is the room left for a parameter or result block.
	MaxPayloadSize = MaxPacketSize - HeaderSize
)

// Header flags.
const (
	FlagResponse uint8 = 1 << 0
)

// ByteOrder is the byte order of all numeric fields on the wire.
var ByteOrder = binary.LittleEndian

// Header is the fixed part of a packet.
//
//	0  u16 service id
//	2  u8  flags
//	3  u8  ack
//	4  u32 token
//	8  u16 payload length
//	10 u16 reserved, must be zero
//	12 u32 service error code
type Header struct {
	ServiceID ServiceID
	Flags     uint8
	Ack       Ack
	Token     uint32
	Length    uint16
	ErrorCode uint32
}

func (h Header) IsResponse() bool {
	return h.Flags&FlagResponse != 0
}

func (h Header) String() string {
	kind := "req"
	if h.IsResponse() {
		kind = "resp"
	}
	return fmt.Sprintf("{%s %s tok=%d len=%d ack=%s err=%#x}", kind, h.ServiceID, h.Token, h.Length, h.Ack, h.ErrorCode)
}

// Packet is one fixed-size services packet.
type Packet [MaxPacketSize]byte

// Header decodes the packet header without validating it.
func (p *Packet) Header() Header {
	return Header{
		ServiceID: ServiceID(ByteOrder.Uint16(p[0:2])),
		Flags:     p[2],
		Ack:       Ack(p[3]),
		Token:     ByteOrder.Uint32(p[4:8]),
		Length:    ByteOrder.Uint16(p[8:10]),
		ErrorCode: ByteOrder.Uint32(p[12:16]),
	}
}

// SetHeader encodes h into the packet.
func (p *Packet) SetHeader(h Header) {
	ByteOrder.PutUint16(p[0:2], uint16(h.ServiceID))
	p[2] = h.Flags
	p[3] = byte(h.Ack)
	ByteOrder.PutUint32(p[4:8], h.Token)
	ByteOrder.PutUint16(p[8:10], h.Length)
	ByteOrder.PutUint16(p[10:12], 0)
	ByteOrder.PutUint32(p[12:16], h.ErrorCode)
}

// Payload returns the whole payload area.
func (p *Packet) Payload() []byte {
	return p[HeaderSize:]
}

const packetStringifyLimit = 128

func (p *Packet) String() string {
	buf := bytes.NewBuffer(nil)
	lim := NewLimitedWriter(buf, packetStringifyLimit)
	h := p.Header()
	fmt.Fprintf(lim, "%s", h)
	n := int(h.Length)
	if n > MaxPayloadSize {
		n = MaxPayloadSize
	}
	if n > 0 {
		fmt.Fprintf(lim, " % x", p.Payload()[:n])
	}
	return buf.String()
}

// Size returns the encoded size of a parameter or result block, 0 for nil.
func Size(v interface{}) int {
	if v == nil {
		return 0
	}
	return binary.Size(v)
}

// Encode builds a request packet for service id with the given parameter block.
// params must be nil or a fixed-size value (or pointer to one).
func Encode(id ServiceID, token uint32, params interface{}) (*Packet, error) {
	p := &Packet{}
	n, err := putBlock(p, params)
	if err != nil {
		return nil, errors.Annotatef(err, "%s params", id)
	}
	p.SetHeader(Header{ServiceID: id, Token: token, Length: uint16(n)})
	return p, nil
}

// NewResponse builds the response to req carrying ack, the service error code
// and an optional result block.
func NewResponse(req Header, ack Ack, code uint32, result interface{}) (*Packet, error) {
	p := &Packet{}
	n, err := putBlock(p, result)
	if err != nil {
		return nil, errors.Annotatef(err, "%s result", req.ServiceID)
	}
	p.SetHeader(Header{
		ServiceID: req.ServiceID,
		Flags:     FlagResponse,
		Ack:       ack,
		Token:     req.Token,
		Length:    uint16(n),
		ErrorCode: code,
	})
	return p, nil
}

func putBlock(p *Packet, v interface{}) (int, error) {
	if v == nil {
		return 0, nil
	}
	n := binary.Size(v)
	if n < 0 {
		return 0, errors.Errorf("%T is not a fixed-size block", v)
	}
	if n > MaxPayloadSize {
		return 0, errors.Errorf("%T is %d bytes, max %d", v, n, MaxPayloadSize)
	}
	var w bytes.Buffer
	if err := binary.Write(&w, ByteOrder, v); err != nil {
		return 0, errors.Trace(err)
	}
	copy(p.Payload(), w.Bytes())
	return n, nil
}

// Decode validates the packet header and returns it with the payload.
func Decode(p *Packet) (Header, []byte, error) {
	h := p.Header()
	if h.Length > MaxPayloadSize {
		return h, nil, errors.Errorf("payload length %d exceeds %d", h.Length, MaxPayloadSize)
	}
	if ByteOrder.Uint16(p[10:12]) != 0 {
		return h, nil, errors.Errorf("reserved header field is not zero")
	}
	return h, p.Payload()[:h.Length], nil
}

// DecodeBlock decodes payload into v, a pointer to a fixed-size block.
// The payload must be at least as long as the block.
func DecodeBlock(payload []byte, v interface{}) error {
	n := binary.Size(v)
	if n < 0 {
		return errors.Errorf("%T is not a fixed-size block", v)
	}
	if len(payload) < n {
		return errors.Errorf("payload is %d bytes, %T needs %d", len(payload), v, n)
	}
	return errors.Trace(binary.Read(bytes.NewReader(payload[:n]), ByteOrder, v))
}

// Frame is one mailbox transfer: a packet addressed to a channel of the mailbox.
type Frame struct {
	Channel uint8
	Packet  Packet
}

func (f *Frame) String() string {
	return fmt.Sprintf("ch=%d %s", f.Channel, f.Packet.String())
}
