//
//  Copyright 2023 PayPal Inc.
//
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//

package proto

import (
	"bufio"
	"io"

	"tspclient/pkg/errors"
)

// FrameLayout describes where the body length lives in the header, so the
// stream reader can delimit frames without decoding the header.
type FrameLayout struct {
	HeaderSize       int
	BodyLengthOffset int
	BodyLengthSize   int
	// bytes following the body, e.g. a 0xFF terminator
	TailSize int
	// frames are escaped and terminated by FrameTail, see EscapeFrame
	Escaped bool
}

var DefaultFrameLayout = FrameLayout{
	HeaderSize:       MessageHeaderSize,
	BodyLengthOffset: BodyLengthOffset,
	BodyLengthSize:   BodyLengthSize,
}

func (l *FrameLayout) SetDefaultIfNotDefined() {
	if l.HeaderSize == 0 {
		l.HeaderSize = DefaultFrameLayout.HeaderSize
	}
	if l.BodyLengthOffset == 0 {
		l.BodyLengthOffset = DefaultFrameLayout.BodyLengthOffset
	}
	if l.BodyLengthSize == 0 {
		l.BodyLengthSize = DefaultFrameLayout.BodyLengthSize
	}
}

func (l *FrameLayout) Validate() error {
	switch l.BodyLengthSize {
	case 1, 2, 4:
	default:
		return errors.Wrapf(errors.ErrMalformedLength, "body length size %d not supported", l.BodyLengthSize)
	}
	if l.BodyLengthOffset < 0 || l.BodyLengthOffset+l.BodyLengthSize > l.HeaderSize {
		return errors.Wrapf(errors.ErrMalformedLength, "body length field [%d,%d) outside %d-byte header",
			l.BodyLengthOffset, l.BodyLengthOffset+l.BodyLengthSize, l.HeaderSize)
	}
	if l.TailSize < 0 {
		return errors.Wrapf(errors.ErrMalformedLength, "negative tail size %d", l.TailSize)
	}
	return nil
}

// BodyLength reads the body length field out of a raw header.
func (l *FrameLayout) BodyLength(header []byte) (int, error) {
	if len(header) < l.HeaderSize {
		return 0, errors.Wrapf(errors.ErrTruncated, "header needs %d bytes, got %d", l.HeaderSize, len(header))
	}
	f := header[l.BodyLengthOffset : l.BodyLengthOffset+l.BodyLengthSize]
	switch l.BodyLengthSize {
	case 1:
		return int(f[0]), nil
	case 2:
		return int(EncByteOrder.Uint16(f)), nil
	case 4:
		return int(EncByteOrder.Uint32(f)), nil
	}
	return 0, errors.Wrapf(errors.ErrMalformedLength, "body length size %d not supported", l.BodyLengthSize)
}

// ReadFrame reads one complete frame (header, body and tail) from r.
// io.EOF is returned as is when the stream ends on a frame boundary.
func ReadFrame(r io.Reader, l *FrameLayout) (frame []byte, err error) {
	header := make([]byte, l.HeaderSize)
	var n int
	if n, err = io.ReadFull(r, header); err != nil {
		if n != 0 {
			err = errors.Wrap(errors.ErrTruncated, err)
		}
		return
	}
	var szBody int
	if szBody, err = l.BodyLength(header); err != nil {
		return
	}
	frame = make([]byte, l.HeaderSize+szBody+l.TailSize)
	copy(frame, header)
	if _, err = io.ReadFull(r, frame[l.HeaderSize:]); err != nil {
		frame = nil
		err = errors.Wrap(errors.ErrTruncated, err)
	}
	return
}

// ReadEscapedFrame reads up to and including the frame tail and returns the
// unescaped frame without the tail.
func ReadEscapedFrame(r *bufio.Reader) (frame []byte, err error) {
	var raw []byte
	if raw, err = r.ReadBytes(FrameTail); err != nil {
		if len(raw) != 0 {
			err = errors.Wrap(errors.ErrTruncated, err)
		}
		return
	}
	return UnescapeFrame(raw)
}

// EncodeFrame sets h.BodyLength to len(body) and returns header followed by body.
func EncodeFrame(h *MessageHeader, body []byte) ([]byte, error) {
	if len(body) > MaxLongTLVValueSize {
		return nil, errors.Wrapf(errors.ErrMalformedLength, "body of %d bytes does not fit the length field", len(body))
	}
	h.BodyLength = uint16(len(body))
	p := NewPacketWriter(MessageHeaderSize + len(body))
	h.EncodeToPacket(p)
	p.PutBytes(body)
	return p.Bytes(), nil
}

// SplitFrame decodes the header of raw and returns exactly BodyLength body
// bytes. Bytes after the body are ignored.
func SplitFrame(raw []byte) (h MessageHeader, body []byte, err error) {
	if err = h.Decode(raw); err != nil {
		return
	}
	end := MessageHeaderSize + int(h.BodyLength)
	if len(raw) < end {
		err = errors.Wrapf(errors.ErrTruncated, "body needs %d bytes, got %d", h.BodyLength, len(raw)-MessageHeaderSize)
		return
	}
	body = raw[MessageHeaderSize:end]
	return
}

// SummarizeFrame returns header and event id of raw for logging. The event id
// is zero when the body is too short.
func SummarizeFrame(raw []byte) (h MessageHeader, ev EventId, err error) {
	var body []byte
	if h, body, err = SplitFrame(raw); err != nil {
		return
	}
	ev, _ = PeekEventId(body)
	return
}
