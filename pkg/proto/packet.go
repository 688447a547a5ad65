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
	"tspclient/pkg/errors"
)

// Packet is a cursor over a byte buffer. A writer appends to a growable
// buffer. A reader walks an immutable slice and fails on the first read past
// the end; once failed, every following read is a no-op returning zero values
// and Err keeps reporting the first failure.
type Packet struct {
	buf []byte
	off int
	err error
}

func NewPacketWriter(capacity int) *Packet {
	return &Packet{buf: make([]byte, 0, capacity)}
}

func NewPacketReader(data []byte) *Packet {
	return &Packet{buf: data}
}

func (p *Packet) Bytes() []byte {
	return p.buf
}

func (p *Packet) Len() int {
	return len(p.buf)
}

func (p *Packet) Err() error {
	return p.err
}

func (p *Packet) NoErr() bool {
	return p.err == nil
}

func (p *Packet) Offset() int {
	return p.off
}

func (p *Packet) Remaining() int {
	if p.err != nil {
		return 0
	}
	return len(p.buf) - p.off
}

func (p *Packet) HasRemaining() bool {
	return p.Remaining() > 0
}

func (p *Packet) Put8(v uint8) *Packet {
	p.buf = append(p.buf, v)
	return p
}

func (p *Packet) Put16(v uint16) *Packet {
	p.buf = EncByteOrder.AppendUint16(p.buf, v)
	return p
}

func (p *Packet) Put64(v uint64) *Packet {
	p.buf = EncByteOrder.AppendUint64(p.buf, v)
	return p
}

func (p *Packet) PutBytes(b []byte) *Packet {
	p.buf = append(p.buf, b...)
	return p
}

func (p *Packet) take(n int) []byte {
	if p.err != nil {
		return nil
	}
	if n < 0 || len(p.buf)-p.off < n {
		p.err = errors.Wrapf(errors.ErrTruncated, "need %d bytes at offset %d, have %d", n, p.off, len(p.buf)-p.off)
		return nil
	}
	b := p.buf[p.off : p.off+n]
	p.off += n
	return b
}

func (p *Packet) Get8() (v uint8) {
	if b := p.take(1); b != nil {
		v = b[0]
	}
	return
}

func (p *Packet) Get16() (v uint16) {
	if b := p.take(2); b != nil {
		v = EncByteOrder.Uint16(b)
	}
	return
}

func (p *Packet) Get64() (v uint64) {
	if b := p.take(8); b != nil {
		v = EncByteOrder.Uint64(b)
	}
	return
}

// GetInto fills dst from the cursor.
func (p *Packet) GetInto(dst []byte) {
	if b := p.take(len(dst)); b != nil {
		copy(dst, b)
	}
}

// GetBytes returns a copy of the next n bytes.
func (p *Packet) GetBytes(n int) []byte {
	b := p.take(n)
	if b == nil {
		return nil
	}
	v := make([]byte, n)
	copy(v, b)
	return v
}
