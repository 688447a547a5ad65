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
	"fmt"

	"tspclient/pkg/errors"
)

// TLV is one tag-length-value parameter of a message body. Short selects a
// 1-byte length field, otherwise the length field is 2 bytes.
type TLV struct {
	Type  uint16
	Value []byte
	Short bool
}

func NewShortTLV(typ uint16, value []byte) TLV {
	return TLV{Type: typ, Value: value, Short: true}
}

func NewLongTLV(typ uint16, value []byte) TLV {
	return TLV{Type: typ, Value: value, Short: false}
}

func (t *TLV) maxValueSize() int {
	if t.Short {
		return MaxShortTLVValueSize
	}
	return MaxLongTLVValueSize
}

func (t *TLV) Size() int {
	if t.Short {
		return 3 + len(t.Value)
	}
	return 4 + len(t.Value)
}

func (t *TLV) EncodeToPacket(p *Packet) error {
	if len(t.Value) > t.maxValueSize() {
		return errors.Wrapf(errors.ErrMalformedLength, "tlv %d value of %d bytes exceeds %d", t.Type, len(t.Value), t.maxValueSize())
	}
	p.Put16(t.Type)
	if t.Short {
		p.Put8(uint8(len(t.Value)))
	} else {
		p.Put16(uint16(len(t.Value)))
	}
	p.PutBytes(t.Value)
	return nil
}

func (t *TLV) Encode() ([]byte, error) {
	p := NewPacketWriter(t.Size())
	if err := t.EncodeToPacket(p); err != nil {
		return nil, err
	}
	return p.Bytes(), nil
}

// decodeFromPacket keeps t.Short as set by the caller.
func (t *TLV) decodeFromPacket(p *Packet) {
	t.Type = p.Get16()
	var n int
	if t.Short {
		n = int(p.Get8())
	} else {
		n = int(p.Get16())
	}
	t.Value = p.GetBytes(n)
}

// Decode parses one TLV from raw using the length width of t.Short.
func (t *TLV) Decode(raw []byte) error {
	p := NewPacketReader(raw)
	t.decodeFromPacket(p)
	return p.Err()
}

func (t TLV) String() string {
	return fmt.Sprintf("{%d:%X}", t.Type, t.Value)
}
