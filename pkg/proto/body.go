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
	"io"

	"tspclient/pkg/errors"
)

// MessageBody is random(2) sid(1) mid(1) followed by TLVs in wire order.
type MessageBody struct {
	Random  uint16
	Sid     uint8
	Mid     uint8
	Content []TLV
}

func (b *MessageBody) EventId() EventId {
	return NewEventId(b.Sid, b.Mid)
}

func (b *MessageBody) Add(tlv TLV) {
	b.Content = append(b.Content, tlv)
}

// Find returns the first TLV of the given type.
func (b *MessageBody) Find(typ uint16) (TLV, bool) {
	for _, t := range b.Content {
		if t.Type == typ {
			return t, true
		}
	}
	return TLV{}, false
}

func (b *MessageBody) Size() int {
	sz := BodyPrefixSize
	for i := range b.Content {
		sz += b.Content[i].Size()
	}
	return sz
}

func (b *MessageBody) Encode() ([]byte, error) {
	p := NewPacketWriter(b.Size())
	p.Put16(b.Random).Put8(b.Sid).Put8(b.Mid)
	for i := range b.Content {
		if err := b.Content[i].EncodeToPacket(p); err != nil {
			return nil, err
		}
	}
	return p.Bytes(), nil
}

// Decode parses TLVs until raw is exhausted. Every TLV uses the 1-byte
// length field when shortTLV is set, the 2-byte one otherwise. A TLV whose
// declared length overruns raw fails with a truncation error.
func (b *MessageBody) Decode(raw []byte, shortTLV bool) error {
	p := NewPacketReader(raw)
	b.Random = p.Get16()
	b.Sid = p.Get8()
	b.Mid = p.Get8()
	b.Content = b.Content[:0]
	for p.HasRemaining() {
		tlv := TLV{Short: shortTLV}
		tlv.decodeFromPacket(p)
		if p.Err() != nil {
			break
		}
		b.Content = append(b.Content, tlv)
	}
	return p.Err()
}

// PeekEventId reads sid and mid from an encoded body without parsing TLVs.
func PeekEventId(raw []byte) (EventId, error) {
	if len(raw) < BodyPrefixSize {
		return 0, errors.Wrapf(errors.ErrTruncated, "body needs %d bytes for sid/mid, got %d", BodyPrefixSize, len(raw))
	}
	return NewEventId(raw[2], raw[3]), nil
}

func (b *MessageBody) PrettyPrint(w io.Writer) {
	fmt.Fprintln(w, "Body:")
	fmt.Fprintf(w, "  Random\t: %d\n", b.Random)
	fmt.Fprintf(w, "  Sid\t\t: %d\n", b.Sid)
	fmt.Fprintf(w, "  Mid\t\t: %d\n", b.Mid)
	for _, t := range b.Content {
		fmt.Fprintf(w, "  TLV %d\t: len=%d %X\n", t.Type, len(t.Value), t.Value)
	}
}
