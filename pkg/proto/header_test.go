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
	"bytes"
	goerrors "errors"
	"testing"

	"tspclient/pkg/errors"
)

func testHeaders() []MessageHeader {
	return []MessageHeader{
		{},
		{
			LinkHeader:  LinkHeader,
			PortVersion: DefaultPortVersion,
			StatusCode:  StatusNormal,
			AckFlag:     AckFlagRequest,
			RequestId:   RequestId{1, 2, 3, 4, 5, 6},
			Tuid:        TuidFromString("TUID0123456789AB"),
			EncryptFlag: EncryptFlagPlain,
			BodyLength:  42,
		},
		{
			LinkHeader:  0xFF,
			PortVersion: 0xFFFF,
			StatusCode:  StatusServerInnerError,
			AckFlag:     AckFlagResponse,
			RequestId:   RequestId{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
			Tuid:        Tuid{0xFF, 0, 0xFF, 0, 0xFF, 0, 0xFF, 0, 0xFF, 0, 0xFF, 0, 0xFF, 0, 0xFF, 0},
			EncryptFlag: EncryptFlagAES,
			BodyLength:  0xFFFF,
		},
	}
}

func TestMessageHeaderRoundTrip(t *testing.T) {
	for i, h := range testHeaders() {
		raw := h.Encode()
		if len(raw) != MessageHeaderSize {
			t.Fatalf("[%d] len(Encode()) = %d, want %d", i, len(raw), MessageHeaderSize)
		}
		var got MessageHeader
		if err := got.Decode(raw); err != nil {
			t.Fatalf("[%d] Decode() error = %v", i, err)
		}
		if got != h {
			t.Errorf("[%d] Decode(Encode(h)) = %+v, want %+v", i, got, h)
		}
	}
}

func TestMessageHeaderLayout(t *testing.T) {
	h := MessageHeader{
		LinkHeader:  202,
		PortVersion: 0x0102,
		StatusCode:  3,
		AckFlag:     1,
		RequestId:   RequestId{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5},
		Tuid:        TuidFromString("T"),
		EncryptFlag: 1,
		BodyLength:  0x0A0B,
	}
	raw := h.Encode()
	checks := []struct {
		name   string
		offset int
		want   []byte
	}{
		{"link header", 0, []byte{202}},
		{"port version", 1, []byte{0x01, 0x02}},
		{"status code", 3, []byte{3}},
		{"ack flag", 4, []byte{1}},
		{"request id", 5, []byte{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}},
		{"tuid", 11, []byte{'T', 0}},
		{"encrypt flag", 27, []byte{1}},
		{"body length", 28, []byte{0x0A, 0x0B}},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if got := raw[c.offset : c.offset+len(c.want)]; !bytes.Equal(got, c.want) {
				t.Errorf("raw[%d:] = %X, want %X", c.offset, got, c.want)
			}
		})
	}
}

func TestMessageHeaderTruncated(t *testing.T) {
	for _, h := range testHeaders() {
		raw := h.Encode()
		for n := 0; n < MessageHeaderSize; n++ {
			var got MessageHeader
			err := got.Decode(raw[:n])
			if !goerrors.Is(err, errors.ErrTruncated) {
				t.Fatalf("Decode(%d bytes) error = %v, want ErrTruncated", n, err)
			}
		}
	}
}

func TestIPCHeaderConversion(t *testing.T) {
	tuid := TuidFromString("DEVICE-1")
	ipc := IPCHeader{
		StatusCode:  StatusNormal,
		AckFlag:     AckFlagRequest,
		RequestId:   RequestId{9, 8, 7, 6, 5, 4},
		EncryptFlag: EncryptFlagAES,
		BodyLength:  4,
	}
	raw := ipc.Encode()
	if len(raw) != IPCHeaderSize {
		t.Fatalf("len(IPCHeader.Encode()) = %d, want %d", len(raw), IPCHeaderSize)
	}
	var decoded IPCHeader
	if err := decoded.Decode(raw); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded != ipc {
		t.Errorf("Decode(Encode(ipc)) = %+v, want %+v", decoded, ipc)
	}

	wire := ipc.ToMessageHeader(DefaultPortVersion, tuid)
	if wire.LinkHeader != LinkHeader || wire.PortVersion != DefaultPortVersion || wire.Tuid != tuid {
		t.Errorf("ToMessageHeader() = %+v, wire fields not filled", wire)
	}
	if back := wire.ToIPCHeader(); back != ipc {
		t.Errorf("ToIPCHeader() = %+v, want %+v", back, ipc)
	}
}

func TestSplitIPCMessage(t *testing.T) {
	body := []byte{0, 1, 5, 200}
	msg := EncodeIPCMessage(IPCHeader{AckFlag: AckFlagRequest}, body)
	msg = append(msg, 0xEE, 0xEE)

	h, got, err := SplitIPCMessage(msg)
	if err != nil {
		t.Fatalf("SplitIPCMessage() error = %v", err)
	}
	if h.BodyLength != uint16(len(body)) || !bytes.Equal(got, body) {
		t.Errorf("SplitIPCMessage() = (%d, %X), want (%d, %X)", h.BodyLength, got, len(body), body)
	}

	if _, _, err = SplitIPCMessage(msg[:IPCHeaderSize+2]); !goerrors.Is(err, errors.ErrTruncated) {
		t.Errorf("SplitIPCMessage(short) error = %v, want ErrTruncated", err)
	}
	if _, _, err = SplitIPCMessage(msg[:5]); !goerrors.Is(err, errors.ErrTruncated) {
		t.Errorf("SplitIPCMessage(5 bytes) error = %v, want ErrTruncated", err)
	}
}
