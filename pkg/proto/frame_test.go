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
	"bytes"
	goerrors "errors"
	"io"
	"testing"

	"tspclient/pkg/errors"
)

func testFrame(t *testing.T, body []byte) []byte {
	t.Helper()
	h := NewRequestHeader(DefaultPortVersion, TuidFromString("TUID"), RequestId{1, 2, 3, 4, 5, 6})
	frame, err := EncodeFrame(&h, body)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	return frame
}

func TestBodyLengthConsistency(t *testing.T) {
	for _, szBody := range []int{0, 4, 17, 300} {
		body := makeValue(szBody)
		raw := append(testFrame(t, body), []byte{0xDE, 0xAD, 0xBE, 0xEF}...)

		h, got, err := SplitFrame(raw)
		if err != nil {
			t.Fatalf("SplitFrame() error = %v", err)
		}
		if int(h.BodyLength) != szBody || !bytes.Equal(got, body) {
			t.Errorf("SplitFrame() body = %d bytes, want %d", len(got), szBody)
		}
	}
}

func TestSplitFrameShortBody(t *testing.T) {
	raw := testFrame(t, makeValue(10))
	if _, _, err := SplitFrame(raw[:len(raw)-1]); !goerrors.Is(err, errors.ErrTruncated) {
		t.Errorf("SplitFrame() error = %v, want ErrTruncated", err)
	}
}

func TestReadFrame(t *testing.T) {
	f1 := testFrame(t, makeValue(5))
	f2 := testFrame(t, nil)
	f3 := testFrame(t, makeValue(1000))
	stream := bytes.NewReader(bytes.Join([][]byte{f1, f2, f3}, nil))

	layout := DefaultFrameLayout
	for i, want := range [][]byte{f1, f2, f3} {
		got, err := ReadFrame(stream, &layout)
		if err != nil {
			t.Fatalf("[%d] ReadFrame() error = %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("[%d] ReadFrame() = %d bytes, want %d", i, len(got), len(want))
		}
	}
	if _, err := ReadFrame(stream, &layout); err != io.EOF {
		t.Errorf("ReadFrame() at end = %v, want io.EOF", err)
	}
}

func TestReadFrameTruncatedStream(t *testing.T) {
	frame := testFrame(t, makeValue(8))
	layout := DefaultFrameLayout
	for _, n := range []int{1, MessageHeaderSize - 1, MessageHeaderSize, len(frame) - 1} {
		_, err := ReadFrame(bytes.NewReader(frame[:n]), &layout)
		if !goerrors.Is(err, errors.ErrTruncated) {
			t.Errorf("ReadFrame(%d bytes) error = %v, want ErrTruncated", n, err)
		}
	}
}

func TestReadFrameWithTail(t *testing.T) {
	frame := append(testFrame(t, makeValue(3)), FrameTail)
	layout := DefaultFrameLayout
	layout.TailSize = 1
	got, err := ReadFrame(bytes.NewReader(frame), &layout)
	if err != nil || !bytes.Equal(got, frame) {
		t.Errorf("ReadFrame() = (%X, %v), want %X", got, err, frame)
	}
}

func TestFrameLayoutValidate(t *testing.T) {
	tests := []struct {
		name    string
		layout  FrameLayout
		wantErr bool
	}{
		{"default", DefaultFrameLayout, false},
		{"offset 29 overruns", FrameLayout{HeaderSize: 30, BodyLengthOffset: 29, BodyLengthSize: 2}, true},
		{"size 3", FrameLayout{HeaderSize: 30, BodyLengthOffset: 26, BodyLengthSize: 3}, true},
		{"one byte length", FrameLayout{HeaderSize: 30, BodyLengthOffset: 29, BodyLengthSize: 1}, false},
		{"negative tail", FrameLayout{HeaderSize: 30, BodyLengthOffset: 28, BodyLengthSize: 2, TailSize: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !goerrors.Is(err, errors.ErrMalformedLength) {
				t.Errorf("Validate() error = %v, want ErrMalformedLength", err)
			}
		})
	}
}

func TestReadEscapedFrame(t *testing.T) {
	// body full of reserved bytes
	body := []byte{0, 1, 5, 200, 202, 87, 255, 0x3D, 0x10}
	f1 := testFrame(t, body)
	f2 := testFrame(t, []byte{0xFF, 0xFF, 0, 0})
	stream := append(EscapeFrame(f1), EscapeFrame(f2)...)

	r := bufio.NewReader(bytes.NewReader(stream))
	for i, want := range [][]byte{f1, f2} {
		got, err := ReadEscapedFrame(r)
		if err != nil {
			t.Fatalf("[%d] ReadEscapedFrame() error = %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("[%d] ReadEscapedFrame() = %X, want %X", i, got, want)
		}
	}
	if _, err := ReadEscapedFrame(r); err != io.EOF {
		t.Errorf("ReadEscapedFrame() at end = %v, want io.EOF", err)
	}
}
