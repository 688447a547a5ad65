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

const (
	EscapeByte uint8 = 0x3D
	FrameTail  uint8 = 0xFF
)

func needsEscape(b uint8) bool {
	return b == LinkHeader || b == 87 || b == FrameTail || b == EscapeByte
}

// EscapeData escapes every reserved byte of data.
func EscapeData(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/8)
	for _, b := range data {
		if needsEscape(b) {
			out = append(out, EscapeByte, b^EscapeByte)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// UnescapeData reverses EscapeData.
func UnescapeData(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == EscapeByte {
			i++
			if i >= len(data) {
				return nil, errors.Wrapf(errors.ErrMalformedLength, "dangling escape byte at offset %d", i-1)
			}
			b = data[i] ^ EscapeByte
		}
		out = append(out, b)
	}
	return out, nil
}

// EscapeFrame keeps the link header byte, escapes the rest and appends the
// frame tail.
func EscapeFrame(frame []byte) []byte {
	if len(frame) == 0 {
		return nil
	}
	out := make([]byte, 0, len(frame)+len(frame)/8+1)
	out = append(out, frame[0])
	out = append(out, EscapeData(frame[1:])...)
	return append(out, FrameTail)
}

// UnescapeFrame reverses EscapeFrame: it keeps the first byte, drops the
// tail byte and unescapes everything in between.
func UnescapeFrame(frame []byte) ([]byte, error) {
	if len(frame) < 2 {
		return nil, errors.Wrapf(errors.ErrTruncated, "escaped frame needs at least 2 bytes, got %d", len(frame))
	}
	inner, err := UnescapeData(frame[1 : len(frame)-1])
	if err != nil {
		return nil, err
	}
	return append([]byte{frame[0]}, inner...), nil
}
