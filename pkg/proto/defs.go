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
	"encoding/binary"
	"fmt"
)

var (
	EncByteOrder = binary.BigEndian
)

const (
	LinkHeader         uint8  = 202
	DefaultPortVersion uint16 = 200

	RequestIdSize = 6
	TuidSize      = 16

	MessageHeaderSize = 1 + 2 + 1 + 1 + RequestIdSize + TuidSize + 1 + 2
	IPCHeaderSize     = 1 + 1 + RequestIdSize + 1 + 2
	BodyLengthOffset  = MessageHeaderSize - 2
	BodyLengthSize    = 2

	// random(2) sid(1) mid(1)
	BodyPrefixSize = 4

	AckFlagResponse uint8 = 0
	AckFlagRequest  uint8 = 1

	EncryptFlagPlain uint8 = 0
	EncryptFlagAES   uint8 = 1

	MaxShortTLVValueSize = 0xFF
	MaxLongTLVValueSize  = 0xFFFF
)

type StatusCode uint8

const (
	StatusNormal            = StatusCode(0)
	StatusForbidVisitTcp    = StatusCode(101)
	StatusVersionNotSupport = StatusCode(102)
	StatusInvalidTuid       = StatusCode(103)
	StatusCmdNotSupport     = StatusCode(104)
	StatusTokenTimeout      = StatusCode(106)
	StatusServerInnerError  = StatusCode(200)
)

var statusCodeNames = map[StatusCode]string{
	StatusNormal:            "Normal",
	StatusForbidVisitTcp:    "ForbidVisitTcp",
	StatusVersionNotSupport: "VersionNotSupport",
	StatusInvalidTuid:       "InvalidTuid",
	StatusCmdNotSupport:     "CmdNotSupport",
	StatusTokenTimeout:      "TokenTimeout",
	StatusServerInnerError:  "ServerInnerError",
}

func (s StatusCode) String() string {
	if name, ok := statusCodeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("StatusCode(%d)", uint8(s))
}

// EventId identifies the semantic type of a message body: sid<<8 | mid.
type EventId uint16

func NewEventId(sid, mid uint8) EventId {
	return EventId(uint16(sid)<<8 | uint16(mid))
}

func (e EventId) Sid() uint8 {
	return uint8(e >> 8)
}

func (e EventId) Mid() uint8 {
	return uint8(e)
}

func (e EventId) String() string {
	return fmt.Sprintf("%d/%d", e.Sid(), e.Mid())
}

// Tuid is the terminal/device identifier embedded in every header.
type Tuid [TuidSize]byte

// TuidFromString copies s into a Tuid, truncating or zero padding to 16 bytes.
func TuidFromString(s string) (t Tuid) {
	copy(t[:], s)
	return
}

func (t Tuid) String() string {
	n := len(t)
	for n > 0 && t[n-1] == 0 {
		n--
	}
	return string(t[:n])
}
