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
	"tspclient/pkg/util"
)

type (
	// MessageHeader is the fixed 30-byte header of every frame on the wire.
	MessageHeader struct {
		LinkHeader  uint8
		PortVersion uint16
		StatusCode  StatusCode
		AckFlag     uint8
		RequestId   RequestId
		Tuid        Tuid
		EncryptFlag uint8
		BodyLength  uint16
	}

	// IPCHeader is the 11-byte header exchanged with the local application.
	IPCHeader struct {
		StatusCode  StatusCode
		AckFlag     uint8
		RequestId   RequestId
		EncryptFlag uint8
		BodyLength  uint16
	}
)

// NewRequestHeader returns a request header with link header and port
// version filled in.
func NewRequestHeader(portVersion uint16, tuid Tuid, rid RequestId) MessageHeader {
	return MessageHeader{
		LinkHeader:  LinkHeader,
		PortVersion: portVersion,
		StatusCode:  StatusNormal,
		AckFlag:     AckFlagRequest,
		RequestId:   rid,
		Tuid:        tuid,
		EncryptFlag: EncryptFlagPlain,
	}
}

func (h *MessageHeader) EncodeToPacket(p *Packet) {
	p.Put8(h.LinkHeader).Put16(h.PortVersion).Put8(uint8(h.StatusCode)).Put8(h.AckFlag)
	p.PutBytes(h.RequestId[:]).PutBytes(h.Tuid[:])
	p.Put8(h.EncryptFlag).Put16(h.BodyLength)
}

func (h *MessageHeader) Encode() []byte {
	p := NewPacketWriter(MessageHeaderSize)
	h.EncodeToPacket(p)
	return p.Bytes()
}

// Decode parses the first MessageHeaderSize bytes of raw. The link header
// value is not validated.
func (h *MessageHeader) Decode(raw []byte) error {
	if len(raw) < MessageHeaderSize {
		return errors.Wrapf(errors.ErrTruncated, "message header needs %d bytes, got %d", MessageHeaderSize, len(raw))
	}
	p := NewPacketReader(raw)
	h.decodeFromPacket(p)
	return p.Err()
}

func (h *MessageHeader) decodeFromPacket(p *Packet) {
	h.LinkHeader = p.Get8()
	h.PortVersion = p.Get16()
	h.StatusCode = StatusCode(p.Get8())
	h.AckFlag = p.Get8()
	p.GetInto(h.RequestId[:])
	p.GetInto(h.Tuid[:])
	h.EncryptFlag = p.Get8()
	h.BodyLength = p.Get16()
}

func (h *MessageHeader) IsRequest() bool {
	return h.AckFlag == AckFlagRequest
}

func (h *MessageHeader) IsEncrypted() bool {
	return h.EncryptFlag == EncryptFlagAES
}

// ToIPCHeader drops the wire-only fields.
func (h *MessageHeader) ToIPCHeader() IPCHeader {
	return IPCHeader{
		StatusCode:  h.StatusCode,
		AckFlag:     h.AckFlag,
		RequestId:   h.RequestId,
		EncryptFlag: h.EncryptFlag,
		BodyLength:  h.BodyLength,
	}
}

func (h *MessageHeader) PrettyPrint(w io.Writer) {
	fmt.Fprintln(w, "Header:")
	fmt.Fprintf(w, "  LinkHeader\t: %d\n", h.LinkHeader)
	fmt.Fprintf(w, "  PortVersion\t: %d\n", h.PortVersion)
	fmt.Fprintf(w, "  StatusCode\t: %s\n", h.StatusCode)
	fmt.Fprintf(w, "  AckFlag\t: %d\n", h.AckFlag)
	fmt.Fprintf(w, "  RequestId\t: %s\n", h.RequestId)
	fmt.Fprintf(w, "  Tuid\t\t: %s [%s]\n", h.Tuid, util.ToHexString(h.Tuid[:]))
	fmt.Fprintf(w, "  EncryptFlag\t: %d\n", h.EncryptFlag)
	fmt.Fprintf(w, "  BodyLength\t: %d\n", h.BodyLength)
}

func (h *IPCHeader) Encode() []byte {
	p := NewPacketWriter(IPCHeaderSize)
	p.Put8(uint8(h.StatusCode)).Put8(h.AckFlag).PutBytes(h.RequestId[:])
	p.Put8(h.EncryptFlag).Put16(h.BodyLength)
	return p.Bytes()
}

func (h *IPCHeader) Decode(raw []byte) error {
	if len(raw) < IPCHeaderSize {
		return errors.Wrapf(errors.ErrTruncated, "ipc header needs %d bytes, got %d", IPCHeaderSize, len(raw))
	}
	p := NewPacketReader(raw)
	h.StatusCode = StatusCode(p.Get8())
	h.AckFlag = p.Get8()
	p.GetInto(h.RequestId[:])
	h.EncryptFlag = p.Get8()
	h.BodyLength = p.Get16()
	return p.Err()
}

// ToMessageHeader fills in the wire-only fields.
func (h *IPCHeader) ToMessageHeader(portVersion uint16, tuid Tuid) MessageHeader {
	return MessageHeader{
		LinkHeader:  LinkHeader,
		PortVersion: portVersion,
		StatusCode:  h.StatusCode,
		AckFlag:     h.AckFlag,
		RequestId:   h.RequestId,
		Tuid:        tuid,
		EncryptFlag: h.EncryptFlag,
		BodyLength:  h.BodyLength,
	}
}

// SplitIPCMessage splits an IPC message into its header and exactly
// BodyLength body bytes.
func SplitIPCMessage(msg []byte) (h IPCHeader, body []byte, err error) {
	if err = h.Decode(msg); err != nil {
		return
	}
	end := IPCHeaderSize + int(h.BodyLength)
	if len(msg) < end {
		err = errors.Wrapf(errors.ErrTruncated, "ipc body needs %d bytes, got %d", h.BodyLength, len(msg)-IPCHeaderSize)
		return
	}
	body = msg[IPCHeaderSize:end]
	return
}

// EncodeIPCMessage sets BodyLength and returns header followed by body.
func EncodeIPCMessage(h IPCHeader, body []byte) []byte {
	h.BodyLength = uint16(len(body))
	raw := h.Encode()
	return append(raw, body...)
}
