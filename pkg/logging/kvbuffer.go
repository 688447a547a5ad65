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

package logging

import (
	"bytes"
	"strconv"

	"tspclient/pkg/errors"
	"tspclient/pkg/proto"
	"tspclient/pkg/util"
)

type KeyValueBuffer struct {
	bytes.Buffer
	delimiter     byte
	pairDelimiter byte
}

func NewKVBufferForLog() *KeyValueBuffer {
	b := &KeyValueBuffer{
		delimiter:     '=',
		pairDelimiter: ',',
	}
	return b
}

func NewKVBuffer() *KeyValueBuffer {
	b := &KeyValueBuffer{
		pairDelimiter: '&',
		delimiter:     '=',
	}
	return b
}

var (
	logDataKeyRid       = []byte("rid")
	logDataKeyStatus    = []byte("st")
	logDataKeyErrStatus = []byte("m_err")
	logDataKeyEvent     = []byte("ev")
	logDataKeyAck       = []byte("ack")
	logDataKeyEnc       = []byte("enc")
	logDataKeyLen       = []byte("len")
	logDataKeyState     = []byte("state")
	logDataKeyHost      = []byte("host")
	logDataKeyTryNo     = []byte("try_no")
	logDataKeyErrCat    = []byte("err")
	logDataKeyData      = []byte("data")
)

func (b *KeyValueBuffer) AddBytes(key []byte, value []byte) *KeyValueBuffer {
	if b.Len() > 0 {
		b.WriteByte(b.pairDelimiter)
	}
	b.Write(key)
	b.WriteByte(b.delimiter)
	b.Write(value)
	return b
}

func (b *KeyValueBuffer) Add(key []byte, value string) *KeyValueBuffer {
	return b.AddBytes(key, []byte(value))
}

func (b *KeyValueBuffer) AddInt(key []byte, value int) *KeyValueBuffer {
	return b.Add(key, strconv.Itoa(value))
}

func (b *KeyValueBuffer) AddUInt64(key []byte, value uint64) *KeyValueBuffer {
	return b.Add(key, strconv.FormatUint(value, 10))
}

func (b *KeyValueBuffer) AddRequestID(id proto.RequestId) *KeyValueBuffer {
	if id.IsSet() {
		b.Add(logDataKeyRid, id.String())
	}
	return b
}

// AddStatus logs the wire status code. The short form used for the '&'
// buffer only records a non normal status.
func (b *KeyValueBuffer) AddStatus(st proto.StatusCode) *KeyValueBuffer {
	if b.pairDelimiter == '&' {
		if st != proto.StatusNormal {
			b.Add(logDataKeyErrStatus, st.String())
		}
		return b
	}
	return b.Add(logDataKeyStatus, st.String())
}

func (b *KeyValueBuffer) AddEventId(ev proto.EventId) *KeyValueBuffer {
	return b.Add(logDataKeyEvent, ev.String())
}

func (b *KeyValueBuffer) AddState(state string) *KeyValueBuffer {
	return b.Add(logDataKeyState, state)
}

func (b *KeyValueBuffer) AddHost(host string, port int) *KeyValueBuffer {
	return b.Add(logDataKeyHost, host+":"+strconv.Itoa(port))
}

func (b *KeyValueBuffer) AddTryNo(n int) *KeyValueBuffer {
	return b.AddInt(logDataKeyTryNo, n)
}

func (b *KeyValueBuffer) AddError(err error) *KeyValueBuffer {
	if err != nil {
		b.Add(logDataKeyErrCat, string(errors.GetCategory(err)))
	}
	return b
}

func (b *KeyValueBuffer) AddHexData(data []byte) *KeyValueBuffer {
	return b.Add(logDataKeyData, util.ToHexString(data))
}

func (b *KeyValueBuffer) AddHeader(h *proto.MessageHeader) *KeyValueBuffer {
	b.AddRequestID(h.RequestId).AddStatus(h.StatusCode)
	b.AddInt(logDataKeyAck, int(h.AckFlag)).AddInt(logDataKeyEnc, int(h.EncryptFlag))
	return b.AddInt(logDataKeyLen, int(h.BodyLength))
}

// AddFrameSummary logs header fields and the event id of a raw frame. A frame
// too short for a header is logged by length only.
func (b *KeyValueBuffer) AddFrameSummary(raw []byte) *KeyValueBuffer {
	h, ev, err := proto.SummarizeFrame(raw)
	if err != nil {
		b.AddInt(logDataKeyLen, len(raw))
		return b.AddError(err)
	}
	b.AddHeader(&h)
	if h.BodyLength >= proto.BodyPrefixSize && !h.IsEncrypted() {
		b.AddEventId(ev)
	}
	return b
}
