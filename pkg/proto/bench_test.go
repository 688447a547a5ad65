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
	"crypto/rand"
	"testing"
)

var (
	gBody  MessageBody
	gFrame []byte
)

func BenchmarkEncode(b *testing.B) {
	h := NewRequestHeader(DefaultPortVersion, TuidFromString("TUID000000000001"), NewRequestId())
	for i := 0; i < b.N; i++ {
		raw, err := gBody.Encode()
		if err != nil {
			b.Fail()
		}
		if _, err = EncodeFrame(&h, raw); err != nil {
			b.Fail()
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, raw, err := SplitFrame(gFrame)
		if err != nil {
			b.FailNow()
		}
		var body MessageBody
		if body.Decode(raw, false) != nil {
			b.FailNow()
		}
	}
}

func BenchmarkEscape(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := UnescapeFrame(EscapeFrame(gFrame)); err != nil {
			b.FailNow()
		}
	}
}

func init() {
	value := make([]byte, 2048)
	if _, err := rand.Read(value); err != nil {
		panic(err)
	}
	gBody = MessageBody{Random: 0x1234, Sid: 3, Mid: 1}
	gBody.Add(NewLongTLV(4011, []byte("LSVAU2180N2183294")))
	gBody.Add(NewLongTLV(1, value))

	raw, err := gBody.Encode()
	if err != nil {
		panic(err)
	}
	h := NewRequestHeader(DefaultPortVersion, TuidFromString("TUID000000000001"), NewRequestId())
	if gFrame, err = EncodeFrame(&h, raw); err != nil {
		panic(err)
	}
}
