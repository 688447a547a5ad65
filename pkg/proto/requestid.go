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

	uuid "github.com/satori/go.uuid"

	"tspclient/pkg/util"
)

type RequestId [RequestIdSize]byte

var NilRequestId = RequestId{}

// NewRequestId takes the low bytes of the timestamp and the clock sequence of
// a version 1 UUID, so ids from one process are distinct and roughly
// increasing within a clock sequence.
func NewRequestId() (rid RequestId) {
	id := uuid.NewV1()
	b := id.Bytes()
	// time_low (4 bytes) + clock_seq (2 bytes)
	copy(rid[:4], b[0:4])
	copy(rid[4:], b[8:10])
	return
}

func (rid RequestId) String() string {
	return util.ToHexString(rid[:])
}

func (rid RequestId) Bytes() []byte {
	return rid[:]
}

func (rid RequestId) IsSet() bool {
	return rid != NilRequestId
}

func (rid *RequestId) SetFromBytes(b []byte) error {
	if len(b) != RequestIdSize {
		return fmt.Errorf("not valid request id: %v", b)
	}
	copy(rid[:], b)
	return nil
}
