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

package io

import (
	"time"

	"tspclient/pkg/proto"
	"tspclient/pkg/util"
)

var (
	DefaultTransportConfig = TransportConfig{
		ConnectTimeout: util.Duration{Duration: 5 * time.Second},
		IOBufSize:      64 * 1024, // default 64k buf size
		LocalAddr:      "0.0.0.0:0",
		Layout:         proto.DefaultFrameLayout,
	}
)

type (
	TransportConfig struct {
		ConnectTimeout util.Duration
		// 0 means a write may block until the peer reads or the socket fails
		WriteTimeout util.Duration
		IOBufSize    int
		// bind the socket to this device (SO_BINDTODEVICE), Linux only
		NetworkInterface string
		LocalAddr        string
		Layout           proto.FrameLayout
	}
)

func (conf *TransportConfig) SetDefaultIfNotDefined() (set bool) {
	if conf.ConnectTimeout.Duration == 0 {
		set = true
		conf.ConnectTimeout.Duration = DefaultTransportConfig.ConnectTimeout.Duration
	}
	if conf.IOBufSize == 0 {
		set = true
		conf.IOBufSize = DefaultTransportConfig.IOBufSize
	}
	if conf.LocalAddr == "" {
		set = true
		conf.LocalAddr = DefaultTransportConfig.LocalAddr
	}
	if conf.Layout.HeaderSize == 0 || conf.Layout.BodyLengthOffset == 0 || conf.Layout.BodyLengthSize == 0 {
		set = true
		conf.Layout.SetDefaultIfNotDefined()
	}
	return
}

func (conf *TransportConfig) Validate() error {
	return conf.Layout.Validate()
}
