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
	"context"
)

type (
	// MessageHandler receives one complete frame, header included.
	MessageHandler func(frame []byte)
	// DisconnectHandler is called once per established connection when the
	// read loop stops, with the error that stopped it.
	DisconnectHandler func(err error)

	// Transport owns one socket. Connect and Send block; received frames and
	// the disconnect notification are delivered from the transport's read
	// goroutine.
	Transport interface {
		// Open records the local address to bind to on the next Connect.
		Open(localAddr string) error
		Connect(ctx context.Context, host string, port int) error
		// Send writes the whole frame or fails.
		Send(frame []byte) error
		// Disconnect is idempotent. It does not invoke the disconnect handler.
		Disconnect()
		IsConnected() bool
		SetHandlers(onMessage MessageHandler, onDisconnect DisconnectHandler)
	}
)
