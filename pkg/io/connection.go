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

	"tspclient/pkg/errors"
)

// Connection binds one Transport to the callbacks of its owner.
type Connection struct {
	transport Transport
	localAddr string
}

func NewConnection(transport Transport, localAddr string) *Connection {
	return &Connection{
		transport: transport,
		localAddr: localAddr,
	}
}

// Connect disconnects first if already connected, then opens, binds and
// connects the transport. The handlers are in place before the first frame
// can arrive.
func (c *Connection) Connect(ctx context.Context, host string, port int, onDisconnect DisconnectHandler, onReply MessageHandler) error {
	if c.transport.IsConnected() {
		c.transport.Disconnect()
	}
	if err := c.transport.Open(c.localAddr); err != nil {
		return err
	}
	c.transport.SetHandlers(onReply, onDisconnect)
	if err := c.transport.Connect(ctx, host, port); err != nil {
		c.transport.SetHandlers(nil, nil)
		return err
	}
	return nil
}

func (c *Connection) Send(frame []byte) error {
	if !c.transport.IsConnected() {
		return errors.ErrNotConnected
	}
	return c.transport.Send(frame)
}

func (c *Connection) Disconnect() {
	c.transport.Disconnect()
}

func (c *Connection) IsConnected() bool {
	return c.transport.IsConnected()
}
