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

package client

import (
	"sync"

	"tspclient/pkg/io"
	"tspclient/pkg/logging"
	"tspclient/pkg/sec"
)

type (
	TspConfig struct {
		Client    Config
		Sec       sec.Config
		Transport io.TransportConfig
	}

	// TransportFactory builds the transport for a new Client.
	TransportFactory func(cfg *TspConfig, logger logging.Logger) (io.Transport, error)

	// TspClient gives the Client a topic based publish API and rebuilds it on
	// the next Connect after UpdateConfig.
	TspClient struct {
		mtx           sync.Mutex
		config        TspConfig
		reloadPending bool
		client        *Client
		factory       TransportFactory
		logger        logging.Logger

		onConnectionChanged ConnectHandler
		onMessageReceived   ReplyHandler
		onMessagePublished  PublishedHandler
	}
)

// NewTCPTransportFactory builds the TCP transport, with TLS when
// cfg.Sec.SupportTLS is set.
func NewTCPTransportFactory(cfg *TspConfig, logger logging.Logger) (io.Transport, error) {
	tlsConfig, err := sec.NewClientTLSConfig(&cfg.Sec)
	if err != nil {
		return nil, err
	}
	return io.NewTCPTransport(cfg.Transport, tlsConfig, logger), nil
}

func (c *TspConfig) SetDefaultIfNotDefined() {
	c.Client.SetDefaultIfNotDefined()
	c.Sec.SetDefaultIfNotDefined()
	c.Transport.SetDefaultIfNotDefined()
}

func (c *TspConfig) Validate() error {
	if err := c.Client.Validate(); err != nil {
		return err
	}
	if err := c.Sec.Validate(); err != nil {
		return err
	}
	return c.Transport.Validate()
}

// NewTspClient does not connect. A nil factory means NewTCPTransportFactory.
func NewTspClient(cfg TspConfig, factory TransportFactory, logger logging.Logger) *TspClient {
	if factory == nil {
		factory = NewTCPTransportFactory
	}
	cfg.SetDefaultIfNotDefined()
	return &TspClient{
		config:  cfg,
		factory: factory,
		logger:  logging.OrDefault(logger),
	}
}

// Connect builds the Client when there is none or a reload is pending, then
// connects with maxReconnects. It returns whether the first attempt
// succeeded.
func (t *TspClient) Connect(maxReconnects int) bool {
	t.mtx.Lock()
	var old *Client
	if t.client != nil && t.reloadPending {
		old = t.client
		t.client = nil
	}
	t.mtx.Unlock()
	if old != nil {
		t.logger.Infof("config reloaded, rebuilding client")
		old.Close()
	}

	t.mtx.Lock()
	if t.client == nil {
		transport, err := t.factory(&t.config, t.logger)
		if err != nil {
			t.mtx.Unlock()
			t.logger.Errorf("fail to create transport: %s", err)
			return false
		}
		t.client = NewClient(t.config.Client, transport, t.logger)
		t.client.SetPublishedHandler(t.messagePublished)
		t.reloadPending = false
	}
	c := t.client
	cfg := t.config.Client
	t.mtx.Unlock()

	return c.Connect(cfg.Host, cfg.Port, t.connectionChanged, t.messageReceived, ConnectOptions{
		Timeout:           cfg.ConnectTimeout.Duration,
		MaxReconnects:     maxReconnects,
		ReconnectInterval: cfg.ReconnectInterval.Duration,
	})
}

// Publish queues frame. topic only names the frame in logs; routing by
// topic happens in the proxy.
func (t *TspClient) Publish(topic string, frame []byte) {
	t.PublishWithCallback(topic, frame, nil)
}

// PublishWithCallback is Publish with a result callback for this frame only.
// A nil callback falls back to the message published handler.
func (t *TspClient) PublishWithCallback(topic string, frame []byte, onPublished PublishedHandler) {
	c := t.Client()
	if c == nil {
		t.logger.Errorf("publish to %s before connect. %s", topic, logging.NewKVBufferForLog().AddFrameSummary(frame).String())
		if onPublished != nil {
			onPublished(frame, false)
		} else {
			t.messagePublished(frame, false)
		}
		return
	}
	if logging.IsEnabled(logging.LevelDebug) {
		t.logger.Debugf("publish %s. %s", topic, logging.NewKVBufferForLog().AddFrameSummary(frame).String())
	}
	c.SendWithCallback(frame, onPublished)
}

// UpdateConfig takes effect on the next Connect.
func (t *TspClient) UpdateConfig(cfg TspConfig) {
	cfg.SetDefaultIfNotDefined()
	t.mtx.Lock()
	t.config = cfg
	t.reloadPending = true
	t.mtx.Unlock()
}

func (t *TspClient) Config() TspConfig {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.config
}

func (t *TspClient) Disconnect() {
	if c := t.Client(); c != nil {
		c.Disconnect()
	}
}

func (t *TspClient) IsConnected() bool {
	if c := t.Client(); c != nil {
		return c.IsConnected()
	}
	return false
}

func (t *TspClient) Close() {
	t.mtx.Lock()
	c := t.client
	t.client = nil
	t.mtx.Unlock()
	if c != nil {
		c.Close()
	}
}

// Client returns the current Client, nil before the first Connect.
func (t *TspClient) Client() *Client {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.client
}

func (t *TspClient) SetConnectionChangedHandler(h ConnectHandler) {
	t.mtx.Lock()
	t.onConnectionChanged = h
	t.mtx.Unlock()
}

func (t *TspClient) SetMessageReceivedHandler(h ReplyHandler) {
	t.mtx.Lock()
	t.onMessageReceived = h
	t.mtx.Unlock()
}

func (t *TspClient) SetMessagePublishedHandler(h PublishedHandler) {
	t.mtx.Lock()
	t.onMessagePublished = h
	t.mtx.Unlock()
}

func (t *TspClient) connectionChanged(host string, port int, state ConnState) {
	t.mtx.Lock()
	cb := t.onConnectionChanged
	t.mtx.Unlock()
	if cb != nil {
		cb(host, port, state)
	} else {
		t.logger.Warningf("no connection changed handler for state %s", state)
	}
}

func (t *TspClient) messageReceived(frame []byte) {
	t.mtx.Lock()
	cb := t.onMessageReceived
	t.mtx.Unlock()
	if cb != nil {
		cb(frame)
	} else {
		t.logger.Warningf("no message received handler. %s", logging.NewKVBufferForLog().AddFrameSummary(frame).String())
	}
}

func (t *TspClient) messagePublished(frame []byte, ok bool) {
	t.mtx.Lock()
	cb := t.onMessagePublished
	t.mtx.Unlock()
	if cb != nil {
		cb(frame, ok)
	}
}
