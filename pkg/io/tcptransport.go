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
	"crypto/tls"
	goio "io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"tspclient/pkg/errors"
	"tspclient/pkg/io/ioutil"
	"tspclient/pkg/logging"
	"tspclient/pkg/logging/otel"
	"tspclient/pkg/proto"
	"tspclient/pkg/sec"
	"tspclient/pkg/util"
)

var _ Transport = (*TCPTransport)(nil)

// TCPTransport is the production Transport: TCP over IPv4, optionally bound
// to a network device, optionally wrapped in TLS.
type TCPTransport struct {
	config    TransportConfig
	tlsConfig *tls.Config
	logger    logging.Logger

	mtx          sync.Mutex
	conn         net.Conn
	localAddr    string
	onMessage    MessageHandler
	onDisconnect DisconnectHandler
	connected    atomic.Bool

	wmtx sync.Mutex
}

// NewTCPTransport returns a transport using cfg. A nil tlsConfig means plain
// TCP.
func NewTCPTransport(cfg TransportConfig, tlsConfig *tls.Config, logger logging.Logger) *TCPTransport {
	cfg.SetDefaultIfNotDefined()
	return &TCPTransport{
		config:    cfg,
		tlsConfig: tlsConfig,
		logger:    logging.OrDefault(logger),
		localAddr: cfg.LocalAddr,
	}
}

func (t *TCPTransport) Open(localAddr string) error {
	if localAddr == "" {
		localAddr = t.config.LocalAddr
	}
	if _, err := net.ResolveTCPAddr("tcp4", localAddr); err != nil {
		return errors.Wrap(errors.ErrConnectFailed, err)
	}
	t.mtx.Lock()
	t.localAddr = localAddr
	t.mtx.Unlock()
	return nil
}

func (t *TCPTransport) SetHandlers(onMessage MessageHandler, onDisconnect DisconnectHandler) {
	t.mtx.Lock()
	t.onMessage = onMessage
	t.onDisconnect = onDisconnect
	t.mtx.Unlock()
}

func (t *TCPTransport) Connect(ctx context.Context, host string, port int) (err error) {
	if t.IsConnected() {
		t.Disconnect()
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	timeStart := time.Now()
	var conn net.Conn

	defer func() {
		if otel.IsEnabled() {
			otel.RecordConnection(addr, otel.StatusOf(err == nil), time.Since(timeStart).Milliseconds())
		}
	}()

	if conn, err = t.dial(ctx, addr); err != nil {
		t.logger.Errorf("fail to connect %s error: %s", addr, err)
		return errors.Wrap(errors.ErrConnectFailed, err)
	}

	if t.tlsConfig != nil {
		cfg := t.tlsConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = host
		}
		tlsConn := tls.Client(conn, cfg)
		if err = tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			t.logger.Errorf("fail to handshake with %s error: %s", addr, err)
			return errors.Wrap(errors.ErrHandshakeFailed, err)
		}
		t.logger.Debugf("connected to %s ssl=%s", addr, sec.NewTlsConn(tlsConn).GetStateString())
		conn = tlsConn
	} else {
		t.logger.Debugf("connected to %s", displayName(conn))
	}

	t.mtx.Lock()
	t.conn = conn
	t.connected.Store(true)
	onMessage, onDisconnect := t.onMessage, t.onDisconnect
	t.mtx.Unlock()

	go t.readLoop(conn, onMessage, onDisconnect)
	return nil
}

func (t *TCPTransport) dial(ctx context.Context, addr string) (net.Conn, error) {
	t.mtx.Lock()
	localAddr := t.localAddr
	t.mtx.Unlock()

	dialer := net.Dialer{}
	if localAddr != "" {
		laddr, err := net.ResolveTCPAddr("tcp4", localAddr)
		if err != nil {
			return nil, err
		}
		dialer.LocalAddr = laddr
	}
	if t.config.NetworkInterface != "" {
		dialer.Control = bindToDeviceControl(t.config.NetworkInterface)
	}
	return dialer.DialContext(ctx, "tcp4", addr)
}

func (t *TCPTransport) Send(frame []byte) error {
	t.mtx.Lock()
	conn := t.conn
	t.mtx.Unlock()
	if conn == nil {
		return errors.ErrNotConnected
	}
	if t.config.Layout.Escaped {
		frame = proto.EscapeFrame(frame)
	}

	t.wmtx.Lock()
	defer t.wmtx.Unlock()
	if t.config.WriteTimeout.Duration != 0 {
		conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout.Duration))
	}
	if _, err := conn.Write(frame); err != nil {
		return errors.Wrap(errors.ErrWriteFailed, err)
	}
	return nil
}

func (t *TCPTransport) Disconnect() {
	t.mtx.Lock()
	conn := t.conn
	t.conn = nil
	t.connected.Store(false)
	t.mtx.Unlock()

	if conn != nil {
		t.logger.Debugf("disconnecting %s", displayName(conn))
		conn.Close()
	}
}

func (t *TCPTransport) IsConnected() bool {
	return t.connected.Load()
}

func (t *TCPTransport) readLoop(conn net.Conn, onMessage MessageHandler, onDisconnect DisconnectHandler) {
	reader := util.NewBufioReader(conn, t.config.IOBufSize)
	layout := t.config.Layout

	var err error
	for {
		var frame []byte
		if layout.Escaped {
			frame, err = proto.ReadEscapedFrame(reader)
		} else {
			frame, err = proto.ReadFrame(reader, &layout)
		}
		if err != nil {
			break
		}
		if logging.IsEnabled(logging.LevelDebug) {
			t.logger.Debugf("frame received. %s", logging.NewKVBufferForLog().AddFrameSummary(frame).String())
		}
		if onMessage != nil {
			onMessage(frame)
		}
	}
	util.PutBufioReader(reader)
	if err == goio.EOF {
		err = errors.Wrap(errors.ErrPeerClosed, err)
	}

	// a connection closed by Disconnect() is not reported
	t.mtx.Lock()
	current := t.conn == conn
	if current {
		t.conn = nil
		t.connected.Store(false)
	}
	t.mtx.Unlock()
	conn.Close()

	if current {
		ioutil.LogError(t.logger, "connection "+displayName(conn)+" lost", err)
		if onDisconnect != nil {
			onDisconnect(err)
		}
	}
}

func displayName(conn net.Conn) string {
	return conn.LocalAddr().String() + "->" + conn.RemoteAddr().String()
}
