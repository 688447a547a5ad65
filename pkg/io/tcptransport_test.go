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
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	goerrors "errors"
	"math/big"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tspclient/pkg/errors"
	"tspclient/pkg/logging"
	"tspclient/pkg/proto"
)

type recorder struct {
	frames      chan []byte
	disconnects chan error
	numDisc     atomic.Int32
}

func newRecorder() *recorder {
	return &recorder{
		frames:      make(chan []byte, 16),
		disconnects: make(chan error, 4),
	}
}

func (r *recorder) onMessage(frame []byte) {
	r.frames <- frame
}

func (r *recorder) onDisconnect(err error) {
	r.numDisc.Add(1)
	r.disconnects <- err
}

func (r *recorder) nextFrame(t *testing.T) []byte {
	t.Helper()
	select {
	case f := <-r.frames:
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
	}
	return nil
}

func (r *recorder) nextDisconnect(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.disconnects:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("no disconnect notification")
	}
	return nil
}

func testFrame(t *testing.T, sid, mid uint8, tlvs ...proto.TLV) []byte {
	t.Helper()
	body := proto.MessageBody{Random: 0x0102, Sid: sid, Mid: mid}
	for _, tlv := range tlvs {
		body.Add(tlv)
	}
	raw, err := body.Encode()
	require.NoError(t, err)
	h := proto.NewRequestHeader(proto.DefaultPortVersion, proto.TuidFromString("TUID0001"), proto.NewRequestId())
	frame, err := proto.EncodeFrame(&h, raw)
	require.NoError(t, err)
	return frame
}

// listen returns a listener and a channel yielding accepted connections.
func listen(t *testing.T, tlsConfig *tls.Config) (net.Listener, <-chan net.Conn) {
	t.Helper()
	var ln net.Listener
	var err error
	if tlsConfig != nil {
		ln, err = tls.Listen("tcp4", "127.0.0.1:0", tlsConfig)
	} else {
		ln, err = net.Listen("tcp4", "127.0.0.1:0")
	}
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan net.Conn, 4)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			if tc, ok := c.(*tls.Conn); ok {
				tc.Handshake()
			}
			ch <- c
		}
	}()
	return ln, ch
}

func accept(t *testing.T, ch <-chan net.Conn) net.Conn {
	t.Helper()
	select {
	case c := <-ch:
		t.Cleanup(func() { c.Close() })
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no connection accepted")
	}
	return nil
}

func portOf(ln net.Listener) int {
	return ln.Addr().(*net.TCPAddr).Port
}

func connectTransport(t *testing.T, cfg TransportConfig, tlsConfig *tls.Config, ln net.Listener, rec *recorder) *TCPTransport {
	t.Helper()
	tr := NewTCPTransport(cfg, tlsConfig, logging.Nop())
	tr.SetHandlers(rec.onMessage, rec.onDisconnect)
	require.NoError(t, tr.Open(""))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tr.Connect(ctx, "127.0.0.1", portOf(ln)))
	t.Cleanup(tr.Disconnect)
	return tr
}

func TestTCPTransportExchange(t *testing.T) {
	ln, conns := listen(t, nil)
	rec := newRecorder()
	tr := connectTransport(t, TransportConfig{}, nil, ln, rec)
	server := accept(t, conns)
	assert.True(t, tr.IsConnected())

	f1 := testFrame(t, 5, 200, proto.NewShortTLV(4011, []byte("VIN")))
	f2 := testFrame(t, 5, 203)
	_, err := server.Write(append(append([]byte{}, f1...), f2...))
	require.NoError(t, err)
	assert.Equal(t, f1, rec.nextFrame(t))
	assert.Equal(t, f2, rec.nextFrame(t))

	out := testFrame(t, 2, 1, proto.NewShortTLV(1, []byte{1, 2, 3}))
	require.NoError(t, tr.Send(out))
	layout := proto.DefaultFrameLayout
	got, err := proto.ReadFrame(server, &layout)
	require.NoError(t, err)
	assert.Equal(t, out, got)
}

func TestTCPTransportPeerClosed(t *testing.T) {
	ln, conns := listen(t, nil)
	rec := newRecorder()
	tr := connectTransport(t, TransportConfig{}, nil, ln, rec)
	server := accept(t, conns)

	server.Close()
	err := rec.nextDisconnect(t)
	assert.True(t, goerrors.Is(err, errors.ErrPeerClosed), "err = %v", err)
	assert.False(t, tr.IsConnected())
	assert.True(t, goerrors.Is(tr.Send([]byte{1}), errors.ErrNotConnected))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), rec.numDisc.Load())
}

func TestTCPTransportDisconnectNotReported(t *testing.T) {
	ln, conns := listen(t, nil)
	rec := newRecorder()
	tr := connectTransport(t, TransportConfig{}, nil, ln, rec)
	accept(t, conns)

	tr.Disconnect()
	tr.Disconnect()
	assert.False(t, tr.IsConnected())
	select {
	case err := <-rec.disconnects:
		t.Fatalf("disconnect handler called after Disconnect(): %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTCPTransportReconnectReplacesConnection(t *testing.T) {
	ln, conns := listen(t, nil)
	rec := newRecorder()
	tr := connectTransport(t, TransportConfig{}, nil, ln, rec)
	first := accept(t, conns)

	require.NoError(t, tr.Connect(context.Background(), "127.0.0.1", portOf(ln)))
	second := accept(t, conns)

	// the first connection was dropped by us, so no notification for it
	buf := make([]byte, 1)
	first.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err := first.Read(buf)
	assert.Error(t, err)

	out := testFrame(t, 5, 203)
	require.NoError(t, tr.Send(out))
	layout := proto.DefaultFrameLayout
	got, err := proto.ReadFrame(second, &layout)
	require.NoError(t, err)
	assert.Equal(t, out, got)
	assert.Equal(t, int32(0), rec.numDisc.Load())
}

func TestTCPTransportEscaped(t *testing.T) {
	ln, conns := listen(t, nil)
	rec := newRecorder()
	cfg := TransportConfig{}
	cfg.Layout = proto.DefaultFrameLayout
	cfg.Layout.Escaped = true
	tr := connectTransport(t, cfg, nil, ln, rec)
	server := accept(t, conns)

	in := testFrame(t, 5, 200, proto.NewShortTLV(4009, []byte{202, 87, 255, 0x3D}))
	_, err := server.Write(proto.EscapeFrame(in))
	require.NoError(t, err)
	assert.Equal(t, in, rec.nextFrame(t))

	require.NoError(t, tr.Send(in))
	got, err := proto.ReadEscapedFrame(bufio.NewReader(server))
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestTCPTransportFrameErrorDisconnects(t *testing.T) {
	ln, conns := listen(t, nil)
	rec := newRecorder()
	cfg := TransportConfig{}
	cfg.Layout.Escaped = true
	tr := connectTransport(t, cfg, nil, ln, rec)
	server := accept(t, conns)

	// dangling escape byte before the tail
	_, err := server.Write([]byte{proto.LinkHeader, proto.EscapeByte, proto.FrameTail})
	require.NoError(t, err)
	err = rec.nextDisconnect(t)
	assert.True(t, goerrors.Is(err, errors.ErrMalformedLength), "err = %v", err)
	assert.False(t, tr.IsConnected())
}

func TestTCPTransportConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := portOf(ln)
	ln.Close()

	tr := NewTCPTransport(TransportConfig{}, nil, logging.Nop())
	err = tr.Connect(context.Background(), "127.0.0.1", port)
	assert.True(t, goerrors.Is(err, errors.ErrConnectFailed), "err = %v", err)
	assert.False(t, tr.IsConnected())
}

func TestTCPTransportOpenInvalidAddr(t *testing.T) {
	tr := NewTCPTransport(TransportConfig{}, nil, logging.Nop())
	assert.Error(t, tr.Open("not an address"))
	assert.NoError(t, tr.Open("127.0.0.1:0"))
}

func selfSignedCert(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "tsp-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		IsCA:         true,

		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, pool
}

func TestTCPTransportTLS(t *testing.T) {
	cert, pool := selfSignedCert(t)
	ln, conns := listen(t, &tls.Config{Certificates: []tls.Certificate{cert}})
	rec := newRecorder()
	tr := connectTransport(t, TransportConfig{}, &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, ln, rec)
	server := accept(t, conns)

	out := testFrame(t, 5, 203)
	require.NoError(t, tr.Send(out))
	layout := proto.DefaultFrameLayout
	got, err := proto.ReadFrame(server, &layout)
	require.NoError(t, err)
	assert.Equal(t, out, got)
}

func TestTCPTransportTLSUntrusted(t *testing.T) {
	cert, _ := selfSignedCert(t)
	ln, conns := listen(t, &tls.Config{Certificates: []tls.Certificate{cert}})
	go func() {
		for c := range conns {
			c.Close()
		}
	}()

	tr := NewTCPTransport(TransportConfig{}, &tls.Config{RootCAs: x509.NewCertPool()}, logging.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := tr.Connect(ctx, "127.0.0.1", portOf(ln))
	assert.True(t, goerrors.Is(err, errors.ErrHandshakeFailed), "err = %v", err)
	assert.False(t, tr.IsConnected())
}

func TestTransportConfigDefaults(t *testing.T) {
	var cfg TransportConfig
	assert.True(t, cfg.SetDefaultIfNotDefined())
	assert.Equal(t, DefaultTransportConfig.ConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, proto.MessageHeaderSize, cfg.Layout.HeaderSize)
	assert.Equal(t, 28, cfg.Layout.BodyLengthOffset)
	assert.Equal(t, 2, cfg.Layout.BodyLengthSize)
	assert.Equal(t, time.Duration(0), cfg.WriteTimeout.Duration)
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.SetDefaultIfNotDefined())
}
