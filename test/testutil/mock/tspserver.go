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

package mock

import (
	"bufio"
	goio "io"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"

	"tspclient/pkg/errors"
	"tspclient/pkg/logging"
	"tspclient/pkg/proto"
	"tspclient/pkg/sec"
)

const (
	sidPlatform     uint8  = 5
	midLogin        uint8  = 200
	midLogout       uint8  = 201
	midHeartbeat    uint8  = 203
	midPassCheckIn  uint8  = 204
	midPassCheckOut uint8  = 205
	tagResult       uint16 = 4000
	tagSessionKey   uint16 = 4009
)

// TspServer is a TSP platform over real TCP for integration tests. It
// answers login with a fresh session key, logout, heartbeat-sleep and
// pass-check requests, and echoes every other request back with an empty
// body under the same event id, encrypted when the request was.
type TspServer struct {
	config   ServerConfig
	listener net.Listener
	logger   logging.Logger

	mtx        sync.Mutex
	cond       *sync.Cond
	conns      map[net.Conn]*serverSession
	received   []proto.EventId
	sessionKey []byte
	closed     bool
	wg         sync.WaitGroup
}

type serverSession struct {
	conn   net.Conn
	wmtx   sync.Mutex
	cipher *sec.SessionCipher
}

func NewTspServer(cfg ServerConfig, logger logging.Logger) (*TspServer, error) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultServerConfig.ListenAddr
	}
	if cfg.CipherMode == "" {
		cfg.CipherMode = DefaultServerConfig.CipherMode
	}
	ln, err := net.Listen("tcp4", cfg.ListenAddr)
	if err != nil {
		return nil, err
	}
	s := &TspServer{
		config:   cfg,
		listener: ln,
		logger:   logging.OrDefault(logger),
		conns:    make(map[net.Conn]*serverSession),
	}
	s.cond = sync.NewCond(&s.mtx)
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

func (s *TspServer) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

func (s *TspServer) Port() int {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// SessionKey returns the key handed out by the last login.
func (s *TspServer) SessionKey() []byte {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]byte(nil), s.sessionKey...)
}

func (s *TspServer) SetLoginResult(result byte) {
	s.mtx.Lock()
	s.config.LoginResult = result
	s.mtx.Unlock()
}

func (s *TspServer) SetSilent(silent bool) {
	s.mtx.Lock()
	s.config.Silent = silent
	s.mtx.Unlock()
}

// Received returns the event ids of all requests in arrival order.
func (s *TspServer) Received() []proto.EventId {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]proto.EventId(nil), s.received...)
}

// WaitReceived waits until n requests of ev arrived.
func (s *TspServer) WaitReceived(ev proto.EventId, n int, timeout time.Duration) bool {
	count := func() (c int) {
		for _, e := range s.received {
			if e == ev {
				c++
			}
		}
		return
	}
	timer := time.AfterFunc(timeout, func() {
		s.mtx.Lock()
		s.cond.Broadcast()
		s.mtx.Unlock()
	})
	defer timer.Stop()
	deadline := time.Now().Add(timeout)

	s.mtx.Lock()
	defer s.mtx.Unlock()
	for count() < n && time.Now().Before(deadline) {
		s.cond.Wait()
	}
	return count() >= n
}

// Push writes frame to every connected client.
func (s *TspServer) Push(frame []byte) {
	for _, sess := range s.sessions() {
		sess.write(frame)
	}
}

// DropClients closes every accepted connection.
func (s *TspServer) DropClients() {
	for _, sess := range s.sessions() {
		sess.conn.Close()
	}
}

func (s *TspServer) NumClients() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.conns)
}

func (s *TspServer) Close() {
	s.mtx.Lock()
	s.closed = true
	s.mtx.Unlock()
	s.listener.Close()
	s.DropClients()
	s.wg.Wait()
}

func (s *TspServer) sessions() []*serverSession {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	out := make([]*serverSession, 0, len(s.conns))
	for _, sess := range s.conns {
		out = append(out, sess)
	}
	return out
}

func (s *TspServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		sess := &serverSession{conn: conn}
		s.mtx.Lock()
		if s.closed {
			s.mtx.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = sess
		s.mtx.Unlock()
		s.wg.Add(1)
		go s.serve(sess)
	}
}

func (s *TspServer) serve(sess *serverSession) {
	defer s.wg.Done()
	defer func() {
		s.mtx.Lock()
		delete(s.conns, sess.conn)
		s.mtx.Unlock()
		sess.conn.Close()
	}()
	r := bufio.NewReader(sess.conn)
	layout := proto.DefaultFrameLayout
	for {
		frame, err := proto.ReadFrame(r, &layout)
		if err != nil {
			if err != goio.EOF {
				s.logger.Debugf("mock tsp read: %s", err)
			}
			return
		}
		s.handle(sess, frame)
	}
}

func (s *TspServer) handle(sess *serverSession, frame []byte) {
	h, body, err := proto.SplitFrame(frame)
	if err != nil {
		s.logger.Warningf("mock tsp: %s", err)
		return
	}
	if h.IsEncrypted() {
		if sess.cipher == nil {
			s.logger.Warningf("mock tsp: encrypted request before login")
			return
		}
		if body, err = sess.cipher.Decrypt(body); err != nil {
			s.logger.Warningf("mock tsp: %s", err)
			return
		}
	}
	ev, err := proto.PeekEventId(body)
	if err != nil {
		return
	}

	s.mtx.Lock()
	s.received = append(s.received, ev)
	s.cond.Broadcast()
	cfg := s.config
	s.mtx.Unlock()
	if cfg.Silent {
		return
	}
	if d := cfg.ResponseDelay.Duration; d > 0 {
		time.Sleep(d)
	}

	resp := proto.MessageBody{Random: uint16(rand.Intn(0x10000)), Sid: ev.Sid(), Mid: ev.Mid()}
	if ev.Sid() == sidPlatform {
		switch ev.Mid() {
		case midLogin:
			key := uuid.NewV4().Bytes()
			c, err := sec.NewSessionCipher(cfg.CipherMode, key, append(h.RequestId.Bytes(), h.Tuid[:]...))
			if err != nil {
				s.logger.Errorf("mock tsp: %s", err)
				return
			}
			sess.cipher = c
			s.mtx.Lock()
			s.sessionKey = key
			s.mtx.Unlock()
			resp.Add(proto.NewShortTLV(tagResult, []byte{cfg.LoginResult}))
			resp.Add(proto.NewShortTLV(tagSessionKey, key))
		case midLogout:
			sess.cipher = nil
		case midHeartbeat, midPassCheckIn, midPassCheckOut:
			resp.Add(proto.NewShortTLV(tagResult, []byte{0}))
		}
	}
	raw, err := resp.Encode()
	if err == nil && h.IsEncrypted() {
		raw, err = sess.cipher.Encrypt(raw)
	}
	if err != nil {
		s.logger.Errorf("mock tsp: %s", err)
		return
	}
	rh := h
	rh.AckFlag = proto.AckFlagResponse
	rh.StatusCode = proto.StatusNormal
	out, err := proto.EncodeFrame(&rh, raw)
	if err != nil {
		s.logger.Errorf("mock tsp: %s", err)
		return
	}
	sess.write(out)
}

func (sess *serverSession) write(frame []byte) {
	sess.wmtx.Lock()
	defer sess.wmtx.Unlock()
	sess.conn.Write(frame)
}

// EncodeResponse builds a plain response frame for Push.
func EncodeResponse(status proto.StatusCode, tuid proto.Tuid, sid, mid uint8, tlvs ...proto.TLV) ([]byte, error) {
	h := proto.NewRequestHeader(proto.DefaultPortVersion, tuid, proto.NewRequestId())
	h.AckFlag = proto.AckFlagResponse
	h.StatusCode = status
	body := proto.MessageBody{Sid: sid, Mid: mid, Content: tlvs}
	raw, err := body.Encode()
	if err != nil {
		return nil, errors.Wrap(errors.ErrMalformedLength, err)
	}
	return proto.EncodeFrame(&h, raw)
}
