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
	"context"
	"sync"
	"time"

	"tspclient/pkg/errors"
	"tspclient/pkg/io"
)

var _ io.Transport = (*Transport)(nil)

// Transport is a scriptable io.Transport for unit tests. Drop simulates the
// read loop seeing the peer go away.
type Transport struct {
	mtx            sync.Mutex
	cond           *sync.Cond
	connected      bool
	connectResults []error
	failConnect    bool
	failSend       bool
	gate           <-chan struct{}
	sent           [][]byte
	numConnects    int
	localAddr      string
	onMessage      io.MessageHandler
	onDisconnect   io.DisconnectHandler
}

func NewTransport() *Transport {
	t := &Transport{}
	t.cond = sync.NewCond(&t.mtx)
	return t
}

func (t *Transport) Open(localAddr string) error {
	t.mtx.Lock()
	t.localAddr = localAddr
	t.mtx.Unlock()
	return nil
}

func (t *Transport) Connect(ctx context.Context, host string, port int) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.numConnects++
	var err error
	scripted := len(t.connectResults) != 0
	if scripted {
		err = t.connectResults[0]
		t.connectResults = t.connectResults[1:]
	} else if t.gate != nil {
		gate := t.gate
		t.cond.Broadcast()
		t.mtx.Unlock()
		select {
		case <-gate:
		case <-ctx.Done():
			err = errors.Wrap(errors.ErrConnectFailed, ctx.Err())
		}
		t.mtx.Lock()
	}
	if !scripted && err == nil && t.failConnect {
		err = errors.Wrapf(errors.ErrConnectFailed, "connection refused")
	}
	t.connected = err == nil
	t.cond.Broadcast()
	return err
}

func (t *Transport) Send(frame []byte) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if !t.connected {
		return errors.ErrNotConnected
	}
	if t.failSend {
		return errors.Wrapf(errors.ErrWriteFailed, "broken pipe")
	}
	t.sent = append(t.sent, append([]byte(nil), frame...))
	t.cond.Broadcast()
	return nil
}

func (t *Transport) Disconnect() {
	t.mtx.Lock()
	t.connected = false
	t.mtx.Unlock()
}

func (t *Transport) IsConnected() bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.connected
}

func (t *Transport) SetHandlers(onMessage io.MessageHandler, onDisconnect io.DisconnectHandler) {
	t.mtx.Lock()
	t.onMessage = onMessage
	t.onDisconnect = onDisconnect
	t.mtx.Unlock()
}

// SetConnectResults scripts the next Connect calls. A nil entry succeeds.
func (t *Transport) SetConnectResults(errs ...error) {
	t.mtx.Lock()
	t.connectResults = append(t.connectResults, errs...)
	t.mtx.Unlock()
}

// SetFailConnect makes unscripted Connect calls fail.
func (t *Transport) SetFailConnect(fail bool) {
	t.mtx.Lock()
	t.failConnect = fail
	t.mtx.Unlock()
}

// SetConnectGate makes unscripted Connect calls wait until gate is closed or
// their context is done.
func (t *Transport) SetConnectGate(gate <-chan struct{}) {
	t.mtx.Lock()
	t.gate = gate
	t.mtx.Unlock()
}

func (t *Transport) SetFailSend(fail bool) {
	t.mtx.Lock()
	t.failSend = fail
	t.mtx.Unlock()
}

// Drop marks the transport disconnected and calls the disconnect handler on
// a new goroutine. The returned channel is closed when the handler returns.
func (t *Transport) Drop(err error) <-chan struct{} {
	t.mtx.Lock()
	wasConnected := t.connected
	t.connected = false
	cb := t.onDisconnect
	t.mtx.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if wasConnected && cb != nil {
			if err == nil {
				err = errors.ErrPeerClosed
			}
			cb(err)
		}
	}()
	return done
}

// Deliver hands frame to the message handler as if it had been read.
func (t *Transport) Deliver(frame []byte) {
	t.mtx.Lock()
	cb := t.onMessage
	t.mtx.Unlock()
	if cb != nil {
		cb(frame)
	}
}

func (t *Transport) Sent() [][]byte {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return append([][]byte(nil), t.sent...)
}

// WaitSent waits until at least n frames were sent.
func (t *Transport) WaitSent(n int, timeout time.Duration) ([][]byte, bool) {
	return t.waitFor(timeout, func() bool { return len(t.sent) >= n }, t.Sent)
}

// WaitConnects waits until Connect was called at least n times.
func (t *Transport) WaitConnects(n int, timeout time.Duration) bool {
	_, ok := t.waitFor(timeout, func() bool { return t.numConnects >= n }, nil)
	return ok
}

func (t *Transport) Connects() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.numConnects
}

func (t *Transport) LocalAddr() string {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.localAddr
}

func (t *Transport) waitFor(timeout time.Duration, cond func() bool, result func() [][]byte) ([][]byte, bool) {
	timer := time.AfterFunc(timeout, func() {
		t.mtx.Lock()
		t.cond.Broadcast()
		t.mtx.Unlock()
	})
	defer timer.Stop()
	deadline := time.Now().Add(timeout)

	t.mtx.Lock()
	for !cond() && time.Now().Before(deadline) {
		t.cond.Wait()
	}
	ok := cond()
	t.mtx.Unlock()
	if result != nil {
		return result(), ok
	}
	return nil, ok
}
