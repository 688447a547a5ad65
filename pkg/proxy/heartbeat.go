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

package proxy

import (
	"sync"
	"sync/atomic"
	"time"

	"tspclient/pkg/client"
	"tspclient/pkg/util"
)

type heartbeatAction int

const (
	hbNone heartbeatAction = iota
	hbConnect
	hbHandshake
	hbReconnect
	hbSkip
	hbSend
)

var heartbeatActionNames = [...]string{
	hbNone:      "none",
	hbConnect:   "connect",
	hbHandshake: "handshake",
	hbReconnect: "reconnect",
	hbSkip:      "skip",
	hbSend:      "send",
}

func (a heartbeatAction) String() string {
	return heartbeatActionNames[a]
}

// decideHeartbeat picks what one heartbeat tick does. Timestamps and
// durations are in seconds; lastPublish is 0 before anything was published.
func decideHeartbeat(state client.ConnState, now, lastPublish, lastReply, interval, idle int64) heartbeatAction {
	switch state {
	case client.StateStopped:
		return hbConnect
	case client.StateOk:
		// no login or logout response within one interval
		return hbHandshake
	case client.StateLogin, client.StateFailed:
	default:
		return hbNone
	}
	if lastPublish == 0 && state == client.StateFailed {
		return hbConnect
	}
	if lastPublish > lastReply && lastPublish-lastReply > interval {
		return hbReconnect
	}
	if now-lastPublish < idle {
		return hbSkip
	}
	return hbSend
}

// heartbeatTimer calls tick every period from its own goroutine while
// started.
type heartbeatTimer struct {
	period  time.Duration
	tick    func()
	startCh chan bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	running atomic.Bool
	wg      sync.WaitGroup
}

func newHeartbeatTimer(period time.Duration, tick func()) *heartbeatTimer {
	t := &heartbeatTimer{
		period:  period,
		tick:    tick,
		startCh: make(chan bool, 1),
		stopCh:  make(chan struct{}, 1),
		doneCh:  make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run()
	return t
}

// Start arms the periodic timer. With immediate the first tick runs right
// away, otherwise after one period.
func (t *heartbeatTimer) Start(immediate bool) {
	t.running.Store(true)
	select {
	case t.startCh <- immediate:
	default:
	}
}

func (t *heartbeatTimer) Stop() {
	t.running.Store(false)
	select {
	case t.stopCh <- struct{}{}:
	default:
	}
}

func (t *heartbeatTimer) IsRunning() bool {
	return t.running.Load()
}

// Close stops the goroutine and waits for a tick in progress.
func (t *heartbeatTimer) Close() {
	t.running.Store(false)
	close(t.doneCh)
	t.wg.Wait()
}

func (t *heartbeatTimer) run() {
	defer t.wg.Done()
	timer := util.NewTimerWrapper(t.period)
	defer timer.Stop()

	for {
		select {
		case <-t.doneCh:
			return
		case immediate := <-t.startCh:
			if immediate {
				t.tick()
			}
			timer.Reset(t.period)
		case <-t.stopCh:
			timer.Stop()
		case <-timer.GetTimeoutCh():
			timer.Fired()
			t.tick()
			timer.Reset(t.period)
		}
	}
}
