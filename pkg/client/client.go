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

/*
Package client implements the reconnecting TSP client: one connection, one
sender goroutine draining a FIFO command queue, and at most one reconnection
goroutine. Close joins both.
*/
package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tspclient/pkg/errors"
	"tspclient/pkg/io"
	"tspclient/pkg/logging"
	"tspclient/pkg/logging/otel"
	"tspclient/pkg/proto"
	"tspclient/pkg/stats"
)

type (
	ConnectHandler   func(host string, port int, state ConnState)
	ReplyHandler     func(frame []byte)
	PublishedHandler func(frame []byte, ok bool)

	ConnectOptions struct {
		// 0 uses Config.ConnectTimeout
		Timeout           time.Duration
		MaxReconnects     int
		ReconnectInterval time.Duration
	}

	command struct {
		frame       []byte
		onPublished PublishedHandler
		tmQueued    time.Time
	}

	Client struct {
		config Config
		conn   *io.Connection
		logger logging.Logger
		stats  *stats.Statistics

		// guards everything below up to the atomics. exitRequested is only
		// set with mtx held, so no goroutine is added to wg after Close.
		mtx         sync.Mutex
		commands    []*command
		host        string
		port        int
		endpoint    string
		opts        ConnectOptions
		onConnect   ConnectHandler
		onReply     ReplyHandler
		onPublished PublishedHandler
		backoff     Backoff
		state       ConnState

		attempts       atomic.Int32
		reconnecting   atomic.Bool
		cancel         atomic.Bool
		exitRequested  atomic.Bool
		canBePublished atomic.Bool
		// set by a disconnect that arrives while a reconnection loop runs
		dropPending atomic.Bool

		wakeCh          chan struct{}
		reconnectWakeCh chan struct{}
		closeCh         chan struct{}
		ctx             context.Context
		cancelCtx       context.CancelFunc
		closeOnce       sync.Once
		wg              sync.WaitGroup
	}
)

// NewClient starts the sender goroutine. Close must be called to stop it.
func NewClient(cfg Config, transport io.Transport, logger logging.Logger) *Client {
	cfg.SetDefaultIfNotDefined()
	c := &Client{
		config:          cfg,
		conn:            io.NewConnection(transport, ""),
		logger:          logging.OrDefault(logger),
		stats:           stats.NewStatistics(),
		state:           StateStopped,
		wakeCh:          make(chan struct{}, 1),
		reconnectWakeCh: make(chan struct{}, 1),
		closeCh:         make(chan struct{}),
	}
	c.ctx, c.cancelCtx = context.WithCancel(context.Background())
	c.backoff = Exponential(cfg.ReconnectInterval.Duration, cfg.ReconnectBackoffExponent, cfg.ReconnectIntervalMax.Duration)
	c.wg.Add(1)
	go c.sendLoop()
	return c
}

// Connect stores the parameters for later reconnects and makes one attempt.
// start is notified before the attempt, then ok or failed. When the attempt
// fails and reconnection is enabled, the reconnection loop continues in the
// background. A Connect while that loop runs is ignored.
func (c *Client) Connect(host string, port int, onConnect ConnectHandler, onReply ReplyHandler, opts ConnectOptions) bool {
	if c.exitRequested.Load() {
		return false
	}
	if c.reconnecting.Load() {
		c.logger.Infof("reconnection to %s:%d in progress, connect ignored", host, port)
		return c.IsConnected()
	}
	c.canBePublished.Store(false)
	if opts.Timeout == 0 {
		opts.Timeout = c.config.ConnectTimeout.Duration
	}

	c.mtx.Lock()
	c.host = host
	c.port = port
	c.endpoint = logging.NewKVBufferForLog().AddHost(host, port).String()
	c.onConnect = onConnect
	c.onReply = onReply
	c.opts = opts
	c.backoff = Exponential(opts.ReconnectInterval, c.config.ReconnectBackoffExponent, c.config.ReconnectIntervalMax.Duration)
	endpoint := c.endpoint
	c.mtx.Unlock()
	c.cancel.Store(false)
	select {
	case <-c.reconnectWakeCh:
	default:
	}

	if otel.IsEnabled() {
		otel.RegisterGaugeSource(endpoint, c)
	}
	if c.connectOnce() {
		return true
	}
	if opts.MaxReconnects != 0 && c.reconnecting.CompareAndSwap(false, true) {
		c.startReconnectLoop()
	}
	return false
}

// Disconnect closes the connection without reconnecting. Queued commands
// stay queued.
func (c *Client) Disconnect() {
	c.mtx.Lock()
	host, port := c.host, c.port
	c.mtx.Unlock()
	c.logger.Infof("disconnecting from %s:%d", host, port)

	c.canBePublished.Store(false)
	c.conn.Disconnect()
	c.notify(StateDropped)
}

// Send queues frame for the sender goroutine. It never blocks on the
// network. The result goes to the published handler.
func (c *Client) Send(frame []byte) {
	c.SendWithCallback(frame, nil)
}

// SendWithCallback is Send with a per-command result callback. A nil
// callback falls back to the published handler.
func (c *Client) SendWithCallback(frame []byte, onPublished PublishedHandler) {
	cmd := &command{
		frame:       frame,
		onPublished: onPublished,
		tmQueued:    time.Now(),
	}
	if c.exitRequested.Load() {
		c.published(cmd, errors.ErrClosed)
		return
	}
	c.mtx.Lock()
	if c.config.QueueLimit > 0 && len(c.commands) >= c.config.QueueLimit {
		c.mtx.Unlock()
		c.logger.Warningf("send queue full (%d). %s", c.config.QueueLimit,
			logging.NewKVBufferForLog().AddFrameSummary(frame).String())
		c.published(cmd, errors.ErrQueueFull)
		return
	}
	c.commands = append(c.commands, cmd)
	c.mtx.Unlock()
	c.wakeSender()
}

func (c *Client) CancelReconnect() {
	c.cancel.Store(true)
	select {
	case c.reconnectWakeCh <- struct{}{}:
	default:
	}
}

// Close cancels reconnection and any connect in flight, joins the sender and
// reconnection goroutines, then closes the connection. A reconnection loop
// interrupted by Close reports stopped before Close returns; no other state
// is reported once Close started. Close must not be called from a handler.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mtx.Lock()
		c.exitRequested.Store(true)
		c.mtx.Unlock()
		c.CancelReconnect()
		c.cancelCtx()
		close(c.closeCh)
		c.wg.Wait()
		if c.conn.IsConnected() {
			c.conn.Disconnect()
		}
		c.mtx.Lock()
		endpoint := c.endpoint
		c.mtx.Unlock()
		if otel.IsEnabled() && endpoint != "" {
			otel.UnregisterGaugeSource(endpoint)
		}
		c.logger.Infof("client closed. %s", endpoint)
	})
}

func (c *Client) SetPublishedHandler(h PublishedHandler) {
	c.mtx.Lock()
	c.onPublished = h
	c.mtx.Unlock()
}

func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

func (c *Client) IsReconnecting() bool {
	return c.reconnecting.Load()
}

func (c *Client) QueueLen() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.commands)
}

// Attempts returns the reconnection attempts of the current or last loop.
func (c *Client) Attempts() int {
	return int(c.attempts.Load())
}

// State returns the last state other than dropped and sleeping.
func (c *Client) State() ConnState {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.state
}

func (c *Client) ConnStateCode() int {
	return int(c.State().StatusCode())
}

func (c *Client) Statistics() *stats.Statistics {
	return c.stats
}

func (c *Client) connectOnce() bool {
	c.mtx.Lock()
	host, port, timeout := c.host, c.port, c.opts.Timeout
	c.mtx.Unlock()

	c.notify(StateStart)
	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	err := c.conn.Connect(ctx, host, port, c.onDisconnect, c.onMessage)
	cancel()
	if err == nil && c.exitRequested.Load() {
		c.conn.Disconnect()
		err = errors.ErrClosed
	}
	if err != nil {
		c.logger.Warningf("connect failed. %s", logging.NewKVBufferForLog().AddHost(host, port).AddError(err).String())
		c.notify(StateFailed)
		return false
	}
	c.canBePublished.Store(true)
	c.notify(StateOk)
	c.wakeSender()
	return true
}

func (c *Client) notify(state ConnState) {
	if c.exitRequested.Load() && state != StateStopped {
		return
	}
	c.mtx.Lock()
	if state.IsTerminal() {
		c.state = state
	}
	host, port, cb := c.host, c.port, c.onConnect
	c.mtx.Unlock()

	c.logger.Infof("connection state changed. %s", logging.NewKVBufferForLog().AddHost(host, port).AddState(state.String()).String())
	if otel.IsEnabled() {
		otel.RecordCount(otel.StateChange, []otel.Tags{{TagName: otel.State, TagValue: state.String()}})
	}
	if cb != nil {
		cb(host, port, state)
	}
}

func (c *Client) onMessage(frame []byte) {
	if otel.IsEnabled() {
		otel.RecordCount(otel.Received, nil)
	}
	c.mtx.Lock()
	cb := c.onReply
	c.mtx.Unlock()
	if cb != nil {
		cb(frame)
	}
}

// onDisconnect runs on the transport read goroutine and hands the
// reconnection over to its own goroutine.
func (c *Client) onDisconnect(err error) {
	c.canBePublished.Store(false)
	c.dropPending.Store(true)
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	c.logger.Infof("disconnected. %s", logging.NewKVBufferForLog().AddError(err).String())
	c.notify(StateDropped)
	c.startReconnectLoop()
}

// startReconnectLoop expects reconnecting to be set by the caller.
func (c *Client) startReconnectLoop() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.exitRequested.Load() {
		c.reconnecting.Store(false)
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.reconnectLoop()
	}()
}

// reconnectLoop clears reconnecting on return.
func (c *Client) reconnectLoop() {
	for {
		c.dropPending.Store(false)
		c.attempts.Store(0)
		c.mtx.Lock()
		c.backoff.Reset()
		c.mtx.Unlock()

		for c.shouldReconnect() {
			c.sleepBeforeNextAttempt()
			if !c.shouldReconnect() {
				break
			}
			c.reconnect()
		}
		if !c.IsConnected() {
			c.flushQueue(errors.ErrGaveUp)
			c.notify(StateStopped)
		}
		c.reconnecting.Store(false)

		// the new connection dropped before the flag was cleared
		if c.dropPending.Load() && !c.exitRequested.Load() && !c.IsConnected() &&
			c.reconnecting.CompareAndSwap(false, true) {
			c.notify(StateDropped)
			continue
		}
		return
	}
}

func (c *Client) shouldReconnect() bool {
	c.mtx.Lock()
	max := c.opts.MaxReconnects
	c.mtx.Unlock()
	return !c.IsConnected() && !c.cancel.Load() &&
		(max == ReconnectForever || int(c.attempts.Load()) < max)
}

// sleepBeforeNextAttempt returns early on CancelReconnect and Close.
func (c *Client) sleepBeforeNextAttempt() {
	c.mtx.Lock()
	interval := c.opts.ReconnectInterval
	b := c.backoff
	c.mtx.Unlock()
	if interval <= 0 {
		return
	}
	c.notify(StateSleeping)

	c.mtx.Lock()
	b.BackOff()
	delay := b.Delay()
	c.mtx.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-c.reconnectWakeCh:
	case <-c.closeCh:
	}
}

func (c *Client) reconnect() {
	n := c.attempts.Add(1)
	c.dropPending.Store(false)
	ok := c.connectOnce()
	if otel.IsEnabled() {
		otel.RecordCount(otel.Reconnect, []otel.Tags{{TagName: otel.Status, TagValue: otel.StatusOf(ok)}})
	}
	if ok {
		c.logger.Infof("reconnected. %s", logging.NewKVBufferForLog().AddTryNo(int(n)).AddInt([]byte("queued"), c.QueueLen()).String())
	}
}

func (c *Client) wakeSender() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

func (c *Client) sendLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.closeCh:
			return
		case <-c.wakeCh:
		}
		if !c.drain() {
			return
		}
	}
}

// drain sends from the front of the queue until it is empty. It returns
// false when the client is closing.
func (c *Client) drain() bool {
	for {
		if c.exitRequested.Load() {
			return false
		}
		c.mtx.Lock()
		if len(c.commands) == 0 {
			c.mtx.Unlock()
			return true
		}
		cmd := c.commands[0]
		max := c.opts.MaxReconnects
		c.mtx.Unlock()

		if !c.canBePublished.Load() {
			if !c.waitRetry() {
				return false
			}
			continue
		}
		if err := c.conn.Send(cmd.frame); err != nil {
			c.canBePublished.Store(false)
			c.logger.Warningf("send failed. %s", logging.NewKVBufferForLog().AddFrameSummary(cmd.frame).AddError(err).String())
			if max == 0 {
				if c.popFront(cmd) {
					c.published(cmd, err)
				}
			}
			continue
		}
		if logging.IsEnabled(logging.LevelDebug) {
			c.logger.Debugf("frame sent. %s", logging.NewKVBufferForLog().AddFrameSummary(cmd.frame).String())
		}
		if c.popFront(cmd) {
			c.published(cmd, nil)
		}
	}
}

// waitRetry sleeps SendRetryInterval or until woken. It returns false when
// the client is closing.
func (c *Client) waitRetry() bool {
	timer := time.NewTimer(c.config.SendRetryInterval.Duration)
	defer timer.Stop()
	select {
	case <-c.closeCh:
		return false
	case <-c.wakeCh:
	case <-timer.C:
	}
	// a write failed on a connection the read loop still considers alive
	if !c.canBePublished.Load() && c.conn.IsConnected() && !c.reconnecting.Load() {
		c.canBePublished.Store(true)
	}
	return true
}

// popFront removes cmd if it is still at the front. It may be gone after a
// flush.
func (c *Client) popFront(cmd *command) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if len(c.commands) == 0 || c.commands[0] != cmd {
		return false
	}
	c.commands[0] = nil
	c.commands = c.commands[1:]
	return true
}

func (c *Client) flushQueue(err error) {
	if !c.config.FlushOnStopped {
		return
	}
	c.mtx.Lock()
	cmds := c.commands
	c.commands = nil
	c.mtx.Unlock()
	if len(cmds) != 0 {
		c.logger.Infof("reporting %d queued commands as failed", len(cmds))
	}
	for _, cmd := range cmds {
		c.published(cmd, err)
	}
}

func (c *Client) published(cmd *command, err error) {
	latency := time.Since(cmd.tmQueued)
	c.stats.Put(eventOf(cmd.frame), latency, err)
	if otel.IsEnabled() {
		status := otel.StatusOf(err == nil)
		otel.RecordPublish(status, latency.Milliseconds())
		otel.RecordCount(otel.Published, []otel.Tags{{TagName: otel.Status, TagValue: status}})
	}

	cb := cmd.onPublished
	if cb == nil {
		c.mtx.Lock()
		cb = c.onPublished
		c.mtx.Unlock()
	}
	if cb != nil {
		cb(cmd.frame, err == nil)
	}
}

// eventOf returns the event id of a plain frame, 0 when it is encrypted or
// too short.
func eventOf(frame []byte) proto.EventId {
	h, ev, err := proto.SummarizeFrame(frame)
	if err != nil || h.IsEncrypted() {
		return 0
	}
	return ev
}
