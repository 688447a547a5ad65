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
Package proxy runs the authenticated TSP session on top of client.TspClient:
login/logout handshakes, the heartbeat timer, session encryption, and the
translation between application IPC messages and wire frames.
*/
package proxy

import (
	"sync"
	"time"

	"tspclient/pkg/client"
	"tspclient/pkg/errors"
	"tspclient/pkg/logging"
	"tspclient/pkg/logging/otel"
	"tspclient/pkg/proto"
	"tspclient/pkg/sec"
)

type (
	// ReplyHandler receives messages for the application: forwarded frames as
	// IPC messages, and conn_status, pass-check status and send_result
	// notifications.
	ReplyHandler        func(topic string, msg []byte)
	StateChangedHandler func(state client.ConnState)

	Option func(p *Proxy)

	Proxy struct {
		config Config
		tsp    *client.TspClient
		logger logging.Logger
		now    func() time.Time
		tuid   proto.Tuid
		topics *topicTable
		hb     *heartbeatTimer

		mtx            sync.Mutex
		connState      client.ConnState
		passCheckState client.ConnState
		sessionKey     []byte
		cipher         *sec.SessionCipher
		lastPublish    int64
		lastReply      int64
		onReply        ReplyHandler
		onStateChanged StateChangedHandler

		shutdownOnce sync.Once
	}
)

func WithClock(now func() time.Time) Option {
	return func(p *Proxy) {
		p.now = now
	}
}

// New registers the proxy as the handler of every TspClient callback. The
// heartbeat goroutine is started here and stopped by Shutdown.
func New(cfg Config, tsp *client.TspClient, logger logging.Logger, opts ...Option) *Proxy {
	cfg.SetDefaultIfNotDefined()
	p := &Proxy{
		config:         cfg,
		tsp:            tsp,
		logger:         logging.OrDefault(logger),
		now:            time.Now,
		tuid:           proto.TuidFromString(cfg.Tuid),
		topics:         newTopicTable(),
		connState:      client.StateStopped,
		passCheckState: client.StateStopped,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.topics.registerLocal(SidPlatform, MidLogin, TopicLoginRes, p.handleLoginResponse)
	p.topics.registerLocal(SidPlatform, MidLogout, TopicLogoutRes, p.handleLogoutResponse)
	p.topics.registerLocal(SidPlatform, MidHeartbeatSleep, TopicHeartbeatSleepRes, p.handleHeartbeatResponse)
	p.topics.registerLocal(SidPlatform, MidPassCheckLogin, TopicPassCheckLoginRes, p.handlePassCheckLoginResponse)
	p.topics.registerLocal(SidPlatform, MidPassCheckLogout, TopicPassCheckLogoutRes, p.handlePassCheckLogoutResponse)

	tsp.SetConnectionChangedHandler(p.onConnectionChanged)
	tsp.SetMessageReceivedHandler(p.OnMessageArrive)
	tsp.SetMessagePublishedHandler(p.onFramePublished)
	p.hb = newHeartbeatTimer(cfg.HeartbeatInterval.Duration, p.onHeartbeat)
	return p
}

// RegisterEventTopic names the topic used for frames of sid/mid forwarded to
// the application. It may be called while frames arrive.
func (p *Proxy) RegisterEventTopic(sid, mid uint8, topic string) {
	p.topics.registerRemote(sid, mid, topic)
}

func (p *Proxy) SetReplyHandler(h ReplyHandler) {
	p.mtx.Lock()
	p.onReply = h
	p.mtx.Unlock()
}

func (p *Proxy) SetStateChangedHandler(h StateChangedHandler) {
	p.mtx.Lock()
	p.onStateChanged = h
	p.mtx.Unlock()
}

// Start arms the heartbeat timer and connects.
func (p *Proxy) Start() {
	p.logger.Infof("proxy starting. tuid=%s", p.tuid)
	p.hb.Start(false)
	p.connect()
}

// Shutdown stops the heartbeat and closes the TspClient.
func (p *Proxy) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.logger.Infof("proxy shutting down")
		p.hb.Close()
		p.tsp.Close()
	})
}

func (p *Proxy) ConnState() client.ConnState {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.connState
}

func (p *Proxy) PassCheckState() client.ConnState {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.passCheckState
}

// SessionKey returns a copy of the key received at login, nil before.
func (p *Proxy) SessionKey() []byte {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.sessionKey == nil {
		return nil
	}
	return append([]byte(nil), p.sessionKey...)
}

// WakeUp starts the heartbeat right away when not logged in and the timer
// is not running.
func (p *Proxy) WakeUp() {
	if p.ConnState() == client.StateLogin {
		return
	}
	if !p.hb.IsRunning() {
		p.logger.Infof("wake up, starting heartbeat")
		p.hb.Start(true)
	}
}

// NotifyPowerStatus takes the power message of the vehicle: the first byte
// is 0 on ignition off. It is only acted on while logged in.
func (p *Proxy) NotifyPowerStatus(msg []byte) {
	if len(msg) < 1 {
		p.logger.Errorf("empty power status message")
		return
	}
	p.mtx.Lock()
	state, passCheck := p.connState, p.passCheckState
	p.mtx.Unlock()
	p.logger.Infof("power status %d. state=%s,pass_check=%s", msg[0], state, passCheck)

	if state != client.StateLogin || !p.config.PassCheckEnabled {
		return
	}
	if msg[0] == 0 {
		if passCheck == client.StateLogin {
			p.sendPassCheck(MidPassCheckLogout)
		}
	} else if passCheck != client.StateLogin {
		p.sendPassCheck(MidPassCheckLogin)
	}
}

// PublishMessage sends an application message: an 11-byte IPC header
// followed by the body. The body is encrypted with the session key when the
// header asks for it.
func (p *Proxy) PublishMessage(topic string, msg []byte) error {
	ih, body, err := proto.SplitIPCMessage(msg)
	if err != nil {
		p.logger.Errorf("bad ipc message for %s. %s", topic, logging.NewKVBufferForLog().AddInt([]byte("len"), len(msg)).AddError(err).String())
		return err
	}
	h := ih.ToMessageHeader(p.config.PortVersion, p.tuid)
	return p.publishToCloud(topic, &h, body)
}

func (p *Proxy) publishToCloud(topic string, h *proto.MessageHeader, body []byte) error {
	ev, err := proto.PeekEventId(body)
	if err != nil {
		p.logger.Errorf("publish to %s: %s", topic, err)
		return err
	}
	if h.IsEncrypted() {
		c := p.sessionCipher()
		if c == nil {
			err = errors.Wrapf(errors.ErrEncryptFailed, "no session key")
			p.logger.Errorf("publish to %s: %s", topic, err)
			return err
		}
		if body, err = c.Encrypt(body); err != nil {
			p.logger.Errorf("publish to %s: %s", topic, err)
			return err
		}
	}
	frame, err := proto.EncodeFrame(h, body)
	if err != nil {
		p.logger.Errorf("publish to %s: %s", topic, err)
		return err
	}

	p.mtx.Lock()
	p.lastPublish = p.now().Unix()
	p.mtx.Unlock()

	rid := h.RequestId
	p.tsp.PublishWithCallback(topic, frame, func(_ []byte, ok bool) {
		p.onMessagePublished(ev, rid, ok)
	})
	return nil
}

// OnMessageArrive handles one frame from the server. Local events go to
// their handler; everything else is forwarded as an IPC message.
func (p *Proxy) OnMessageArrive(frame []byte) {
	p.mtx.Lock()
	p.lastReply = p.now().Unix()
	state := p.connState
	p.mtx.Unlock()

	h, body, err := proto.SplitFrame(frame)
	if err != nil {
		p.logger.Errorf("bad frame. %s", logging.NewKVBufferForLog().AddInt([]byte("len"), len(frame)).AddError(err).String())
		return
	}
	if h.IsEncrypted() {
		c := p.sessionCipher()
		if c == nil {
			p.logger.Errorf("encrypted frame without session key. %s", logging.NewKVBufferForLog().AddHeader(&h).String())
			return
		}
		if body, err = c.Decrypt(body); err != nil {
			p.logger.Errorf("decrypt failed. %s", logging.NewKVBufferForLog().AddHeader(&h).AddError(err).String())
			return
		}
	}
	if h.StatusCode == proto.StatusTokenTimeout && state == client.StateLogin {
		p.logger.Warningf("session token timed out, login again")
		p.sendLogin()
		return
	}

	ev, err := proto.PeekEventId(body)
	if err != nil {
		p.logger.Errorf("frame body too short. %s", logging.NewKVBufferForLog().AddHeader(&h).String())
		return
	}
	topic, handler := p.topics.lookup(ev)
	if logging.IsEnabled(logging.LevelDebug) {
		p.logger.Debugf("message arrived. %s", logging.NewKVBufferForLog().AddHeader(&h).AddEventId(ev).Add([]byte("topic"), topic).String())
	}
	if handler != nil {
		handler(&h, body)
		return
	}
	p.reply(topic, proto.EncodeIPCMessage(h.ToIPCHeader(), body))
}

// onFramePublished reports frames published without a per-frame callback.
func (p *Proxy) onFramePublished(frame []byte, ok bool) {
	h, body, err := proto.SplitFrame(frame)
	if err == nil && len(body) < proto.BodyPrefixSize {
		err = errors.ErrTruncated
	}
	if err != nil {
		p.logger.Errorf("published frame too short. %s", logging.NewKVBufferForLog().AddHexData(frame).String())
		return
	}
	ev, _ := proto.PeekEventId(body)
	p.onMessagePublished(ev, h.RequestId, ok)
}

// onMessagePublished sends [sid, mid, request id, status] on send_result for
// events the application published.
func (p *Proxy) onMessagePublished(ev proto.EventId, rid proto.RequestId, ok bool) {
	p.logger.Infof("published. %s", logging.NewKVBufferForLog().AddEventId(ev).AddRequestID(rid).Add([]byte("ok"), otel.StatusOf(ok)).String())
	if p.topics.isLocal(ev) {
		return
	}
	status := uint8(0)
	if !ok {
		status = 1
	}
	w := proto.NewPacketWriter(2 + proto.RequestIdSize + 1)
	w.Put8(ev.Sid()).Put8(ev.Mid()).PutBytes(rid[:]).Put8(status)
	p.reply(TopicSendResult, w.Bytes())
}

func (p *Proxy) onConnectionChanged(host string, port int, state client.ConnState) {
	p.setConnState(state)
	if state == client.StateOk {
		p.logger.Infof("connected to %s:%d", host, port)
		p.sendHandshake()
		p.mtx.Lock()
		p.lastReply = p.now().Unix()
		p.mtx.Unlock()
	}
}

// setConnState stores state and reports it on conn_status.
func (p *Proxy) setConnState(state client.ConnState) {
	p.mtx.Lock()
	p.connState = state
	passCheck := p.passCheckState
	cb := p.onStateChanged
	p.mtx.Unlock()

	p.logger.Infof("proxy state changed. %s", logging.NewKVBufferForLog().AddState(state.String()).String())
	if otel.IsEnabled() && (state == client.StateLogin || state == client.StateLoginFailed) {
		otel.RecordCount(otel.Login, []otel.Tags{{TagName: otel.Status, TagValue: otel.StatusOf(state == client.StateLogin)}})
	}
	p.sendConnStatus(state)
	if cb != nil {
		cb(state)
	}

	// restore the pass-check session after a reconnect
	if state == client.StateLogin && p.config.PassCheckEnabled {
		if passCheck != client.StateLogin {
			p.sendPassCheck(MidPassCheckLogin)
		} else {
			p.sendPassCheckStatus()
		}
	}
}

func (p *Proxy) setPassCheckState(state client.ConnState) {
	p.mtx.Lock()
	p.passCheckState = state
	p.mtx.Unlock()
	p.logger.Infof("pass-check state changed. %s", logging.NewKVBufferForLog().AddState(state.String()).String())
	p.sendPassCheckStatus()
}

func (p *Proxy) sendConnStatus(state client.ConnState) {
	hb := p.config.heartbeatSeconds()
	p.reply(TopicConnStatus, []byte{state.StatusCode(), byte(hb >> 8), byte(hb)})
}

func (p *Proxy) sendPassCheckStatus() {
	var st byte
	if p.PassCheckState() == client.StateLogin {
		st = 1
	}
	p.reply(TopicPassCheckConnStatus, []byte{st})
}

func (p *Proxy) reply(topic string, msg []byte) {
	p.mtx.Lock()
	cb := p.onReply
	p.mtx.Unlock()
	if cb == nil {
		p.logger.Errorf("no reply handler for %s", topic)
		return
	}
	cb(topic, msg)
}

func (p *Proxy) sessionCipher() *sec.SessionCipher {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.cipher
}

func (p *Proxy) connect() bool {
	max := p.tsp.Config().Client.MaxReconnects
	p.logger.Infof("connecting. max_reconnects=%d", max)
	return p.tsp.Connect(max)
}

func (p *Proxy) onHeartbeat() {
	p.mtx.Lock()
	state, lastPublish, lastReply := p.connState, p.lastPublish, p.lastReply
	passCheck := p.passCheckState
	p.mtx.Unlock()

	now := p.now().Unix()
	action := decideHeartbeat(state, now, lastPublish, lastReply,
		p.config.heartbeatSeconds(), int64(p.config.HeartbeatIdle.Duration/time.Second))
	p.logger.Infof("heartbeat. %s", logging.NewKVBufferForLog().AddState(state.String()).
		Add([]byte("pass_check"), passCheck.String()).Add([]byte("action"), action.String()).String())
	if otel.IsEnabled() {
		otel.RecordCount(otel.Heartbeat, []otel.Tags{{TagName: otel.Event, TagValue: action.String()}})
	}

	switch action {
	case hbConnect:
		p.connect()
	case hbHandshake:
		p.sendHandshake()
	case hbReconnect:
		p.logger.Infof("no reply since %d, last publish %d, reconnecting", lastReply, lastPublish)
		p.tsp.Disconnect()
		p.connect()
	case hbSend:
		p.sendHeartbeat()
	}
}
