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
	goerrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tspclient/pkg/client"
	"tspclient/pkg/errors"
	"tspclient/pkg/io"
	"tspclient/pkg/logging"
	"tspclient/pkg/proto"
	"tspclient/pkg/sec"
	"tspclient/test/testutil/mock"
)

const (
	testTuid   = "TUID000000000001"
	waitPeriod = 2 * time.Second
)

var testKey = []byte("0123456789abcdef")

type fakeClock struct {
	mtx sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mtx.Lock()
	c.now = c.now.Add(d)
	c.mtx.Unlock()
}

type reply struct {
	topic string
	msg   []byte
}

type replyRecorder struct {
	mtx     sync.Mutex
	replies []reply
}

func (r *replyRecorder) handle(topic string, msg []byte) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.replies = append(r.replies, reply{topic, append([]byte(nil), msg...)})
}

func (r *replyRecorder) byTopic(topic string) (out [][]byte) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for _, rp := range r.replies {
		if rp.topic == topic {
			out = append(out, rp.msg)
		}
	}
	return
}

func (r *replyRecorder) last(topic string) []byte {
	msgs := r.byTopic(topic)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

type testEnv struct {
	proxy   *Proxy
	tr      *mock.Transport
	clock   *fakeClock
	replies *replyRecorder
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	tr := mock.NewTransport()
	tspCfg := client.TspConfig{Client: client.DefaultConfig}
	tspCfg.Client.Host = "127.0.0.1"
	tspCfg.Client.MaxReconnects = 0
	factory := func(*client.TspConfig, logging.Logger) (io.Transport, error) { return tr, nil }
	tc := client.NewTspClient(tspCfg, factory, logging.Nop())

	env := &testEnv{
		tr:      tr,
		clock:   &fakeClock{now: time.Unix(1700000000, 0)},
		replies: &replyRecorder{},
	}
	if cfg.Tuid == "" {
		cfg.Tuid = testTuid
	}
	env.proxy = New(cfg, tc, logging.Nop(), WithClock(env.clock.Now))
	env.proxy.SetReplyHandler(env.replies.handle)
	t.Cleanup(env.proxy.Shutdown)
	return env
}

// connect brings the proxy to ok and returns the handshake frame it sent.
func (e *testEnv) connect(t *testing.T) []byte {
	t.Helper()
	require.True(t, e.proxy.connect())
	sent, ok := e.tr.WaitSent(1, waitPeriod)
	require.True(t, ok, "no handshake sent")
	return sent[len(sent)-1]
}

// login completes a login handshake with testKey.
func (e *testEnv) login(t *testing.T) proto.RequestId {
	t.Helper()
	req := e.connect(t)
	h, _, err := proto.SplitFrame(req)
	require.NoError(t, err)
	e.tr.Deliver(responseFrame(t, h.RequestId, proto.StatusNormal, MidLogin,
		proto.NewShortTLV(TagResult, []byte{1}), proto.NewShortTLV(TagSessionKey, testKey)))
	require.Equal(t, client.StateLogin, e.proxy.ConnState())
	return h.RequestId
}

// waitEvent waits for a plain frame of sid 5 / mid to be sent and returns it.
func (e *testEnv) waitEvent(t *testing.T, mid uint8, n int) []byte {
	t.Helper()
	var found []byte
	require.Eventually(t, func() bool {
		count := 0
		for _, f := range e.tr.Sent() {
			if _, ev, err := proto.SummarizeFrame(f); err == nil && ev == proto.NewEventId(SidPlatform, mid) {
				count++
				found = f
			}
		}
		return count >= n
	}, waitPeriod, time.Millisecond, "no request 5/%d", mid)
	return found
}

func responseFrame(t *testing.T, rid proto.RequestId, status proto.StatusCode, mid uint8, tlvs ...proto.TLV) []byte {
	t.Helper()
	return frameWithBody(t, rid, status, false, encodeBody(t, SidPlatform, mid, tlvs...))
}

func encodeBody(t *testing.T, sid, mid uint8, tlvs ...proto.TLV) []byte {
	t.Helper()
	body := proto.MessageBody{Random: 0x1234, Sid: sid, Mid: mid, Content: tlvs}
	raw, err := body.Encode()
	require.NoError(t, err)
	return raw
}

func frameWithBody(t *testing.T, rid proto.RequestId, status proto.StatusCode, encrypted bool, body []byte) []byte {
	t.Helper()
	h := proto.NewRequestHeader(proto.DefaultPortVersion, proto.TuidFromString(testTuid), rid)
	h.AckFlag = proto.AckFlagResponse
	h.StatusCode = status
	if encrypted {
		h.EncryptFlag = proto.EncryptFlagAES
	}
	frame, err := proto.EncodeFrame(&h, body)
	require.NoError(t, err)
	return frame
}

func testCipher(t *testing.T, rid proto.RequestId) *sec.SessionCipher {
	t.Helper()
	c, err := sec.NewSessionCipher(sec.CipherModeCBC, testKey, sessionSalt(rid, proto.TuidFromString(testTuid)))
	require.NoError(t, err)
	return c
}

func TestLoginHandshake(t *testing.T) {
	env := newTestEnv(t, Config{VIN: "LSVAU2180N2183294", SoftwareVersion: "sw-1.0", HardwareVersion: "hw-2"})
	assert.Equal(t, client.StateStopped, env.proxy.ConnState())

	req := env.connect(t)
	assert.Equal(t, client.StateOk, env.proxy.ConnState())
	assert.Equal(t, []byte{1, 0, 60}, env.replies.last(TopicConnStatus))

	h, raw, err := proto.SplitFrame(req)
	require.NoError(t, err)
	assert.False(t, h.IsEncrypted())
	assert.True(t, h.IsRequest())
	assert.Equal(t, proto.TuidFromString(testTuid), h.Tuid)
	assert.Equal(t, proto.DefaultPortVersion, h.PortVersion)

	var body proto.MessageBody
	require.NoError(t, body.Decode(raw, true))
	assert.Equal(t, proto.NewEventId(5, 200), body.EventId())
	var types []uint16
	for _, tlv := range body.Content {
		types = append(types, tlv.Type)
	}
	assert.Equal(t, []uint16{4007, 4008, 4011, 4014, 4015, 20200}, types)

	ms := uint64(env.clock.Now().UnixMilli())
	tm, _ := body.Find(TagDeviceTime)
	assert.Equal(t, ms, proto.EncByteOrder.Uint64(tm.Value))
	sig, _ := body.Find(TagSignature)
	wantSig, _ := sec.LoginSignature(nil, ms)
	assert.Equal(t, wantSig, sig.Value)
	vin, _ := body.Find(TagVIN)
	assert.Equal(t, "LSVAU2180N2183294", string(vin.Value))
	flag, _ := body.Find(TagForwardFlag)
	assert.Equal(t, []byte{0}, flag.Value)

	env.tr.Deliver(responseFrame(t, h.RequestId, proto.StatusNormal, MidLogin,
		proto.NewShortTLV(TagResult, []byte{1}), proto.NewShortTLV(TagSessionKey, testKey)))
	assert.Equal(t, client.StateLogin, env.proxy.ConnState())
	assert.Equal(t, testKey, env.proxy.SessionKey())
	assert.Equal(t, []byte{4, 0, 60}, env.replies.last(TopicConnStatus))

	// login is local, no send_result
	assert.Empty(t, env.replies.byTopic(TopicSendResult))
}

func TestLoginRejected(t *testing.T) {
	tests := []struct {
		name   string
		status proto.StatusCode
		tlvs   []proto.TLV
	}{
		{"result 0", proto.StatusNormal, []proto.TLV{proto.NewShortTLV(TagResult, []byte{0})}},
		{"no result", proto.StatusNormal, nil},
		{"status", proto.StatusInvalidTuid, []proto.TLV{proto.NewShortTLV(TagResult, []byte{1})}},
		{"no key", proto.StatusNormal, []proto.TLV{proto.NewShortTLV(TagResult, []byte{1})}},
		{"short key", proto.StatusNormal, []proto.TLV{proto.NewShortTLV(TagResult, []byte{1}), proto.NewShortTLV(TagSessionKey, []byte{1, 2, 3})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{})
			env.connect(t)
			env.tr.Deliver(responseFrame(t, proto.NewRequestId(), tt.status, MidLogin, tt.tlvs...))
			assert.Equal(t, client.StateLoginFailed, env.proxy.ConnState())
			assert.Equal(t, []byte{0, 0, 60}, env.replies.last(TopicConnStatus))
			assert.Nil(t, env.proxy.SessionKey())
		})
	}
}

func TestMalformedLoginResponse(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.connect(t)
	// TLV claims 9 bytes, carries 1
	body := append(encodeBody(t, SidPlatform, MidLogin), 0x0F, 0xA0, 9, 1)
	env.tr.Deliver(frameWithBody(t, proto.NewRequestId(), proto.StatusNormal, false, body))
	assert.Equal(t, client.StateLoginFailed, env.proxy.ConnState())
}

func TestLogoutHandshake(t *testing.T) {
	env := newTestEnv(t, Config{HandshakeOnConnect: HandshakeLogout})
	req := env.connect(t)

	h, raw, err := proto.SplitFrame(req)
	require.NoError(t, err)
	assert.Equal(t, uint16(proto.BodyPrefixSize), h.BodyLength)
	ev, _ := proto.PeekEventId(raw)
	assert.Equal(t, proto.NewEventId(5, 201), ev)

	env.tr.Deliver(responseFrame(t, h.RequestId, proto.StatusNormal, MidLogout))
	assert.Equal(t, client.StateLogout, env.proxy.ConnState())
	assert.Equal(t, []byte{5, 0, 60}, env.replies.last(TopicConnStatus))
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.login(t)
	env.tr.Deliver(responseFrame(t, proto.NewRequestId(), proto.StatusNormal, MidLogout))
	assert.Equal(t, client.StateLogout, env.proxy.ConnState())
	assert.Nil(t, env.proxy.SessionKey())
}

func TestPublishMessageEncrypted(t *testing.T) {
	env := newTestEnv(t, Config{})
	loginRid := env.login(t)

	rid := proto.RequestId{9, 8, 7, 6, 5, 4}
	plain := encodeBody(t, 2, 1, proto.NewShortTLV(1, []byte("door unlock")))
	ipc := proto.EncodeIPCMessage(proto.IPCHeader{AckFlag: proto.AckFlagRequest, RequestId: rid, EncryptFlag: proto.EncryptFlagAES}, plain)
	require.NoError(t, env.proxy.PublishMessage("/to/tsp/remote", ipc))

	sent, ok := env.tr.WaitSent(2, waitPeriod)
	require.True(t, ok)
	h, body, err := proto.SplitFrame(sent[1])
	require.NoError(t, err)
	assert.True(t, h.IsEncrypted())
	assert.Equal(t, rid, h.RequestId)
	assert.Equal(t, proto.TuidFromString(testTuid), h.Tuid)
	assert.Equal(t, uint8(proto.LinkHeader), h.LinkHeader)
	assert.Equal(t, plain[:2], body[:2], "random prefix stays in clear")
	assert.NotEqual(t, plain, body)

	decrypted, err := testCipher(t, loginRid).Decrypt(body)
	require.NoError(t, err)
	assert.Equal(t, plain, decrypted)

	require.Eventually(t, func() bool { return len(env.replies.byTopic(TopicSendResult)) == 1 }, waitPeriod, time.Millisecond)
	want := append([]byte{2, 1}, rid[:]...)
	assert.Equal(t, append(want, 0), env.replies.last(TopicSendResult))
}

func TestPublishMessageErrors(t *testing.T) {
	env := newTestEnv(t, Config{})

	_, _, err := proto.SplitIPCMessage([]byte{0, 1})
	require.Error(t, err)
	assert.Error(t, env.proxy.PublishMessage("/to/tsp/remote", []byte{0, 1}))

	ipc := proto.EncodeIPCMessage(proto.IPCHeader{EncryptFlag: proto.EncryptFlagAES}, encodeBody(t, 2, 1))
	err = env.proxy.PublishMessage("/to/tsp/remote", ipc)
	assert.True(t, goerrors.Is(err, errors.ErrEncryptFailed), "error = %v", err)
}

func TestSendResultWhenNotConnected(t *testing.T) {
	env := newTestEnv(t, Config{})
	rid := proto.RequestId{1, 1, 1, 1, 1, 1}
	ipc := proto.EncodeIPCMessage(proto.IPCHeader{RequestId: rid}, encodeBody(t, 3, 4))

	require.NoError(t, env.proxy.PublishMessage("/to/tsp/remote", ipc))
	want := append([]byte{3, 4}, rid[:]...)
	assert.Equal(t, append(want, 1), env.replies.last(TopicSendResult))
}

func TestFramePublishedHandler(t *testing.T) {
	env := newTestEnv(t, Config{})

	env.proxy.onFramePublished(make([]byte, proto.MessageHeaderSize+3), true)
	assert.Empty(t, env.replies.byTopic(TopicSendResult))

	rid := proto.RequestId{1, 2, 3, 4, 5, 6}
	env.proxy.onFramePublished(frameWithBody(t, rid, proto.StatusNormal, false, encodeBody(t, SidPlatform, MidHeartbeatSleep)), true)
	assert.Empty(t, env.replies.byTopic(TopicSendResult), "local events are not reported")

	env.proxy.onFramePublished(frameWithBody(t, rid, proto.StatusNormal, false, encodeBody(t, 7, 9)), false)
	want := append([]byte{7, 9}, rid[:]...)
	assert.Equal(t, [][]byte{append(want, 1)}, env.replies.byTopic(TopicSendResult))
}

func TestForwardToApplication(t *testing.T) {
	env := newTestEnv(t, Config{})
	loginRid := env.login(t)
	env.proxy.RegisterEventTopic(3, 8, "/from/tsp/remote_control")

	rid := proto.RequestId{6, 5, 4, 3, 2, 1}
	plain := encodeBody(t, 3, 7, proto.NewShortTLV(1, []byte{9}))
	enc, err := testCipher(t, loginRid).Encrypt(plain)
	require.NoError(t, err)
	env.tr.Deliver(frameWithBody(t, rid, proto.StatusNormal, true, enc))

	msg := env.replies.last("/from/tsp/3/7")
	require.NotNil(t, msg)
	ih, body, err := proto.SplitIPCMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, rid, ih.RequestId)
	assert.Equal(t, proto.AckFlagResponse, ih.AckFlag)
	assert.Equal(t, proto.EncryptFlagAES, ih.EncryptFlag)
	assert.Equal(t, plain, body)

	env.tr.Deliver(frameWithBody(t, rid, proto.StatusNormal, false, encodeBody(t, 3, 8)))
	assert.Len(t, env.replies.byTopic("/from/tsp/remote_control"), 1)
}

func TestEncryptedFrameWithoutSession(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.tr.Deliver(frameWithBody(t, proto.NewRequestId(), proto.StatusNormal, true, make([]byte, 18)))
	env.tr.Deliver([]byte{202, 0})
	env.replies.mtx.Lock()
	defer env.replies.mtx.Unlock()
	assert.Empty(t, env.replies.replies)
}

func TestTokenTimeoutForcesLogin(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.login(t)

	env.tr.Deliver(frameWithBody(t, proto.NewRequestId(), proto.StatusTokenTimeout, false, encodeBody(t, 3, 7)))
	env.waitEvent(t, MidLogin, 2)
	assert.Empty(t, env.replies.byTopic("/from/tsp/3/7"))
}

func TestHeartbeatTick(t *testing.T) {
	env := newTestEnv(t, Config{})

	// stopped: connect
	env.proxy.onHeartbeat()
	env.waitEvent(t, MidLogin, 1)
	assert.Equal(t, 1, env.tr.Connects())

	// ok without answer: handshake again
	env.proxy.onHeartbeat()
	req := env.waitEvent(t, MidLogin, 2)
	h, _, _ := proto.SplitFrame(req)
	env.tr.Deliver(responseFrame(t, h.RequestId, proto.StatusNormal, MidLogin,
		proto.NewShortTLV(TagResult, []byte{1}), proto.NewShortTLV(TagSessionKey, testKey)))
	require.Equal(t, client.StateLogin, env.proxy.ConnState())

	// published recently: skip
	env.clock.Advance(60 * time.Second)
	env.proxy.onHeartbeat()
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, env.tr.Sent(), 2)

	// idle: heartbeat-sleep with the device time
	env.clock.Advance(61 * time.Second)
	env.proxy.onHeartbeat()
	hb := env.waitEvent(t, MidHeartbeatSleep, 1)
	_, raw, _ := proto.SplitFrame(hb)
	var body proto.MessageBody
	require.NoError(t, body.Decode(raw, true))
	tm, found := body.Find(TagDeviceTime)
	require.True(t, found)
	assert.Equal(t, uint64(env.clock.Now().UnixMilli()), proto.EncByteOrder.Uint64(tm.Value))

	// the heartbeat got no answer for longer than the interval: reconnect
	env.clock.Advance(61 * time.Second)
	env.proxy.onHeartbeat()
	env.waitEvent(t, MidLogin, 3)
	assert.Equal(t, 2, env.tr.Connects())
	assert.Equal(t, client.StateOk, env.proxy.ConnState())
}

func TestHeartbeatResponseKeepsState(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.login(t)
	env.tr.Deliver(responseFrame(t, proto.NewRequestId(), proto.StatusNormal, MidHeartbeatSleep, proto.NewShortTLV(TagResult, []byte{0})))
	env.tr.Deliver(responseFrame(t, proto.NewRequestId(), proto.StatusServerInnerError, MidHeartbeatSleep))
	assert.Equal(t, client.StateLogin, env.proxy.ConnState())
}

func TestWakeUp(t *testing.T) {
	env := newTestEnv(t, Config{})
	assert.False(t, env.proxy.hb.IsRunning())

	env.proxy.WakeUp()
	assert.True(t, env.proxy.hb.IsRunning())
	require.True(t, env.tr.WaitConnects(1, waitPeriod))
	env.waitEvent(t, MidLogin, 1)
}

func TestWakeUpWhileLoggedIn(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.login(t)
	env.proxy.WakeUp()
	assert.False(t, env.proxy.hb.IsRunning())
}

func TestPassCheck(t *testing.T) {
	env := newTestEnv(t, Config{PassCheckEnabled: true})
	env.login(t)

	// login starts a pass-check session
	env.waitEvent(t, MidPassCheckLogin, 1)
	env.tr.Deliver(responseFrame(t, proto.NewRequestId(), proto.StatusNormal, MidPassCheckLogin, proto.NewShortTLV(TagResult, []byte{0})))
	assert.Equal(t, client.StateLogin, env.proxy.PassCheckState())
	assert.Equal(t, []byte{1}, env.replies.last(TopicPassCheckConnStatus))

	// ignition on while already logged in: nothing to do
	env.proxy.NotifyPowerStatus([]byte{1})
	time.Sleep(20 * time.Millisecond)
	env.waitEvent(t, MidPassCheckLogin, 1)

	env.proxy.NotifyPowerStatus([]byte{0})
	env.waitEvent(t, MidPassCheckLogout, 1)
	env.tr.Deliver(responseFrame(t, proto.NewRequestId(), proto.StatusNormal, MidPassCheckLogout, proto.NewShortTLV(TagResult, []byte{0})))
	assert.Equal(t, client.StateLogout, env.proxy.PassCheckState())
	assert.Equal(t, []byte{0}, env.replies.last(TopicPassCheckConnStatus))

	env.proxy.NotifyPowerStatus([]byte{1})
	env.waitEvent(t, MidPassCheckLogin, 2)
}

func TestPowerStatusIgnored(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.login(t)
	env.proxy.NotifyPowerStatus(nil)
	env.proxy.NotifyPowerStatus([]byte{0})
	time.Sleep(20 * time.Millisecond)
	for _, f := range env.tr.Sent() {
		_, ev, _ := proto.SummarizeFrame(f)
		assert.NotEqual(t, proto.NewEventId(5, MidPassCheckLogout), ev)
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.SetDefaultIfNotDefined()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, HandshakeLogin, cfg.HandshakeOnConnect)
	assert.Equal(t, int64(60), cfg.heartbeatSeconds())

	cfg.HandshakeOnConnect = "hello"
	assert.Error(t, cfg.Validate())
	cfg.HandshakeOnConnect = HandshakeLogout
	cfg.Tuid = "TUID-LONGER-THAN-16"
	assert.Error(t, cfg.Validate())
}
