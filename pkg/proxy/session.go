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
	"math/rand"

	"tspclient/pkg/client"
	"tspclient/pkg/logging"
	"tspclient/pkg/proto"
	"tspclient/pkg/sec"
	"tspclient/pkg/util"
)

func (p *Proxy) newRequest(mid uint8) (proto.MessageHeader, proto.MessageBody) {
	h := proto.NewRequestHeader(p.config.PortVersion, p.tuid, proto.NewRequestId())
	body := proto.MessageBody{
		Random: uint16(rand.Intn(0x10000)),
		Sid:    SidPlatform,
		Mid:    mid,
	}
	return h, body
}

func (p *Proxy) deviceTimeMs() uint64 {
	return uint64(p.now().UnixMilli())
}

func deviceTimeTLV(ms uint64) proto.TLV {
	w := proto.NewPacketWriter(8)
	w.Put64(ms)
	return proto.NewShortTLV(TagDeviceTime, w.Bytes())
}

func (p *Proxy) sendRequest(topic string, h *proto.MessageHeader, body *proto.MessageBody) {
	raw, err := body.Encode()
	if err != nil {
		p.logger.Errorf("encode %s: %s", topic, err)
		return
	}
	p.publishToCloud(topic, h, raw)
}

func (p *Proxy) sendHandshake() {
	if p.config.HandshakeOnConnect == HandshakeLogout {
		p.sendLogout()
		return
	}
	p.sendLogin()
}

func (p *Proxy) sendLogin() {
	ms := p.deviceTimeMs()
	sig, sigHex, err := sec.LoginSignatureFromFile(p.tsp.Config().Sec.PublicKeyFilePath, ms)
	if err != nil {
		p.logger.Errorf("login signature: %s", err)
		return
	}
	forward := byte(0)
	if p.config.ForwardPassCheck {
		forward = 1
	}
	h, body := p.newRequest(MidLogin)
	body.Add(deviceTimeTLV(ms))
	body.Add(proto.NewShortTLV(TagSignature, sig))
	body.Add(proto.NewShortTLV(TagVIN, []byte(p.config.VIN)))
	body.Add(proto.NewShortTLV(TagSoftwareVersion, []byte(p.config.SoftwareVersion)))
	body.Add(proto.NewShortTLV(TagHardwareVersion, []byte(p.config.HardwareVersion)))
	body.Add(proto.NewShortTLV(TagForwardFlag, []byte{forward}))

	p.logger.Infof("sending login. %s", logging.NewKVBufferForLog().AddRequestID(h.RequestId).
		AddUInt64([]byte("device_time"), ms).Add([]byte("sign"), sigHex).String())
	p.sendRequest(topicLogin, &h, &body)
}

func (p *Proxy) sendLogout() {
	h, body := p.newRequest(MidLogout)
	p.logger.Infof("sending logout. %s", logging.NewKVBufferForLog().AddRequestID(h.RequestId).String())
	p.sendRequest(topicLogout, &h, &body)
}

func (p *Proxy) sendHeartbeat() {
	h, body := p.newRequest(MidHeartbeatSleep)
	body.Add(deviceTimeTLV(p.deviceTimeMs()))
	p.sendRequest(topicHeartbeatSleep, &h, &body)
}

func (p *Proxy) sendPassCheck(mid uint8) {
	topic := topicPassCheckLogin
	if mid == MidPassCheckLogout {
		topic = topicPassCheckLogout
	}
	h, body := p.newRequest(mid)
	body.Add(deviceTimeTLV(p.deviceTimeMs()))
	p.logger.Infof("sending %s", topic)
	p.sendRequest(topic, &h, &body)
}

func (p *Proxy) parseResponse(name string, h *proto.MessageHeader, raw []byte) (*proto.MessageBody, bool) {
	if h.StatusCode != proto.StatusNormal {
		p.logger.Errorf("%s response failed. %s", name, logging.NewKVBufferForLog().AddHeader(h).String())
		return nil, false
	}
	var body proto.MessageBody
	if err := body.Decode(raw, true); err != nil {
		p.logger.Errorf("%s response malformed. %s", name, logging.NewKVBufferForLog().AddHeader(h).AddError(err).String())
		return nil, false
	}
	return &body, true
}

// handleLoginResponse moves to login when TLV 4000 is 1 and TLV 4009 holds a
// usable session key, to login_failed otherwise.
func (p *Proxy) handleLoginResponse(h *proto.MessageHeader, raw []byte) {
	body, ok := p.parseResponse("login", h, raw)
	if !ok {
		p.setConnState(client.StateLoginFailed)
		return
	}
	state := client.StateLoginFailed
	if result, found := body.Find(TagResult); found && len(result.Value) > 0 && result.Value[0] == 1 {
		state = client.StateLogin
	} else {
		p.logger.Warningf("login rejected. result=%v", result.Value)
	}

	tlv, found := body.Find(TagSessionKey)
	if !found && state == client.StateLogin {
		p.logger.Errorf("login response without session key. %s", logging.NewKVBufferForLog().AddHeader(h).String())
		state = client.StateLoginFailed
	}
	if found {
		if len(tlv.Value) != sec.SessionKeySize {
			p.logger.Warningf("session key of %d bytes", len(tlv.Value))
		}
		c, err := sec.NewSessionCipher(p.tsp.Config().Sec.CipherMode, tlv.Value, sessionSalt(h.RequestId, p.tuid))
		if err != nil {
			p.logger.Errorf("session cipher: %s", err)
			state = client.StateLoginFailed
		} else {
			p.logger.Infof("got session key %s", util.ToHexString(tlv.Value))
			p.mtx.Lock()
			p.sessionKey = append([]byte(nil), tlv.Value...)
			p.cipher = c
			p.mtx.Unlock()
		}
	}
	p.setConnState(state)
}

// sessionSalt is the login request id followed by the tuid. The server
// echoes the request id in the response.
func sessionSalt(rid proto.RequestId, tuid proto.Tuid) []byte {
	salt := make([]byte, 0, proto.RequestIdSize+proto.TuidSize)
	salt = append(salt, rid[:]...)
	return append(salt, tuid[:]...)
}

func (p *Proxy) handleLogoutResponse(h *proto.MessageHeader, raw []byte) {
	if _, ok := p.parseResponse("logout", h, raw); !ok {
		return
	}
	p.mtx.Lock()
	p.sessionKey = nil
	p.cipher = nil
	p.mtx.Unlock()
	p.setConnState(client.StateLogout)
}

func (p *Proxy) handleHeartbeatResponse(h *proto.MessageHeader, raw []byte) {
	p.heartbeatResult("heartbeat-sleep", h, raw)
}

// heartbeatResult reports whether the server acknowledged the request with
// TLV 4000 == 0.
func (p *Proxy) heartbeatResult(name string, h *proto.MessageHeader, raw []byte) bool {
	body, ok := p.parseResponse(name, h, raw)
	if !ok {
		return false
	}
	result, found := body.Find(TagResult)
	if !found || len(result.Value) == 0 {
		p.logger.Warningf("%s response without result", name)
		return false
	}
	if result.Value[0] != 0 {
		p.logger.Warningf("%s not accepted. result=%d", name, result.Value[0])
		return false
	}
	p.logger.Infof("%s accepted", name)
	return true
}

func (p *Proxy) handlePassCheckLoginResponse(h *proto.MessageHeader, raw []byte) {
	if p.heartbeatResult("pass-check login", h, raw) {
		p.setPassCheckState(client.StateLogin)
	}
}

func (p *Proxy) handlePassCheckLogoutResponse(h *proto.MessageHeader, raw []byte) {
	if p.heartbeatResult("pass-check logout", h, raw) {
		p.setPassCheckState(client.StateLogout)
	}
}
