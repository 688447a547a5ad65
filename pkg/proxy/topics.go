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
	"fmt"
	"sync"

	"tspclient/pkg/proto"
)

const (
	SidPlatform uint8 = 5

	MidLogin           uint8 = 200
	MidLogout          uint8 = 201
	MidHeartbeatSleep  uint8 = 203
	MidPassCheckLogin  uint8 = 204
	MidPassCheckLogout uint8 = 205
)

const (
	TopicLoginRes              = "/from/tsp/login_res"
	TopicLogoutRes             = "/from/tsp/logout_res"
	TopicHeartbeatSleepRes     = "/from/tsp/heartbeat_sleep_res"
	TopicPassCheckLoginRes     = "/to/tsp/login_pass_check_platform_res"
	TopicPassCheckLogoutRes    = "/to/tsp/logout_pass_check_platform_res"
	TopicConnStatus            = "/from/tsp/conn_status"
	TopicPassCheckConnStatus   = "/to/android/32960/conn_status"
	TopicSendResult            = "/to/tsp/send_result"
	topicLogin                 = "/to/tsp/login"
	topicLogout                = "/to/tsp/logout"
	topicHeartbeatSleep        = "/to/tsp/heartbeat_sleep"
	topicPassCheckLogin        = "/to/tsp/login_pass_check_platform"
	topicPassCheckLogout       = "/to/tsp/logout_pass_check_platform"
	defaultRemoteTopicTemplate = "/from/tsp/%d/%d"
)

// TLV types
const (
	TagResult          uint16 = 4000
	TagDeviceTime      uint16 = 4007
	TagSignature       uint16 = 4008
	TagSessionKey      uint16 = 4009
	TagVIN             uint16 = 4011
	TagSoftwareVersion uint16 = 4014
	TagHardwareVersion uint16 = 4015
	TagForwardFlag     uint16 = 20200
)

type responseHandler func(h *proto.MessageHeader, body []byte)

// topicTable maps event ids to topic names. Local entries carry a handler;
// remote entries only name the topic used toward the application.
type topicTable struct {
	mtx      sync.RWMutex
	local    map[proto.EventId]string
	handlers map[string]responseHandler
	remote   map[proto.EventId]string
}

func newTopicTable() *topicTable {
	return &topicTable{
		local:    make(map[proto.EventId]string),
		handlers: make(map[string]responseHandler),
		remote:   make(map[proto.EventId]string),
	}
}

func (t *topicTable) registerLocal(sid, mid uint8, topic string, h responseHandler) {
	t.mtx.Lock()
	t.local[proto.NewEventId(sid, mid)] = topic
	t.handlers[topic] = h
	t.mtx.Unlock()
}

func (t *topicTable) registerRemote(sid, mid uint8, topic string) {
	t.mtx.Lock()
	t.remote[proto.NewEventId(sid, mid)] = topic
	t.mtx.Unlock()
}

// lookup returns the topic of ev and, for a local event, its handler.
func (t *topicTable) lookup(ev proto.EventId) (topic string, h responseHandler) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	if topic, local := t.local[ev]; local {
		return topic, t.handlers[topic]
	}
	if topic = t.remote[ev]; topic == "" {
		topic = fmt.Sprintf(defaultRemoteTopicTemplate, ev.Sid(), ev.Mid())
	}
	return topic, nil
}

func (t *topicTable) isLocal(ev proto.EventId) bool {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	_, ok := t.local[ev]
	return ok
}
