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

package client

import (
	"fmt"
)

// ConnState is the connection state reported to connect handlers. The
// Client emits dropped, start, failed, ok, sleeping and stopped; the proxy
// adds login, login_failed and logout.
type ConnState int

const (
	StateDropped ConnState = iota
	StateStart
	StateFailed
	StateOk
	StateSleeping
	StateLogin
	StateLoginFailed
	StateLogout
	StateStopped
)

var connStateNames = [...]string{
	StateDropped:     "dropped",
	StateStart:       "start",
	StateFailed:      "failed",
	StateOk:          "ok",
	StateSleeping:    "sleeping",
	StateLogin:       "login",
	StateLoginFailed: "login_failed",
	StateLogout:      "logout",
	StateStopped:     "stopped",
}

func (s ConnState) String() string {
	if s >= 0 && int(s) < len(connStateNames) {
		return connStateNames[s]
	}
	return fmt.Sprintf("ConnState(%d)", int(s))
}

// StatusCode is the state code published on the conn_status topic.
func (s ConnState) StatusCode() uint8 {
	switch s {
	case StateOk:
		return 1
	case StateFailed:
		return 2
	case StateLogin:
		return 4
	case StateLogout:
		return 5
	}
	return 0
}

// IsTerminal reports whether s is stored as the current state. dropped and
// sleeping are notifications only.
func (s ConnState) IsTerminal() bool {
	return s != StateDropped && s != StateSleeping
}
