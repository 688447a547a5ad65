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
	"time"

	"tspclient/pkg/errors"
	"tspclient/pkg/logging"
	"tspclient/pkg/proto"
	"tspclient/pkg/util"
)

type HandshakeMode string

const (
	HandshakeLogin  HandshakeMode = "login"
	HandshakeLogout HandshakeMode = "logout"
)

var (
	DefaultConfig = Config{
		HeartbeatInterval:  util.Duration{Duration: 60 * time.Second},
		HeartbeatIdle:      util.Duration{Duration: 120 * time.Second},
		HandshakeOnConnect: HandshakeLogin,
		PortVersion:        proto.DefaultPortVersion,
	}
)

type Config struct {
	Tuid            string
	VIN             string
	SoftwareVersion string
	HardwareVersion string
	PortVersion     uint16

	// period of the heartbeat timer, also published in conn_status
	HeartbeatInterval util.Duration
	// no heartbeat-sleep is sent while the last publish is more recent
	HeartbeatIdle      util.Duration
	HandshakeOnConnect HandshakeMode
	PassCheckEnabled   bool
	// value of the pass-check forward flag in the login request
	ForwardPassCheck bool
}

func (c *Config) SetDefaultIfNotDefined() {
	if c.HeartbeatInterval.Duration == 0 {
		c.HeartbeatInterval = DefaultConfig.HeartbeatInterval
	}
	if c.HeartbeatIdle.Duration == 0 {
		c.HeartbeatIdle = DefaultConfig.HeartbeatIdle
	}
	if c.HandshakeOnConnect == "" {
		c.HandshakeOnConnect = DefaultConfig.HandshakeOnConnect
	}
	if c.PortVersion == 0 {
		c.PortVersion = DefaultConfig.PortVersion
	}
}

func (c *Config) Validate() error {
	switch c.HandshakeOnConnect {
	case HandshakeLogin, HandshakeLogout:
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown handshake %q", c.HandshakeOnConnect)
	}
	if len(c.Tuid) > proto.TuidSize {
		return errors.Wrapf(errors.ErrInvalidConfig, "tuid longer than %d bytes", proto.TuidSize)
	}
	if c.HeartbeatInterval.Duration < time.Second || c.HeartbeatInterval.Duration > 0xFFFF*time.Second {
		return errors.Wrapf(errors.ErrInvalidConfig, "heartbeat interval %s out of range", c.HeartbeatInterval)
	}
	return nil
}

func (c *Config) Dump(logger logging.Logger) {
	logger.Infof("proxy config: tuid=%s,vin=%s,sw=%s,hw=%s,port_version=%d,heartbeat=%s,idle=%s,handshake=%s,pass_check=%v",
		c.Tuid, c.VIN, c.SoftwareVersion, c.HardwareVersion, c.PortVersion,
		c.HeartbeatInterval, c.HeartbeatIdle, c.HandshakeOnConnect, c.PassCheckEnabled)
}

func (c *Config) heartbeatSeconds() int64 {
	return int64(c.HeartbeatInterval.Duration / time.Second)
}
