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
	"time"

	"tspclient/pkg/errors"
	"tspclient/pkg/logging"
	"tspclient/pkg/util"
)

const (
	// MaxReconnects value for endless reconnection
	ReconnectForever = -1
)

var (
	DefaultConfig = Config{
		Port:                     8888,
		ConnectTimeout:           util.Duration{Duration: 5 * time.Second},
		MaxReconnects:            ReconnectForever,
		ReconnectInterval:        util.Duration{Duration: 500 * time.Millisecond},
		ReconnectBackoffExponent: 1.0,
		SendRetryInterval:        util.Duration{Duration: 10 * time.Second},
		FlushOnStopped:           true,
	}
)

type Config struct {
	Host           string
	Port           int
	ConnectTimeout util.Duration
	// -1 retries forever, 0 disables automatic reconnection
	MaxReconnects            int
	ReconnectInterval        util.Duration
	ReconnectBackoffExponent float64
	// 0 means no maximum
	ReconnectIntervalMax util.Duration
	// how long the sender waits before retrying while the connection is down
	SendRetryInterval util.Duration
	// report queued commands as failed once reconnection gives up
	FlushOnStopped bool
	// 0 means unlimited
	QueueLimit int
}

func (c *Config) SetDefaultIfNotDefined() (set bool) {
	if c.Port == 0 {
		set = true
		c.Port = DefaultConfig.Port
	}
	if c.ConnectTimeout.Duration == 0 {
		set = true
		c.ConnectTimeout = DefaultConfig.ConnectTimeout
	}
	if c.ReconnectBackoffExponent < 1.0 {
		set = true
		c.ReconnectBackoffExponent = DefaultConfig.ReconnectBackoffExponent
	}
	if c.SendRetryInterval.Duration == 0 {
		set = true
		c.SendRetryInterval = DefaultConfig.SendRetryInterval
	}
	return
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.Wrapf(errors.ErrInvalidConfig, "server host not set")
	}
	if c.Port <= 0 || c.Port > 0xFFFF {
		return errors.Wrapf(errors.ErrInvalidConfig, "invalid port %d", c.Port)
	}
	if c.MaxReconnects < ReconnectForever {
		return errors.Wrapf(errors.ErrInvalidConfig, "invalid MaxReconnects %d", c.MaxReconnects)
	}
	if c.QueueLimit < 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "invalid QueueLimit %d", c.QueueLimit)
	}
	return nil
}

func (c *Config) Endpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) Dump(logger logging.Logger) {
	logger.Infof("client config: endpoint=%s,connect_timeout=%s,max_reconnects=%d,reconnect_interval=%s,backoff=%.2f,flush_on_stopped=%v,queue_limit=%d",
		c.Endpoint(), c.ConnectTimeout, c.MaxReconnects, c.ReconnectInterval, c.ReconnectBackoffExponent, c.FlushOnStopped, c.QueueLimit)
}
