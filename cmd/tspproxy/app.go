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

package main

import (
	"bufio"
	"encoding/hex"
	goio "io"
	"strings"

	"tspclient/cmd/tspproxy/config"
	"tspclient/pkg/client"
	"tspclient/pkg/logging"
	"tspclient/pkg/proxy"
	"tspclient/pkg/util"
)

type app struct {
	tsp    *client.TspClient
	proxy  *proxy.Proxy
	logger logging.Logger
}

func newApp(conf *config.Config, logger logging.Logger) *app {
	tspCfg := conf.TspConfig()
	tspCfg.SetDefaultIfNotDefined()
	tspCfg.Client.Dump(logger)
	conf.Proxy.Dump(logger)

	a := &app{
		tsp:    client.NewTspClient(tspCfg, nil, logger),
		logger: logger,
	}
	a.proxy = proxy.New(conf.Proxy, a.tsp, logger)
	a.proxy.SetReplyHandler(a.onReply)
	a.proxy.SetStateChangedHandler(func(state client.ConnState) {
		logger.Infof("connection state %s", state)
	})
	return a
}

func (a *app) Start() {
	a.proxy.Start()
}

func (a *app) Shutdown() {
	a.proxy.Shutdown()
}

func (a *app) onReply(topic string, msg []byte) {
	a.logger.Infof("reply topic=%s msg=%s", topic, util.ToHexString(msg))
}

// PublishLines publishes each "<topic> <hex>" line until r is exhausted.
func (a *app) PublishLines(r goio.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			a.logger.Warningf("expect \"<topic> <hex>\", got %q", line)
			continue
		}
		msg, err := hex.DecodeString(fields[1])
		if err != nil {
			a.logger.Warningf("bad hex message: %s", err)
			continue
		}
		if err = a.proxy.PublishMessage(fields[0], msg); err != nil {
			a.logger.Warningf("publish to %s failed: %s", fields[0], err)
		}
	}
}
