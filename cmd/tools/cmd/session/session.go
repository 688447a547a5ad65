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

// Package session provides the tspcli commands that open a TSP session
// with the settings of a tspproxy configuration file.
package session

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"tspclient/cmd/tspproxy/config"
	"tspclient/pkg/client"
	"tspclient/pkg/cmd"
	"tspclient/pkg/logging"
	"tspclient/pkg/proxy"
)

type sessionCommandT struct {
	cmd.Command

	optCfgFile string
	optServer  string
	optTimeout time.Duration

	conf  config.Config
	tsp   *client.TspClient
	proxy *proxy.Proxy
}

func (c *sessionCommandT) Init(name string, desc string) {
	c.Command.Init(name, desc)
	c.StringOption(&c.optCfgFile, "c|config", "config.toml", "tspproxy configuration file")
	c.StringOption(&c.optServer, "s|server", "", "<host>:<port>, overrides the configured server")
	c.DurationOption(&c.optTimeout, "timeout", 10*time.Second, "how long to wait for the login response")
}

func (c *sessionCommandT) Parse(args []string) (err error) {
	if err = c.Command.Parse(args); err != nil {
		return
	}
	if c.conf, err = config.Load(c.optCfgFile); err != nil {
		return
	}
	if c.optServer != "" {
		var host, port string
		if host, port, err = net.SplitHostPort(c.optServer); err != nil {
			return
		}
		c.conf.Env.ServerIp = host
		if c.conf.Env.Port, err = strconv.Atoi(port); err != nil {
			return
		}
	}
	// a one-shot session does not retry
	c.conf.Env.MaxReconnects = 0
	return c.conf.Validate()
}

// stateRecorder prints each state and signals once the handshake is over.
type stateRecorder struct {
	mtx    sync.Mutex
	w      io.Writer
	states []client.ConnState
	done   chan client.ConnState
}

func newStateRecorder(w io.Writer) *stateRecorder {
	return &stateRecorder{w: w, done: make(chan client.ConnState, 1)}
}

func (r *stateRecorder) onState(state client.ConnState) {
	r.mtx.Lock()
	r.states = append(r.states, state)
	fmt.Fprintf(r.w, "state: %s\n", state)
	r.mtx.Unlock()

	switch state {
	case client.StateLogin, client.StateLoginFailed, client.StateLogout, client.StateStopped:
		select {
		case r.done <- state:
		default:
		}
	}
}

func (r *stateRecorder) sequence() []client.ConnState {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return append([]client.ConnState(nil), r.states...)
}

// open starts a proxy and waits until the handshake finished or timeout.
// The caller shuts it down with close.
func (c *sessionCommandT) open(rec *stateRecorder, factory client.TransportFactory) (client.ConnState, error) {
	tspCfg := c.conf.TspConfig()
	tspCfg.SetDefaultIfNotDefined()
	c.tsp = client.NewTspClient(tspCfg, factory, logging.Default())
	c.proxy = proxy.New(c.conf.Proxy, c.tsp, logging.Default())
	c.proxy.SetReplyHandler(func(topic string, msg []byte) {
		logging.Default().Debugf("reply on %s: %X", topic, msg)
	})
	c.proxy.SetStateChangedHandler(rec.onState)
	c.proxy.Start()

	select {
	case state := <-rec.done:
		return state, nil
	case <-time.After(c.optTimeout):
		return c.proxy.ConnState(), fmt.Errorf("no login response within %s", c.optTimeout)
	}
}

func (c *sessionCommandT) close() {
	if c.proxy != nil {
		c.proxy.Shutdown()
	}
}

type cmdLoginT struct {
	sessionCommandT
}

func (c *cmdLoginT) Init(name string, desc string) {
	c.sessionCommandT.Init(name, desc)
	c.SetSynopsis("[-c config.toml] [-s host:port]")
	c.AddExample(name+" -c tspproxy.toml", "log in to the configured environment")
}

func (c *cmdLoginT) Exec() {
	if err := c.run(nil); err != nil {
		fmt.Fprintf(c.Out(), "* %s\n", err)
	}
}

func (c *cmdLoginT) run(factory client.TransportFactory) error {
	rec := newStateRecorder(c.Out())
	state, err := c.open(rec, factory)
	defer c.close()
	if err != nil {
		return err
	}
	if state == client.StateLogin {
		fmt.Fprintf(c.Out(), "session key: %X\n", c.proxy.SessionKey())
	}
	return nil
}

func init() {
	login := &cmdLoginT{}
	login.Init("login", "log in once and print the connection states")
	stats := &cmdStatsT{}
	stats.Init("stats", "log in, publish messages and print the publish latency")
	cmd.RegisterNewGroup("session", login, stats)
}
