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

package session

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tspclient/pkg/client"
	"tspclient/pkg/logging"
	"tspclient/pkg/proto"
	"tspclient/test/testutil/mock"
)

func startServer(t *testing.T) (*mock.TspServer, string) {
	t.Helper()
	srv, err := mock.NewTspServer(mock.DefaultServerConfig, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	content := fmt.Sprintf(`
Environment = "test"
[Proxy]
Tuid = "TUID000000000001"
[Environments.test]
ServerIp = "%s"
Port = %d
`, srv.Host(), srv.Port())
	file := filepath.Join(t.TempDir(), "tspproxy.toml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
	return srv, file
}

func TestLogin(t *testing.T) {
	srv, file := startServer(t)

	c := &cmdLoginT{}
	c.Init("login", "test")
	var out bytes.Buffer
	c.SetOutput(&out)
	require.NoError(t, c.Parse([]string{"-c", file, "-timeout", "5s"}))
	assert.Equal(t, 0, c.conf.Env.MaxReconnects)

	require.NoError(t, c.run(nil))
	s := out.String()
	assert.Contains(t, s, "state: start\nstate: ok\nstate: login\n")
	assert.Contains(t, s, fmt.Sprintf("session key: %X", srv.SessionKey()))
}

func TestLoginRejected(t *testing.T) {
	srv, file := startServer(t)
	srv.SetLoginResult(0)

	c := &cmdLoginT{}
	c.Init("login", "test")
	var out bytes.Buffer
	c.SetOutput(&out)
	require.NoError(t, c.Parse([]string{"-c", file}))
	require.NoError(t, c.run(nil))
	assert.Contains(t, out.String(), "state: login_failed")
	assert.NotContains(t, out.String(), "session key")
}

func TestLoginServerOverride(t *testing.T) {
	_, file := startServer(t)

	c := &cmdLoginT{}
	c.Init("login", "test")
	c.SetOutput(&bytes.Buffer{})
	require.NoError(t, c.Parse([]string{"-c", file, "-s", "10.0.0.9:19001"}))
	assert.Equal(t, "10.0.0.9", c.conf.Env.ServerIp)
	assert.Equal(t, 19001, c.conf.Env.Port)

	assert.Error(t, c.Parse([]string{"-c", file, "-s", "no-port"}))
	assert.Error(t, c.Parse([]string{"-c", filepath.Join(t.TempDir(), "missing.toml")}))
}

func TestStats(t *testing.T) {
	srv, file := startServer(t)

	c := &cmdStatsT{}
	c.Init("stats", "test")
	var out bytes.Buffer
	c.SetOutput(&out)
	require.NoError(t, c.Parse([]string{"-c", file, "-n", "5", "-sid", "3", "-mid", "1"}))
	require.NoError(t, c.run(nil))

	assert.True(t, srv.WaitReceived(proto.NewEventId(3, 1), 5, 5*time.Second))
	s := out.String()
	assert.Contains(t, s, "request latency")
	assert.False(t, strings.Contains(s, "messages sent within"), s)
}

func TestStatsNotLoggedIn(t *testing.T) {
	srv, file := startServer(t)
	srv.SetLoginResult(0)

	c := &cmdStatsT{}
	c.Init("stats", "test")
	c.SetOutput(&bytes.Buffer{})
	require.NoError(t, c.Parse([]string{"-c", file, "-n", "1"}))
	assert.Error(t, c.run(nil))

	assert.Error(t, c.Parse([]string{"-c", file, "-n", "0"}))
}

func TestStateRecorder(t *testing.T) {
	var out bytes.Buffer
	r := newStateRecorder(&out)
	r.onState(client.StateStart)
	r.onState(client.StateOk)
	r.onState(client.StateLogin)
	r.onState(client.StateLogout)

	assert.Equal(t, []client.ConnState{client.StateStart, client.StateOk, client.StateLogin, client.StateLogout}, r.sequence())
	assert.Equal(t, client.StateLogin, <-r.done)
}
