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

package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCmd struct {
	Command
	host     string
	count    int
	interval time.Duration
	executed bool
}

func (c *fakeCmd) Init(name string, desc string) {
	c.Command.Init(name, desc)
	c.StringOption(&c.host, "host|H", "127.0.0.1", "server host")
	c.IntOption(&c.count, "n", 1, "number of requests")
	c.DurationOption(&c.interval, "interval", time.Second, "request interval")
}

func (c *fakeCmd) Exec() {
	c.executed = true
}

func newFakeCmd(name string) *fakeCmd {
	c := &fakeCmd{}
	c.Init(name, "fake command")
	c.SetSynopsis("[-H host] [-n count]")
	c.AddExample(name+" -H 10.0.0.1", "send to a remote host")
	return c
}

func TestParseCommandLine(t *testing.T) {
	reset()
	defer reset()

	c := newFakeCmd("fake")
	require.True(t, Register(c))
	assert.False(t, Register(newFakeCmd("fake")), "duplicate")

	cmd, args := ParseCommandLine([]string{"-v=1", "fake", "-H", "10.0.0.1", "-n", "5", "-interval", "20ms"})
	require.NotNil(t, cmd)
	assert.Equal(t, []string{"-v=1", "-H", "10.0.0.1", "-n", "5", "-interval", "20ms"}, args)

	require.NoError(t, cmd.Parse(args[1:]))
	cmd.Exec()
	assert.True(t, c.executed)
	assert.Equal(t, "10.0.0.1", c.host)
	assert.Equal(t, 5, c.count)
	assert.Equal(t, 20*time.Millisecond, c.interval)

	cmd, args = ParseCommandLine([]string{"-version"})
	assert.Nil(t, cmd)
	assert.Equal(t, []string{"-version"}, args)
}

func TestAliasAndUsage(t *testing.T) {
	c := newFakeCmd("alias")
	var out bytes.Buffer
	c.SetOutput(&out)
	require.NoError(t, c.Parse([]string{"-host", "example.net"}))
	assert.Equal(t, "example.net", c.host)

	c.PrintUsage()
	usage := out.String()
	assert.True(t, strings.Contains(usage, "-host, -H string"), usage)
	assert.True(t, strings.Contains(usage, `(default "127.0.0.1")`), usage)
	assert.True(t, strings.Contains(usage, "send to a remote host"), usage)
}

func TestUnknownOption(t *testing.T) {
	c := newFakeCmd("strict")
	c.SetOutput(&bytes.Buffer{})
	assert.Error(t, c.Parse([]string{"-unknown"}))
}

func TestWriteCommand(t *testing.T) {
	reset()
	defer reset()

	RegisterNewGroup("client", newFakeCmd("login"), newFakeCmd("stats"))
	Register(newFakeCmd("frame"))

	var out bytes.Buffer
	WriteCommand(&out)
	s := out.String()
	for _, want := range []string{"client", "* login", "* stats", "others", "* frame"} {
		assert.Contains(t, s, want)
	}
}
