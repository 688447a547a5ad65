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
	"fmt"
	"time"

	"tspclient/pkg/client"
	"tspclient/pkg/proto"
	"tspclient/pkg/proxy"
)

type cmdStatsT struct {
	sessionCommandT
	optNum      int
	optSid      uint
	optMid      uint
	optInterval time.Duration
}

func (c *cmdStatsT) Init(name string, desc string) {
	c.sessionCommandT.Init(name, desc)
	c.IntOption(&c.optNum, "n", 100, "number of messages to publish")
	c.UintOption(&c.optSid, "sid", uint(proxy.SidPlatform), "service id of the published messages")
	c.UintOption(&c.optMid, "mid", uint(proxy.MidHeartbeatSleep), "message id of the published messages")
	c.DurationOption(&c.optInterval, "interval", 0, "pause between two messages")
	c.SetSynopsis("[-c config.toml] [-n count] [-sid n -mid n]")
	c.AddExample(name+" -c tspproxy.toml -n 1000", "publish 1000 heartbeats")
}

func (c *cmdStatsT) Parse(args []string) (err error) {
	if err = c.sessionCommandT.Parse(args); err != nil {
		return
	}
	if c.optNum <= 0 {
		return fmt.Errorf("-n must be positive")
	}
	if c.optSid > 0xFF || c.optMid > 0xFF {
		return fmt.Errorf("sid and mid must fit in a byte")
	}
	return
}

func (c *cmdStatsT) Exec() {
	if err := c.run(nil); err != nil {
		fmt.Fprintf(c.Out(), "* %s\n", err)
	}
}

func (c *cmdStatsT) run(factory client.TransportFactory) error {
	rec := newStateRecorder(c.Out())
	state, err := c.open(rec, factory)
	defer c.close()
	if err != nil {
		return err
	}
	if state != client.StateLogin {
		return fmt.Errorf("login ended in state %s", state)
	}
	cli := c.tsp.Client()
	if cli == nil {
		return fmt.Errorf("not connected")
	}
	stats := cli.Statistics()
	stats.Reset()

	for i := 0; i < c.optNum; i++ {
		body := proto.MessageBody{Random: uint16(i), Sid: uint8(c.optSid), Mid: uint8(c.optMid)}
		raw, err := body.Encode()
		if err != nil {
			return err
		}
		h := proto.IPCHeader{AckFlag: proto.AckFlagRequest, RequestId: proto.NewRequestId()}
		if err = c.proxy.PublishMessage("/to/tsp/stats", proto.EncodeIPCMessage(h, raw)); err != nil {
			return err
		}
		if c.optInterval > 0 {
			time.Sleep(c.optInterval)
		}
	}

	deadline := time.Now().Add(c.optTimeout)
	for stats.GetNumRequests() < int64(c.optNum) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := stats.GetNumRequests(); n < int64(c.optNum) {
		fmt.Fprintf(c.Out(), "* %d of %d messages sent within %s\n", n, c.optNum, c.optTimeout)
	}
	fmt.Fprintf(c.Out(), "\n%d messages in %s\n", stats.GetNumRequests(), stats.Elapsed().Round(time.Millisecond))
	stats.PrettyPrint(c.Out())
	return nil
}
