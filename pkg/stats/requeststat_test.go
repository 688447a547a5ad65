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

package stats

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"tspclient/pkg/proto"
)

func TestRequestStat(t *testing.T) {
	var s RequestStat
	for i := 1; i <= 100; i++ {
		s.Put(time.Duration(i)*time.Millisecond, nil)
	}
	s.Put(time.Millisecond, fmt.Errorf("timeout"))

	stat := s.GetStats()
	if stat.NumRequests != 101 || stat.NumErrors != 1 {
		t.Fatalf("GetStats() = %d requests %d errors, want 101/1", stat.NumRequests, stat.NumErrors)
	}
	within := func(got, want time.Duration) bool {
		d := got - want
		if d < 0 {
			d = -d
		}
		return d <= want/100+time.Microsecond
	}
	if !within(stat.MaxLatency, 100*time.Millisecond) {
		t.Errorf("MaxLatency = %v, want ~100ms", stat.MaxLatency)
	}
	if !within(stat.P50Latency, 50*time.Millisecond) {
		t.Errorf("P50Latency = %v, want ~50ms", stat.P50Latency)
	}
	if !within(stat.MinLatency, time.Millisecond) {
		t.Errorf("MinLatency = %v, want ~1ms", stat.MinLatency)
	}

	s.Reset()
	if s.GetTotalCount() != 0 {
		t.Errorf("GetTotalCount() after Reset() = %d", s.GetTotalCount())
	}
}

func TestRequestStatClamp(t *testing.T) {
	var s RequestStat
	s.Put(0, nil)
	s.Put(2*time.Hour, nil)
	if n := s.GetTotalCount(); n != 2 {
		t.Errorf("GetTotalCount() = %d, want 2 with out of range values clamped", n)
	}
}

func TestStatisticsPrettyPrint(t *testing.T) {
	s := NewStatistics()
	heartbeat := proto.NewEventId(5, 203)
	login := proto.NewEventId(5, 200)
	s.Put(heartbeat, 3*time.Millisecond, nil)
	s.Put(heartbeat, 5*time.Millisecond, nil)
	s.Put(login, 20*time.Millisecond, nil)

	if n := s.GetNumRequests(); n != 3 {
		t.Fatalf("GetNumRequests() = %d, want 3", n)
	}
	var buf bytes.Buffer
	s.PrettyPrint(&buf)
	out := buf.String()
	for _, want := range []string{"5/200", "5/203", "All"} {
		if !strings.Contains(out, want) {
			t.Errorf("PrettyPrint() missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "5/200") > strings.Index(out, "5/203") {
		t.Errorf("event rows not sorted:\n%s", out)
	}
}
