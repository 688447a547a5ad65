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

/*
Package stats keeps latency histograms for frames the client publishes.
*/
package stats

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"tspclient/pkg/proto"
)

type (
	// RequestStat records latencies up to one hour with 3 significant digits.
	RequestStat struct {
		mtx       sync.Mutex
		hist      *hdrhistogram.Histogram
		total     time.Duration
		numErrors int64
	}

	// Statistics keeps one RequestStat per event id plus one for all.
	Statistics struct {
		mtx     sync.Mutex
		all     RequestStat
		events  map[proto.EventId]*RequestStat
		tmStart time.Time
	}

	StatsData struct {
		Throughput   float32
		AvgLatency   time.Duration
		MinLatency   time.Duration
		MaxLatency   time.Duration
		P50Latency   time.Duration
		P95Latency   time.Duration
		P99Latency   time.Duration
		P9999Latency time.Duration
		NumRequests  int64
		NumErrors    int64
	}
)

func (s *RequestStat) init() {
	if s.hist == nil {
		s.hist = hdrhistogram.New(1, int64(3600*time.Second), 3)
	}
}

// Put records one latency. Values outside the trackable range are clamped.
func (s *RequestStat) Put(tm time.Duration, err error) {
	s.mtx.Lock()
	s.init()
	if tm < 1 {
		tm = 1
	} else if max := s.hist.HighestTrackableValue(); int64(tm) > max {
		tm = time.Duration(max)
	}
	s.hist.RecordValues(int64(tm), 1)
	s.total += tm
	if err != nil {
		s.numErrors++
	}
	s.mtx.Unlock()
}

func (s *RequestStat) GetStats() (stat StatsData) {
	s.mtx.Lock()
	s.init()
	stat.NumRequests = s.hist.TotalCount()
	stat.NumErrors = s.numErrors
	stat.MinLatency = time.Duration(s.hist.Min())
	stat.MaxLatency = time.Duration(s.hist.Max())
	stat.P50Latency = time.Duration(s.hist.ValueAtQuantile(50.))
	stat.P95Latency = time.Duration(s.hist.ValueAtQuantile(95.))
	stat.P99Latency = time.Duration(s.hist.ValueAtQuantile(99.))
	stat.P9999Latency = time.Duration(s.hist.ValueAtQuantile(99.99))
	total := s.total
	s.mtx.Unlock()

	if stat.NumRequests != 0 {
		v := float32(total) / float32(stat.NumRequests)
		stat.AvgLatency = time.Duration(v)
		stat.Throughput = 1.0e9 / v
	}
	return
}

func (s *RequestStat) GetTotalCount() (num int64) {
	s.mtx.Lock()
	s.init()
	num = s.hist.TotalCount()
	s.mtx.Unlock()
	return
}

func (s *RequestStat) Reset() {
	s.mtx.Lock()
	s.init()
	s.hist.Reset()
	s.numErrors = 0
	s.total = 0
	s.mtx.Unlock()
}

func NewStatistics() *Statistics {
	s := &Statistics{}
	s.Reset()
	return s
}

func (s *Statistics) Reset() {
	s.mtx.Lock()
	s.events = make(map[proto.EventId]*RequestStat)
	s.tmStart = time.Now()
	s.mtx.Unlock()
	s.all.Reset()
}

func (s *Statistics) Put(ev proto.EventId, tm time.Duration, err error) {
	s.all.Put(tm, err)
	s.mtx.Lock()
	st, ok := s.events[ev]
	if !ok {
		st = &RequestStat{}
		s.events[ev] = st
	}
	s.mtx.Unlock()
	st.Put(tm, err)
}

func (s *Statistics) GetNumRequests() int64 {
	return s.all.GetTotalCount()
}

func (s *Statistics) GetStats() StatsData {
	return s.all.GetStats()
}

func (s *Statistics) Elapsed() time.Duration {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return time.Since(s.tmStart)
}

func (s *Statistics) PrettyPrint(w io.Writer) {
	msfunc := func(d time.Duration) time.Duration {
		return d.Round(time.Microsecond)
	}

	fmt.Fprintln(w,
		`
 request/s  |                             request latency                                              |  number of |            |              | number of
  average   | average    | min        | max        |        50% |      95%   |      99%   |     99.99% |  requests  | percentage |  event id    |  errors
------------+------------+------------+------------+------------+------------+------------+------------+------------+------------+--------------+-------------`)
	wstatFunc := func(stat *StatsData, percentage float32, name string) {
		fmt.Fprintf(w, "%12.2f %12s %12s %12s %12s %12s %12s %12s %12d %12.2f %12s %12d\n",
			stat.Throughput, msfunc(stat.AvgLatency), msfunc(stat.MinLatency), msfunc(stat.MaxLatency), msfunc(stat.P50Latency), msfunc(stat.P95Latency),
			msfunc(stat.P99Latency), msfunc(stat.P9999Latency),
			stat.NumRequests,
			percentage, name, stat.NumErrors)
	}
	stat4all := s.all.GetStats()

	s.mtx.Lock()
	evs := make([]proto.EventId, 0, len(s.events))
	for ev := range s.events {
		evs = append(evs, ev)
	}
	s.mtx.Unlock()
	sort.Slice(evs, func(i, j int) bool { return evs[i] < evs[j] })

	for _, ev := range evs {
		s.mtx.Lock()
		st := s.events[ev]
		s.mtx.Unlock()
		stat := st.GetStats()
		if stat.NumRequests != 0 {
			wstatFunc(&stat, 100.0*float32(stat.NumRequests)/float32(stat4all.NumRequests), ev.String())
		}
	}
	fmt.Fprintln(w,
		"------------+------------+------------+------------+------------+------------+------------+------------+------------+------------+--------------+-------------")
	wstatFunc(&stat4all, 100.0, "All")
}
