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

package otel

import (
	"sync"

	"go.opentelemetry.io/otel/metric/instrument/syncint64"
)

type CMetric int

const (
	Reconnect CMetric = CMetric(iota)
	StateChange
	Published
	Received
	Login
	Heartbeat
)

type Tags struct {
	TagName  string
	TagValue string
}

// tag names
const (
	Endpoint = string("endpoint")
	Status   = string("status")
	State    = string("state")
	Event    = string("event")
	ErrCat   = string("err")
)

// OTEl Status
const (
	StatusSuccess string = "SUCCESS"
	StatusError   string = "ERROR"
	StatusUnknown string = "UNKNOWN"
)

const TSP_METRIC_PREFIX = "tsp.client."
const MeterName = "tsp-client-meter"

type countMetric struct {
	metricName    string
	metricDesc    string
	counter       syncint64.Counter
	createCounter *sync.Once
}

var (
	connectHistogramOnce sync.Once
	publishHistogramOnce sync.Once

	reconnectCounterOnce   sync.Once
	stateChangeCounterOnce sync.Once
	publishedCounterOnce   sync.Once
	receivedCounterOnce    sync.Once
	loginCounterOnce       sync.Once
	heartbeatCounterOnce   sync.Once
)

var connectHistogram syncint64.Histogram
var publishHistogram syncint64.Histogram

var countMetricMap map[CMetric]*countMetric = map[CMetric]*countMetric{
	Reconnect:   {"reconnect", "Reconnect attempts to the TSP server", nil, &reconnectCounterOnce},
	StateChange: {"state_change", "Connection state notifications", nil, &stateChangeCounterOnce},
	Published:   {"published", "Frames handed to the transport, by result", nil, &publishedCounterOnce},
	Received:    {"received", "Frames received from the TSP server", nil, &receivedCounterOnce},
	Login:       {"login", "Login handshake results", nil, &loginCounterOnce},
	Heartbeat:   {"heartbeat", "Heartbeat-sleep requests sent", nil, &heartbeatCounterOnce},
}

func PopulateMetricNamePrefix(metricName string) string {
	return TSP_METRIC_PREFIX + metricName
}
