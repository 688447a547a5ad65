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
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/metric/instrument"
	"go.opentelemetry.io/otel/metric/instrument/asyncint64"
)

// GaugeSource reports values sampled on every collection.
type GaugeSource interface {
	QueueLen() int
	ConnStateCode() int
}

var (
	queueLenGauge  asyncint64.Gauge
	connStateGauge asyncint64.Gauge
	gaugeOnce      sync.Once
	gaugeMtx       sync.Mutex
	gaugeSources   = map[string]GaugeSource{}
)

// RegisterGaugeSource samples src under the given endpoint tag until
// UnregisterGaugeSource is called.
func RegisterGaugeSource(endpoint string, src GaugeSource) {
	gaugeOnce.Do(initGauges)
	gaugeMtx.Lock()
	gaugeSources[endpoint] = src
	gaugeMtx.Unlock()
}

func UnregisterGaugeSource(endpoint string) {
	gaugeMtx.Lock()
	delete(gaugeSources, endpoint)
	gaugeMtx.Unlock()
}

func initGauges() {
	meter := global.Meter(MeterName)
	var err error
	if queueLenGauge, err = meter.AsyncInt64().Gauge(
		PopulateMetricNamePrefix("queue_len"),
		instrument.WithDescription("Commands waiting in the send queue"),
	); err != nil {
		return
	}
	if connStateGauge, err = meter.AsyncInt64().Gauge(
		PopulateMetricNamePrefix("conn_state"),
		instrument.WithDescription("Connection status code as sent on conn_status"),
	); err != nil {
		return
	}
	meter.RegisterCallback(
		[]instrument.Asynchronous{queueLenGauge, connStateGauge},
		func(ctx context.Context) {
			gaugeMtx.Lock()
			defer gaugeMtx.Unlock()
			for endpoint, src := range gaugeSources {
				attr := covertTagsToOTELAttributes([]Tags{{Endpoint, endpoint}})
				queueLenGauge.Observe(ctx, int64(src.QueueLen()), attr...)
				connStateGauge.Observe(ctx, int64(src.ConnStateCode()), attr...)
			}
		},
	)
}
