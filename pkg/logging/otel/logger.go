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
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/metric/instrument"
	"go.opentelemetry.io/otel/metric/instrument/syncint64"
	"go.opentelemetry.io/otel/metric/unit"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/aggregation"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"tspclient/pkg/logging"
	otelCfg "tspclient/pkg/logging/otel/config"
)

var (
	meterProvider *metric.MeterProvider
	providerMtx   sync.Mutex
)

// Initialize is the initmgr entry. One argument required: *config.Config.
func Initialize(args ...interface{}) (err error) {
	if len(args) < 1 {
		err = fmt.Errorf("otel config argument not as expected")
		return
	}
	var c *otelCfg.Config
	var ok bool
	if c, ok = args[0].(*otelCfg.Config); !ok {
		err = fmt.Errorf("wrong argument type")
		return
	}
	if err = c.Validate(); err != nil {
		return
	}
	c.Dump(logging.Default())
	if c.Enabled {
		err = InitMetricProvider(c)
	}
	return
}

func Finalize() {
	providerMtx.Lock()
	defer providerMtx.Unlock()
	if meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		meterProvider.Shutdown(ctx)
		meterProvider = nil
	}
}

func InitMetricProvider(config *otelCfg.Config) error {
	providerMtx.Lock()
	defer providerMtx.Unlock()
	if meterProvider != nil {
		return nil
	}
	config.SetDefaultIfNotDefined()
	ctx := context.Background()

	connectView := metric.NewView(
		metric.Instrument{
			Name:  PopulateMetricNamePrefix("connect"),
			Scope: instrumentation.Scope{Name: MeterName},
		},
		metric.Stream{
			Aggregation: aggregation.ExplicitBucketHistogram{
				Boundaries: config.HistogramBuckets.Connect,
			},
		})
	publishView := metric.NewView(
		metric.Instrument{
			Name:  PopulateMetricNamePrefix("publish"),
			Scope: instrumentation.Scope{Name: MeterName},
		},
		metric.Stream{
			Aggregation: aggregation.ExplicitBucketHistogram{
				Boundaries: config.HistogramBuckets.Publish,
			},
		})

	provider, err := NewMeterProvider(ctx, config, connectView, publishView)
	if err != nil {
		return err
	}
	meterProvider = provider
	global.SetMeterProvider(provider)
	return nil
}

func NewMeterProvider(ctx context.Context, cfg *otelCfg.Config, vis ...metric.View) (*metric.MeterProvider, error) {
	exp, err := NewHTTPExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res := getResourceInfo(cfg.Poolname, cfg.Environment)
	reader := metric.NewPeriodicReader(exp, metric.WithInterval(time.Duration(cfg.Resolution)*time.Second))
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(reader),
		metric.WithView(vis...),
	), nil
}

func NewHTTPExporter(ctx context.Context, cfg *otelCfg.Config) (metric.Exporter, error) {
	var deltaTemporalitySelector = func(metric.InstrumentKind) metricdata.Temporality { return metricdata.DeltaTemporality }
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		otlpmetrichttp.WithURLPath(cfg.UrlPath),
		otlpmetrichttp.WithTimeout(7 * time.Second),
		otlpmetrichttp.WithCompression(otlpmetrichttp.NoCompression),
		otlpmetrichttp.WithTemporalitySelector(deltaTemporalitySelector),
		otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 1 * time.Second,
			MaxInterval:     10 * time.Second,
			MaxElapsedTime:  240 * time.Second,
		}),
	}
	if !cfg.UseTls {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return otlpmetrichttp.New(ctx, opts...)
}

func IsEnabled() bool {
	providerMtx.Lock()
	defer providerMtx.Unlock()
	return meterProvider != nil
}

func GetHistogramForConnect() (syncint64.Histogram, error) {
	var err error
	connectHistogramOnce.Do(func() {
		meter := global.Meter(MeterName)
		connectHistogram, err = meter.SyncInt64().Histogram(
			PopulateMetricNamePrefix("connect"),
			instrument.WithDescription("Histogram for TSP connect and TLS handshake"),
			instrument.WithUnit(unit.Milliseconds),
		)
	})
	return connectHistogram, err
}

func GetHistogramForPublish() (syncint64.Histogram, error) {
	var err error
	publishHistogramOnce.Do(func() {
		meter := global.Meter(MeterName)
		publishHistogram, err = meter.SyncInt64().Histogram(
			PopulateMetricNamePrefix("publish"),
			instrument.WithDescription("Histogram for time from enqueue to published"),
			instrument.WithUnit(unit.Milliseconds),
		)
	})
	return publishHistogram, err
}

func GetCounter(counterName CMetric) (syncint64.Counter, error) {
	if counterMetric, ok := countMetricMap[counterName]; ok {
		counterMetric.createCounter.Do(func() {
			meter := global.Meter(MeterName)
			counterMetric.counter, _ = meter.SyncInt64().Counter(
				PopulateMetricNamePrefix(counterMetric.metricName),
				instrument.WithDescription(counterMetric.metricDesc),
			)
		})
		if counterMetric.counter != nil {
			return counterMetric.counter, nil
		}
		return nil, errors.New("counter object not ready")
	}
	return nil, errors.New("no such counter exists")
}

func RecordConnection(endpoint string, status string, latency int64) {
	if connect, err := GetHistogramForConnect(); err == nil && connect != nil {
		connect.Record(context.Background(), latency,
			attribute.String(Endpoint, endpoint),
			attribute.String(Status, status),
		)
	}
}

func RecordPublish(status string, latency int64) {
	if publish, err := GetHistogramForPublish(); err == nil && publish != nil {
		publish.Record(context.Background(), latency, attribute.String(Status, status))
	}
}

func RecordCount(counterName CMetric, tags []Tags) {
	ctx := context.Background()
	if counter, err := GetCounter(counterName); err == nil {
		if len(tags) != 0 {
			counter.Add(ctx, 1, covertTagsToOTELAttributes(tags)...)
		} else {
			counter.Add(ctx, 1)
		}
	}
}

func covertTagsToOTELAttributes(tags []Tags) (attr []attribute.KeyValue) {
	attr = make([]attribute.KeyValue, len(tags))
	for i := 0; i < len(tags); i++ {
		attr[i] = attribute.String(tags[i].TagName, tags[i].TagValue)
	}
	return
}

// StatusOf maps a success flag to the status tag value.
func StatusOf(ok bool) string {
	if ok {
		return StatusSuccess
	}
	return StatusError
}

func getResourceInfo(appName string, env string) *resource.Resource {
	hostname, _ := os.Hostname()
	return resource.NewWithAttributes("empty resource",
		semconv.HostNameKey.String(hostname),
		semconv.ServiceNameKey.String(appName),
		attribute.String("deployment.environment", env),
		attribute.String("application", appName),
	)
}
