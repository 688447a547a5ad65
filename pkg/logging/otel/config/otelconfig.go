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

package config

import (
	"tspclient/pkg/errors"
	"tspclient/pkg/logging"
)

type HistBuckets struct {
	Connect []float64
	Publish []float64
}

type Config struct {
	Host             string
	Port             uint32
	UrlPath          string
	Environment      string
	Poolname         string
	Enabled          bool
	Resolution       uint32
	UseTls           bool
	HistogramBuckets HistBuckets
}

func (c *Config) Validate() error {
	if c.Enabled && len(c.Poolname) <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "otel Poolname is required")
	}
	c.SetDefaultIfNotDefined()
	return nil
}

func (c *Config) SetDefaultIfNotDefined() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 4318
	}
	if c.Resolution == 0 {
		c.Resolution = 60
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.UrlPath == "" {
		c.UrlPath = "/v1/metrics"
	}
	if c.HistogramBuckets.Connect == nil {
		c.HistogramBuckets.Connect = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	}
	if c.HistogramBuckets.Publish == nil {
		c.HistogramBuckets.Publish = []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000}
	}
}

func (c *Config) Dump(log logging.Logger) {
	log.Infof("Host : %s", c.Host)
	log.Infof("Port: %d", c.Port)
	log.Infof("Environment: %s", c.Environment)
	log.Infof("Poolname: %s", c.Poolname)
	log.Infof("Resolution: %d", c.Resolution)
	log.Infof("UseTls: %t", c.UseTls)
	log.Infof("UrlPath: %s", c.UrlPath)
	log.Infof("Connect Bucket: %v", c.HistogramBuckets.Connect)
	log.Infof("Publish Bucket: %v", c.HistogramBuckets.Publish)
}
