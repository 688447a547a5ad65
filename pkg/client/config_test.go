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

package client

import (
	goerrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"tspclient/pkg/errors"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	assert.True(t, cfg.SetDefaultIfNotDefined())
	assert.Equal(t, DefaultConfig.Port, cfg.Port)
	assert.Equal(t, DefaultConfig.ConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, DefaultConfig.SendRetryInterval, cfg.SendRetryInterval)
	assert.Equal(t, 1.0, cfg.ReconnectBackoffExponent)
	assert.False(t, cfg.SetDefaultIfNotDefined())
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig
	valid.Host = "tsp.example.com"

	tests := []struct {
		name   string
		modify func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"no host", func(c *Config) { c.Host = "" }, false},
		{"bad port", func(c *Config) { c.Port = 70000 }, false},
		{"bad reconnects", func(c *Config) { c.MaxReconnects = -2 }, false},
		{"bad queue limit", func(c *Config) { c.QueueLimit = -1 }, false},
		{"no reconnect", func(c *Config) { c.MaxReconnects = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, goerrors.Is(err, errors.ErrInvalidConfig), "error = %v", err)
			}
		})
	}
	assert.Equal(t, "tsp.example.com:8888", valid.Endpoint())
}
