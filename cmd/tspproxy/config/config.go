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

// Package config loads the tspproxy TOML configuration. The top level
// Environment key selects one of the [Environments.<name>] sections, which
// carry the server endpoint and the connection settings.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"tspclient/pkg/client"
	"tspclient/pkg/errors"
	"tspclient/pkg/initmgr"
	"tspclient/pkg/io"
	"tspclient/pkg/logging"
	otelCfg "tspclient/pkg/logging/otel/config"
	"tspclient/pkg/proto"
	"tspclient/pkg/proxy"
	"tspclient/pkg/sec"
	"tspclient/pkg/util"
)

var (
	Initializer initmgr.IInitializer = initmgr.NewInitializer(initialize, finalize)

	Conf = DefaultConfig()

	DefaultEnvironment = EnvironmentConfig{
		Port:              client.DefaultConfig.Port,
		MessageHeaderSize: proto.MessageHeaderSize,
		BodyLengthOffset:  proto.BodyLengthOffset,
		BodyLengthSize:    proto.BodyLengthSize,
		MaxReconnects:     client.ReconnectForever,
		ReconnectInterval: util.Duration{Duration: 5 * time.Second},
		CipherMode:        sec.CipherModeCBC,
	}
)

type (
	// EnvironmentConfig is one [Environments.<name>] section.
	EnvironmentConfig struct {
		ServerIp string
		Port     int

		SupportTLS         bool
		CAFilePath         string
		KeyPemFilePath     string
		CertPemFilePath    string
		ServerName         string
		InsecureSkipVerify bool
		PublicKeyFilePath  string
		CipherMode         sec.CipherMode

		MessageHeaderSize int
		BodyLengthOffset  int
		BodyLengthSize    int
		EscapedFrames     bool

		NetworkInterface  string
		MaxReconnects     int
		ReconnectInterval util.Duration
	}

	Config struct {
		RootDir     string
		LogLevel    string
		Environment string

		Proxy  proxy.Config
		Client client.Config
		Otel   otelCfg.Config

		Environments map[string]toml.Primitive

		// the selected section, filled in by Load
		Env EnvironmentConfig `toml:"-"`
	}
)

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Proxy:    proxy.DefaultConfig,
		Client:   client.DefaultConfig,
		Otel: otelCfg.Config{
			Poolname: "tspproxy",
		},
	}
}

// Load decodes file into a fresh default config and resolves the selected
// environment.
func Load(file string) (c Config, err error) {
	c = DefaultConfig()
	var md toml.MetaData
	if md, err = toml.DecodeFile(file, &c); err != nil {
		err = errors.Wrap(errors.ErrInvalidConfig, err)
		return
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		// Environments sections other than the selected one stay undecoded
		for _, key := range undecoded {
			if len(key) > 0 && key[0] != "Environments" {
				logging.Default().Warningf("config %s: unknown key %s", file, key)
			}
		}
	}
	if c.Environment == "" {
		err = errors.Wrapf(errors.ErrInvalidConfig, "Environment not set in %s", file)
		return
	}
	prim, found := c.Environments[c.Environment]
	if !found {
		err = errors.Wrapf(errors.ErrInvalidConfig, "environment %q not found in %s", c.Environment, file)
		return
	}
	c.Env = DefaultEnvironment
	if err = md.PrimitiveDecode(prim, &c.Env); err != nil {
		err = errors.Wrap(errors.ErrInvalidConfig, err)
		return
	}
	c.resolvePaths(filepath.Dir(file))
	err = c.Validate()
	return
}

// set path to be under RootDir, or the config file's directory, if it is
// not absolute
func (c *Config) validatePath(path *string, dir string) {
	if path == nil || *path == "" || filepath.IsAbs(*path) {
		return
	}
	*path = filepath.Clean(filepath.Join(dir, *path))
}

func (c *Config) resolvePaths(configDir string) {
	dir := c.RootDir
	if dir == "" {
		dir = configDir
	}
	c.validatePath(&c.Env.CAFilePath, dir)
	c.validatePath(&c.Env.CertPemFilePath, dir)
	c.validatePath(&c.Env.KeyPemFilePath, dir)
	c.validatePath(&c.Env.PublicKeyFilePath, dir)
}

func (c *Config) Validate() error {
	c.Proxy.SetDefaultIfNotDefined()
	if err := c.Proxy.Validate(); err != nil {
		return err
	}
	if c.Env.MessageHeaderSize != proto.MessageHeaderSize {
		return errors.Wrapf(errors.ErrInvalidConfig, "MessageHeaderSize %d not supported", c.Env.MessageHeaderSize)
	}
	tsp := c.TspConfig()
	tsp.SetDefaultIfNotDefined()
	return tsp.Validate()
}

// TspConfig merges the selected environment into the client settings.
func (c *Config) TspConfig() client.TspConfig {
	cfg := client.TspConfig{
		Client:    c.Client,
		Transport: io.DefaultTransportConfig,
	}
	cfg.Client.Host = c.Env.ServerIp
	cfg.Client.Port = c.Env.Port
	cfg.Client.MaxReconnects = c.Env.MaxReconnects
	cfg.Client.ReconnectInterval = c.Env.ReconnectInterval

	cfg.Sec = sec.Config{
		SupportTLS:         c.Env.SupportTLS,
		CAFilePath:         c.Env.CAFilePath,
		CertPemFilePath:    c.Env.CertPemFilePath,
		KeyPemFilePath:     c.Env.KeyPemFilePath,
		ServerName:         c.Env.ServerName,
		InsecureSkipVerify: c.Env.InsecureSkipVerify,
		PublicKeyFilePath:  c.Env.PublicKeyFilePath,
		CipherMode:         c.Env.CipherMode,
	}

	cfg.Transport.NetworkInterface = c.Env.NetworkInterface
	cfg.Transport.Layout = proto.FrameLayout{
		HeaderSize:       c.Env.MessageHeaderSize,
		BodyLengthOffset: c.Env.BodyLengthOffset,
		BodyLengthSize:   c.Env.BodyLengthSize,
		Escaped:          c.Env.EscapedFrames,
	}
	return cfg
}

func (c *Config) Dump() {
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	dump := struct {
		LogLevel    string
		Environment string
		Proxy       proxy.Config
		Client      client.Config
		Otel        otelCfg.Config
		Env         EnvironmentConfig
	}{c.LogLevel, c.Environment, c.Proxy, c.Client, c.Otel, c.Env}
	if err := encoder.Encode(dump); err != nil {
		logging.Default().Errorf("fail to dump config: %s", err)
		return
	}
	logging.Default().Infof("config:\n%s", buf.String())
}

func initialize(args ...interface{}) (err error) {
	if len(args) < 1 {
		return fmt.Errorf("a string config file name argument expected")
	}
	filename, ok := args[0].(string)
	if !ok {
		return fmt.Errorf("wrong argument type. a string config file name expected")
	}
	if _, err = os.Stat(filename); err != nil {
		return errors.Wrap(errors.ErrInvalidConfig, err)
	}
	Conf, err = Load(filename)
	return
}

func finalize() {
}
