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

// mocktsp runs the mock TSP server stand-alone, e.g. as the target of
// tspproxy or tspcli during manual testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"

	"tspclient/pkg/initmgr"
	"tspclient/pkg/logging"
	"tspclient/pkg/sec"
	"tspclient/test/testutil/mock"
)

func main() {
	config := mock.DefaultServerConfig
	config.ListenAddr = ":19000"

	var (
		cfgFile    string
		loginRes   uint
		delay      time.Duration
		cipherMode string
	)
	flag.StringVar(&cfgFile, "c", "", "toml configuration file")
	flag.StringVar(&config.ListenAddr, "listen", config.ListenAddr, "listen address")
	flag.UintVar(&loginRes, "result", uint(config.LoginResult), "login result, 1 accepts")
	flag.DurationVar(&delay, "delay", 0, "delay before each response")
	flag.StringVar(&cipherMode, "cipher", string(config.CipherMode), "session cipher mode, cbc or ecb")
	flag.BoolVar(&config.Silent, "silent", false, "never respond")
	flag.StringVar(&config.LogLevel, "log-level", "info", "log level")
	flag.Parse()

	if cfgFile != "" {
		if _, err := toml.DecodeFile(cfgFile, &config); err != nil {
			fmt.Fprintf(os.Stderr, "* config error: %s\n", err)
			os.Exit(1)
		}
	} else {
		config.LoginResult = byte(loginRes)
		config.ResponseDelay.Duration = delay
		config.CipherMode = sec.CipherMode(cipherMode)
	}
	logging.InitLogging(config.LogLevel, "mocktsp")

	srv, err := mock.NewTspServer(config, logging.Default())
	if err != nil {
		glog.Exitf("fail to listen on %s: %s", config.ListenAddr, err)
	}
	glog.Infof("mock TSP server listening on %s:%d. login result %d, cipher %s",
		srv.Host(), srv.Port(), config.LoginResult, config.CipherMode)

	initmgr.WaitForSignal()
	srv.Close()
	glog.Infof("%d requests received", len(srv.Received()))
	logging.Flush()
}
