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

// tspproxy keeps a TSP session to the configured server. It logs replies
// and state changes, optionally publishes IPC messages read from stdin, and
// runs until SIGINT or SIGTERM.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"tspclient/cmd/tspproxy/config"
	"tspclient/pkg/initmgr"
	"tspclient/pkg/logging"
	"tspclient/pkg/logging/otel"
	"tspclient/pkg/version"
)

func main() {
	var (
		cfgFile        string
		displayVersion bool
		readStdin      bool
	)
	flag.StringVar(&cfgFile, "c", "config.toml", "configuration file")
	flag.StringVar(&cfgFile, "config", "config.toml", "configuration file")
	flag.BoolVar(&displayVersion, "version", false, "display version info")
	flag.BoolVar(&readStdin, "stdin", false, "publish \"<topic> <hex ipc message>\" lines read from stdin")
	flag.Parse()

	if displayVersion {
		version.PrintVersionInfo()
		return
	}

	initmgr.Register(config.Initializer, cfgFile)
	initmgr.RegisterWithFuncs(initLogging, nil)
	initmgr.RegisterWithFuncs(otel.Initialize, otel.Finalize, &config.Conf.Otel)
	if err := initmgr.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "* tspproxy failed to start: %s\n", err)
		glog.Flush()
		os.Exit(1)
	}

	app := newApp(&config.Conf, logging.Default())
	app.Start()
	if readStdin {
		go app.PublishLines(os.Stdin)
	}
	sig := initmgr.WaitForSignal()
	glog.Infof("signal %s received, shutting down", sig)
	app.Shutdown()

	initmgr.Finalize()
	logging.Flush()
}

func initLogging(args ...interface{}) error {
	logging.InitLogging(config.Conf.LogLevel, "tspproxy")
	glog.Infof("tspproxy %s starting, environment %s", version.OnelineVersionString(), config.Conf.Environment)
	config.Conf.Dump()
	return nil
}
