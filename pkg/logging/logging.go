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
Package logging provides the leveled logger the client packages write to, a
glog backed default and helpers to format log lines.
*/
package logging

import (
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"
)

// Logger is what the core packages log through. Implementations must be safe
// for concurrent use.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

var appNamePrefix atomic.Value

func prefixed(format string, args []interface{}) string {
	msg := fmt.Sprintf(format, args...)
	if name, ok := appNamePrefix.Load().(string); ok && name != "" {
		return "[" + name + "] " + msg
	}
	return msg
}

type glogLogger struct{}

func (glogLogger) Debugf(format string, args ...interface{}) {
	if IsEnabled(LevelDebug) {
		glog.InfoDepth(1, prefixed(format, args))
	}
}

func (glogLogger) Infof(format string, args ...interface{}) {
	if IsEnabled(LevelInfo) {
		glog.InfoDepth(1, prefixed(format, args))
	}
}

func (glogLogger) Warningf(format string, args ...interface{}) {
	if IsEnabled(LevelWarning) {
		glog.WarningDepth(1, prefixed(format, args))
	}
}

func (glogLogger) Errorf(format string, args ...interface{}) {
	if IsEnabled(LevelError) {
		glog.ErrorDepth(1, prefixed(format, args))
	}
}

var defaultLogger Logger = glogLogger{}

// Default returns the glog backed logger.
func Default() Logger {
	return defaultLogger
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{})   {}
func (nopLogger) Infof(string, ...interface{})    {}
func (nopLogger) Warningf(string, ...interface{}) {}
func (nopLogger) Errorf(string, ...interface{})   {}

// Nop discards everything.
func Nop() Logger {
	return nopLogger{}
}

// OrDefault returns l, or Default() when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return defaultLogger
	}
	return l
}

// Flush flushes pending glog output.
func Flush() {
	glog.Flush()
}
