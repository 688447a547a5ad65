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

package logging

import (
	"flag"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelError Level = iota + 1
	LevelWarning
	LevelInfo
	LevelDebug
	LevelVerbose
)

var levelNames = [...]string{"", "error", "warning", "info", "debug", "verbose"}

var currentLevel atomic.Int32

func init() {
	currentLevel.Store(int32(LevelInfo))
}

func (l Level) String() string {
	if l >= LevelError && l <= LevelVerbose {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel maps a level name to a Level. Anything unknown is info.
func ParseLevel(name string) Level {
	for i := LevelError; i <= LevelVerbose; i++ {
		if strings.EqualFold(levelNames[i], name) {
			return i
		}
	}
	return LevelInfo
}

func GetLevel() Level {
	return Level(currentLevel.Load())
}

func SetLevel(l Level) {
	currentLevel.Store(int32(l))
}

func IsEnabled(l Level) bool {
	return GetLevel() >= l
}

// InitLogging points glog at stderr and sets both the glog verbosity and the
// level checked by the package logger.
func InitLogging(level string, appName string) {
	l := ParseLevel(level)
	SetLevel(l)
	setFlag("logtostderr", "true")
	setFlag("v", levelVerbosity(l))
	appNamePrefix.Store(appName)
}

// SetVModule forwards to glog's -vmodule.
func SetVModule(value string) {
	setFlag("vmodule", value)
}

func levelVerbosity(l Level) string {
	return string(rune('0' + int(l)))
}

func setFlag(name string, value string) {
	if f := flag.Lookup(name); f != nil {
		f.Value.Set(value)
	}
}
