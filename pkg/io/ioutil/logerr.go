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

package ioutil

import (
	goerrors "errors"
	"io"
	"net"
	"syscall"

	"tspclient/pkg/logging"
)

// IsExpectedClose reports whether err is the normal end of a connection:
// the peer closed or reset it, or it was closed locally.
func IsExpectedClose(err error) bool {
	return goerrors.Is(err, io.EOF) ||
		goerrors.Is(err, net.ErrClosed) ||
		goerrors.Is(err, syscall.ECONNRESET)
}

// LogError logs a connection error at debug level when the close was
// expected and as a warning otherwise.
func LogError(logger logging.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logger = logging.OrDefault(logger)

	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		logger.Warningf("%s: %s", msg, err)
		return
	}
	if IsExpectedClose(err) {
		logger.Debugf("%s: %s", msg, err)
	} else {
		logger.Warningf("%s: %s", msg, err)
	}
}
