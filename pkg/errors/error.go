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

package errors

import (
	"fmt"
)

type Error struct {
	what  string
	errno uint32
}

// errno ranges, one per category
const (
	kFrameBase     uint32 = 100
	kTransportBase uint32 = 200
	kCryptoBase    uint32 = 300
	kConfigBase    uint32 = 400
)

var (
	// FrameError
	ErrTruncated       = NewError("frame truncated", kFrameBase+1)
	ErrMalformedLength = NewError("malformed length", kFrameBase+2)

	// TransportError
	ErrConnectFailed   = NewError("connect failed", kTransportBase+1)
	ErrHandshakeFailed = NewError("tls handshake failed", kTransportBase+2)
	ErrWriteFailed     = NewError("write failed", kTransportBase+3)
	ErrPeerClosed      = NewError("peer closed", kTransportBase+4)
	ErrNotConnected    = NewError("not connected", kTransportBase+5)
	ErrQueueFull       = NewError("send queue full", kTransportBase+6)
	ErrClosed          = NewError("client closed", kTransportBase+7)
	ErrGaveUp          = NewError("reconnection stopped", kTransportBase+8)

	// CryptoError
	ErrEncryptFailed = NewError("encrypt failed", kCryptoBase+1)
	ErrDecryptFailed = NewError("decrypt failed", kCryptoBase+2)
	ErrShortKey      = NewError("session key shorter than 16 bytes", kCryptoBase+3)

	// ConfigError
	ErrStatusNotNormal   = NewError("status code not normal", kConfigBase+1)
	ErrMalformedResponse = NewError("malformed response body", kConfigBase+2)
	ErrInvalidConfig     = NewError("invalid config", kConfigBase+3)
)

func NewError(what string, errno uint32) *Error {
	return &Error{what: what, errno: errno}
}

func (e *Error) Error() string {
	return fmt.Sprintf("error: %s (%d)", e.what, e.errno)
}

func (e *Error) ErrNo() uint32 {
	return e.errno
}

func (e *Error) What() string {
	return e.what
}

// Is matches on errno so that copies of a sentinel compare equal.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.errno == e.errno
	}
	return false
}

type wrappedError struct {
	kind  *Error
	cause error
}

func (w *wrappedError) Error() string {
	if w.cause == nil {
		return w.kind.Error()
	}
	return fmt.Sprintf("%s: %s", w.kind.what, w.cause.Error())
}

func (w *wrappedError) Is(target error) bool {
	return w.kind.Is(target)
}

func (w *wrappedError) Unwrap() error {
	return w.cause
}

// Wrap tags cause with one of the sentinels above.
func Wrap(kind *Error, cause error) error {
	return &wrappedError{kind: kind, cause: cause}
}

// Wrapf is Wrap with a formatted cause.
func Wrapf(kind *Error, format string, args ...interface{}) error {
	return &wrappedError{kind: kind, cause: fmt.Errorf(format, args...)}
}

type Category string

const (
	CategoryNone      Category = ""
	CategoryFrame     Category = "frame"
	CategoryTransport Category = "transport"
	CategoryCrypto    Category = "crypto"
	CategoryConfig    Category = "config"
	CategoryOther     Category = "other"
)

// GetCategory returns the taxonomy bucket of err.
func GetCategory(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var no uint32
	switch e := err.(type) {
	case *Error:
		no = e.errno
	case *wrappedError:
		no = e.kind.errno
	default:
		if u, ok := err.(interface{ Unwrap() error }); ok {
			return GetCategory(u.Unwrap())
		}
		return CategoryOther
	}
	switch no / 100 {
	case kFrameBase / 100:
		return CategoryFrame
	case kTransportBase / 100:
		return CategoryTransport
	case kCryptoBase / 100:
		return CategoryCrypto
	case kConfigBase / 100:
		return CategoryConfig
	}
	return CategoryOther
}
