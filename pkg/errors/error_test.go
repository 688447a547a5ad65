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
	goerrors "errors"
	"fmt"
	"io"
	"testing"
)

func TestWrapIs(t *testing.T) {
	err := Wrap(ErrPeerClosed, io.EOF)
	if !goerrors.Is(err, ErrPeerClosed) {
		t.Errorf("errors.Is(%v, ErrPeerClosed) = false, want true", err)
	}
	if goerrors.Is(err, ErrWriteFailed) {
		t.Errorf("errors.Is(%v, ErrWriteFailed) = true, want false", err)
	}
	if !goerrors.Is(err, io.EOF) {
		t.Errorf("errors.Is(%v, io.EOF) = false, want true", err)
	}
	outer := fmt.Errorf("read loop: %w", err)
	if !goerrors.Is(outer, ErrPeerClosed) {
		t.Errorf("errors.Is(%v, ErrPeerClosed) = false, want true", outer)
	}
}

func TestGetCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryNone},
		{"truncated", ErrTruncated, CategoryFrame},
		{"wrapped handshake", Wrap(ErrHandshakeFailed, io.ErrUnexpectedEOF), CategoryTransport},
		{"short key", ErrShortKey, CategoryCrypto},
		{"status", Wrapf(ErrStatusNotNormal, "status %d", 106), CategoryConfig},
		{"fmt wrapped", fmt.Errorf("x: %w", ErrDecryptFailed), CategoryCrypto},
		{"foreign", io.EOF, CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCategory(tt.err); got != tt.want {
				t.Errorf("GetCategory() = %q, want %q", got, tt.want)
			}
		})
	}
}
