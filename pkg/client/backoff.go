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

import "time"

type Backoff interface {
	// BackOff increases the delay.
	BackOff()

	// Delay returns the delay set by the last BackOff, zero if BackOff has
	// never been called.
	Delay() time.Duration

	// Reset goes back to the initial delay.
	Reset()
}

// Exponential creates an exponential backoff tracker. A maxDelay <= 0 means no maximum.
// An exponent of 1 gives a fixed interval.
func Exponential(initialDelay time.Duration, exponent float64, maxDelay time.Duration) Backoff {
	b := exponential{
		InitialDelay: initialDelay,
		Exponent:     exponent,
		MaxDelay:     maxDelay,
	}
	b.Reset()
	return &b
}

type exponential struct {
	InitialDelay time.Duration
	Exponent     float64
	MaxDelay     time.Duration
	// private
	currentDelay time.Duration
	armed        bool
}

func (b *exponential) BackOff() {
	if !b.armed {
		b.currentDelay = b.InitialDelay
	} else {
		b.currentDelay = time.Duration(b.Exponent * float64(b.currentDelay))
	}
	if b.MaxDelay > 0 && b.currentDelay > b.MaxDelay {
		b.currentDelay = b.MaxDelay
	}
	b.armed = true
}

func (b *exponential) Delay() time.Duration {
	if !b.armed {
		return 0
	}
	return b.currentDelay
}

func (b *exponential) Reset() {
	b.armed = false
	b.currentDelay = b.InitialDelay
}
