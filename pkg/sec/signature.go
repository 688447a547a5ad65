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

package sec

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
)

// LoginSignature returns sha256(upper(hex(md5(publicKey))) + deviceTime)
// where deviceTime is the decimal millisecond timestamp also sent in the
// login request. The digest is returned raw, together with its upper-case hex
// form for logging.
func LoginSignature(publicKey []byte, deviceTimeMs uint64) (sig []byte, sigHex string) {
	md5sum := md5.Sum(publicKey)
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(hex.EncodeToString(md5sum[:]))))
	h.Write([]byte(strconv.FormatUint(deviceTimeMs, 10)))
	sig = h.Sum(nil)
	sigHex = strings.ToUpper(hex.EncodeToString(sig))
	return
}

// LoginSignatureFromFile reads the public key file and signs deviceTimeMs.
// An empty path signs an empty key.
func LoginSignatureFromFile(path string, deviceTimeMs uint64) (sig []byte, sigHex string, err error) {
	var publicKey []byte
	if path != "" {
		if publicKey, err = os.ReadFile(path); err != nil {
			return
		}
	}
	sig, sigHex = LoginSignature(publicKey, deviceTimeMs)
	return
}
