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
	"crypto/tls"
	"fmt"
	"net"
)

// TlsConn exposes the negotiated state of a client TLS connection for
// logging.
type TlsConn struct {
	conn *tls.Conn
}

func NewTlsConn(conn *tls.Conn) *TlsConn {
	return &TlsConn{conn: conn}
}

func (c *TlsConn) IsTLS() bool {
	return true
}

func (c *TlsConn) GetStateString() string {
	statStr := "GoTLS"
	if c.conn != nil {
		stat := c.conn.ConnectionState()
		statStr += ":" + GetVersionName(stat.Version)
		statStr += ":" + GetCipherName(stat.CipherSuite)
		if stat.DidResume {
			statStr += ":ssl_r=1"
		} else {
			statStr += ":ssl_r=0"
		}
	}
	return statStr
}

func (c *TlsConn) GetTLSVersion() string {
	if c.conn != nil {
		return GetVersionName(c.conn.ConnectionState().Version)
	}
	return "none"
}

func GetVersionName(ver uint16) string {
	switch ver {
	case tls.VersionTLS10:
		return "TLSv1"
	case tls.VersionTLS11:
		return "TLSv1.1"
	case tls.VersionTLS12:
		return "TLSv1.2"
	case tls.VersionTLS13:
		return "TLSv1.3"
	default:
		return fmt.Sprintf("0x%04X", ver)
	}
}

func (c *TlsConn) GetCipherName() string {
	if c.conn != nil {
		return GetCipherName(c.conn.ConnectionState().CipherSuite)
	}
	return "none"
}

func GetCipherName(cipher uint16) string {
	return tls.CipherSuiteName(cipher)
}

func (c *TlsConn) DidResume() string {
	if c.conn != nil && c.conn.ConnectionState().DidResume {
		return "Yes"
	}
	return "No"
}

func (c *TlsConn) GetNetConn() net.Conn {
	return c.conn
}
