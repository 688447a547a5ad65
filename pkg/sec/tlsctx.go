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
	"crypto/x509"
	"fmt"
	"os"

	"tspclient/pkg/errors"
)

// NewClientTLSConfig builds the client side TLS configuration. It returns nil
// without error when TLS is not enabled.
//
// The server is verified against the system roots plus the configured CA
// bundle. A client certificate is presented when both cert and key files are
// set.
func NewClientTLSConfig(cfg *Config) (tlscfg *tls.Config, err error) {
	if cfg == nil || !cfg.SupportTLS {
		return
	}
	rootCAs, _ := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}
	if cfg.CAFilePath != "" {
		var caPEMBlock []byte
		if caPEMBlock, err = os.ReadFile(cfg.CAFilePath); err != nil {
			err = errors.Wrap(errors.ErrInvalidConfig, err)
			return
		}
		if !rootCAs.AppendCertsFromPEM(caPEMBlock) {
			err = errors.Wrapf(errors.ErrInvalidConfig, "no certificate found in %s", cfg.CAFilePath)
			return
		}
	}

	tlscfg = &tls.Config{
		RootCAs:                rootCAs,
		ServerName:             cfg.ServerName,
		InsecureSkipVerify:     cfg.InsecureSkipVerify,
		MinVersion:             tls.VersionTLS12,
		SessionTicketsDisabled: false,
		ClientSessionCache:     tls.NewLRUClientSessionCache(0),
	}

	switch {
	case cfg.CertPemFilePath != "" && cfg.KeyPemFilePath != "":
		var cert tls.Certificate
		if cert, err = tls.LoadX509KeyPair(cfg.CertPemFilePath, cfg.KeyPemFilePath); err != nil {
			tlscfg = nil
			err = errors.Wrap(errors.ErrInvalidConfig, err)
			return
		}
		tlscfg.Certificates = []tls.Certificate{cert}
	case cfg.CertPemFilePath != "" || cfg.KeyPemFilePath != "":
		tlscfg = nil
		err = errors.Wrap(errors.ErrInvalidConfig, fmt.Errorf("client cert and key must be configured together"))
	}
	return
}
