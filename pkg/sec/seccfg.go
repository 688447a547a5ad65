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
	"fmt"
	"io"
	"os"

	"tspclient/pkg/errors"
)

var (
	DefaultConfig = Config{
		CipherMode: CipherModeCBC,
	}
)

// Config holds the TLS material for the TSP connection and the session
// cipher selection.
type Config struct {
	SupportTLS      bool
	CAFilePath      string
	CertPemFilePath string
	KeyPemFilePath  string
	// overrides the host name checked against the server certificate
	ServerName         string
	InsecureSkipVerify bool
	// public key file digested into the login signature
	PublicKeyFilePath string
	CipherMode        CipherMode
}

func (c *Config) SetDefaultIfNotDefined() {
	if c.CipherMode == "" {
		c.CipherMode = DefaultConfig.CipherMode
	}
}

func (c *Config) Validate() error {
	switch c.CipherMode {
	case CipherModeCBC, CipherModeECB:
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown cipher mode %q", c.CipherMode)
	}
	if !c.SupportTLS {
		return nil
	}
	if (c.CertPemFilePath == "") != (c.KeyPemFilePath == "") {
		return errors.Wrapf(errors.ErrInvalidConfig, "client cert and key must be configured together")
	}
	for _, path := range []string{c.CAFilePath, c.CertPemFilePath, c.KeyPemFilePath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return errors.Wrap(errors.ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c *Config) Dump(w io.Writer) {
	fmt.Fprintf(w, "SupportTLS      : %v\n", c.SupportTLS)
	if c.SupportTLS {
		fmt.Fprintf(w, "CAFilePath      : %s\n", c.CAFilePath)
		fmt.Fprintf(w, "CertPemFilePath : %s\n", c.CertPemFilePath)
		fmt.Fprintf(w, "KeyPemFilePath  : %s\n", c.KeyPemFilePath)
		fmt.Fprintf(w, "ServerName      : %s\n", c.ServerName)
	}
	fmt.Fprintf(w, "CipherMode      : %s\n", c.CipherMode)
}
