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
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"tspclient/pkg/errors"
)

type CipherMode string

const (
	// AES-128-CBC over the body after the random prefix, IV derived per message
	CipherModeCBC CipherMode = "cbc"
	// AES-128-ECB over the whole body
	CipherModeECB CipherMode = "ecb"
)

const (
	SessionKeySize = 16
	randomSize     = 2
)

// SessionCipher encrypts message bodies with the key handed out at login.
//
// In CBC mode the 2-byte random prefix of the body stays in clear and the IV
// is the first block of SHA-256(salt | random). The salt is fixed for the
// session, so both ends derive the same IV from what they already share.
type SessionCipher struct {
	mode  CipherMode
	block cipher.Block
	salt  []byte
}

// NewSessionCipher uses the first 16 bytes of key.
func NewSessionCipher(mode CipherMode, key []byte, salt []byte) (*SessionCipher, error) {
	if len(key) < SessionKeySize {
		return nil, errors.Wrapf(errors.ErrShortKey, "got %d bytes", len(key))
	}
	switch mode {
	case "":
		mode = CipherModeCBC
	case CipherModeCBC, CipherModeECB:
	default:
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "unknown cipher mode %q", mode)
	}
	block, err := aes.NewCipher(key[:SessionKeySize])
	if err != nil {
		return nil, errors.Wrap(errors.ErrEncryptFailed, err)
	}
	c := &SessionCipher{
		mode:  mode,
		block: block,
		salt:  append([]byte(nil), salt...),
	}
	return c, nil
}

func (c *SessionCipher) Mode() CipherMode {
	return c.mode
}

func (c *SessionCipher) iv(random []byte) []byte {
	h := sha256.New()
	h.Write(c.salt)
	h.Write(random)
	return h.Sum(nil)[:aes.BlockSize]
}

func (c *SessionCipher) Encrypt(body []byte) ([]byte, error) {
	if c.mode == CipherModeECB {
		return c.encryptECB(pkcs7Pad(body)), nil
	}
	if len(body) < randomSize {
		return nil, errors.Wrapf(errors.ErrEncryptFailed, "body of %d bytes has no random prefix", len(body))
	}
	plain := pkcs7Pad(body[randomSize:])
	out := make([]byte, randomSize+len(plain))
	copy(out, body[:randomSize])
	cipher.NewCBCEncrypter(c.block, c.iv(body[:randomSize])).CryptBlocks(out[randomSize:], plain)
	return out, nil
}

func (c *SessionCipher) Decrypt(body []byte) (plain []byte, err error) {
	if c.mode == CipherModeECB {
		if len(body) == 0 || len(body)%aes.BlockSize != 0 {
			return nil, errors.Wrapf(errors.ErrDecryptFailed, "ciphertext of %d bytes", len(body))
		}
		return pkcs7Unpad(c.decryptECB(body))
	}
	enc := len(body) - randomSize
	if enc <= 0 || enc%aes.BlockSize != 0 {
		return nil, errors.Wrapf(errors.ErrDecryptFailed, "ciphertext of %d bytes", len(body))
	}
	buf := make([]byte, len(body))
	copy(buf, body[:randomSize])
	cipher.NewCBCDecrypter(c.block, c.iv(body[:randomSize])).CryptBlocks(buf[randomSize:], body[randomSize:])
	var unpadded []byte
	if unpadded, err = pkcs7Unpad(buf[randomSize:]); err != nil {
		return
	}
	plain = buf[:randomSize+len(unpadded)]
	return
}

func (c *SessionCipher) encryptECB(src []byte) []byte {
	dst := make([]byte, len(src))
	for i := 0; i < len(src); i += aes.BlockSize {
		c.block.Encrypt(dst[i:i+aes.BlockSize], src[i:i+aes.BlockSize])
	}
	return dst
}

func (c *SessionCipher) decryptECB(src []byte) []byte {
	dst := make([]byte, len(src))
	for i := 0; i < len(src); i += aes.BlockSize {
		c.block.Decrypt(dst[i:i+aes.BlockSize], src[i:i+aes.BlockSize])
	}
	return dst
}

func pkcs7Pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.Wrapf(errors.ErrDecryptFailed, "empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, errors.Wrap(errors.ErrDecryptFailed, fmt.Errorf("bad padding %d", n))
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.Wrap(errors.ErrDecryptFailed, fmt.Errorf("bad padding"))
		}
	}
	return data[:len(data)-n], nil
}
