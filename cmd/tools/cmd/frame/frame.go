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

// Package frame provides the tspcli frame command, which encodes a request
// frame from command line options or decodes a hex frame.
package frame

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tspclient/pkg/cmd"
	"tspclient/pkg/errors"
	"tspclient/pkg/proto"
	"tspclient/pkg/util"
)

type cmdFrameT struct {
	cmd.Command

	optEncode   bool
	optDecode   bool
	optEscape   bool
	optLongTLV  bool
	optSid      uint
	optMid      uint
	optTuid     string
	optRid      string
	optStatus   uint
	optResponse bool
	optPortVer  uint
	optTLVs     util.StringListFlags
}

func (c *cmdFrameT) Init(name string, desc string) {
	c.Command.Init(name, desc)
	c.BoolOption(&c.optEncode, "e|encode", false, "encode a request frame and print it in hex")
	c.BoolOption(&c.optDecode, "d|decode", false, "decode the hex frame given as argument")
	c.BoolOption(&c.optEscape, "escape", false, "frames are escaped and terminated by 0xFF")
	c.BoolOption(&c.optLongTLV, "long", false, "use 2-byte TLV lengths")
	c.UintOption(&c.optSid, "sid", 5, "service id")
	c.UintOption(&c.optMid, "mid", 200, "message id")
	c.StringOption(&c.optTuid, "tuid", "", "terminal unique id, up to 16 bytes")
	c.StringOption(&c.optRid, "rid", "", "request id, 12 hex digits. generated if not set")
	c.UintOption(&c.optStatus, "status", 0, "status code")
	c.BoolOption(&c.optResponse, "response", false, "clear the ack flag")
	c.UintOption(&c.optPortVer, "port-version", uint(proto.DefaultPortVersion), "port version")
	c.ValueOption(&c.optTLVs, "tlv", "<type>=<value>. repeatable. a value starting with 0x is hex, otherwise the bytes of the string")
	c.SetSynopsis("-encode [-sid n] [-mid n] [-tlv type=value]... | -decode <hex>")
	c.AddExample(name+" -encode -sid 5 -mid 200 -tuid TUID000000000001 -tlv 4011=LSVAU2180N2183294", "encode a login request")
	c.AddExample(name+" -decode CA00C8000001...", "decode a frame")
}

func (c *cmdFrameT) Parse(args []string) (err error) {
	if err = c.Command.Parse(args); err != nil {
		return
	}
	if c.optEncode == c.optDecode {
		return fmt.Errorf("one of -encode and -decode expected")
	}
	if c.optDecode && c.NArg() != 1 {
		return fmt.Errorf("one hex frame argument expected")
	}
	if c.optSid > 0xFF || c.optMid > 0xFF {
		return fmt.Errorf("sid and mid must fit in a byte")
	}
	return
}

func (c *cmdFrameT) Exec() {
	var err error
	if c.optEncode {
		var frame []byte
		if frame, err = c.encode(); err == nil {
			fmt.Fprintln(c.Out(), util.ToHexString(frame))
		}
	} else {
		var raw []byte
		if raw, err = hex.DecodeString(strings.TrimSpace(c.Arg(0))); err == nil {
			err = decode(c.Out(), raw, c.optEscape, !c.optLongTLV)
		}
	}
	if err != nil {
		fmt.Fprintf(c.Out(), "* %s\n", err)
	}
}

func (c *cmdFrameT) encode() ([]byte, error) {
	rid := proto.NewRequestId()
	if c.optRid != "" {
		b, err := hex.DecodeString(c.optRid)
		if err != nil {
			return nil, err
		}
		if err = rid.SetFromBytes(b); err != nil {
			return nil, err
		}
	}
	h := proto.NewRequestHeader(uint16(c.optPortVer), proto.TuidFromString(c.optTuid), rid)
	h.StatusCode = proto.StatusCode(c.optStatus)
	if c.optResponse {
		h.AckFlag = proto.AckFlagResponse
	}
	body := proto.MessageBody{Sid: uint8(c.optSid), Mid: uint8(c.optMid)}
	for _, s := range c.optTLVs {
		tlv, err := parseTLV(s, !c.optLongTLV)
		if err != nil {
			return nil, err
		}
		body.Add(tlv)
	}
	raw, err := body.Encode()
	if err != nil {
		return nil, err
	}
	frame, err := proto.EncodeFrame(&h, raw)
	if err != nil {
		return nil, err
	}
	if c.optEscape {
		frame = proto.EscapeFrame(frame)
	}
	return frame, nil
}

// parseTLV parses "<type>=<value>".
func parseTLV(s string, short bool) (tlv proto.TLV, err error) {
	i := strings.IndexByte(s, '=')
	if i <= 0 {
		err = errors.Wrapf(errors.ErrInvalidConfig, "tlv %q: <type>=<value> expected", s)
		return
	}
	var typ uint64
	if typ, err = strconv.ParseUint(s[:i], 10, 16); err != nil {
		err = errors.Wrapf(errors.ErrInvalidConfig, "tlv %q: %s", s, err)
		return
	}
	value := []byte(s[i+1:])
	if strings.HasPrefix(s[i+1:], "0x") {
		if value, err = hex.DecodeString(s[i+3:]); err != nil {
			err = errors.Wrapf(errors.ErrInvalidConfig, "tlv %q: %s", s, err)
			return
		}
	}
	if short {
		tlv = proto.NewShortTLV(uint16(typ), value)
	} else {
		tlv = proto.NewLongTLV(uint16(typ), value)
	}
	return
}

func decode(w io.Writer, raw []byte, escaped bool, shortTLV bool) (err error) {
	if escaped {
		if raw, err = proto.UnescapeFrame(raw); err != nil {
			return
		}
	}
	h, body, err := proto.SplitFrame(raw)
	if err != nil {
		return
	}
	h.PrettyPrint(w)
	if h.IsEncrypted() {
		fmt.Fprintln(w, "Body: (encrypted)")
		util.HexDump(w, body)
		return
	}
	var b proto.MessageBody
	if err = b.Decode(body, shortTLV); err != nil {
		util.HexDump(w, body)
		return
	}
	b.PrettyPrint(w)
	return
}

func init() {
	c := &cmdFrameT{}
	c.Init("frame", "encode or decode a TSP frame")
	cmd.Register(c)
}
