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

/*
Package proto implements the TSP wire protocol.

TSP Message

A message on the stream looks like

  +------------------------+------------------------------------------------------------+
  | 30-byte message header |                    message body                            |
  |                        +-------------+-----+-----+----------------------------------+
  |                        | random (2)  | sid | mid | TLV | TLV | ...                  |
  +------------------------+-------------+-----+-----+----------------------------------+

Message Header

        |0|1|2|3|4|5|6|7|0|1|2|3|4|5|6|7|0|1|2|3|4|5|6|7|0|1|2|3|4|5|6|7|
   byte |              0|              1|              2|              3|
  ------+---------------+-------------------------------+---------------+
      0 | link header   | port version                  | status code   |
  ------+---------------+-------------------------------+---------------+
      4 | ack flag      | request id (6 bytes)                          |
  ------+---------------+                               +---------------+
      8 |                                               |               |
  ------+-----------------------------------------------+               |
     12 |                     tuid (16 bytes)                           |
    ... |                                                               |
     24 |                                               +---------------+
        |                                               | encrypt flag  |
  ------+-------------------------------+---------------+---------------+
     28 | body length                   |
  ------+-------------------------------+

  link header:
    202
  ack flag:
    1 request
    0 response
  encrypt flag:
    0 plain body
    1 AES encrypted body, body length is the encrypted length

  All multi-byte fields are big-endian.

IPC Header

Messages relayed to and from the local application carry an 11-byte header
instead, without link header, port version and tuid:

  status code(1) ack flag(1) request id(6) encrypt flag(1) body length(2)

TLV

  type(2) length(1 or 2) value(length)

The width of the length field is a convention of the call site and is the
same for every TLV of one message body. Login, logout and heartbeat bodies use
the 1-byte form.

Escaping

Some deployments escape every byte after the link header that collides with
a framing marker (202, 87, 255, 0x3D) as 0x3D followed by the byte XOR 0x3D,
and terminate the frame with 0xFF.
*/
package proto
