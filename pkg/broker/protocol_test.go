/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package broker

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nettestlab/devicebroker/pkg/models"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	req := models.Request{Command: "execute", Hostname: "sw1", Cmd: "show version"}
	require.NoError(t, WriteFrame(&buf, &req))

	payload, err := ReadFrame(&buf)
	require.NoError(t, err)

	var decoded models.Request
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, req, decoded)
}

func TestReadFrameEmpty(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0})

	_, err := ReadFrame(buf)
	assert.ErrorIs(t, err, errEmptyFrame)
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer

	var header [4]byte

	binary.BigEndian.PutUint32(header[:], 10)
	buf.Write(header[:])
	buf.WriteString("short")

	_, err := ReadFrame(&buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadFrameOversizeDrainsStream(t *testing.T) {
	var buf bytes.Buffer

	oversize := MaxFrameSize + 1

	var header [4]byte

	binary.BigEndian.PutUint32(header[:], uint32(oversize))
	buf.Write(header[:])
	buf.Write(make([]byte, oversize))

	// A well-formed frame follows the oversize one.
	require.NoError(t, WriteFrame(&buf, "pong"))

	_, err := ReadFrame(&buf)
	assert.ErrorIs(t, err, errFrameTooLarge)

	// The oversize payload must have been consumed so the next frame
	// parses cleanly.
	payload, err := ReadFrame(&buf)
	require.NoError(t, err)

	var result string
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.Equal(t, "pong", result)
}

func TestDecodeRequestMapsKinds(t *testing.T) {
	tests := []struct {
		command string
		kind    models.RequestKind
	}{
		{"ping", models.RequestPing},
		{"connect", models.RequestConnect},
		{"execute", models.RequestExecute},
		{"disconnect", models.RequestDisconnect},
		{"status", models.RequestStatus},
		{"reboot", models.RequestUnknown},
		{"", models.RequestUnknown},
	}

	for _, tt := range tests {
		payload, err := json.Marshal(models.Request{Command: tt.command})
		require.NoError(t, err)

		_, kind, err := DecodeRequest(payload)
		require.NoError(t, err)
		assert.Equal(t, tt.kind, kind, "command %q", tt.command)
	}
}

func TestDecodeRequestMalformed(t *testing.T) {
	_, _, err := DecodeRequest([]byte("not json at all"))
	assert.Error(t, err)
}
