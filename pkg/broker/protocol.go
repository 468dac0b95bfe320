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
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/nettestlab/devicebroker/pkg/models"
)

// MaxFrameSize bounds a single wire frame. Command output larger than
// this is not something the broker is built to carry.
const MaxFrameSize = 4 << 20

const frameHeaderSize = 4

var (
	errEmptyFrame    = errors.New("empty frame")
	errFrameTooLarge = errors.New("frame exceeds maximum size")
)

// ReadFrame reads one length-prefixed frame: a 4-byte big-endian length
// followed by that many payload bytes.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte

	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])

	if length == 0 {
		return nil, errEmptyFrame
	}

	if length > MaxFrameSize {
		// Drain the oversize payload so the stream stays framed and the
		// connection can keep serving requests.
		if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %d bytes", errFrameTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// WriteFrame marshals v to JSON and writes it as one length-prefixed
// frame.
func WriteFrame(w io.Writer, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", errFrameTooLarge, len(payload))
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[:frameHeaderSize], uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)

	_, err = w.Write(frame)

	return err
}

// DecodeRequest parses a frame payload into a request and maps its
// command tag onto the closed RequestKind set.
func DecodeRequest(payload []byte) (*models.Request, models.RequestKind, error) {
	var req models.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, models.RequestUnknown, fmt.Errorf("undecodable request: %w", err)
	}

	return &req, models.KindOf(req.Command), nil
}
