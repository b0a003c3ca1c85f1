// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessageSize bounds a single signaling frame or JSON response body.
// SDP blobs with a full candidate list stay well under this.
const MaxMessageSize int64 = 1 << 20

// DecodeResponse reads at most MaxMessageSize bytes from body and
// JSON-decodes them into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxMessageSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}
