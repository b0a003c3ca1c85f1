// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"testing"
)

func TestReport(t *testing.T) {
	var buffer bytes.Buffer
	report(&buffer, "rendezvous-relay", errors.New("listen tcp :8080: address already in use"))
	want := "rendezvous-relay: error: listen tcp :8080: address already in use\n"
	if buffer.String() != want {
		t.Errorf("report wrote %q, want %q", buffer.String(), want)
	}
}
