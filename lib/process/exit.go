// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"os"
)

// Fatal writes "<binary>: error: err" to stderr and exits with code 1.
func Fatal(binary string, err error) {
	report(os.Stderr, binary, err)
	os.Exit(1)
}

func report(w io.Writer, binary string, err error) {
	fmt.Fprintf(w, "%s: error: %v\n", binary, err)
}
