/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Command quota-server runs an HTTP service that answers per-caller quota decisions
// and guards a demo API with the quota middleware.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
