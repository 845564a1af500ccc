package main

import (
	"context"
	"os"
)

// main hands off to the cobra command tree. Wiring lives in app.go; business
// logic lives in internal packages.
func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
