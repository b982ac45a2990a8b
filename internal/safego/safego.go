// Package safego launches named background goroutines that survive panics.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go runs fn on its own goroutine under a recover guard. The forward-queue
// sweeper and appointment reminder loops run this way: a panic in one of
// them is logged with its name and stack instead of taking the API process
// down or, worse, silently ending the loop with no trace.
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background goroutine panicked",
					"name", name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
