package safego

import (
	"testing"
	"time"
)

func waitOrFail(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s did not finish within 2s", what)
	}
}

func TestGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go("test-runner", func() { close(done) })
	waitOrFail(t, done, "goroutine")
}

func TestGo_PanicDoesNotCrashProcess(t *testing.T) {
	done := make(chan struct{})
	Go("panicky-sweeper", func() {
		defer close(done)
		panic("simulated sweeper failure")
	})
	waitOrFail(t, done, "panicking goroutine")
}

func TestGo_LaunchesConcurrently(t *testing.T) {
	// Go must return before fn runs to completion.
	release := make(chan struct{})
	done := make(chan struct{})
	Go("blocker", func() {
		<-release
		close(done)
	})
	close(release)
	waitOrFail(t, done, "blocked goroutine")
}
