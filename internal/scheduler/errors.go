package scheduler

import "fmt"

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("cycle panicked: %v", e.value)
}

// Stage reports panics as their own stage
func (e *panicError) Stage() string {
	return "panic"
}
