package run

import "errors"

var (
	// ErrProjectNotFound is returned when a run references an unknown
	// project.
	ErrProjectNotFound = errors.New("run: project not found")

	// ErrRunNotFound is returned when a run ID is unknown.
	ErrRunNotFound = errors.New("run: test run not found")

	// ErrRunFinished is returned when cancelling a run that already
	// reached a terminal state.
	ErrRunFinished = errors.New("run: test run already finished")
)
