package domain

import "errors"

var (
	ErrAlreadyRunning     = errors.New("analysis already running for project")
	ErrRunNotActive       = errors.New("analysis run not active")
	ErrNoRunStarted       = errors.New("no analysis run started")
	ErrRoutineUnavailable = errors.New("analysis routine unavailable")
)
