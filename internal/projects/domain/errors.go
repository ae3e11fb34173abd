package domain

import "errors"

var (
	ErrNotFound = errors.New("project not found")
	ErrCorrupt  = errors.New("project descriptor corrupt")
)
