package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownColumn     = errors.New("unknown source column")
	ErrMappingIncomplete = errors.New("mapping incomplete")
)

// UnknownColumnError reports a mapped source column that does not exist in
// the imported layer.
type UnknownColumnError struct {
	Key    string
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown source column %q for attribute %q", e.Column, e.Key)
}

func (e *UnknownColumnError) Is(target error) bool {
	return target == ErrUnknownColumn
}

// IncompleteError lists required canonical attributes left unmapped.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return "mapping incomplete, missing required attributes: " + strings.Join(e.Missing, ", ")
}

func (e *IncompleteError) Is(target error) bool {
	return target == ErrMappingIncomplete
}
