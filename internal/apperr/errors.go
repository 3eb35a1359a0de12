// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrUnknownTool = errors.New("unknown tool")
	ErrClosed      = errors.New("closed")
)
