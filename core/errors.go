package core

import "errors"

// Error kinds. Components wrap these with fmt.Errorf("...: %w", Err...) so
// callers can branch with errors.Is instead of matching message text.
var (
	ErrValidation           = errors.New("validation error")
	ErrUnsupportedMessage   = errors.New("unsupported message")
	ErrToolNotFound         = errors.New("tool not found")
	ErrToolExecution        = errors.New("tool execution failed")
	ErrCircularDependency   = errors.New("circular dependency")
	ErrSubtaskCountExceeded = errors.New("subtask count exceeded")
	ErrParse                = errors.New("parse error")
	ErrProvider             = errors.New("provider error")
	ErrRateLimited          = errors.New("rate limited")
	ErrMalformedOutput      = errors.New("malformed output")
	ErrTimeout              = errors.New("timeout")
	ErrDuplicateID          = errors.New("duplicate id")
	ErrNotFound             = errors.New("not found")
	ErrAlreadyInitialized   = errors.New("already initialized")
	ErrNotReady             = errors.New("not ready")
	ErrNoAgentsAvailable    = errors.New("no agents available")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)
