package pkgbuild

import "errors"

// Sentinel domain errors classifying state-machine failures. Always wrapped
// with package name and captured output at the call site.
var (
	ErrUnpack             = errors.New("gobn: unpack error")
	ErrMake               = errors.New("gobn: make error")
	ErrLink               = errors.New("gobn: link error")
	ErrDependencyNotReady = errors.New("gobn: dependency not ready")
)
