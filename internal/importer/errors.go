package importer

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection is returned when a source cannot be reached or is unavailable
	ErrConnection = errors.New("source connection failed")
	// ErrAuth is returned when a source rejects the configured credentials
	ErrAuth = errors.New("source authentication failed")
	// ErrModuleNotFound is returned when a module does not exist at the source
	ErrModuleNotFound = errors.New("module not found")
	// ErrInsecureSource is returned when secure only mode rejects a source address
	ErrInsecureSource = errors.New("insecure source rejected")
	// ErrUnsafePath is returned when a fetched path would escape the module directory
	ErrUnsafePath = errors.New("unsafe module path")
)

// ModuleNotFoundError identifies the module that could not be found
type ModuleNotFoundError struct {
	Source string
	Module string
	// Reason is an optional detail, e.g. that the module is not bound to the source
	Reason string
}

func (e *ModuleNotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("module %q not found in source %q: %s", e.Module, e.Source, e.Reason)
	}
	return fmt.Sprintf("module %q not found in source %q", e.Module, e.Source)
}

// Is makes errors.Is(err, ErrModuleNotFound) match
func (*ModuleNotFoundError) Is(target error) bool {
	return target == ErrModuleNotFound
}

// IsSourceFailure reports whether err means the whole source is unusable, so
// that no further modules should be requested from it
func IsSourceFailure(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrAuth) || errors.Is(err, ErrInsecureSource)
}

func notBound(source, module string) error {
	return &ModuleNotFoundError{Source: source, Module: module, Reason: "module is not declared by the source"}
}
