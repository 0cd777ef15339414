package git

import (
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

var (
	// ErrRepositoryNil is returned when an operation receives an empty RepositoryInfo
	ErrRepositoryNil = errors.New("repository is nil")
	// ErrTooManyFiles is returned when a clone exceeds the configured file count
	ErrTooManyFiles = errors.New("repository exceeds maximum file count")
	// ErrTooLarge is returned when a clone exceeds the configured total size
	ErrTooLarge = errors.New("repository exceeds maximum total size")
)

// IsAuthError reports whether err was caused by missing or rejected credentials.
func IsAuthError(err error) bool {
	return errors.Is(err, transport.ErrAuthenticationRequired) ||
		errors.Is(err, transport.ErrAuthorizationFailed) ||
		errors.Is(err, transport.ErrInvalidAuthMethod)
}

// IsNotFound reports whether err means the repository or the branch does not exist
// on the remote. Retrying such errors is pointless.
func IsNotFound(err error) bool {
	if errors.Is(err, transport.ErrRepositoryNotFound) ||
		errors.Is(err, transport.ErrEmptyRemoteRepository) ||
		errors.Is(err, plumbing.ErrReferenceNotFound) {
		return true
	}
	var refSpecErr git.NoMatchingRefSpecError
	return errors.As(err, &refSpecErr)
}

// IsLimitError reports whether err was raised by the clone size limits.
func IsLimitError(err error) bool {
	return errors.Is(err, ErrTooManyFiles) || errors.Is(err, ErrTooLarge)
}
