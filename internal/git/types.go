package git

import (
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
)

// CloneConfig contains configuration for cloning a repository
type CloneConfig struct {
	// URL is the repository URL to clone
	URL string

	// Branch is the branch to clone. The remote HEAD is used when empty.
	Branch string

	// Proxy is an optional proxy URL used for the clone transport
	Proxy string
}

// RepositoryInfo contains information about a cloned repository
type RepositoryInfo struct {
	// Repository is the go-git repository instance
	Repository *git.Repository

	// Branch is the checked out branch name
	Branch string

	// RemoteURL is the remote repository URL
	RemoteURL string

	// Commit is the hash of the checked out HEAD commit
	Commit string

	// storerFilesystem holds the in-memory object database. It has to be cleared
	// explicitly in Cleanup since go-git keeps references to it.
	storerFilesystem billy.Filesystem

	// objectCache holds decompressed objects and is cleared in Cleanup.
	objectCache cache.Object
}
