package git

import "context"

// RepositoryProvider defines the repository queries warden needs.
type RepositoryProvider interface {
	// CurrentBranch returns the checked-out branch name, or "HEAD" when detached.
	CurrentBranch(ctx context.Context, dir string) (string, error)
}
