package ports

import (
	"context"
)

// Fetcher acquires a video source and makes it available as a local file.
// Acquisition is an external collaborator concern; failures are propagated
// to the caller as-is.
type Fetcher interface {
	// Fetch downloads or resolves the locator into a local file under destDir
	// and returns its path.
	Fetch(ctx context.Context, locator, destDir string) (string, error)
}
