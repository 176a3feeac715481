//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package snapshot

import "context"

func renderKernel(ctx context.Context) (string, error) {
	return "", ErrUnsupportedPlatform
}
