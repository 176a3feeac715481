package snapshot

import (
	"context"
	"errors"
	"net"
)

// ErrUnsupportedPlatform is returned by Kernel on systems without a kernel
// route table reader.
var ErrUnsupportedPlatform = errors.New("reading the kernel route table is not supported on this platform")

// interfaceName resolves an interface index to its name.
// Variable for mocking in tests.
var interfaceName = func(index int) (string, error) {
	ifi, err := net.InterfaceByIndex(index)
	if err != nil {
		return "", err
	}
	return ifi.Name, nil
}

// Kernel reads the route table from the kernel and renders it in the
// netstat format of the running system.
type Kernel struct{}

func (Kernel) Name() string { return "kernel" }

func (Kernel) Snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return renderKernel(ctx)
}
