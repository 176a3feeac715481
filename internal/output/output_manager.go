package output

import (
	"context"
	"errors"
	"net/netip"

	"github.com/tkjaer/rtq/pkg/route"
)

// Output interface for different output types
type Output interface {
	// Entries prints a listing of route entries.
	Entries(ctx context.Context, entries []route.Entry) error
	// Lookup prints the entry chosen for query, or that none matched.
	Lookup(ctx context.Context, query netip.Addr, e route.Entry, found bool) error
	Close() error
}

// OutputManager manages multiple outputs
type OutputManager struct {
	outputs []Output
}

func (om *OutputManager) Register(o Output) {
	om.outputs = append(om.outputs, o)
}

func (om *OutputManager) Entries(ctx context.Context, entries []route.Entry) error {
	var errs []error
	for _, o := range om.outputs {
		errs = append(errs, o.Entries(ctx, entries))
	}
	return errors.Join(errs...)
}

func (om *OutputManager) Lookup(ctx context.Context, query netip.Addr, e route.Entry, found bool) error {
	var errs []error
	for _, o := range om.outputs {
		errs = append(errs, o.Lookup(ctx, query, e, found))
	}
	return errors.Join(errs...)
}

func (om *OutputManager) Close() error {
	var errs []error
	for _, o := range om.outputs {
		errs = append(errs, o.Close())
	}
	return errors.Join(errs...)
}
