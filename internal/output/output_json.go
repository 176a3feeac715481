package output

import (
	"context"
	"encoding/json"
	"net/netip"
	"os"
	"sync"

	"github.com/tkjaer/rtq/pkg/route"
)

// JSONOutput writes one JSON object per line to a file or stdout
type JSONOutput struct {
	mu       sync.Mutex
	file     *os.File
	enc      *json.Encoder
	toStdout bool
	resolver Resolver
}

// NewJSONOutput writes to filename, or to stdout when filename is empty.
// r may be nil to skip PTR names.
func NewJSONOutput(filename string, r Resolver) (*JSONOutput, error) {
	if filename == "" {
		return &JSONOutput{
			file:     os.Stdout,
			enc:      json.NewEncoder(os.Stdout),
			toStdout: true,
			resolver: r,
		}, nil
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &JSONOutput{
		file:     f,
		enc:      json.NewEncoder(f),
		toStdout: false,
		resolver: r,
	}, nil
}

func (j *JSONOutput) Entries(ctx context.Context, entries []route.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, e := range entries {
		if err := j.enc.Encode(newRecord(ctx, e, j.resolver)); err != nil {
			return err
		}
	}
	return nil
}

func (j *JSONOutput) Lookup(ctx context.Context, query netip.Addr, e route.Entry, found bool) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.enc.Encode(newLookupResult(ctx, query, e, found, j.resolver))
}

func (j *JSONOutput) Close() error {
	if j.toStdout {
		return nil
	}
	return j.file.Close()
}
