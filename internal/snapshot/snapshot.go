// Package snapshot obtains route table text from a file, a string, the
// netstat command or the kernel, and loads it into a route.Table.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/tkjaer/rtq/pkg/netstat"
	"github.com/tkjaer/rtq/pkg/route"
)

// ErrNotUTF8 is returned when a snapshot is not valid UTF-8 text.
var ErrNotUTF8 = errors.New("snapshot is not valid UTF-8")

// Source produces the text of one route table snapshot.
type Source interface {
	Name() string
	Snapshot(ctx context.Context) (string, error)
}

// Static is a snapshot held in memory.
type Static struct {
	Text string
}

func (s Static) Name() string { return "static" }

func (s Static) Snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !utf8.ValidString(s.Text) {
		return "", ErrNotUTF8
	}
	return s.Text, nil
}

// stdin is read by a File source with Path "-".
// Variable for mocking in tests.
var stdin io.Reader = os.Stdin

// File reads a snapshot from a file, or from standard input when Path is "-".
type File struct {
	Path string
}

func (f File) Name() string {
	if f.Path == "-" {
		return "stdin"
	}
	return "file:" + f.Path
}

func (f File) Snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var (
		b   []byte
		err error
	)
	if f.Path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(f.Path)
	}
	if err != nil {
		return "", fmt.Errorf("reading snapshot: %w", err)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%s: %w", f.Name(), ErrNotUTF8)
	}
	return string(b), nil
}

// Load takes a snapshot from src and builds a table from it.
func Load(ctx context.Context, src Source, opts ...route.Option) (*route.Table, *netstat.Result, error) {
	text, err := src.Snapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot from %s: %w", src.Name(), err)
	}
	slog.Debug("Snapshot taken", "source", src.Name(), "bytes", len(text))

	table, res, err := netstat.NewParser(slog.Default()).NewTable(text, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot from %s: %w", src.Name(), err)
	}
	return table, res, nil
}
