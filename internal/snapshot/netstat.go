package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"unicode/utf8"
)

// ExitError reports a netstat invocation that exited unsuccessfully.
type ExitError struct {
	Path   string
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s %s exited with status %d", e.Path, strings.Join(e.Args, " "), e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// runCommand runs a command and returns its standard output.
// Variable for mocking in tests.
var runCommand = func(ctx context.Context, path string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	return cmd.Output()
}

// lookPath resolves the netstat binary.
// Variable for mocking in tests.
var lookPath = exec.LookPath

// DefaultInvocations returns the netstat argument lists that print both
// address families on goos.
func DefaultInvocations(goos string) [][]string {
	if goos == "linux" {
		// net-tools prints one family per run.
		return [][]string{{"-rn"}, {"-rn", "-A", "inet6"}}
	}
	return [][]string{{"-rn"}}
}

// Netstat runs the netstat command. An empty Path is looked up in PATH and
// empty Invocations use DefaultInvocations for the running system.
type Netstat struct {
	Path        string
	Invocations [][]string
}

func (n Netstat) Name() string { return "netstat" }

func (n Netstat) Snapshot(ctx context.Context) (string, error) {
	path := n.Path
	if path == "" {
		p, err := lookPath("netstat")
		if err != nil {
			return "", err
		}
		path = p
	}
	invocations := n.Invocations
	if len(invocations) == 0 {
		invocations = DefaultInvocations(runtime.GOOS)
	}

	var b strings.Builder
	for _, args := range invocations {
		out, err := runCommand(ctx, path, args...)
		if err != nil {
			var ee *exec.ExitError
			if errors.As(err, &ee) {
				return "", &ExitError{Path: path, Args: args, Code: ee.ExitCode(), Stderr: strings.TrimSpace(string(ee.Stderr))}
			}
			return "", fmt.Errorf("running %s: %w", path, err)
		}
		if !utf8.Valid(out) {
			return "", fmt.Errorf("%s output: %w", path, ErrNotUTF8)
		}
		b.Write(out)
		if len(out) > 0 && out[len(out)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}
