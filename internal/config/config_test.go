package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	flag "github.com/spf13/pflag"

	"github.com/tkjaer/rtq/pkg/route"
)

// parseArgs runs ParseArgs on a fresh flag set with the given command line.
func parseArgs(t *testing.T, cmdline ...string) (Args, error) {
	t.Helper()
	flag.CommandLine = flag.NewFlagSet("test", flag.ContinueOnError)

	oldArgs := os.Args
	os.Args = append([]string{"cmd"}, cmdline...)
	defer func() { os.Args = oldArgs }()

	return ParseArgs()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rtq.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestArgs_SourceName(t *testing.T) {
	tests := []struct {
		name string
		args Args
		want string
	}{
		{
			name: "netstat by default",
			args: Args{},
			want: SourceNetstat,
		},
		{
			name: "kernel",
			args: Args{Kernel: true},
			want: SourceKernel,
		},
		{
			name: "file",
			args: Args{File: "routes.txt"},
			want: SourceFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.args.SourceName(); got != tt.want {
				t.Errorf("SourceName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArgs_Policy(t *testing.T) {
	tests := []struct {
		tieBreak []string
		want     route.Policy
	}{
		{nil, route.DefaultPolicy},
		{[]string{"static", "up"}, route.Policy{route.PreferStatic, route.PreferUp}},
		{[]string{"order"}, route.Policy{route.PreferEarliest}},
		{[]string{"bogus"}, route.DefaultPolicy},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.tieBreak, ","), func(t *testing.T) {
			got := Args{TieBreak: tt.tieBreak}.Policy()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Policy() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func Test_parseLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // default
		{"", slog.LevelInfo},        // default
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := parseLogLevel(tt.level); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestParseArgs_Validation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "no query",
			args:    []string{},
			wantErr: "an address, --interface, --flag or --list is required",
		},
		{
			name:    "both file and kernel",
			args:    []string{"--file", "routes.txt", "--kernel", "192.0.2.1"},
			wantErr: "cannot use both --file and --kernel",
		},
		{
			name:    "both IPv4 and IPv6",
			args:    []string{"-4", "-6", "--list"},
			wantErr: "cannot force both IPv4 and IPv6",
		},
		{
			name:    "both json and format",
			args:    []string{"--json", "--format", "{destination}", "192.0.2.1"},
			wantErr: "cannot use both --json and --format",
		},
		{
			name:    "zero timeout",
			args:    []string{"--timeout", "0s", "192.0.2.1"},
			wantErr: "timeout must be positive",
		},
		{
			name:    "negative watch",
			args:    []string{"--watch=-1s", "--list"},
			wantErr: "watch interval must not be negative",
		},
		{
			name:    "watch stdin",
			args:    []string{"--watch", "10s", "--file", "-", "--list"},
			wantErr: "cannot use --watch when reading the table from stdin",
		},
		{
			name:    "unknown flag",
			args:    []string{"--flag", "Q"},
			wantErr: `unknown route flag "Q"`,
		},
		{
			name:    "unknown tie-break",
			args:    []string{"--tie-break", "up,bogus", "192.0.2.1"},
			wantErr: `unknown tie-break criterion "bogus"`,
		},
		{
			name:    "duplicate tie-break",
			args:    []string{"--tie-break", "up,up", "192.0.2.1"},
			wantErr: `duplicate tie-break criterion "up"`,
		},
		{
			name: "valid address",
			args: []string{"192.0.2.1"},
		},
		{
			name: "valid list",
			args: []string{"-L"},
		},
		{
			name: "valid interface",
			args: []string{"-i", "en0"},
		},
		{
			name: "valid flag name",
			args: []string{"--flag", "gateway"},
		},
		{
			name: "valid watch",
			args: []string{"-w", "30s", "--metrics-file", "rtq.prom", "-L"},
		},
		{
			name: "valid tie-break",
			args: []string{"--tie-break", "static,up", "2001:db8::1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(t, tt.args...)

			if tt.wantErr != "" {
				if err == nil {
					t.Errorf("ParseArgs() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("ParseArgs() error = %v, want %v", err.Error(), tt.wantErr)
				}
			} else if err != nil {
				t.Errorf("ParseArgs() unexpected error: %v", err)
			}
		})
	}
}

func TestParseArgs_Defaults(t *testing.T) {
	args, err := parseArgs(t, "192.0.2.1", "2001:db8::1")
	if err != nil {
		t.Fatalf("ParseArgs() unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"192.0.2.1", "2001:db8::1"}, args.Addresses); diff != "" {
		t.Errorf("Addresses mismatch (-want +got):\n%s", diff)
	}
	if args.SourceName() != SourceNetstat {
		t.Errorf("Default source = %v, want netstat", args.SourceName())
	}
	if args.Timeout != 5*time.Second {
		t.Errorf("Default timeout = %v, want 5s", args.Timeout)
	}
	if args.LogLevel != "warn" {
		t.Errorf("Default log level = %v, want warn", args.LogLevel)
	}
	if args.Json || args.Resolve || args.List {
		t.Error("Output options should be off by default")
	}
	if diff := cmp.Diff(route.DefaultPolicy, args.Policy()); diff != "" {
		t.Errorf("Default policy mismatch (-want +got):\n%s", diff)
	}
}

func TestParseArgs_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
source = "file"
file = "/var/tmp/routes.txt"
netstat_path = "/usr/sbin/netstat"
timeout = "2s"
tie_break = ["static", "order"]
format = "{destination} via {gateway}"
`)

	t.Run("file values", func(t *testing.T) {
		args, err := parseArgs(t, "--config", path, "192.0.2.1")
		if err != nil {
			t.Fatalf("ParseArgs() unexpected error: %v", err)
		}
		want := Args{
			Addresses:   []string{"192.0.2.1"},
			File:        "/var/tmp/routes.txt",
			NetstatPath: "/usr/sbin/netstat",
			Timeout:     2 * time.Second,
			TieBreak:    []string{"static", "order"},
			Format:      "{destination} via {gateway}",
			ConfigFile:  path,
			LogLevel:    "warn",
		}
		if diff := cmp.Diff(want, args); diff != "" {
			t.Errorf("ParseArgs() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("flags win", func(t *testing.T) {
		args, err := parseArgs(t, "--config", path, "--kernel", "--timeout", "1s", "--tie-break", "order", "-J", "192.0.2.1")
		if err != nil {
			t.Fatalf("ParseArgs() unexpected error: %v", err)
		}
		if args.SourceName() != SourceKernel || args.File != "" {
			t.Errorf("SourceName() = %v (file %q), want kernel", args.SourceName(), args.File)
		}
		if args.Timeout != time.Second {
			t.Errorf("Timeout = %v, want 1s", args.Timeout)
		}
		if diff := cmp.Diff([]string{"order"}, args.TieBreak); diff != "" {
			t.Errorf("TieBreak mismatch (-want +got):\n%s", diff)
		}
		if args.Format != "" {
			t.Errorf("Format = %q, want empty with --json", args.Format)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := parseArgs(t, "--config", filepath.Join(t.TempDir(), "nope.toml"), "192.0.2.1")
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("ParseArgs() error = %v, want os.ErrNotExist", err)
		}
	})
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		want       *FileConfig
		wantFields []string
		wantErr    string
	}{
		{
			name:    "empty",
			content: "",
			want:    &FileConfig{},
		},
		{
			name:    "kernel source",
			content: "source = \"kernel\"\ntimeout = \"500ms\"\n",
			want:    &FileConfig{Source: "kernel", Timeout: "500ms"},
		},
		{
			name:       "unknown source",
			content:    `source = "snmp"`,
			wantFields: []string{"source"},
		},
		{
			name:       "file source without file",
			content:    `source = "file"`,
			wantFields: []string{"file"},
		},
		{
			name:       "negative timeout",
			content:    `timeout = "-1s"`,
			wantFields: []string{"timeout"},
		},
		{
			name:       "bad duration and duplicate criteria",
			content:    "timeout = \"soon\"\ntie_break = [\"up\", \"up\"]\n",
			wantFields: []string{"timeout", "tie_break"},
		},
		{
			name:       "unknown criterion",
			content:    `tie_break = ["up", "fastest"]`,
			wantFields: []string{"tie_break[1]"},
		},
		{
			name:    "unknown key",
			content: `colour = "blue"`,
			wantErr: "unknown keys",
		},
		{
			name:    "syntax error",
			content: "source = \n",
			wantErr: "line 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadFile(writeConfig(t, tt.content))

			switch {
			case tt.wantFields != nil:
				var verrs ValidationErrors
				if !errors.As(err, &verrs) {
					t.Fatalf("LoadFile() error = %v, want ValidationErrors", err)
				}
				var fields []string
				for _, e := range verrs {
					fields = append(fields, e.Field)
				}
				if diff := cmp.Diff(tt.wantFields, fields); diff != "" {
					t.Errorf("invalid fields mismatch (-want +got):\n%s", diff)
				}
			case tt.wantErr != "":
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("LoadFile() error = %v, want it to contain %q", err, tt.wantErr)
				}
			default:
				if err != nil {
					t.Fatalf("LoadFile() unexpected error: %v", err)
				}
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("LoadFile() mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	ve := ValidationErrors{
		{Field: "source", Message: "must be one of: netstat kernel file"},
		{Field: "timeout", Message: "must be a positive duration, e.g. 5s"},
	}
	want := "validation failed with 2 error(s):\n" +
		"  1. source: must be one of: netstat kernel file\n" +
		"  2. timeout: must be a positive duration, e.g. 5s"
	if got := ve.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestSetupLogging(t *testing.T) {
	orig := slog.Default()
	defer slog.SetDefault(orig)

	path := filepath.Join(t.TempDir(), "rtq.log")
	f, err := SetupLogging(Args{Log: path, LogLevel: "info"})
	if err != nil {
		t.Fatalf("SetupLogging() error = %v", err)
	}
	if f == nil {
		t.Fatal("SetupLogging() returned no file for --log")
	}

	slog.Debug("Hidden message")
	slog.Info("Route table loaded", "entries", 3)
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.Contains(got, `msg="Route table loaded" entries=3`) {
		t.Errorf("log file = %q, want the info record", got)
	}
	if strings.Contains(got, "Hidden message") {
		t.Errorf("log file = %q, debug record written at info level", got)
	}
}
