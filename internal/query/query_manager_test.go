package query

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tkjaer/rtq/internal/config"
	"github.com/tkjaer/rtq/internal/output"
	"github.com/tkjaer/rtq/internal/snapshot"
)

const darwinTable = `Routing tables

Internet:
Destination        Gateway            Flags               Netif Expire
default            192.168.1.1        UGScg                 en0
default            10.8.0.1           UGScIg              utun3
10.8.0/24          10.8.0.1           UGSc                utun3
192.168.1          link#4             UCS                   en0      !
192.168.1.1/32     link#4             UCS                   en0      !
10.0.0.0/8         192.168.1.254      UGS

Internet6:
Destination                             Gateway                                 Flags               Netif Expire
default                                 fe80::1%en0                             UGcg                  en0
fe80::%en0/64                           link#4                                  UCI                   en0
`

func writeTable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routes.txt")
	if err := os.WriteFile(path, []byte(darwinTable), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// captureOutput replaces the outputs of qm with a template writing to a
// buffer.
func captureOutput(t *testing.T, qm *QueryManager, format string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	tmpl, err := output.NewTemplateOutput(&buf, format, nil)
	if err != nil {
		t.Fatalf("NewTemplateOutput() error = %v", err)
	}
	qm.out = &output.OutputManager{}
	qm.out.Register(tmpl)
	return &buf
}

func TestNewQueryManager(t *testing.T) {
	tests := []struct {
		name       string
		args       config.Args
		wantErr    string
		wantSource string
	}{
		{
			name:       "netstat",
			args:       config.Args{Addresses: []string{"192.0.2.1"}},
			wantSource: "netstat",
		},
		{
			name:       "kernel",
			args:       config.Args{Kernel: true, List: true},
			wantSource: "kernel",
		},
		{
			name:       "file",
			args:       config.Args{File: "routes.txt", List: true},
			wantSource: "file:routes.txt",
		},
		{
			name:    "invalid address",
			args:    config.Args{Addresses: []string{"192.0.2.300"}},
			wantErr: `invalid address "192.0.2.300"`,
		},
		{
			name:    "family mismatch",
			args:    config.Args{Addresses: []string{"2001:db8::1"}, ForceIPv4: true},
			wantErr: "address 2001:db8::1 is not IPv4",
		},
		{
			name:    "unknown flag",
			args:    config.Args{Flag: "Q"},
			wantErr: `unknown route flag "Q"`,
		},
		{
			name:    "bad format",
			args:    config.Args{List: true, Format: "{nexthop}"},
			wantErr: "invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qm, err := NewQueryManager(tt.args)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("NewQueryManager() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewQueryManager() error = %v", err)
			}
			if got := qm.src.Name(); got != tt.wantSource {
				t.Errorf("source = %q, want %q", got, tt.wantSource)
			}
		})
	}
}

func TestQueryManager_Lookups(t *testing.T) {
	metricsFile := filepath.Join(t.TempDir(), "rtq.prom")
	qm, err := NewQueryManager(config.Args{
		File:        writeTable(t),
		Addresses:   []string{"192.168.1.1", "192.168.1.77", "10.8.0.9", "8.8.8.8", "2001:db8::1", "fe80::5%en0"},
		Timeout:     time.Second,
		MetricsFile: metricsFile,
	})
	if err != nil {
		t.Fatalf("NewQueryManager() error = %v", err)
	}
	buf := captureOutput(t, qm, "{query} {destination} {gateway} {interface}")

	if err := qm.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{
		"192.168.1.1 192.168.1.1/32 link#4 en0",
		"192.168.1.77 192.168.1.0/24 link#4 en0",
		"10.8.0.9 10.8.0.0/24 10.8.0.1 utun3",
		"8.8.8.8 0.0.0.0/0 192.168.1.1 en0",
		"2001:db8::1 ::/0 fe80::1%en0 en0",
		"fe80::5%en0 fe80::/64 link#4 en0",
	}
	if diff := cmp.Diff(want, strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")); diff != "" {
		t.Errorf("Run() output mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(data), `rtq_lookups_total{family="IPv4",result="default"} 1`) {
		t.Errorf("metrics file missing the default lookup:\n%s", data)
	}
	if !strings.Contains(string(data), `rtq_skipped_lines{reason="short_row"`) {
		t.Errorf("metrics file missing the short row:\n%s", data)
	}
}

func TestQueryManager_Listing(t *testing.T) {
	path := writeTable(t)

	tests := []struct {
		name string
		args config.Args
		want []string
	}{
		{
			name: "all",
			args: config.Args{List: true},
			want: []string{"0.0.0.0/0", "0.0.0.0/0", "10.8.0.0/24", "192.168.1.0/24", "192.168.1.1/32", "::/0", "fe80::/64"},
		},
		{
			name: "ipv6 only",
			args: config.Args{List: true, ForceIPv6: true},
			want: []string{"::/0", "fe80::/64"},
		},
		{
			name: "interface",
			args: config.Args{Interface: "utun3"},
			want: []string{"0.0.0.0/0", "10.8.0.0/24"},
		},
		{
			name: "flag",
			args: config.Args{Flag: "I"},
			want: []string{"0.0.0.0/0", "fe80::/64"},
		},
		{
			name: "interface and flag",
			args: config.Args{Interface: "en0", Flag: "gateway"},
			want: []string{"0.0.0.0/0", "::/0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args.File = path
			tt.args.Timeout = time.Second
			qm, err := NewQueryManager(tt.args)
			if err != nil {
				t.Fatalf("NewQueryManager() error = %v", err)
			}
			buf := captureOutput(t, qm, "{destination}")

			if err := qm.Run(); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			got := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("listing mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryManager_LoadError(t *testing.T) {
	qm, err := NewQueryManager(config.Args{
		File:      filepath.Join(t.TempDir(), "missing.txt"),
		Addresses: []string{"192.0.2.1"},
		Timeout:   time.Second,
	})
	if err != nil {
		t.Fatalf("NewQueryManager() error = %v", err)
	}
	captureOutput(t, qm, "{query}")

	if err := qm.Run(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Run() error = %v, want os.ErrNotExist", err)
	}
}

func TestQueryManager_Watch(t *testing.T) {
	qm, err := NewQueryManager(config.Args{
		File:      writeTable(t),
		Addresses: []string{"8.8.8.8"},
		Timeout:   time.Second,
		Watch:     10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewQueryManager() error = %v", err)
	}
	buf := captureOutput(t, qm, "{interface}")

	done := make(chan error)
	go func() { done <- qm.Run() }()
	time.Sleep(55 * time.Millisecond)
	qm.Stop()
	qm.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after Stop()")
	}

	if rounds := strings.Count(buf.String(), "en0\n"); rounds < 2 {
		t.Errorf("Run() answered %d rounds, want at least 2", rounds)
	}
}

func TestQueryManager_Refresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.txt")
	writeGateway := func(gw string) {
		t.Helper()
		text := "Internet:\nDestination  Gateway  Flags  Netif\ndefault  " + gw + "  UGS  en0\n"
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeGateway("10.0.0.1")

	qm, err := NewQueryManager(config.Args{
		File:      path,
		Addresses: []string{"8.8.8.8"},
		Timeout:   time.Second,
		Watch:     time.Hour,
	})
	if err != nil {
		t.Fatalf("NewQueryManager() error = %v", err)
	}
	buf := captureOutput(t, qm, "{gateway}")

	rounds := []struct {
		gateway string
		refresh bool
	}{
		{"10.0.0.1", false},
		{"10.0.0.2", false},
		{"10.0.0.3", true},
		{"10.0.0.4", true},
	}
	for _, r := range rounds {
		writeGateway(r.gateway)
		run := qm.runOnce
		if r.refresh {
			run = qm.refresh
		}
		if err := run(t.Context()); err != nil {
			t.Fatalf("round %s error = %v", r.gateway, err)
		}
	}

	// Without a refresh the cached table answers, every refresh reloads.
	want := []string{"10.0.0.1", "10.0.0.1", "10.0.0.3", "10.0.0.4"}
	got := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("gateways per round mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectEntries_Empty(t *testing.T) {
	table, _, err := snapshot.Load(t.Context(), snapshot.Static{Text: darwinTable})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	qm := &QueryManager{netif: "wlan0", list: true}
	if got := qm.selectEntries(table); len(got) != 0 {
		t.Errorf("selectEntries() = %v, want none for an unknown interface", got)
	}
}
