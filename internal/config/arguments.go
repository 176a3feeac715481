package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/tkjaer/rtq/internal/version"
	"github.com/tkjaer/rtq/pkg/route"
)

// Route table sources.
const (
	SourceNetstat = "netstat"
	SourceKernel  = "kernel"
	SourceFile    = "file"
)

type Args struct {
	Addresses []string

	// Source
	File        string // route table text file, "-" for stdin
	Kernel      bool   // render the kernel table instead of running netstat
	NetstatPath string
	Timeout     time.Duration
	Watch       time.Duration // repeat interval, 0 means run once

	// Queries
	Interface string
	Flag      string
	List      bool
	ForceIPv4 bool
	ForceIPv6 bool

	// Output
	Format  string // fasttemplate line format, empty means aligned text
	Json    bool   // output json to stdout
	Resolve bool   // add PTR names for gateways

	// Resolution
	TieBreak []string

	ConfigFile  string
	MetricsFile string

	// Logging
	Log      string // log file path, empty means no logging
	LogLevel string // log level: debug, info, warn, error
}

func ParseArgs() (Args, error) {
	var args Args
	var showVersion bool

	flag.Usage = func() {
		println("RTQ - Route Table Query")
		println()
		println("Parses a netstat -rn style route table and resolves addresses against it.")
		println()
		println("Usage:")
		println("  rtq [OPTIONS] [ADDRESS...]")
		println()
		println("Examples:")
		println("  rtq 8.8.8.8                          # Route used for 8.8.8.8")
		println("  rtq -L                               # List every route")
		println("  rtq -f routes.txt -J 10.1.2.3        # Resolve against a saved table, JSON output")
		println("  netstat -rn | rtq -f - -i en0        # Routes on en0 from stdin")
		println("  rtq -w 30s --metrics-file rtq.prom -L # Export table metrics every 30s")
		println()
		println("Options:")
		flag.PrintDefaults()
		println()
		println("Documentation: https://github.com/tkjaer/rtq")
		println("Report issues: https://github.com/tkjaer/rtq/issues")
	}

	flag.BoolVarP(&showVersion, "version", "v", false, "Show version information")
	flag.StringVarP(&args.File, "file", "f", "", "Read the route table from a file (- = stdin)")
	flag.BoolVarP(&args.Kernel, "kernel", "k", false, "Read the route table from the kernel instead of netstat")
	flag.StringVar(&args.NetstatPath, "netstat-path", "", "Path to netstat (default: looked up in PATH)")
	flag.DurationVarP(&args.Timeout, "timeout", "t", 5*time.Second, "Timeout for reading the route table")
	flag.DurationVarP(&args.Watch, "watch", "w", 0, "Reload the table and repeat the queries at this interval (0 = once)")
	flag.StringVarP(&args.Interface, "interface", "i", "", "List routes using this interface")
	flag.StringVarP(&args.Flag, "flag", "F", "", "List routes carrying this flag (character or name)")
	flag.BoolVarP(&args.List, "list", "L", false, "List all routes")
	flag.BoolVarP(&args.ForceIPv4, "ipv4", "4", false, "Only IPv4 routes")
	flag.BoolVarP(&args.ForceIPv6, "ipv6", "6", false, "Only IPv6 routes")
	flag.StringVar(&args.Format, "format", "", "Line template, e.g. '{destination} via {gateway} dev {interface}'")
	flag.BoolVarP(&args.Json, "json", "J", false, "Write JSON output to stdout")
	flag.BoolVarP(&args.Resolve, "resolve", "r", false, "Resolve gateway addresses to hostnames")
	flag.StringSliceVar(&args.TieBreak, "tie-break", nil, "Tie-break order for equal prefixes: up,static,order (default up,static,order)")
	flag.StringVarP(&args.ConfigFile, "config", "c", "", "TOML configuration file")
	flag.StringVar(&args.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	flag.StringVarP(&args.Log, "log", "l", "", "Diagnostic log file (empty = stderr)")
	flag.StringVar(&args.LogLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	if showVersion {
		fmt.Println(version.FullVersion())
		os.Exit(0)
	}

	args.Addresses = flag.Args()

	if args.ConfigFile != "" {
		fc, err := LoadFile(args.ConfigFile)
		if err != nil {
			return args, err
		}
		args.apply(fc, flag.CommandLine.Changed)
	}

	switch {
	case args.File != "" && args.Kernel:
		return args, errors.New("cannot use both --file and --kernel")
	case args.ForceIPv4 && args.ForceIPv6:
		return args, errors.New("cannot force both IPv4 and IPv6")
	case args.Json && args.Format != "":
		return args, errors.New("cannot use both --json and --format")
	case args.Timeout <= 0:
		return args, errors.New("timeout must be positive")
	case args.Watch < 0:
		return args, errors.New("watch interval must not be negative")
	case args.Watch > 0 && args.File == "-":
		return args, errors.New("cannot use --watch when reading the table from stdin")
	case len(args.Addresses) == 0 && args.Interface == "" && args.Flag == "" && !args.List:
		return args, errors.New("an address, --interface, --flag or --list is required")
	}
	if args.Flag != "" {
		if _, ok := route.FlagByName(args.Flag); !ok {
			return args, fmt.Errorf("unknown route flag %q", args.Flag)
		}
	}
	if _, err := route.ParsePolicy(args.TieBreak); err != nil {
		return args, err
	}

	return args, nil
}

// apply copies file values into settings the command line left alone.
func (a *Args) apply(fc *FileConfig, changed func(string) bool) {
	if !changed("file") && !changed("kernel") {
		switch fc.Source {
		case SourceKernel:
			a.Kernel = true
		case SourceFile:
			a.File = fc.File
		}
	}
	if !changed("netstat-path") && fc.NetstatPath != "" {
		a.NetstatPath = fc.NetstatPath
	}
	if !changed("timeout") && fc.Timeout != "" {
		// validated by LoadFile
		a.Timeout, _ = time.ParseDuration(fc.Timeout)
	}
	if !changed("tie-break") && len(fc.TieBreak) > 0 {
		a.TieBreak = fc.TieBreak
	}
	if !changed("format") && !changed("json") && fc.Format != "" {
		a.Format = fc.Format
	}
}

// SourceName returns the route table source selected by the arguments.
func (a Args) SourceName() string {
	switch {
	case a.File != "":
		return SourceFile
	case a.Kernel:
		return SourceKernel
	}
	return SourceNetstat
}

// Policy returns the tie-break policy, falling back to the default order.
func (a Args) Policy() route.Policy {
	p, err := route.ParsePolicy(a.TieBreak)
	if err != nil || len(p) == 0 {
		return route.DefaultPolicy
	}
	return p
}
