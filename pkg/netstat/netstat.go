// Package netstat parses the text printed by `netstat -rn` (BSD, Darwin and
// Linux net-tools flavours) into route entries.
//
// Parsing is tolerant: rows that cannot be turned into an entry are skipped
// and reported in Result.Skipped, and only input without any recognizable
// section header is rejected.
package netstat

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tkjaer/rtq/pkg/addr"
	"github.com/tkjaer/rtq/pkg/route"
)

// ErrNotRouteTable is returned when the input holds no route table section.
var ErrNotRouteTable = errors.New("input is not a route table: no section header found")

// Reason says why a row was skipped.
type Reason int

const (
	ReasonShortRow Reason = iota + 1
	ReasonMalformedToken
	ReasonMissingInterface
	ReasonRowBeforeSection
	ReasonMissingHeader
	ReasonUnsupportedFamily
	ReasonHostPrefixMismatch
)

func (r Reason) String() string {
	switch r {
	case ReasonShortRow:
		return "short row"
	case ReasonMalformedToken:
		return "malformed token"
	case ReasonMissingInterface:
		return "missing interface"
	case ReasonRowBeforeSection:
		return "row before section"
	case ReasonMissingHeader:
		return "missing header"
	case ReasonUnsupportedFamily:
		return "unsupported family"
	case ReasonHostPrefixMismatch:
		return "host prefix mismatch"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Skip describes one input line that did not produce an entry.
type Skip struct {
	Line   int // 1-based
	Text   string
	Reason Reason
	Err    error
}

func (s Skip) String() string {
	if s.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", s.Line, s.Reason, s.Err)
	}
	return fmt.Sprintf("line %d: %s", s.Line, s.Reason)
}

// Result is the outcome of parsing one snapshot.
type Result struct {
	V4       []route.Entry
	V6       []route.Entry
	Sections int
	Skipped  []Skip
}

// Entries returns the IPv4 entries followed by the IPv6 entries.
func (r *Result) Entries() []route.Entry {
	out := make([]route.Entry, 0, len(r.V4)+len(r.V6))
	out = append(out, r.V4...)
	return append(out, r.V6...)
}

// Discarded returns the number of skipped lines.
func (r *Result) Discarded() int {
	return len(r.Skipped)
}

// SkippedBy counts skipped lines per reason.
func (r *Result) SkippedBy() map[Reason]int {
	m := make(map[Reason]int)
	for _, s := range r.Skipped {
		m[s.Reason]++
	}
	return m
}

// Parser turns route table text into entries.
type Parser struct {
	logger *slog.Logger
}

// NewParser returns a Parser logging to logger, or to slog.Default() when
// logger is nil.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse parses text with a default Parser.
func Parse(text string) (*Result, error) {
	return NewParser(nil).Parse(text)
}

// NewTable parses text with a default Parser and builds a route table.
func NewTable(text string, opts ...route.Option) (*route.Table, *Result, error) {
	return NewParser(nil).NewTable(text, opts...)
}

// NewTable parses text and builds a route table from the entries.
func (p *Parser) NewTable(text string, opts ...route.Option) (*route.Table, *Result, error) {
	res, err := p.Parse(text)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]route.Option{route.WithLogger(p.logger)}, opts...)
	return route.NewTable(res.Entries(), opts...), res, nil
}

// Parse reads the sections of text and returns their entries in input
// order.
func (p *Parser) Parse(text string) (*Result, error) {
	res := &Result{}
	var sec *section

	n := 0
	for raw := range strings.Lines(text) {
		n++
		line := strings.TrimRight(raw, "\r\n")
		fields := strings.Fields(line)
		if len(fields) == 0 || isBanner(fields) {
			continue
		}

		if fam, ok := sectionStart(fields); ok {
			sec = &section{family: fam, line: n}
			res.Sections++
			p.logger.Debug("Route table section", "line", n, "family", fam.String())
			continue
		}

		if sec == nil {
			p.skip(res, n, line, ReasonRowBeforeSection, nil)
			continue
		}

		if sec.awaitingHeader() {
			if err := sec.readHeader(line); err != nil {
				p.skip(res, n, line, ReasonMissingHeader, err)
			}
			continue
		}

		switch {
		case !sec.family.Valid():
			p.skip(res, n, line, ReasonUnsupportedFamily, nil)
			continue
		case sec.dead:
			p.skip(res, n, line, ReasonMissingHeader, nil)
			continue
		}

		e, reason, err := sec.parseRow(fields)
		if reason != 0 {
			p.skip(res, n, line, reason, err)
			continue
		}
		if sec.family == addr.V4 {
			res.V4 = append(res.V4, e)
		} else {
			res.V6 = append(res.V6, e)
		}
	}

	if res.Sections == 0 {
		return nil, ErrNotRouteTable
	}
	p.logger.Debug("Parsed route table",
		"sections", res.Sections,
		"ipv4", len(res.V4),
		"ipv6", len(res.V6),
		"skipped", len(res.Skipped))
	return res, nil
}

func (p *Parser) skip(res *Result, n int, line string, reason Reason, err error) {
	s := Skip{Line: n, Text: line, Reason: reason, Err: err}
	res.Skipped = append(res.Skipped, s)
	p.logger.Debug("Skipping route table line", "line", n, "reason", reason.String(), "err", err)
}
