package netstat

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tkjaer/rtq/pkg/addr"
)

type column int

const (
	colDestination column = iota
	colGateway
	colMask
	colFlags
	colInterface
	colExpire
	colRefs
	colUse
	colMetric
)

var columnAliases = map[string]column{
	"destination": colDestination,
	"gateway":     colGateway,
	"next-hop":    colGateway,
	"genmask":     colMask,
	"netmask":     colMask,
	"mask":        colMask,
	"flags":       colFlags,
	"flag":        colFlags,
	"netif":       colInterface,
	"iface":       colInterface,
	"if":          colInterface,
	"interface":   colInterface,
	"expire":      colExpire,
	"refs":        colRefs,
	"ref":         colRefs,
	"refcnt":      colRefs,
	"use":         colUse,
	"metric":      colMetric,
	"met":         colMetric,
}

// Columns whose presence in a row is mandatory when the header names them.
var positionalColumns = []column{colDestination, colGateway, colMask, colFlags, colInterface}

var (
	errNoDestination = errors.New("header has no destination column")
	errNoInterface   = errors.New("header has no interface column")
	errDuplicate     = errors.New("duplicate column")
)

// section tracks one family block of the input and the column layout its
// header declared.
type section struct {
	family    addr.Family // 0 for a section of an unsupported family
	line      int
	cols      map[column]int
	minTokens int
	dead      bool
}

// isBanner reports whether fields form the "Routing tables" banner line.
func isBanner(fields []string) bool {
	return len(fields) == 2 && strings.EqualFold(fields[0], "routing") && strings.EqualFold(fields[1], "tables")
}

// sectionStart reports whether fields open a new section and of which
// family. A recognized section of an unknown family returns 0, true.
func sectionStart(fields []string) (addr.Family, bool) {
	if len(fields) == 1 {
		switch fields[0] {
		case "Internet:":
			return addr.V4, true
		case "Internet6:":
			return addr.V6, true
		}
		name, ok := strings.CutSuffix(fields[0], ":")
		if ok && isSectionName(name) {
			return 0, true
		}
		return 0, false
	}

	// Linux net-tools: "Kernel IP routing table", "Kernel IPv6 routing table".
	if len(fields) >= 4 && fields[0] == "Kernel" &&
		strings.EqualFold(strings.Join(fields[len(fields)-2:], " "), "routing table") {
		switch strings.Join(fields[1:len(fields)-2], " ") {
		case "IP":
			return addr.V4, true
		case "IPv6":
			return addr.V6, true
		}
		return 0, true
	}
	return 0, false
}

func isSectionName(s string) bool {
	if s == "" || !unicode.IsLetter(rune(s[0])) {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func (s *section) awaitingHeader() bool {
	return s.cols == nil && !s.dead
}

// readHeader maps the column names of a header line to their positions.
// An error marks the section dead; its rows are skipped.
func (s *section) readHeader(line string) error {
	s.cols = map[column]int{}
	if !s.family.Valid() {
		return nil
	}
	line = strings.ReplaceAll(line, "Next Hop", "Next-Hop")
	for i, name := range strings.Fields(line) {
		c, ok := columnAliases[strings.ToLower(name)]
		if !ok {
			continue
		}
		if _, dup := s.cols[c]; dup {
			s.dead = true
			return fmt.Errorf("%w %q", errDuplicate, name)
		}
		s.cols[c] = i
	}

	switch {
	case !s.has(colDestination):
		s.dead = true
		return errNoDestination
	case !s.has(colInterface):
		s.dead = true
		return errNoInterface
	}
	for _, c := range positionalColumns {
		if i, ok := s.cols[c]; ok && i+1 > s.minTokens {
			s.minTokens = i + 1
		}
	}
	return nil
}

func (s *section) has(c column) bool {
	_, ok := s.cols[c]
	return ok
}

// field returns the token of column c in fields, or "" when the header
// lacks the column or the row is too short to carry it.
func (s *section) field(fields []string, c column) string {
	i, ok := s.cols[c]
	if !ok || i >= len(fields) {
		return ""
	}
	return fields[i]
}
