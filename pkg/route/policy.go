package route

import (
	"fmt"
	"strings"
)

// Criterion ranks two equally specific entries. It returns a negative number
// when a is preferred, positive when b is, and 0 when it cannot decide.
type Criterion int

const (
	PreferUp       Criterion = iota + 1 // entries flagged Up first
	PreferStatic                        // Static before unflagged before Dynamic
	PreferEarliest                      // lower position in the snapshot first
)

var criterionNames = map[Criterion]string{
	PreferUp:       "up",
	PreferStatic:   "static",
	PreferEarliest: "order",
}

func (c Criterion) String() string {
	if n, ok := criterionNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Criterion(%d)", int(c))
}

// Policy is the tie-break order applied among entries with the same prefix
// length. Snapshot position always settles whatever the policy leaves open.
type Policy []Criterion

// DefaultPolicy prefers Up entries, then Static over Dynamic, then the
// earliest entry.
var DefaultPolicy = Policy{PreferUp, PreferStatic, PreferEarliest}

// ParsePolicy builds a Policy from criterion names: "up", "static", "order".
func ParsePolicy(names []string) (Policy, error) {
	p := make(Policy, 0, len(names))
	seen := make(map[Criterion]bool, len(names))
	for _, n := range names {
		var c Criterion
		for k, v := range criterionNames {
			if strings.EqualFold(v, strings.TrimSpace(n)) {
				c = k
			}
		}
		if c == 0 {
			return nil, fmt.Errorf("unknown tie-break criterion %q", n)
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate tie-break criterion %q", n)
		}
		seen[c] = true
		p = append(p, c)
	}
	return p, nil
}

func (p Policy) String() string {
	s := make([]string, len(p))
	for i, c := range p {
		s[i] = c.String()
	}
	return strings.Join(s, ",")
}

func staticRank(f Flag) int {
	switch {
	case f.Has(FlagStatic):
		return 0
	case f.Has(FlagDynamic):
		return 2
	}
	return 1
}

func boolRank(b bool) int {
	if b {
		return 0
	}
	return 1
}

// compare orders the entries at positions i and j of entries.
func (p Policy) compare(entries []Entry, i, j int) int {
	a, b := entries[i].Flags, entries[j].Flags
	for _, c := range p {
		var d int
		switch c {
		case PreferUp:
			d = boolRank(a.Has(FlagUp)) - boolRank(b.Has(FlagUp))
		case PreferStatic:
			d = staticRank(a) - staticRank(b)
		case PreferEarliest:
			d = i - j
		}
		if d != 0 {
			return d
		}
	}
	return i - j
}
