package output

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/tkjaer/rtq/pkg/addr"
	"github.com/tkjaer/rtq/pkg/route"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FBBF24"))

	queryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#60A5FA"))

	noRouteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171"))
)

type cellAlignment int

const (
	alignLeft cellAlignment = iota
	alignRight
)

func formatCell(value string, width int, alignment cellAlignment) string {
	pad := width - lipgloss.Width(value)
	if pad <= 0 {
		return value
	}
	if alignment == alignRight {
		return strings.Repeat(" ", pad) + value
	}
	return value + strings.Repeat(" ", pad)
}

// TextOutput prints netstat-like aligned tables. Headers are styled only
// when writing to a terminal.
type TextOutput struct {
	mu       sync.Mutex
	w        io.Writer
	styled   bool
	resolver Resolver
}

// NewTextOutput writes to f. r may be nil to skip PTR names.
func NewTextOutput(f *os.File, r Resolver) *TextOutput {
	return &TextOutput{
		w:        f,
		styled:   term.IsTerminal(int(f.Fd())),
		resolver: r,
	}
}

func (t *TextOutput) render(style lipgloss.Style, s string) string {
	if !t.styled {
		return s
	}
	return style.Render(s)
}

type column struct {
	title string
	align cellAlignment
	value func(route.Entry, Record) string
}

func (t *TextOutput) columns() []column {
	cols := []column{
		{"Destination", alignLeft, func(e route.Entry, _ Record) string {
			if e.IsDefault() {
				return "default"
			}
			return e.Destination.String()
		}},
		{"Gateway", alignLeft, func(_ route.Entry, r Record) string { return r.Gateway }},
		{"Flags", alignLeft, func(_ route.Entry, r Record) string { return r.Flags }},
		{"Netif", alignLeft, func(_ route.Entry, r Record) string { return r.Interface }},
		{"Expire", alignRight, func(_ route.Entry, r Record) string { return expire(r.Expire) }},
	}
	if t.resolver != nil {
		cols = append(cols, column{"Name", alignLeft, func(_ route.Entry, r Record) string { return r.GatewayPTR }})
	}
	return cols
}

func (t *TextOutput) Entries(ctx context.Context, entries []route.Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	for _, fam := range []addr.Family{addr.V4, addr.V6} {
		var family []route.Entry
		for _, e := range entries {
			if e.Family == fam {
				family = append(family, e)
			}
		}
		if len(family) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		title := "Internet:"
		if fam == addr.V6 {
			title = "Internet6:"
		}
		b.WriteString(t.render(titleStyle, title))
		b.WriteByte('\n')
		t.writeTable(ctx, &b, family)
	}

	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *TextOutput) writeTable(ctx context.Context, b *strings.Builder, entries []route.Entry) {
	cols := t.columns()
	cells := make([][]string, len(entries))
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = lipgloss.Width(c.title)
	}
	for r, e := range entries {
		rec := newRecord(ctx, e, t.resolver)
		cells[r] = make([]string, len(cols))
		for i, c := range cols {
			cells[r][i] = c.value(e, rec)
			widths[i] = max(widths[i], lipgloss.Width(cells[r][i]))
		}
	}

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = formatCell(c.title, widths[i], c.align)
	}
	b.WriteString(t.render(headerStyle, strings.TrimRight(strings.Join(header, "  "), " ")))
	b.WriteByte('\n')

	for _, row := range cells {
		line := make([]string, len(cols))
		for i, c := range cols {
			line[i] = formatCell(row[i], widths[i], c.align)
		}
		b.WriteString(strings.TrimRight(strings.Join(line, "  "), " "))
		b.WriteByte('\n')
	}
}

func (t *TextOutput) Lookup(ctx context.Context, query netip.Addr, e route.Entry, found bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.render(queryStyle, query.String())
	if !found {
		_, err := fmt.Fprintf(t.w, "%s: %s\n", q, t.render(noRouteStyle, "no route"))
		return err
	}

	line := e.String()
	if ip, ok := e.Gateway.IP(); ok && t.resolver != nil {
		if name, ok := t.resolver.Lookup(ctx, ip); ok {
			line += " (" + name + ")"
		}
	}
	_, err := fmt.Fprintf(t.w, "%s: %s\n", q, line)
	return err
}

func (t *TextOutput) Close() error {
	return nil
}
