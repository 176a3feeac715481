package output

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"
	"sync"

	"github.com/valyala/fasttemplate"

	"github.com/tkjaer/rtq/pkg/route"
)

// Template tags available to --format.
const (
	TagQuery       = "query"
	TagFound       = "found"
	TagFamily      = "family"
	TagDestination = "destination"
	TagZone        = "zone"
	TagFirst       = "first"
	TagLast        = "last"
	TagGateway     = "gateway"
	TagGatewayKind = "gateway_kind"
	TagPTR         = "ptr"
	TagInterface   = "interface"
	TagFlags       = "flags"
	TagExpire      = "expire"
	TagRefs        = "refs"
	TagUse         = "use"
	TagMetric      = "metric"
)

var escapes = strings.NewReplacer(`\t`, "\t", `\n`, "\n")

// TemplateOutput prints one line per entry or lookup, expanding {tag}
// placeholders.
type TemplateOutput struct {
	mu       sync.Mutex
	w        io.Writer
	tmpl     *fasttemplate.Template
	resolver Resolver
}

// NewTemplateOutput checks format and returns an output writing to w.
// Backslash escapes \t and \n are expanded.
func NewTemplateOutput(w io.Writer, format string, r Resolver) (*TemplateOutput, error) {
	tmpl, err := fasttemplate.NewTemplate(escapes.Replace(format), "{", "}")
	if err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}
	t := &TemplateOutput{w: w, tmpl: tmpl, resolver: r}
	if _, err := t.expand(tagValues("", false, nil)); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}
	return t, nil
}

func tagValues(query string, found bool, rec *Record) map[string]string {
	v := map[string]string{
		TagQuery: query,
		TagFound: strconv.FormatBool(found),
	}
	var r Record
	if rec != nil {
		r = *rec
	}
	v[TagFamily] = r.Family
	v[TagDestination] = r.Destination
	v[TagZone] = r.Zone
	v[TagFirst] = r.First
	v[TagLast] = r.Last
	v[TagGateway] = r.Gateway
	v[TagGatewayKind] = r.GatewayKind
	v[TagPTR] = r.GatewayPTR
	v[TagInterface] = r.Interface
	v[TagFlags] = r.Flags
	v[TagExpire] = expire(r.Expire)
	v[TagRefs] = counter(r.Refs)
	v[TagUse] = counter(r.Use)
	v[TagMetric] = counter(r.Metric)
	return v
}

func (t *TemplateOutput) expand(values map[string]string) (string, error) {
	var b strings.Builder
	_, err := t.tmpl.ExecuteFunc(&b, func(w io.Writer, tag string) (int, error) {
		v, ok := values[strings.TrimSpace(tag)]
		if !ok {
			return 0, fmt.Errorf("unknown tag {%s}", tag)
		}
		return io.WriteString(w, v)
	})
	return b.String(), err
}

func (t *TemplateOutput) writeLine(values map[string]string) error {
	line, err := t.expand(values)
	if err != nil {
		return err
	}
	_, err = io.WriteString(t.w, line+"\n")
	return err
}

func (t *TemplateOutput) Entries(ctx context.Context, entries []route.Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range entries {
		rec := newRecord(ctx, e, t.resolver)
		if err := t.writeLine(tagValues("", true, &rec)); err != nil {
			return err
		}
	}
	return nil
}

func (t *TemplateOutput) Lookup(ctx context.Context, query netip.Addr, e route.Entry, found bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := newLookupResult(ctx, query, e, found, t.resolver)
	return t.writeLine(tagValues(res.Query, res.Found, res.Route))
}

func (t *TemplateOutput) Close() error {
	return nil
}
