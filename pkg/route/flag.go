package route

import (
	"strings"
)

// Flag is a set of route attributes. Most members correspond to one
// character of the netstat/route flag legend.
type Flag uint32

const (
	FlagUp        Flag = 1 << iota // U: route usable
	FlagGateway                    // G: destination requires forwarding by intermediary
	FlagHost                       // H: host entry (net otherwise)
	FlagStatic                     // S: manually added
	FlagDynamic                    // D: created dynamically (by redirect)
	FlagModified                   // M: modified dynamically (by redirect)
	FlagReject                     // R or !: host or net unreachable
	FlagBlackhole                  // B: just discard packets (during updates)
	FlagCloning                    // C: generate new routes on use
	FlagPrCloning                  // c: protocol-specified generate new routes on use
	FlagLLInfo                     // L: valid protocol to link address translation
	FlagWasCloned                  // W: route was generated as a result of cloning
	FlagIfScope                    // I: route is associated with an interface scope
	FlagIfRef                      // i: route is holding a reference to the interface
	FlagBroadcast                  // b: the route represents a broadcast address
	FlagMulticast                  // m: the route represents a multicast address
	FlagRouter                     // r: host is a default router
	FlagXResolve                   // X: external daemon translates proto to link address
	FlagProxy                      // Y: proxying; cloned routes will not be scoped
	FlagGlobal                     // g: route to a destination of the global internet
	FlagProto1                     // 1: protocol specific routing flag #1
	FlagProto2                     // 2: protocol specific routing flag #2
	FlagProto3                     // 3: protocol specific routing flag #3
	FlagAddrConf                   // A: installed by address autoconfiguration

	// Derived while parsing, never printed in a flag column.
	FlagDefault // destination prefix length is 0
	FlagOnLink  // no next hop address, delivered on the interface
)

type flagInfo struct {
	flag Flag
	char byte
	name string
}

// legend is ordered as netstat prints it. Flags without a character are
// listed after the lettered ones.
var legend = []flagInfo{
	{FlagUp, 'U', "up"},
	{FlagGateway, 'G', "gateway"},
	{FlagHost, 'H', "host"},
	{FlagReject, 'R', "reject"},
	{FlagDynamic, 'D', "dynamic"},
	{FlagModified, 'M', "modified"},
	{FlagAddrConf, 'A', "addrconf"},
	{FlagStatic, 'S', "static"},
	{FlagBlackhole, 'B', "blackhole"},
	{FlagCloning, 'C', "cloning"},
	{FlagPrCloning, 'c', "prcloning"},
	{FlagLLInfo, 'L', "llinfo"},
	{FlagWasCloned, 'W', "wascloned"},
	{FlagIfScope, 'I', "ifscope"},
	{FlagIfRef, 'i', "ifref"},
	{FlagBroadcast, 'b', "broadcast"},
	{FlagMulticast, 'm', "multicast"},
	{FlagRouter, 'r', "router"},
	{FlagXResolve, 'X', "xresolve"},
	{FlagProxy, 'Y', "proxy"},
	{FlagGlobal, 'g', "global"},
	{FlagProto1, '1', "proto1"},
	{FlagProto2, '2', "proto2"},
	{FlagProto3, '3', "proto3"},
	{FlagDefault, 0, "default"},
	{FlagOnLink, 0, "onlink"},
}

var flagByChar = func() map[byte]Flag {
	m := make(map[byte]Flag, len(legend)+1)
	for _, fi := range legend {
		if fi.char != 0 {
			m[fi.char] = fi.flag
		}
	}
	// Linux route(8) marks reject routes with '!'.
	m['!'] = FlagReject
	return m
}()

// ParseFlags converts a flag column such as "UGScg" into a Flag set.
// Characters outside the legend are ignored.
func ParseFlags(s string) Flag {
	var f Flag
	for i := 0; i < len(s); i++ {
		f |= flagByChar[s[i]]
	}
	return f
}

// FlagByName looks up a single flag by its legend character ("G") or its
// name ("gateway", case-insensitive).
func FlagByName(name string) (Flag, bool) {
	if len(name) == 1 {
		if f, ok := flagByChar[name[0]]; ok {
			return f, true
		}
	}
	for _, fi := range legend {
		if strings.EqualFold(fi.name, name) {
			return fi.flag, true
		}
	}
	return 0, false
}

// Has reports whether every flag in o is set in f.
func (f Flag) Has(o Flag) bool {
	return o != 0 && f&o == o
}

// String returns the legend form of f, e.g. "UGSc". Derived flags are not
// included.
func (f Flag) String() string {
	var b strings.Builder
	for _, fi := range legend {
		if fi.char != 0 && f&fi.flag != 0 {
			b.WriteByte(fi.char)
		}
	}
	return b.String()
}

// Names returns the names of all flags set in f, derived flags included.
func (f Flag) Names() []string {
	var names []string
	for _, fi := range legend {
		if f&fi.flag != 0 {
			names = append(names, fi.name)
		}
	}
	return names
}

// MarshalText encodes f as its comma separated names.
func (f Flag) MarshalText() ([]byte, error) {
	return []byte(strings.Join(f.Names(), ",")), nil
}
