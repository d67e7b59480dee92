package deviceadapter

import "fmt"

// StructuredParser is the pluggable black-box that turns raw CLI text
// output into a JSON-like tree, for devices/commands where neither
// nxapi nor "<cmd> | json" is available (spec §4.2 step 3). routecache
// ships no opinion on the underlying CLI-screen-scraping technology
// (TextFSM templates, genie parsers, vendor SDKs, ...); implementers
// plug in whichever one matches their device fleet.
type StructuredParser interface {
	Parse(command string, output string) (map[string]any, error)
}

// UnsupportedParser is the default StructuredParser: it always fails,
// which surfaces as a table-scoped Parse error per spec §7. Use it when
// every device in the fleet supports nxapi or "| json", and no CLI-text
// fallback is needed.
type UnsupportedParser struct{}

func (UnsupportedParser) Parse(command, output string) (map[string]any, error) {
	return nil, fmt.Errorf("deviceadapter: no structured CLI parser configured for %q", command)
}
