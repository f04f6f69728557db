package wayline

import "github.com/bytedance/sonic"

// routeSummary is the JSON shape of one route in a collection dump
type routeSummary struct {
	Name       string         `json:"name"`
	Template   string         `json:"template"`
	StaticPath string         `json:"staticPath"`
	Defaults   map[string]any `json:"defaults,omitempty"`
	Extensions []string       `json:"extensions,omitempty"`
}

// DumpJSON renders the route table for debug tooling
// Entries appear in the same descending-prefix order as Routes()
func (c *Collection) DumpJSON() ([]byte, error) {
	summaries := make([]routeSummary, 0, len(c.paths))
	for _, route := range c.Routes() {
		summaries = append(summaries, routeSummary{
			Name:       route.Name(),
			Template:   route.Template(),
			StaticPath: route.StaticPath(),
			Defaults:   route.Defaults(),
			Extensions: route.Extensions(),
		})
	}
	return sonic.ConfigFastest.Marshal(summaries)
}
