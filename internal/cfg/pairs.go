package cfg

import (
	"fmt"
	"strings"
)

// ParsePairs parses a comma-separated list of name=value pairs, as used by
// the catalog-endpoints and queue-webhook-urls flags. An empty input yields
// an empty map.
func ParsePairs(s string) (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			return nil, fmt.Errorf("malformed pair %q (want name=value)", part)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("duplicate name %q", name)
		}
		out[name] = value
	}
	return out, nil
}
