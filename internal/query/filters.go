package query

import "strings"

// TrackFilter scopes a track/signal query per spec.md §4.5/§6's common
// query parameters.
type TrackFilter struct {
	Range       TimeRange
	KitIDs      []string
	RIDMake     string
	TrackType   string // "drone" | "aircraft" | ""
	Limit       int
	Deduplicate bool
}

const maxLimit = 10000

// NormalizeLimit clamps a requested limit into (0, maxLimit], defaulting to
// maxLimit when unset.
func NormalizeLimit(requested int) int {
	if requested <= 0 || requested > maxLimit {
		return maxLimit
	}
	return requested
}

// ParseKitIDs splits the comma-list kit_id query parameter.
func ParseKitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
