package risk

import (
	"encoding/json"
	"slices"
)

// Filter selects events whose dimension and level are both in the selected
// sets. An empty set selects nothing.
type Filter struct {
	Dimensions []Dimension `json:"dimensions"`
	Levels     []Level     `json:"risks"`
}

// DefaultFilter selects every dimension and the three actionable levels.
func DefaultFilter() Filter {
	return Filter{
		Dimensions: slices.Clone(Dimensions),
		Levels:     []Level{LevelCritical, LevelHigh, LevelMedium},
	}
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Event) bool {
	return slices.Contains(f.Dimensions, e.Dimension) && slices.Contains(f.Levels, e.Level)
}

// Apply returns the matching events in their original order. The input is
// not modified.
func (f Filter) Apply(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// UnmarshalJSON accepts level and dimension names in any case, plus the
// one-letter dimension codes, and rejects unknown values.
func (f *Filter) UnmarshalJSON(b []byte) error {
	var raw struct {
		Dimensions []string `json:"dimensions"`
		Levels     []string `json:"risks"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := Filter{Dimensions: []Dimension{}, Levels: []Level{}}
	for _, s := range raw.Dimensions {
		d, err := ParseDimension(s)
		if err != nil {
			return err
		}
		if !slices.Contains(out.Dimensions, d) {
			out.Dimensions = append(out.Dimensions, d)
		}
	}
	for _, s := range raw.Levels {
		l, err := ParseLevel(s)
		if err != nil {
			return err
		}
		if !slices.Contains(out.Levels, l) {
			out.Levels = append(out.Levels, l)
		}
	}
	*f = out
	return nil
}
