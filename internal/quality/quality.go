// Package quality classifies features into status categories and tallies them.
package quality

import "github.com/paulmach/orb/geojson"

// Category is the status bucket of a feature.
type Category int

const (
	Unknown Category = iota
	Good
	Medium
)

// Categories lists every category in display order.
var Categories = []Category{Good, Medium, Unknown}

func (c Category) String() string {
	switch c {
	case Good:
		return "good"
	case Medium:
		return "medium"
	default:
		return "unknown"
	}
}

// Labels names the status attribute and the two exact values that map to
// Good and Medium. Every other value falls into Unknown.
type Labels struct {
	Field  string
	Good   string
	Medium string
}

// DefaultLabels are the water quality labels of the bundled dataset.
var DefaultLabels = Labels{
	Field:  "Status",
	Good:   "Baik (Memenuhi)",
	Medium: "Cemar Ringan",
}

// Status returns the raw status string of props and whether it is a string.
func (l Labels) Status(props map[string]any) (string, bool) {
	if props == nil {
		return "", false
	}
	s, ok := props[l.Field].(string)
	return s, ok
}

// Classify maps attributes to a category. It never fails: missing fields,
// nil maps and non-string values are Unknown.
func (l Labels) Classify(props map[string]any) Category {
	s, ok := l.Status(props)
	if !ok {
		return Unknown
	}
	switch s {
	case l.Good:
		return Good
	case l.Medium:
		return Medium
	default:
		return Unknown
	}
}

// Counts is a snapshot of features per category.
type Counts struct {
	Good    int `json:"good" doc:"Features with the good status"`
	Medium  int `json:"medium" doc:"Features with the medium status"`
	Unknown int `json:"unknown" doc:"Features with any other or no status"`
}

// Get returns the count of c.
func (c Counts) Get(cat Category) int {
	switch cat {
	case Good:
		return c.Good
	case Medium:
		return c.Medium
	default:
		return c.Unknown
	}
}

// Set returns a copy of c with cat set to n.
func (c Counts) Set(cat Category, n int) Counts {
	switch cat {
	case Good:
		c.Good = n
	case Medium:
		c.Medium = n
	default:
		c.Unknown = n
	}
	return c
}

// Total is the number of counted features.
func (c Counts) Total() int {
	return c.Good + c.Medium + c.Unknown
}

// Tally recomputes the counts over features.
func (l Labels) Tally(features []*geojson.Feature) Counts {
	var c Counts
	for _, f := range features {
		if f == nil {
			c.Unknown++
			continue
		}
		switch l.Classify(f.Properties) {
		case Good:
			c.Good++
		case Medium:
			c.Medium++
		default:
			c.Unknown++
		}
	}
	return c
}

// Steps returns the values a counter shows while counting from one value to
// another, one unit at a time, ending exactly on to. It is empty when equal.
func Steps(from, to int) []int {
	if from == to {
		return nil
	}
	step := 1
	if to < from {
		step = -1
	}
	out := make([]int, 0, abs(to-from))
	for v := from + step; ; v += step {
		out = append(out, v)
		if v == to {
			return out
		}
	}
}

// Next returns the value following cur on the way to target.
func Next(cur, target int) int {
	switch {
	case cur < target:
		return cur + 1
	case cur > target:
		return cur - 1
	default:
		return cur
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
