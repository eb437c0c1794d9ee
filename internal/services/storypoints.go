package services

// pointStrategy looks up one candidate story point value in an issue's fields.
type pointStrategy struct {
	name   string
	lookup func(fields map[string]any) (any, bool)
}

func fieldStrategy(id string) pointStrategy {
	return pointStrategy{name: id, lookup: func(fields map[string]any) (any, bool) {
		v, ok := fields[id]
		return v, ok && v != nil
	}}
}

// Fields checked when no site-specific field is configured, in priority order.
var defaultPointFields = []string{"customfield_10016", "customfield_10020", "storyPoints", "Story Points"}

// StoryPoints reads an issue's estimate by trying each strategy in turn and stopping at
// the first numeric match. Objects and arrays (e.g. the sprint field) are skipped.
type StoryPoints struct {
	strategies []pointStrategy
}

func NewStoryPoints(configuredField string) StoryPoints {
	var sp StoryPoints
	seen := map[string]bool{}
	for _, id := range append([]string{configuredField}, defaultPointFields...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		sp.strategies = append(sp.strategies, fieldStrategy(id))
	}
	return sp
}

func (p StoryPoints) Read(fields map[string]any) float64 {
	for _, s := range p.strategies {
		v, ok := s.lookup(fields)
		if !ok {
			continue
		}
		if n, ok := toNumber(v); ok {
			return n
		}
	}
	return 0
}

func (p StoryPoints) Fields() []string {
	out := make([]string, 0, len(p.strategies))
	for _, s := range p.strategies {
		out = append(out, s.name)
	}
	return out
}
