package speaker

// Turn is one diarised time range. Label is opaque and local to a run.
type Turn struct {
	Label string  `json:"speaker"`
	Start float64 `json:"start"` // sec
	End   float64 `json:"end"`   // sec
}

func (t Turn) Duration() float64 { return t.End - t.Start }

// Group is every turn of one label, in diarisation order.
type Group struct {
	Label string
	Turns []Turn
}

// BuildGroups groups turns by label. Groups are ordered by the first
// appearance of their label.
func BuildGroups(turns []Turn) []Group {
	idx := map[string]int{}
	var out []Group
	for _, t := range turns {
		i, ok := idx[t.Label]
		if !ok {
			i = len(out)
			idx[t.Label] = i
			out = append(out, Group{Label: t.Label})
		}
		out[i].Turns = append(out[i].Turns, t)
	}
	return out
}

// SelectSegments returns the turns of g long enough to embed. When none
// reaches minDuration the single longest turn is returned, so a speaker
// with only short turns still gets evaluated.
func SelectSegments(g Group, minDuration float64) []Turn {
	var out []Turn
	longest := -1
	for i, t := range g.Turns {
		if t.Duration() >= minDuration {
			out = append(out, t)
		}
		if longest < 0 || t.Duration() > g.Turns[longest].Duration() {
			longest = i
		}
	}
	if len(out) == 0 && longest >= 0 {
		out = []Turn{g.Turns[longest]}
	}
	return out
}

// Rename rewrites turn labels through names. Labels without an entry are
// kept verbatim.
func Rename(turns []Turn, names map[string]string) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		if n, ok := names[t.Label]; ok {
			t.Label = n
		}
		out[i] = t
	}
	return out
}
