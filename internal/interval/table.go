package interval

// Table is an immutable constants table. Raw values are parsed once when the
// table is built, so resolving a reference twice always observes the same
// interval. Entries that can reach a reference cycle are dropped and resolve
// to nothing.
type Table struct {
	entries map[string]Interval
}

// NewTable parses every raw constant and removes cyclic entries.
func NewTable(raw map[string]any) *Table {
	parsed := make(map[string]Interval, len(raw))
	for name, value := range raw {
		if iv := Parse(value); iv != nil {
			parsed[name] = iv
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(parsed))
	cyclic := make(map[string]bool)

	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			return true
		case done:
			return cyclic[name]
		}
		state[name] = visiting
		bad := false
		for _, next := range references(parsed[name]) {
			if _, known := parsed[next]; !known {
				continue
			}
			if visit(next) {
				bad = true
			}
		}
		state[name] = done
		if bad {
			cyclic[name] = true
		}
		return bad
	}
	for name := range parsed {
		visit(name)
	}
	for name := range cyclic {
		delete(parsed, name)
	}
	return &Table{entries: parsed}
}

// Constant implements Constants.
func (t *Table) Constant(name string) (Interval, bool) {
	if t == nil {
		return nil, false
	}
	iv, ok := t.entries[name]
	return iv, ok
}

// Len returns the number of usable constants.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

func references(iv Interval) []string {
	switch v := iv.(type) {
	case Reference:
		return []string{string(v)}
	case *Range:
		return append(references(v.Min), references(v.Max)...)
	default:
		return nil
	}
}
