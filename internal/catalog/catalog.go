// Package catalog holds the fixed, ordered lists of helmet models and lighting
// environments the viewer can show, and the wrap-around cycling over them.
package catalog

// Default model and environment identifiers.
const (
	DefaultModel       = "thomas.glb"
	DefaultEnvironment = "dawn"
)

// Catalog is a fixed ordered list of identifiers. It is read-only after construction.
type Catalog struct {
	items []string
}

// New creates a Catalog from the given items. The slice is copied.
func New(items ...string) Catalog {
	c := Catalog{items: make([]string, len(items))}
	copy(c.items, items)
	return c
}

// Models returns the catalog of supported helmet models.
func Models() Catalog {
	return New(DefaultModel, "guy.glb", "visor.glb")
}

// Environments returns the catalog of supported environment presets.
func Environments() Catalog {
	return New(
		"apartment",
		"city",
		DefaultEnvironment,
		"forest",
		"lobby",
		"night",
		"park",
		"studio",
		"sunset",
		"warehouse",
	)
}

// Len returns the number of items.
func (c Catalog) Len() int {
	return len(c.items)
}

// Items returns a copy of the items in order.
func (c Catalog) Items() []string {
	out := make([]string, len(c.items))
	copy(out, c.items)
	return out
}

// First returns the first item, or "" for an empty catalog.
func (c Catalog) First() string {
	if len(c.items) == 0 {
		return ""
	}
	return c.items[0]
}

// Last returns the last item, or "" for an empty catalog.
func (c Catalog) Last() string {
	if len(c.items) == 0 {
		return ""
	}
	return c.items[len(c.items)-1]
}

// IndexOf returns the position of value, or -1 if it is not a member.
func (c Catalog) IndexOf(value string) int {
	for i, item := range c.items {
		if item == value {
			return i
		}
	}
	return -1
}

// Contains reports whether value is a member of the catalog.
func (c Catalog) Contains(value string) bool {
	return c.IndexOf(value) >= 0
}

// Next returns the item after current, wrapping to the first item.
// An unknown current is returned unchanged.
func (c Catalog) Next(current string) string {
	return c.step(current, 1)
}

// Previous returns the item before current, wrapping to the last item.
// An unknown current is returned unchanged.
func (c Catalog) Previous(current string) string {
	return c.step(current, -1)
}

func (c Catalog) step(current string, delta int) string {
	i := c.IndexOf(current)
	if i < 0 {
		return current
	}
	n := len(c.items)
	return c.items[((i+delta)%n+n)%n]
}

// Pair is a fixed two-value toggle, independent of any catalog order.
type Pair struct {
	A string
	B string
}

// ModelPair returns the models alternated by the automatic switch.
func ModelPair() Pair {
	return Pair{A: DefaultModel, B: "guy.glb"}
}

// EnvironmentPair returns the environments alternated by the automatic switch.
func EnvironmentPair() Pair {
	return Pair{A: DefaultEnvironment, B: "night"}
}

// Toggle returns the other value of the pair. A value outside the pair maps to A.
func (p Pair) Toggle(current string) string {
	if current == p.A {
		return p.B
	}
	return p.A
}
