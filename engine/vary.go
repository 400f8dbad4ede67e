package engine

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// NominalKey names the unvaried universe in a ResultMap.
const NominalKey = "nominal"

// Vary attaches alternate definitions to column. fn returns one value per
// tag. Nominal execution keeps the column's current definition and never
// calls fn; the alternates are only computed for universes requested
// through VariationsFor.
func (f Frame) Vary(column string, fn VaryFunc, inputs, tags []string, opts ...VaryOption) (Frame, error) {
	return f.vary(column, fn, inputs, tags, opts)
}

// VaryN is Vary with n positional tags "0".."n-1".
func (f Frame) VaryN(column string, fn VaryFunc, inputs []string, n int, opts ...VaryOption) (Frame, error) {
	if n < 1 {
		return f, buildErr("Vary", column, fmt.Errorf("%w: need at least one variation, got %d", ErrVariationCount, n))
	}
	return f.vary(column, fn, inputs, positionalTags(n), opts)
}

func positionalTags(n int) []string {
	tags := make([]string, n)
	for i := range tags {
		tags[i] = strconv.Itoa(i)
	}
	return tags
}

func (f Frame) vary(column string, fn VaryFunc, inputs, tags []string, opts []VaryOption) (Frame, error) {
	g := f.g
	if err := g.lockBuild("Vary"); err != nil {
		return f, err
	}
	defer g.mu.Unlock()

	vo := varyOptions{name: column}
	for _, o := range opts {
		o(&vo)
	}
	if err := checkTags(vo.name, tags); err != nil {
		return f, buildErr("Vary", column, err)
	}
	if slices.Contains(f.vars, vo.name) {
		return f, buildErr("Vary", column, fmt.Errorf("%w: variation %q already used on this lineage", ErrTagCollision, vo.name))
	}
	switch {
	case fn == nil:
		return f, buildErr("Vary", column, errNilFunc)
	case isReserved(column):
		return f, buildErr("Vary", column, ErrReservedColumn)
	}
	base, ok := f.lookup(column)
	if !ok {
		return f, buildErr("Vary", column, ErrUnknownColumn)
	}
	deps, err := f.resolve("Vary", inputs)
	if err != nil {
		return f, err
	}

	v := &variation{name: vo.name, column: column, tags: slices.Clone(tags)}
	v.eval = g.addNode(&node{kind: kindVaryEval, name: "vary " + vo.name, deps: deps, vary: fn, v: v})
	v.node = g.addNode(&node{kind: kindVary, name: column, deps: []int{base}, v: v})

	out := f.with(column, v.node)
	out.vars = append(slices.Clip(f.vars), vo.name)
	return out, nil
}

func checkTags(name string, tags []string) error {
	if name == "" || strings.ContainsAny(name, ":,") {
		return fmt.Errorf("%w: invalid variation name %q", ErrTagCollision, name)
	}
	if len(tags) == 0 {
		return fmt.Errorf("%w: need at least one tag", ErrVariationCount)
	}
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		switch {
		case t == "" || strings.ContainsAny(t, ":,"):
			return fmt.Errorf("%w: invalid tag %q", ErrTagCollision, t)
		case t == NominalKey:
			return fmt.Errorf("%w: tag %q is reserved", ErrTagCollision, t)
		case seen[t]:
			return fmt.Errorf("%w: tag %q repeated", ErrTagCollision, t)
		}
		seen[t] = true
	}
	return nil
}

// ResultMap holds one independent result per universe of an action, plus
// its own nominal result accumulated in the same runs.
type ResultMap struct {
	keys    []string
	results map[string]*Result
	nominal *Result
}

// Keys returns the varied universes in a stable order. Nominal is not
// included.
func (m *ResultMap) Keys() []string {
	return slices.Clone(m.keys)
}

// Len returns the number of varied universes.
func (m *ResultMap) Len() int {
	return len(m.keys)
}

// Nominal returns the map's nominal result.
func (m *ResultMap) Nominal() *Result {
	return m.nominal
}

// Get returns the result for a universe key such as "jes:up" or
// "jes:up,btag:down". "nominal" returns the nominal result. A key of bare
// tags ("up,down") is accepted when it names exactly one universe.
func (m *ResultMap) Get(key string) (*Result, bool) {
	if key == NominalKey {
		return m.nominal, true
	}
	if r, ok := m.results[key]; ok {
		return r, true
	}
	var match *Result
	for _, k := range m.keys {
		if bareTags(k) == key {
			if match != nil {
				return nil, false
			}
			match = m.results[k]
		}
	}
	return match, match != nil
}

func bareTags(key string) string {
	parts := strings.Split(key, ",")
	for i, p := range parts {
		if j := strings.IndexByte(p, ':'); j >= 0 {
			parts[i] = p[j+1:]
		}
	}
	return strings.Join(parts, ",")
}

// VariationsFor books one action per universe of r's lineage: the
// cartesian product of the tags of every Vary node r depends on through
// its inputs, its filters and the inputs of those Vary nodes. Only the
// nodes downstream of a varied column are duplicated; the rest stay shared
// with the nominal graph. r must still be pending.
func VariationsFor(r *Result) (*ResultMap, error) {
	if r == nil {
		return nil, protoErr("VariationsFor", ErrNotReady)
	}
	g := r.g
	if err := g.lockBuild("VariationsFor"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()

	switch r.state {
	case Detached:
		return nil, protoErr("VariationsFor", ErrDetached)
	case Ready:
		return nil, protoErr("VariationsFor", ErrAlreadyRun)
	}
	a := r.act
	if a.universe != "" {
		return nil, protoErr("VariationsFor", fmt.Errorf("%w: %q is already a varied universe", ErrTagCollision, a.universe))
	}
	vars := g.variationsOf(a)

	m := &ResultMap{results: make(map[string]*Result)}
	m.nominal = g.register(a.derive(a.obs, a.weight, a.filters, ""), r.acc.Clone())

	before := len(g.nodes)
	for _, u := range universes(vars) {
		c := &cloner{g: g, assign: u.assign, done: make(map[int]int)}
		filters := make([]int, len(a.filters))
		for i, id := range a.filters {
			filters[i] = c.node(id)
		}
		na := a.derive(c.node(a.obs), c.node(a.weight), filters, u.key)
		m.results[u.key] = g.register(na, r.acc.Clone())
		m.keys = append(m.keys, u.key)
	}
	g.log.Debug("variations booked",
		"action", a.name, "variations", len(vars), "universes", len(m.keys), "cloned_nodes", len(g.nodes)-before)
	return m, nil
}

// variationsOf returns the variations reachable from a, in arena order.
func (g *Graph) variationsOf(a *action) []*variation {
	seen := make(map[int]bool)
	found := make(map[*variation]bool)
	var walk func(id int)
	walk = func(id int) {
		if id < 0 || seen[id] {
			return
		}
		seen[id] = true
		n := g.nodes[id]
		if n.kind == kindVary {
			found[n.v] = true
			walk(n.v.eval)
		}
		for _, d := range n.deps {
			walk(d)
		}
	}
	walk(a.obs)
	walk(a.weight)
	for _, f := range a.filters {
		walk(f)
	}
	out := make([]*variation, 0, len(found))
	for v := range found {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].node < out[j].node })
	return out
}

type universe struct {
	key    string
	assign map[*variation]int
}

// universes enumerates the cartesian product of the variations' tags. The
// first variation varies slowest.
func universes(vars []*variation) []universe {
	if len(vars) == 0 {
		return nil
	}
	idx := make([]int, len(vars))
	var out []universe
	for {
		u := universe{assign: make(map[*variation]int, len(vars))}
		parts := make([]string, len(vars))
		for i, v := range vars {
			u.assign[v] = idx[i]
			parts[i] = v.key(idx[i])
		}
		u.key = strings.Join(parts, ",")
		out = append(out, u)

		i := len(vars) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(vars[i].tags) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}

// cloner rewrites a subgraph for one universe. A node is duplicated only
// when one of its inputs changed; duplicates are interned on the graph so
// that universes agreeing on a node's inputs share it.
type cloner struct {
	g      *Graph
	assign map[*variation]int
	done   map[int]int
}

func (c *cloner) node(id int) int {
	if id < 0 {
		return id
	}
	if out, ok := c.done[id]; ok {
		return out
	}
	n := c.g.nodes[id]
	if n.kind == kindVary {
		if tag, ok := c.assign[n.v]; ok {
			eval := c.node(n.v.eval)
			out := c.g.internNode(fmt.Sprintf("pick:%d:%d", eval, tag), func() *node {
				return &node{kind: kindPick, name: n.v.key(tag), deps: []int{eval}, v: n.v, pick: tag}
			})
			c.done[id] = out
			return out
		}
	}

	deps := make([]int, len(n.deps))
	changed := false
	for i, d := range n.deps {
		deps[i] = c.node(d)
		changed = changed || deps[i] != d
	}
	out := id
	if changed {
		out = c.g.internNode(fmt.Sprintf("%d:%v", id, deps), func() *node {
			cp := *n
			cp.deps = deps
			return &cp
		})
	}
	c.done[id] = out
	return out
}
