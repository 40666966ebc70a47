package catalog

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/roach88/tablegate/internal/ir"
)

// Param is one declared procedure parameter.
type Param struct {
	Name      string        `json:"name"`
	Type      ir.DataType   `json:"type"`
	Direction ir.OutputType `json:"direction,omitempty"`
}

// Procedure is a compiled catalog entry.
type Procedure struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Params      []Param  `json:"params"`
	Exec        []string `json:"exec,omitempty"`
	Output      string   `json:"output,omitempty"`
	Assert      []string `json:"assert,omitempty"`
	Result      string   `json:"result,omitempty"`
}

// Param returns the named parameter.
func (p *Procedure) Param(name string) (Param, bool) {
	for _, prm := range p.Params {
		if prm.Name == name {
			return prm, true
		}
	}
	return Param{}, false
}

// Statements returns every SQL text of the procedure in execution order.
func (p *Procedure) Statements() []string {
	var out []string
	out = append(out, p.Exec...)
	if p.Output != "" {
		out = append(out, p.Output)
	}
	out = append(out, p.Assert...)
	if p.Result != "" {
		out = append(out, p.Result)
	}
	return out
}

// paramRef matches a :Name reference. A preceding colon is excluded so
// "::" casts are not mistaken for parameters.
var paramRef = regexp.MustCompile(`(^|[^:]):([A-Za-z_][A-Za-z0-9_]*)`)

// ParamRefs returns the distinct parameter names referenced by stmt, in
// order of first use.
func ParamRefs(stmt string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range paramRef.FindAllStringSubmatch(stmt, -1) {
		if !seen[m[2]] {
			seen[m[2]] = true
			names = append(names, m[2])
		}
	}
	return names
}

// Catalog is an immutable set of procedures keyed by name.
type Catalog struct {
	procs map[string]*Procedure
}

// New builds a catalog. Duplicate names are an error.
func New(procs ...Procedure) (*Catalog, error) {
	c := &Catalog{procs: make(map[string]*Procedure, len(procs))}
	for i := range procs {
		p := procs[i]
		if _, dup := c.procs[p.Name]; dup {
			return nil, fmt.Errorf("duplicate procedure %q", p.Name)
		}
		c.procs[p.Name] = &p
	}
	return c, nil
}

// Lookup returns the named procedure.
func (c *Catalog) Lookup(name string) (*Procedure, bool) {
	if c == nil {
		return nil, false
	}
	p, ok := c.procs[name]
	return p, ok
}

// Names returns every procedure name, sorted.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.procs))
	for n := range c.procs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of procedures.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.procs)
}
