// Package query models boolean filter predicates as an explicit tree of
// typed nodes and compiles them to SQL conditions with numbered
// placeholders. Repositories merge the compiled condition into their WHERE
// clauses, so policy code can describe what is visible without knowing how
// the storage layer executes it.
package query

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Node is one predicate in the filter tree.
type Node interface {
	compile(b *builder)
}

// Equals matches rows whose column equals the value.
type Equals struct {
	Field string
	Value interface{}
}

// In matches rows whose column is one of the values. An empty value set
// matches nothing.
type In struct {
	Field  string
	Values []interface{}
}

// LessEqual matches rows whose column is less than or equal to the value.
type LessEqual struct {
	Field string
	Value interface{}
}

// Contains matches rows whose array column overlaps the given set.
type Contains struct {
	Field  string
	Values []string
}

// ILike matches rows whose column matches the pattern case-insensitively.
type ILike struct {
	Field   string
	Pattern string
}

// And is the conjunction of its children. Empty children are skipped.
type And struct {
	Nodes []Node
}

// Or is the disjunction of its children. Empty children are skipped.
type Or struct {
	Nodes []Node
}

// NewAnd builds a conjunction, dropping nil children.
func NewAnd(nodes ...Node) And {
	return And{Nodes: compact(nodes)}
}

// NewOr builds a disjunction, dropping nil children.
func NewOr(nodes ...Node) Or {
	return Or{Nodes: compact(nodes)}
}

// StringsIn builds an In node from a string set.
func StringsIn(field string, values []string) In {
	vs := make([]interface{}, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return In{Field: field, Values: vs}
}

// ToSQL compiles the node into a SQL condition and its arguments.
// Placeholder numbering starts at argOffset+1. A nil or empty node
// compiles to an empty condition.
func ToSQL(n Node, argOffset int) (string, []interface{}) {
	if n == nil {
		return "", nil
	}
	b := &builder{offset: argOffset}
	n.compile(b)
	return b.sql.String(), b.args
}

type builder struct {
	sql    strings.Builder
	args   []interface{}
	offset int
}

func (b *builder) placeholder(value interface{}) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", b.offset+len(b.args))
}

func (e Equals) compile(b *builder) {
	fmt.Fprintf(&b.sql, "%s = %s", e.Field, b.placeholder(e.Value))
}

func (i In) compile(b *builder) {
	if len(i.Values) == 0 {
		b.sql.WriteString("FALSE")
		return
	}
	placeholders := make([]string, len(i.Values))
	for idx, v := range i.Values {
		placeholders[idx] = b.placeholder(v)
	}
	fmt.Fprintf(&b.sql, "%s IN (%s)", i.Field, strings.Join(placeholders, ", "))
}

func (l LessEqual) compile(b *builder) {
	fmt.Fprintf(&b.sql, "%s <= %s", l.Field, b.placeholder(l.Value))
}

func (c Contains) compile(b *builder) {
	if len(c.Values) == 0 {
		b.sql.WriteString("FALSE")
		return
	}
	fmt.Fprintf(&b.sql, "%s && %s", c.Field, b.placeholder(pq.Array(c.Values)))
}

func (i ILike) compile(b *builder) {
	fmt.Fprintf(&b.sql, "%s ILIKE %s", i.Field, b.placeholder(i.Pattern))
}

func (a And) compile(b *builder) {
	compileJoin(b, a.Nodes, " AND ")
}

func (o Or) compile(b *builder) {
	compileJoin(b, o.Nodes, " OR ")
}

func compileJoin(b *builder, nodes []Node, sep string) {
	nodes = compact(nodes)
	switch len(nodes) {
	case 0:
		return
	case 1:
		nodes[0].compile(b)
		return
	}
	b.sql.WriteString("(")
	for i, n := range nodes {
		if i > 0 {
			b.sql.WriteString(sep)
		}
		n.compile(b)
	}
	b.sql.WriteString(")")
}

func compact(nodes []Node) []Node {
	out := nodes[:0:0]
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if empty(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func empty(n Node) bool {
	switch v := n.(type) {
	case And:
		return len(compact(v.Nodes)) == 0
	case Or:
		return len(compact(v.Nodes)) == 0
	}
	return false
}
