package postgres

import (
	"strconv"
	"strings"

	"github.com/lib/pq"

	"orderdesk/pkg/catalog"
)

type argCounter struct {
	args []any
}

func (c *argCounter) next(v any) string {
	c.args = append(c.args, v)
	return "$" + strconv.Itoa(len(c.args))
}

// compile turns a predicate into a WHERE fragment. Grouping mirrors
// Predicate.Match exactly: children of Or are joined with OR, children of
// And with AND, each group parenthesized.
func compile(p catalog.Predicate, c *argCounter) (string, []any) {
	clause := compileNode(p, c)
	return clause, c.args
}

func compileNode(p catalog.Predicate, c *argCounter) string {
	switch v := p.(type) {
	case catalog.All:
		return "TRUE"
	case catalog.Contains:
		return quoteIdent(v.Column) + " ILIKE '%' || " + c.next(v.Text) + " || '%'"
	case catalog.NotIn:
		if len(v.Keys) == 0 {
			return "TRUE"
		}
		return "NOT (" + quoteIdent(v.Column) + " = ANY(" + c.next(pq.Array(v.Keys)) + "))"
	case catalog.Or:
		// An empty disjunction matches nothing, mirroring Or.Match.
		return compileGroup([]catalog.Predicate(v), " OR ", "FALSE", c)
	case catalog.And:
		return compileGroup([]catalog.Predicate(v), " AND ", "TRUE", c)
	}
	return "TRUE"
}

func compileGroup(ps []catalog.Predicate, sep, empty string, c *argCounter) string {
	if len(ps) == 0 {
		return empty
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = compileNode(p, c)
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
