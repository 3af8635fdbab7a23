package db

import (
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// Match selects how a filter parameter is compared with its column.
type Match int

const (
	// MatchExact compares the column with the value for equality.
	MatchExact Match = iota
	// MatchPrefix matches columns starting with the value.
	MatchPrefix
	// MatchInteger is MatchExact on an integer column; the value must parse.
	MatchInteger
)

// FilterKey maps a request parameter onto an allow-listed column.
type FilterKey struct {
	Param  string
	Column string
	Match  Match
}

// Columns is the per-entity allow-list consulted by BuildFilter. Only the
// identifiers listed here ever end up in SQL text; values are always bound.
type Columns struct {
	Filters []FilterKey

	// Sortable maps the names accepted by "sort" and "sort.desc" to the
	// expression used in ORDER BY.
	Sortable map[string]string
}

// Parameter names understood by BuildFilter besides the entity filters.
const (
	ParamSort     = "sort"
	ParamSortDesc = "sort.desc"
	ParamLimit    = "limit"
	ParamOffset   = "offset"
)

// Filter is the compiled form of a parameter map. Limit and Offset are -1
// when not requested.
type Filter struct {
	Where  string
	Args   []any
	Order  []string
	Limit  int
	Offset int
}

// Empty reports whether the filter places no restriction on the rows.
func (f Filter) Empty() bool {
	return f.Where == "" && len(f.Order) == 0 && f.Limit < 0 && f.Offset < 0
}

// BuildFilter translates request parameters into a Filter. Unknown keys and
// empty values are ignored. A sort column outside cols.Sortable, a
// non-integer value for a MatchInteger key or a malformed limit/offset is a
// KindValidation error.
func BuildFilter(params map[string]string, cols Columns) (Filter, error) {
	f := Filter{Limit: -1, Offset: -1}

	var preds []string
	for _, k := range cols.Filters {
		v := params[k.Param]
		if v == "" {
			continue
		}
		switch k.Match {
		case MatchPrefix:
			preds = append(preds, k.Column+` LIKE ? ESCAPE '\'`)
			f.Args = append(f.Args, escapeLike(v)+"%")
		case MatchInteger:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return Filter{}, Validation(k.Param + " must be an integer")
			}
			preds = append(preds, k.Column+" = ?")
			f.Args = append(f.Args, n)
		default:
			preds = append(preds, k.Column+" = ?")
			f.Args = append(f.Args, v)
		}
	}
	f.Where = strings.Join(preds, " AND ")

	// sort.desc goes first when both are present.
	if name := params[ParamSortDesc]; name != "" {
		col, ok := cols.Sortable[name]
		if !ok {
			return Filter{}, Validation("cannot sort by " + strconv.Quote(name))
		}
		f.Order = append(f.Order, col+" DESC")
	}
	if name := params[ParamSort]; name != "" {
		col, ok := cols.Sortable[name]
		if !ok {
			return Filter{}, Validation("cannot sort by " + strconv.Quote(name))
		}
		f.Order = append(f.Order, col+" ASC")
	}

	var err error
	if f.Limit, err = parseCount(params, ParamLimit); err != nil {
		return Filter{}, err
	}
	if f.Offset, err = parseCount(params, ParamOffset); err != nil {
		return Filter{}, err
	}

	return f, nil
}

// Apply adds the filter's clauses to q. fallbackOrder is used when the
// filter carries no ordering of its own.
func (f Filter) Apply(q *gorm.DB, fallbackOrder string) *gorm.DB {
	if f.Where != "" {
		q = q.Where(f.Where, f.Args...)
	}
	if len(f.Order) == 0 && fallbackOrder != "" {
		q = q.Order(fallbackOrder)
	}
	for _, o := range f.Order {
		q = q.Order(o)
	}
	if f.Limit >= 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset >= 0 {
		q = q.Offset(f.Offset)
	}
	return q
}

func parseCount(params map[string]string, key string) (int, error) {
	v := params[key]
	if v == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return -1, Validation(key + " must be a non-negative integer")
	}
	return n, nil
}

// escapeLike neutralizes LIKE wildcards in a user value so "date" stays a
// literal prefix match.
func escapeLike(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(v)
}
