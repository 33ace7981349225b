// Package table is the generic list transform behind every index page:
// case-insensitive search, single-column stable sort and fixed-size
// pagination over an in-memory slice, driven by typed column descriptors.
//
// The transform never performs I/O and never mutates its input.
package table

import (
	"html/template"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// DefaultPageSize is used when Options.PageSize is not positive.
const DefaultPageSize = 10

// Field is a named string projection of a row, used for searching.
type Field[T any] struct {
	Key   string
	Value func(T) string
}

// Options configure a Table.
type Options[T any] struct {
	PageSize int

	// SearchFields are matched against the search query. Ignored when
	// SearchAll is set.
	SearchFields []Field[T]

	// SearchAll matches the query against every column's value.
	SearchAll bool

	// RowHref, when set, makes each row a link to the returned URL.
	RowHref func(T) string

	EmptyMessage      string
	SearchPlaceholder string
}

// Table is a reusable descriptor; it holds no per-request state.
type Table[T any] struct {
	cols []Column[T]
	opts Options[T]
}

func New[T any](cols []Column[T], opts Options[T]) *Table[T] {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.EmptyMessage == "" {
		opts.EmptyMessage = "Мэдээлэл олдсонгүй"
	}
	if opts.SearchPlaceholder == "" {
		opts.SearchPlaceholder = "Хайх..."
	}
	return &Table[T]{cols: cols, opts: opts}
}

func (t *Table[T]) Columns() []Column[T] {
	return t.cols
}

func (t *Table[T]) PageSize() int {
	return t.opts.PageSize
}

func (t *Table[T]) column(key string) (Column[T], bool) {
	for _, c := range t.cols {
		if c.Key == key {
			return c, true
		}
	}
	return Column[T]{}, false
}

func (t *Table[T]) searchable() bool {
	return t.opts.SearchAll || len(t.opts.SearchFields) > 0
}

// Filter returns the rows matching query, keeping their order.
func (t *Table[T]) Filter(rows []T, query string) []T {
	if query == "" {
		return rows
	}
	q := strings.ToLower(query)
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if t.matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func (t *Table[T]) matches(r T, q string) bool {
	if t.opts.SearchAll {
		for _, c := range t.cols {
			if c.Value != nil && strings.Contains(strings.ToLower(c.Value(r)), q) {
				return true
			}
		}
		return false
	}
	for _, f := range t.opts.SearchFields {
		if strings.Contains(strings.ToLower(f.Value(r)), q) {
			return true
		}
	}
	return false
}

// Sort returns a sorted copy of rows. Unknown or unsortable keys leave the
// order unchanged. The sort is stable, so ties keep their input order.
func (t *Table[T]) Sort(rows []T, key string, desc bool) []T {
	col, ok := t.column(key)
	if !ok || !col.Sortable() {
		return rows
	}
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b T) int {
		if desc {
			return col.Compare(b, a)
		}
		return col.Compare(a, b)
	})
	return out
}

// Apply filters, sorts and paginates rows for st. The requested page is
// clamped into [1, TotalPages], so a shrinking result never yields an empty
// page past the end.
func (t *Table[T]) Apply(rows []T, st State) View[T] {
	filtered := t.Filter(rows, st.Search)
	sorted := t.Sort(filtered, st.SortKey, st.Desc)

	total := len(sorted)
	st.Page = clampPage(st.Page, totalPages(total, t.opts.PageSize))
	start := (st.Page - 1) * t.opts.PageSize
	end := min(start+t.opts.PageSize, total)
	return t.view(sorted[start:end], total, start, st)
}

// Remote wraps a page the backend already filtered and paginated. Only the
// presentation is shared with Apply.
func (t *Table[T]) Remote(rows []T, total int, st State) View[T] {
	st.Page = clampPage(st.Page, totalPages(total, t.opts.PageSize))
	start := (st.Page - 1) * t.opts.PageSize
	if len(rows) > t.opts.PageSize {
		rows = rows[:t.opts.PageSize]
	}
	return t.view(rows, total, start, st)
}

func (t *Table[T]) view(rows []T, total, start int, st State) View[T] {
	v := View[T]{
		Items:             rows,
		Total:             total,
		Page:              st.Page,
		PageSize:          t.opts.PageSize,
		TotalPages:        totalPages(total, t.opts.PageSize),
		State:             st,
		Searchable:        t.searchable(),
		SearchPlaceholder: t.opts.SearchPlaceholder,
		EmptyMessage:      t.opts.EmptyMessage,
	}
	if len(rows) > 0 {
		v.From = start + 1
		v.To = start + len(rows)
	}

	for _, c := range t.cols {
		h := Header{Key: c.Key, Title: c.Header, Class: c.Class, Sortable: c.Sortable()}
		if h.Sortable {
			h.Active = st.SortKey == c.Key
			h.Desc = h.Active && st.Desc
			h.Href = st.ToggleSort(c.Key).Link()
		}
		v.Headers = append(v.Headers, h)
	}

	for i, r := range rows {
		row := Row{Cells: make([]Cell, 0, len(t.cols))}
		if t.opts.RowHref != nil {
			row.Href = t.opts.RowHref(r)
		}
		for _, c := range t.cols {
			row.Cells = append(row.Cells, Cell{HTML: c.render(r, i), Class: c.Class})
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

func totalPages(total, size int) int {
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

func clampPage(page, total int) int {
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}

// Header is one rendered column header.
type Header struct {
	Key      string
	Title    string
	Class    string
	Sortable bool
	Active   bool
	Desc     bool
	Href     string
}

type Cell struct {
	HTML  template.HTML
	Class string
}

type Row struct {
	Href  string
	Cells []Cell
}

// View is the result of one table transform, ready for a template.
type View[T any] struct {
	Headers []Header
	Rows    []Row
	Items   []T

	Total      int
	Page       int
	PageSize   int
	TotalPages int
	From, To   int

	State             State
	Searchable        bool
	SearchPlaceholder string
	EmptyMessage      string
}

func (v View[T]) HasPrev() bool { return v.Page > 1 }
func (v View[T]) HasNext() bool { return v.Page < v.TotalPages }

func (v View[T]) PrevHref() string { return v.State.WithPage(v.Page - 1).Link() }
func (v View[T]) NextHref() string { return v.State.WithPage(v.Page + 1).Link() }

// State is the user-controlled part of a table, carried in the query string.
type State struct {
	Search  string
	SortKey string
	Desc    bool
	Page    int

	// Prefix namespaces the query keys, so several tables can share a page.
	Prefix string
	// Rest holds the query parameters that belong to the rest of the page.
	// Links and the search form carry them unchanged.
	Rest url.Values
}

// ParseState reads q, sort, dir and page from a query string.
func ParseState(q url.Values) State {
	return parseState(q, "")
}

// ParseSection reads the state of one of several tables on a page. Its keys
// are prefixed with prefix; every other parameter is kept in Rest.
func ParseSection(q url.Values, prefix string) State {
	st := parseState(q, prefix)
	st.Rest = url.Values{}
	for k, vs := range q {
		if !st.owns(k) {
			st.Rest[k] = slices.Clone(vs)
		}
	}
	return st
}

func parseState(q url.Values, prefix string) State {
	st := State{
		Search:  strings.TrimSpace(q.Get(prefix + "q")),
		SortKey: q.Get(prefix + "sort"),
		Desc:    q.Get(prefix+"dir") == "desc",
		Page:    1,
		Prefix:  prefix,
	}
	if p, err := strconv.Atoi(q.Get(prefix + "page")); err == nil && p > 0 {
		st.Page = p
	}
	return st
}

// Key is the query parameter name of one of the state's own keys.
func (s State) Key(name string) string {
	return s.Prefix + name
}

func (s State) owns(key string) bool {
	switch key {
	case s.Key("q"), s.Key("sort"), s.Key("dir"), s.Key("page"):
		return true
	}
	return false
}

// WithSearch changes the query and goes back to the first page.
func (s State) WithSearch(q string) State {
	s.Search = q
	s.Page = 1
	return s
}

// ToggleSort sorts ascending by a new column, or flips the direction when
// key is already the active column.
func (s State) ToggleSort(key string) State {
	if s.SortKey == key {
		s.Desc = !s.Desc
		return s
	}
	s.SortKey = key
	s.Desc = false
	return s
}

func (s State) WithPage(p int) State {
	s.Page = p
	return s
}

func (s State) Values() url.Values {
	v := url.Values{}
	for k, vs := range s.Rest {
		if !s.owns(k) {
			v[k] = slices.Clone(vs)
		}
	}
	if s.Search != "" {
		v.Set(s.Key("q"), s.Search)
	}
	if s.SortKey != "" {
		v.Set(s.Key("sort"), s.SortKey)
		if s.Desc {
			v.Set(s.Key("dir"), "desc")
		}
	}
	if s.Page > 1 {
		v.Set(s.Key("page"), strconv.Itoa(s.Page))
	}
	return v
}

// Link is a relative URL (query only) for the state.
func (s State) Link() string {
	return "?" + s.Values().Encode()
}
