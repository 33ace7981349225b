package table

import (
	"cmp"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column describes one table column over rows of type T.
type Column[T any] struct {
	Key    string
	Header string
	Class  string

	// Value is the plain-text cell content, also used for search.
	Value func(T) string

	// Compare orders two rows by this column. Nil makes it unsortable.
	Compare func(a, b T) int

	// Render overrides the escaped Value. The int is the row index on the page.
	Render func(T, int) template.HTML
}

func (c Column[T]) Sortable() bool {
	return c.Compare != nil
}

func (c Column[T]) render(r T, i int) template.HTML {
	if c.Render != nil {
		return c.Render(r, i)
	}
	if c.Value == nil {
		return ""
	}
	return template.HTML(template.HTMLEscapeString(c.Value(r)))
}

// Field returns the column as a search field.
func (c Column[T]) Field() Field[T] {
	return Field[T]{Key: c.Key, Value: c.Value}
}

// WithRender returns a copy of c with a custom cell renderer.
func (c Column[T]) WithRender(fn func(T, int) template.HTML) Column[T] {
	c.Render = fn
	return c
}

func (c Column[T]) WithClass(class string) Column[T] {
	c.Class = class
	return c
}

// Unsortable returns a copy of c without a comparator.
func (c Column[T]) Unsortable() Column[T] {
	c.Compare = nil
	return c
}

// Text is a string column compared lexically, byte by byte.
func Text[T any](key, header string, get func(T) string) Column[T] {
	return Column[T]{
		Key:     key,
		Header:  header,
		Value:   get,
		Compare: func(a, b T) int { return strings.Compare(get(a), get(b)) },
	}
}

func Int[T any](key, header string, get func(T) int) Column[T] {
	return Column[T]{
		Key:     key,
		Header:  header,
		Value:   func(r T) string { return strconv.Itoa(get(r)) },
		Compare: func(a, b T) int { return cmp.Compare(get(a), get(b)) },
	}
}

func Decimal[T any](key, header string, get func(T) decimal.Decimal) Column[T] {
	return Column[T]{
		Key:     key,
		Header:  header,
		Value:   func(r T) string { return get(r).String() },
		Compare: func(a, b T) int { return get(a).Cmp(get(b)) },
	}
}

// Time is a time column formatted with layout. Zero times render as "-" and
// sort first.
func Time[T any](key, header, layout string, get func(T) time.Time) Column[T] {
	return Column[T]{
		Key:    key,
		Header: header,
		Value: func(r T) string {
			t := get(r)
			if t.IsZero() {
				return "-"
			}
			return t.Format(layout)
		},
		Compare: func(a, b T) int { return get(a).Compare(get(b)) },
	}
}

// Custom is an unsortable column rendered by fn.
func Custom[T any](key, header string, fn func(T, int) template.HTML) Column[T] {
	return Column[T]{
		Key:    key,
		Header: header,
		Render: fn,
	}
}
