package table

import (
	"fmt"
	"html/template"
	"net/url"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	ID     string
	Name   string
	Email  string
	Age    int
	Fee    decimal.Decimal
	Joined time.Time
}

var people = []person{
	{"1", "Батболд", "bold@example.mn", 31, decimal.NewFromInt(50000), time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC)},
	{"2", "Сараа", "saraa@example.mn", 25, decimal.NewFromInt(20000), time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)},
	{"3", "Батцэцэг", "tsetseg@example.mn", 25, decimal.NewFromInt(30000), time.Date(2022, 7, 9, 0, 0, 0, 0, time.UTC)},
	{"4", "Дорж", "dorj@example.mn", 40, decimal.NewFromInt(10000), time.Time{}},
	{"5", "бат-эрдэнэ", "erdene@example.mn", 19, decimal.NewFromInt(50000), time.Date(2023, 2, 3, 0, 0, 0, 0, time.UTC)},
}

func columns() []Column[person] {
	return []Column[person]{
		Text("name", "Нэр", func(p person) string { return p.Name }),
		Int("age", "Нас", func(p person) int { return p.Age }),
		Decimal("fee", "Хураамж", func(p person) decimal.Decimal { return p.Fee }),
		Time("joined", "Элссэн", "2006-01-02", func(p person) time.Time { return p.Joined }),
		Custom("actions", "", func(p person, _ int) template.HTML { return template.HTML("<a>" + p.ID + "</a>") }),
	}
}

func ids(rows []person) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func newTable(size int) *Table[person] {
	return New(columns(), Options[person]{
		PageSize: size,
		SearchFields: []Field[person]{
			{Key: "name", Value: func(p person) string { return p.Name }},
			{Key: "email", Value: func(p person) string { return p.Email }},
		},
	})
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	tbl := newTable(10)
	v := tbl.Apply(people, State{Search: "Бат", Page: 1})
	assert.Equal(t, []string{"1", "3", "5"}, ids(v.Items))

	v = tbl.Apply(people, State{Search: "EXAMPLE.MN", Page: 1})
	assert.Equal(t, 5, v.Total)
}

func TestSearchFieldsOnly(t *testing.T) {
	tbl := newTable(10)
	v := tbl.Apply(people, State{Search: "40", Page: 1})
	assert.Empty(t, v.Items, "age is not a search field")

	all := New(columns(), Options[person]{SearchAll: true})
	v = all.Apply(people, State{Search: "40", Page: 1})
	assert.Equal(t, []string{"4"}, ids(v.Items))
}

func TestSearchSubsetIndependentOfSort(t *testing.T) {
	tbl := newTable(10)
	want := tbl.Apply(people, State{Search: "Бат", Page: 1})
	wantIDs := ids(want.Items)
	slices.Sort(wantIDs)

	for _, key := range []string{"", "name", "age", "fee", "joined"} {
		for _, desc := range []bool{false, true} {
			got := tbl.Apply(people, State{Search: "Бат", SortKey: key, Desc: desc, Page: 1})
			gotIDs := ids(got.Items)
			slices.Sort(gotIDs)
			assert.Equal(t, wantIDs, gotIDs, "sort=%s desc=%t", key, desc)
		}
	}
}

func TestSortLexicalAndTyped(t *testing.T) {
	tbl := newTable(10)

	v := tbl.Apply(people, State{SortKey: "age", Page: 1})
	assert.Equal(t, []string{"5", "2", "3", "1", "4"}, ids(v.Items), "ties keep input order")

	v = tbl.Apply(people, State{SortKey: "fee", Desc: true, Page: 1})
	assert.Equal(t, []string{"1", "5", "3", "2", "4"}, ids(v.Items))

	v = tbl.Apply(people, State{SortKey: "joined", Page: 1})
	assert.Equal(t, []string{"4", "2", "1", "3", "5"}, ids(v.Items))

	// Lexical: lower-case Cyrillic sorts after upper-case.
	v = tbl.Apply(people, State{SortKey: "name", Page: 1})
	assert.Equal(t, []string{"1", "3", "4", "2", "5"}, ids(v.Items))
}

func TestSortUnknownColumnKeepsOrder(t *testing.T) {
	tbl := newTable(10)
	v := tbl.Apply(people, State{SortKey: "actions", Page: 1})
	assert.Equal(t, ids(people), ids(v.Items))
	v = tbl.Apply(people, State{SortKey: "nope", Page: 1})
	assert.Equal(t, ids(people), ids(v.Items))
}

func TestToggleSortTwiceRestoresAscending(t *testing.T) {
	tbl := newTable(10)
	for _, key := range []string{"name", "age", "fee", "joined"} {
		st := State{Page: 1}.ToggleSort(key)
		require.False(t, st.Desc)
		first := tbl.Apply(people, st)

		st = st.ToggleSort(key)
		require.True(t, st.Desc)
		st = st.ToggleSort(key)
		require.False(t, st.Desc)
		again := tbl.Apply(people, st)

		assert.Equal(t, first.Items, again.Items, key)
		assert.Equal(t, first.Rows, again.Rows, key)
	}
}

func TestToggleSortNewColumnStartsAscending(t *testing.T) {
	st := State{SortKey: "name", Desc: true}.ToggleSort("age")
	assert.Equal(t, "age", st.SortKey)
	assert.False(t, st.Desc)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := slices.Clone(people)
	newTable(2).Apply(in, State{SortKey: "age", Desc: true, Page: 2})
	assert.Equal(t, people, in)
}

func TestPagination(t *testing.T) {
	tbl := newTable(2)
	v := tbl.Apply(people, State{Page: 2})
	assert.Equal(t, 3, v.TotalPages)
	assert.Equal(t, []string{"3", "4"}, ids(v.Items))
	assert.Equal(t, 3, v.From)
	assert.Equal(t, 4, v.To)
	assert.True(t, v.HasPrev())
	assert.True(t, v.HasNext())
	assert.Equal(t, "?", v.PrevHref())
	assert.Equal(t, "?page=3", v.NextHref())

	v = tbl.Apply(people, State{Page: 3})
	assert.Equal(t, []string{"5"}, ids(v.Items))
	assert.False(t, v.HasNext())
}

func TestPageClampedAfterShrinkingFilter(t *testing.T) {
	tbl := newTable(2)
	st := State{Page: 3}
	require.Len(t, tbl.Apply(people, st).Items, 1)

	// Typing a search keeps the stale page in the state only if the caller
	// forgets WithSearch; Apply still clamps.
	st.Search = "Бат"
	v := tbl.Apply(people, st)
	assert.Equal(t, 2, v.TotalPages)
	assert.Equal(t, 2, v.Page)
	assert.Equal(t, []string{"5"}, ids(v.Items))

	v = tbl.Apply(people, st.WithSearch("zzz"))
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, 1, v.TotalPages)
	assert.Empty(t, v.Rows)
	assert.Zero(t, v.From)

	for page := -1; page <= 10; page++ {
		v := tbl.Apply(people, State{Search: "Бат", Page: page})
		assert.GreaterOrEqual(t, v.Page, 1)
		assert.LessOrEqual(t, v.Page, v.TotalPages)
	}
}

func TestWithSearchResetsPage(t *testing.T) {
	st := State{Page: 4, SortKey: "age"}.WithSearch("бат")
	assert.Equal(t, 1, st.Page)
	assert.Equal(t, "age", st.SortKey)
}

func TestStateRoundTrip(t *testing.T) {
	q := url.Values{"q": {" Бат "}, "sort": {"age"}, "dir": {"desc"}, "page": {"3"}}
	st := ParseState(q)
	assert.Equal(t, State{Search: "Бат", SortKey: "age", Desc: true, Page: 3}, st)
	assert.Equal(t, st, ParseState(st.Values()))

	assert.Equal(t, 1, ParseState(url.Values{"page": {"x"}}).Page)
	assert.Equal(t, 1, ParseState(url.Values{"page": {"-2"}}).Page)
}

func TestSectionsKeepEachOthersState(t *testing.T) {
	q := url.Values{"fee_page": {"2"}, "hist_sort": {"date"}, "hist_dir": {"desc"}, "tab": {"x"}}
	fees := ParseSection(q, "fee_")
	assert.Equal(t, 2, fees.Page)
	assert.Empty(t, fees.SortKey)
	assert.Equal(t, url.Values{"hist_sort": {"date"}, "hist_dir": {"desc"}, "tab": {"x"}}, fees.Rest)

	hist := ParseSection(q, "hist_")
	assert.Equal(t, 1, hist.Page)
	assert.Equal(t, "date", hist.SortKey)
	assert.True(t, hist.Desc)

	next, err := url.ParseQuery(fees.WithPage(3).Link()[1:])
	require.NoError(t, err)
	assert.Equal(t, "3", next.Get("fee_page"))
	assert.Equal(t, "date", next.Get("hist_sort"))
	assert.Equal(t, "x", next.Get("tab"))
	assert.Empty(t, next.Get("page"))

	sorted, err := url.ParseQuery(hist.ToggleSort("date").Link()[1:])
	require.NoError(t, err)
	assert.Empty(t, sorted.Get("hist_dir"))
	assert.Equal(t, "2", sorted.Get("fee_page"))
}

func TestSectionPagesIndependently(t *testing.T) {
	tbl := newTable(2)
	v := tbl.Apply(people, ParseSection(url.Values{"p_page": {"2"}, "page": {"9"}}, "p_"))
	assert.Equal(t, 2, v.Page)
	assert.Equal(t, []string{"3", "4"}, ids(v.Items))
	assert.Contains(t, v.NextHref(), "p_page=3")
	assert.Contains(t, v.NextHref(), "page=9")
}

func TestRenderedRows(t *testing.T) {
	tbl := New(columns(), Options[person]{
		RowHref: func(p person) string { return fmt.Sprintf("/people/%s", p.ID) },
	})
	v := tbl.Apply([]person{{ID: "9", Name: "<b>Болд</b>", Age: 3}}, State{Page: 1})
	require.Len(t, v.Rows, 1)
	row := v.Rows[0]
	assert.Equal(t, "/people/9", row.Href)
	assert.Equal(t, template.HTML("&lt;b&gt;Болд&lt;/b&gt;"), row.Cells[0].HTML)
	assert.Equal(t, template.HTML("-"), row.Cells[3].HTML)
	assert.Equal(t, template.HTML("<a>9</a>"), row.Cells[4].HTML)
	assert.False(t, v.Searchable)

	require.Len(t, v.Headers, 5)
	assert.True(t, v.Headers[0].Sortable)
	assert.Equal(t, "?sort=name", v.Headers[0].Href)
	assert.False(t, v.Headers[4].Sortable)
}

func TestHeaderLinksToggleActiveColumn(t *testing.T) {
	v := newTable(10).Apply(people, State{SortKey: "age", Page: 1})
	assert.True(t, v.Headers[1].Active)
	assert.Equal(t, "?dir=desc&sort=age", v.Headers[1].Href)
	assert.Equal(t, "?sort=name", v.Headers[0].Href)
}

func TestRemote(t *testing.T) {
	tbl := newTable(2)
	v := tbl.Remote(people[2:4], 5, State{Page: 2, Search: "x"})
	assert.Equal(t, []string{"3", "4"}, ids(v.Items), "remote rows are not filtered again")
	assert.Equal(t, 3, v.TotalPages)
	assert.Equal(t, 3, v.From)
	assert.Equal(t, 4, v.To)

	v = tbl.Remote(nil, 0, State{Page: 7})
	assert.Equal(t, 1, v.Page)
}
