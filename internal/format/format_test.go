package format

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	sdyn "github.com/sdyn/go-sdyn"
)

func TestCurrency(t *testing.T) {
	tests := []struct {
		amount decimal.Decimal
		want   string
	}{
		{decimal.NewFromInt(50000), "50,000₮"},
		{decimal.NewFromInt(0), "0₮"},
		{decimal.NewFromInt(1234567), "1,234,567₮"},
		{decimal.RequireFromString("999.6"), "1,000₮"},
		{decimal.NewFromInt(-2500), "-2,500₮"},
		{decimal.RequireFromString("-0.4"), "0₮"},
		{decimal.RequireFromString("123456789012345678901234"), "123,456,789,012,345,678,901,234₮"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Currency(tt.amount), tt.amount.String())
	}
}

func TestNumberAndPercent(t *testing.T) {
	assert.Equal(t, "12,345", Number(12345))
	assert.Equal(t, "7", Number(7))
	assert.Equal(t, "87.5%", Percent(87.5))
}

func TestDates(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-09", Date(ts))
	assert.Equal(t, "2024-03-09 14:05", DateTime(ts))
	assert.Equal(t, "-", Date(time.Time{}))
	assert.Equal(t, "-", OptDate(nil))
	assert.Equal(t, "2024-03-09", OptDate(&ts))
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "дөнгөж сая", RelativeTime(now.Add(-10*time.Second), now))
	assert.Equal(t, "5 минутын өмнө", RelativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3 цагийн өмнө", RelativeTime(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2 цагийн дараа", RelativeTime(now.Add(2*time.Hour+time.Minute), now))
}

func TestPhone(t *testing.T) {
	assert.Equal(t, "99 11 22 33", Phone("99112233"))
	assert.Equal(t, "+976 99 11 22 33", Phone("+976-9911-2233"))
	assert.Equal(t, "12345", Phone("12345"))
}

func TestValidation(t *testing.T) {
	assert.True(t, IsValidEmail("bat@example.mn"))
	assert.False(t, IsValidEmail("bat@example"))
	assert.False(t, IsValidEmail("bat example@x.mn"))

	assert.True(t, IsValidPhone("9911 2233"))
	assert.True(t, IsValidPhone("+97699112233"))
	assert.False(t, IsValidPhone("991122"))
	assert.False(t, IsValidPhone("12399112233"))
}

func TestTruncateAndInitials(t *testing.T) {
	assert.Equal(t, "Батболд", Truncate("Батболд", 10))
	assert.Equal(t, "Бат...", Truncate("Батболд", 3))
	assert.Equal(t, "БД", Initials("болд", "дорж"))
	assert.Equal(t, "Б", Initials("Болд", ""))
	assert.Equal(t, "?", Initials("", ""))
}

func TestStatusDisplayIsTotal(t *testing.T) {
	var all []string
	for _, s := range sdyn.MemberStatuses {
		all = append(all, string(s))
	}
	for _, s := range sdyn.EventStatuses {
		all = append(all, string(s))
	}
	for _, s := range sdyn.FeeStatuses {
		all = append(all, string(s))
	}
	all = append(all, string(sdyn.MemberExpelled), string(sdyn.EventDraft), string(sdyn.FeeWaived))

	for _, s := range all {
		d := StatusDisplay(s)
		assert.NotEmpty(t, d.Label, s)
		assert.NotEqual(t, s, d.Label, "status %q has no label", s)
		assert.NotEmpty(t, d.Color.Bg, s)
		assert.NotEmpty(t, d.Color.Text, s)
	}
}

func TestStatusDisplayUnknown(t *testing.T) {
	d := StatusDisplay("archived")
	assert.Equal(t, "archived", d.Label)
	assert.Equal(t, Neutral, d.Color)

	assert.Equal(t, "-", StatusDisplay("").Label)
	assert.Equal(t, "Идэвхтэй", StatusLabel("active"))
}
