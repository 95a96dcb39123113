// Package holidays computes South African public holidays and business-day arithmetic.
// All dates are calendar dates at UTC midnight; a time.Time argument is reduced to the
// calendar date it shows in its own location.
package holidays

import (
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

// Holiday is a public holiday. Observed marks the Monday that replaces a holiday
// falling on a Sunday.
type Holiday struct {
	Date     time.Time `json:"date"`
	Name     string    `json:"name"`
	Observed bool      `json:"observed"`
}

type fixedHoliday struct {
	month time.Month
	day   int
	name  string
}

var fixedHolidays = []fixedHoliday{
	{time.January, 1, "New Year's Day"},
	{time.March, 21, "Human Rights Day"},
	{time.April, 27, "Freedom Day"},
	{time.May, 1, "Workers' Day"},
	{time.June, 16, "Youth Day"},
	{time.August, 9, "National Women's Day"},
	{time.September, 24, "Heritage Day"},
	{time.December, 16, "Day of Reconciliation"},
	{time.December, 25, "Christmas Day"},
	{time.December, 26, "Day of Goodwill"},
}

type yearHolidays struct {
	list []Holiday
	set  map[string]struct{}
}

// Calendar memoises holidays per year. Holidays of a year never change, so entries
// are never evicted.
type Calendar struct {
	mu    sync.Mutex
	years map[int]*yearHolidays
}

func New() *Calendar {
	return &Calendar{years: make(map[int]*yearHolidays)}
}

func date(year int, month time.Month, day int) time.Time {
	return timeutil.Date(year, month, day)
}

func (c *Calendar) year(year int) *yearHolidays {
	c.mu.Lock()
	defer c.mu.Unlock()

	if y, ok := c.years[year]; ok {
		return y
	}
	y := buildYear(year)
	c.years[year] = y
	return y
}

func buildYear(year int) *yearHolidays {
	easter := EasterSunday(year)

	base := make([]Holiday, 0, len(fixedHolidays)+2)
	for _, f := range fixedHolidays {
		base = append(base, Holiday{Date: date(year, f.month, f.day), Name: f.name})
	}
	base = append(base,
		Holiday{Date: easter.AddDate(0, 0, -2), Name: "Good Friday"},
		Holiday{Date: easter.AddDate(0, 0, 1), Name: "Family Day"},
	)

	y := &yearHolidays{set: make(map[string]struct{}, len(base)+4)}
	add := func(h Holiday) {
		key := timeutil.FormatDate(h.Date)
		if _, dup := y.set[key]; dup {
			return
		}
		y.set[key] = struct{}{}
		y.list = append(y.list, h)
	}

	for _, h := range base {
		add(h)
	}
	for _, h := range base {
		if h.Date.Weekday() == time.Sunday {
			add(Holiday{Date: h.Date.AddDate(0, 0, 1), Name: h.Name + " (observed)", Observed: true})
		}
	}

	sort.Slice(y.list, func(i, j int) bool { return y.list[i].Date.Before(y.list[j].Date) })
	return y
}

// PublicHolidays returns the holidays of a year in date order.
func (c *Calendar) PublicHolidays(year int) []Holiday {
	y := c.year(year)
	out := make([]Holiday, len(y.list))
	copy(out, y.list)
	return out
}

func (c *Calendar) PublicHolidayDates(year int) []time.Time {
	y := c.year(year)
	out := make([]time.Time, 0, len(y.list))
	for _, h := range y.list {
		out = append(out, h.Date)
	}
	return out
}

func IsWeekend(d time.Time) bool {
	wd := timeutil.Weekday(timeutil.DateOf(d))
	return wd == time.Saturday || wd == time.Sunday
}

// IsPublicHoliday reports whether the date is a public holiday, observed days included.
func (c *Calendar) IsPublicHoliday(d time.Time) bool {
	d = timeutil.DateOf(d)
	_, ok := c.year(d.Year()).set[timeutil.FormatDate(d)]
	return ok
}

// IsBusinessDay reports whether the date is neither a weekend nor a public holiday.
func (c *Calendar) IsBusinessDay(d time.Time) bool {
	return !IsWeekend(d) && !c.IsPublicHoliday(d)
}

// PrecedingBusinessDay returns d if it is a business day, otherwise the closest
// business day before it.
func (c *Calendar) PrecedingBusinessDay(d time.Time) time.Time {
	d = timeutil.DateOf(d)
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NextBusinessDay returns d if it is a business day, otherwise the closest business
// day after it.
func (c *Calendar) NextBusinessDay(d time.Time) time.Time {
	d = timeutil.DateOf(d)
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// AddBusinessDays moves forward n business days. Only business days are counted, so
// starting from a weekend the first step lands on the next business day.
func (c *Calendar) AddBusinessDays(d time.Time, n int) time.Time {
	if n < 0 {
		return c.SubtractBusinessDays(d, -n)
	}
	d = timeutil.DateOf(d)
	for remaining := n; remaining > 0; {
		d = d.AddDate(0, 0, 1)
		if c.IsBusinessDay(d) {
			remaining--
		}
	}
	return d
}

func (c *Calendar) SubtractBusinessDays(d time.Time, n int) time.Time {
	if n < 0 {
		return c.AddBusinessDays(d, -n)
	}
	d = timeutil.DateOf(d)
	for remaining := n; remaining > 0; {
		d = d.AddDate(0, 0, -1)
		if c.IsBusinessDay(d) {
			remaining--
		}
	}
	return d
}
