package holidays

import "time"

// easterSundays covers the years the business actively books into.
var easterSundays = map[int]time.Time{
	2024: date(2024, time.March, 31),
	2025: date(2025, time.April, 20),
	2026: date(2026, time.April, 5),
	2027: date(2027, time.March, 28),
	2028: date(2028, time.April, 16),
	2029: date(2029, time.April, 1),
	2030: date(2030, time.April, 21),
	2031: date(2031, time.April, 13),
	2032: date(2032, time.March, 28),
	2033: date(2033, time.April, 17),
	2034: date(2034, time.April, 9),
	2035: date(2035, time.March, 25),
}

// EasterSunday returns Western Easter Sunday for the year.
func EasterSunday(year int) time.Time {
	if d, ok := easterSundays[year]; ok {
		return d
	}
	return computeEaster(year)
}

// computeEaster is the Anonymous Gregorian algorithm (Meeus/Jones/Butcher).
func computeEaster(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(year, time.Month(month), day)
}
