package timeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SecondsPerDay is the exclusive upper bound of a TimeOfDay.
const SecondsPerDay = 24 * 60 * 60

// TimeOfDay is a wall-clock time expressed as seconds since midnight.
// No timezone is attached; the parent schedule's timezone label is informational.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS" in 24h notation.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, invalid("start_time", fmt.Sprintf("%q is not HH:MM[:SS]", s))
	}

	limits := []int{23, 59, 59}
	values := make([]int, 3)
	for i, p := range parts {
		if len(p) != 2 {
			return 0, invalid("start_time", fmt.Sprintf("%q is not HH:MM[:SS]", s))
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, invalid("start_time", fmt.Sprintf("%q is not a valid time of day", s))
		}
		values[i] = n
	}
	return Clock(values[0], values[1], values[2]), nil
}

// Clock builds a TimeOfDay from its components without validation.
func Clock(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// Valid reports whether t lies within a single day.
func (t TimeOfDay) Valid() bool { return t >= 0 && t < SecondsPerDay }

// Add returns t shifted by the given number of seconds. The result is not wrapped at midnight.
func (t TimeOfDay) Add(seconds int) TimeOfDay { return t + TimeOfDay(seconds) }

func (t TimeOfDay) String() string {
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// DaySet is either unrestricted (every day of the week) or an explicit,
// non-empty set of weekdays where 0 is Sunday and 6 is Saturday.
// The zero value is unrestricted.
type DaySet struct {
	restricted bool
	mask       uint8
}

// EveryDay returns the unrestricted day set.
func EveryDay() DaySet { return DaySet{} }

// Weekdays returns a restricted set holding the given weekdays. Callers are
// expected to pass values in 0..6; use NewDaySet for untrusted input.
func Weekdays(days ...time.Weekday) DaySet {
	ds := DaySet{restricted: true}
	for _, d := range days {
		ds.mask |= 1 << uint(d)
	}
	return ds
}

// NewDaySet validates raw weekday numbers. A nil slice means "every day";
// a non-nil empty slice is rejected rather than being read as "every day".
func NewDaySet(days []int) (DaySet, error) {
	if days == nil {
		return EveryDay(), nil
	}
	if len(days) == 0 {
		return DaySet{}, invalid("day_of_week", "must not be empty; omit it to play every day")
	}
	ds := DaySet{restricted: true}
	for _, d := range days {
		if d < 0 || d > 6 {
			return DaySet{}, invalid("day_of_week", fmt.Sprintf("weekday %d is outside 0-6", d))
		}
		ds.mask |= 1 << uint(d)
	}
	return ds, nil
}

// Unrestricted reports whether the set matches every day.
func (d DaySet) Unrestricted() bool { return !d.restricted }

// Contains reports whether the set matches the given weekday.
func (d DaySet) Contains(w time.Weekday) bool {
	return !d.restricted || d.mask&(1<<uint(w)) != 0
}

// Days returns the sorted weekday numbers, or nil for the unrestricted set.
func (d DaySet) Days() []int {
	if !d.restricted {
		return nil
	}
	out := make([]int, 0, 7)
	for w := 0; w < 7; w++ {
		if d.mask&(1<<uint(w)) != 0 {
			out = append(out, w)
		}
	}
	return out
}

func (d DaySet) String() string {
	if !d.restricted {
		return "every day"
	}
	parts := make([]string, 0, 7)
	for _, w := range d.Days() {
		parts = append(parts, time.Weekday(w).String()[:3])
	}
	return strings.Join(parts, ",")
}

func (d DaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Days())
}

func (d *DaySet) UnmarshalJSON(b []byte) error {
	var days []int
	if err := json.Unmarshal(b, &days); err != nil {
		return err
	}
	v, err := NewDaySet(days)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// DaysOverlap is true if either side is unrestricted or both share a weekday.
func DaysOverlap(a, b DaySet) bool {
	if !a.restricted || !b.restricted {
		return true
	}
	return a.mask&b.mask != 0
}

// Date is a calendar day with no time-of-day or zone.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

// NewDate normalizes the given components the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf takes the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%q is not a YYYY-MM-DD date", s)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time              { return d.t }
func (d Date) Weekday() time.Weekday        { return d.t.Weekday() }
func (d Date) Before(other Date) bool       { return d.t.Before(other.t) }
func (d Date) After(other Date) bool        { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool        { return d.t.Equal(other.t) }
func (d Date) String() string               { return d.t.Format(dateLayout) }
func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// DateRange is an inclusive calendar range. Either bound may be missing,
// meaning the range is open in that direction; the zero value is fully unbounded.
type DateRange struct {
	start, end       Date
	hasStart, hasEnd bool
}

// Always returns the fully unbounded range.
func Always() DateRange { return DateRange{} }

// Between builds a range from optional bounds and rejects end < start.
func Between(start, end *Date) (DateRange, error) {
	var r DateRange
	if start != nil {
		r.start, r.hasStart = *start, true
	}
	if end != nil {
		r.end, r.hasEnd = *end, true
	}
	if r.hasStart && r.hasEnd && r.end.Before(r.start) {
		return DateRange{}, invalid("end_date", fmt.Sprintf("%s is before start date %s", r.end, r.start))
	}
	return r, nil
}

// Unbounded reports whether neither bound is set.
func (r DateRange) Unbounded() bool { return !r.hasStart && !r.hasEnd }

// Start returns the lower bound, or nil when open.
func (r DateRange) Start() *Date {
	if !r.hasStart {
		return nil
	}
	d := r.start
	return &d
}

// End returns the upper bound, or nil when open.
func (r DateRange) End() *Date {
	if !r.hasEnd {
		return nil
	}
	d := r.end
	return &d
}

// Contains reports whether the day falls within the inclusive bounds.
func (r DateRange) Contains(d Date) bool {
	if r.hasStart && d.Before(r.start) {
		return false
	}
	if r.hasEnd && d.After(r.end) {
		return false
	}
	return true
}

func (r DateRange) String() string {
	if r.Unbounded() {
		return "always"
	}
	lo, hi := "-inf", "+inf"
	if r.hasStart {
		lo = r.start.String()
	}
	if r.hasEnd {
		hi = r.end.String()
	}
	return "[" + lo + ", " + hi + "]"
}

// DateRangesOverlap treats missing bounds as -inf/+inf; two ranges overlap
// iff a.start <= b.end and b.start <= a.end.
func DateRangesOverlap(a, b DateRange) bool {
	if a.hasStart && b.hasEnd && a.start.After(b.end) {
		return false
	}
	if b.hasStart && a.hasEnd && b.start.After(a.end) {
		return false
	}
	return true
}
