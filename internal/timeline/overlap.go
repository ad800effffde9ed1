package timeline

// Slot is the recurring scope of a placement: a half-open time interval
// [Start, Start+Duration) repeated on Days within Dates.
type Slot struct {
	Start    TimeOfDay
	Duration int
	Days     DaySet
	Dates    DateRange
}

// End is the exclusive end of the slot. It is not wrapped past midnight.
func (s Slot) End() TimeOfDay { return s.Start.Add(s.Duration) }

// Item is one placement of a video on a schedule's timeline.
type Item struct {
	ID         int
	ScheduleID int
	VideoID    int
	Order      int
	Active     bool
	Slot
}

// PlaysOn reports whether the item is scheduled on the given calendar day.
func (it Item) PlaysOn(d Date) bool {
	return it.Active && it.Days.Contains(d.Weekday()) && it.Dates.Contains(d)
}

// timesOverlap uses half-open intervals, so back-to-back slots do not overlap.
func timesOverlap(a, b Slot) bool {
	return a.Start < b.End() && b.Start < a.End()
}

// Conflicts reports whether two slots collide in time, weekday and date range at once.
func Conflicts(a, b Slot) bool {
	return timesOverlap(a, b) && DaysOverlap(a.Days, b.Days) && DateRangesOverlap(a.Dates, b.Dates)
}
