package sync

import (
	"time"

	"github.com/Sevenatila/dashdesenrolado/internal/models"
)

// DateRange is a closed interval of calendar days. Both bounds are
// normalized to UTC midnight, so iteration never drifts across timezones.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: models.DayUTC(start), End: models.DayUTC(end)}
}

// Iter returns a fresh iterator over the range, ascending. A range whose
// start is after its end yields nothing.
func (r DateRange) Iter() *DateIter {
	return &DateIter{next: r.Start, end: r.End}
}

// Len is the number of days the range covers.
func (r DateRange) Len() int {
	if r.Start.After(r.End) {
		return 0
	}
	return int(r.End.Sub(r.Start)/(24*time.Hour)) + 1
}

type DateIter struct {
	next time.Time
	end  time.Time
}

func (it *DateIter) Next() (time.Time, bool) {
	if it.next.After(it.end) {
		return time.Time{}, false
	}
	d := it.next
	it.next = it.next.AddDate(0, 0, 1)
	return d, true
}
