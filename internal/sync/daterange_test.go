package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRange_IterAscendingInclusive(t *testing.T) {
	r := NewDateRange(day("2024-01-01"), day("2024-01-03"))

	var got []string
	it := r.Iter()
	for d, ok := it.Next(); ok; d, ok = it.Next() {
		got = append(got, d.Format("2006-01-02"))
	}
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, got)
	assert.Equal(t, 3, r.Len())
}

func TestDateRange_SingleDay(t *testing.T) {
	r := NewDateRange(day("2024-06-15"), day("2024-06-15"))
	it := r.Iter()
	d, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, day("2024-06-15"), d)
	_, ok = it.Next()
	assert.False(t, ok)
}

func TestDateRange_StartAfterEndYieldsNothing(t *testing.T) {
	r := NewDateRange(day("2024-01-03"), day("2024-01-01"))
	_, ok := r.Iter().Next()
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestDateRange_Restartable(t *testing.T) {
	r := NewDateRange(day("2024-01-01"), day("2024-01-02"))

	first := r.Iter()
	for _, ok := first.Next(); ok; _, ok = first.Next() {
	}

	d, ok := r.Iter().Next()
	require.True(t, ok)
	assert.Equal(t, day("2024-01-01"), d)
}

func TestDateRange_NormalizesTimeOfDayAndZone(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	start := time.Date(2024, 2, 28, 23, 45, 0, 0, loc)
	end := time.Date(2024, 3, 2, 1, 10, 0, 0, loc)

	var got []string
	it := NewDateRange(start, end).Iter()
	for d, ok := it.Next(); ok; d, ok = it.Next() {
		got = append(got, d.Format("2006-01-02"))
	}
	// leap year: Feb 29 exists, and no day repeats or drifts
	assert.Equal(t, []string{"2024-02-29", "2024-03-01", "2024-03-02"}, got)
}
