package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"

	"github.com/shopspring/decimal"
)

// Fixed series lengths for the calendar periods.
const (
	DayBuckets   = 24
	WeekBuckets  = 7
	MonthBuckets = 4
)

var weekdayLabels = [WeekBuckets]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Bucketize aggregates record amounts into a chronological chart series.
//
// Day, Week and Month always return their full skeleton (24 hours, Monday to
// Sunday, Week 1 to Week 4 of the month containing req.Now), zero-filled when
// nothing falls in a slot. Custom returns one bucket per upstream sub-range,
// or a single bucket for the whole range when none were supplied; a reversed
// range is swapped. Records with an unknown time are skipped.
func Bucketize(records []domain.CanonicalTransaction, req domain.ChartRequest) ([]domain.ChartBucket, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	var buckets []domain.ChartBucket
	switch req.Period {
	case domain.PeriodDay:
		buckets = daySkeleton(now)
	case domain.PeriodWeek:
		buckets = weekSkeleton(now)
	case domain.PeriodMonth:
		buckets = monthSkeleton(now)
	case domain.PeriodCustom:
		if req.Range == nil {
			return nil, &domain.ErrValidation{Field: "range", Message: "custom period requires a start and end date"}
		}
		buckets = customSkeleton(*req.Range, req.SubRanges, now.Location())
	default:
		return nil, &domain.ErrValidation{Field: "period", Message: fmt.Sprintf("unknown period %q", req.Period)}
	}

	for _, r := range records {
		if !r.HasTime() {
			continue
		}
		for i := range buckets {
			if contains(buckets[i], r.OccurredAt) {
				buckets[i].Total = buckets[i].Total.Add(r.Amount)
			}
		}
	}

	markPeak(buckets)
	return buckets, nil
}

// SwapRange returns the range with start and end in chronological order.
func SwapRange(r domain.DateRange) domain.DateRange {
	if r.Start.After(r.End) {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

func contains(b domain.ChartBucket, t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func daySkeleton(now time.Time) []domain.ChartBucket {
	day := startOfDay(now)
	out := make([]domain.ChartBucket, DayBuckets)
	for h := range DayBuckets {
		out[h] = domain.ChartBucket{
			Label: fmt.Sprintf("%02d:00-%02d:00", h, (h+1)%24),
			Start: day.Add(time.Duration(h) * time.Hour),
			End:   day.Add(time.Duration(h+1) * time.Hour),
			Total: decimal.Zero,
		}
	}
	return out
}

func weekSkeleton(now time.Time) []domain.ChartBucket {
	offset := (int(now.Weekday()) + 6) % 7
	monday := startOfDay(now).AddDate(0, 0, -offset)
	out := make([]domain.ChartBucket, WeekBuckets)
	for i := range WeekBuckets {
		out[i] = domain.ChartBucket{
			Label: weekdayLabels[i],
			Start: monday.AddDate(0, 0, i),
			End:   monday.AddDate(0, 0, i+1),
			Total: decimal.Zero,
		}
	}
	return out
}

// monthSkeleton splits the month into days 1-7, 8-14, 15-21 and 22-end.
func monthSkeleton(now time.Time) []domain.ChartBucket {
	y, m, _ := now.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	out := make([]domain.ChartBucket, MonthBuckets)
	for i := range MonthBuckets {
		end := first.AddDate(0, 0, (i+1)*7)
		if i == MonthBuckets-1 {
			end = first.AddDate(0, 1, 0)
		}
		out[i] = domain.ChartBucket{
			Label: fmt.Sprintf("Week %d", i+1),
			Start: first.AddDate(0, 0, i*7),
			End:   end,
			Total: decimal.Zero,
		}
	}
	return out
}

func customSkeleton(r domain.DateRange, subs []domain.DateRange, loc *time.Location) []domain.ChartBucket {
	if len(subs) == 0 {
		subs = []domain.DateRange{r}
	}
	out := make([]domain.ChartBucket, 0, len(subs))
	for _, s := range subs {
		s = SwapRange(s)
		start := startOfDay(s.Start.In(loc))
		end := startOfDay(s.End.In(loc)).AddDate(0, 0, 1)
		label := s.Label
		if label == "" {
			label = rangeLabel(start, end)
		}
		out = append(out, domain.ChartBucket{Label: label, Start: start, End: end, Total: decimal.Zero})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func rangeLabel(start, end time.Time) string {
	last := end.AddDate(0, 0, -1)
	if last.Equal(start) {
		return start.Format("02 Jan 2006")
	}
	return start.Format("02 Jan 2006") + " - " + last.Format("02 Jan 2006")
}

// markPeak flags the first bucket holding the largest positive total.
func markPeak(buckets []domain.ChartBucket) {
	peak := -1
	for i, b := range buckets {
		if !b.Total.IsPositive() {
			continue
		}
		if peak < 0 || b.Total.GreaterThan(buckets[peak].Total) {
			peak = i
		}
	}
	if peak >= 0 {
		buckets[peak].Peak = true
	}
}

// ParseSubRanges reads upstream sub-ranges as range dates in loc. Entries
// with an unreadable start or end are skipped and counted.
func ParseSubRanges(raws []domain.RawRange, loc *time.Location) ([]domain.DateRange, int) {
	var out []domain.DateRange
	skipped := 0
	for _, raw := range raws {
		start, err1 := ParseRangeDate("start", raw.Start, loc)
		end, err2 := ParseRangeDate("end", raw.End, loc)
		if err1 != nil || err2 != nil {
			skipped++
			continue
		}
		out = append(out, domain.DateRange{Start: start, End: end, Label: raw.Label})
	}
	return out, skipped
}
