package pipeline_test

import (
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/pipeline"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wat = time.FixedZone("WAT", 3600)

func txAt(id string, at time.Time, amount int64) domain.CanonicalTransaction {
	return domain.CanonicalTransaction{
		ID:         id,
		Category:   domain.CategoryFundDeposit,
		Status:     domain.StatusSuccessful,
		Amount:     decimal.NewFromInt(amount),
		Currency:   "NGN",
		OccurredAt: at,
	}
}

func totals(buckets []domain.ChartBucket) []int64 {
	out := make([]int64, len(buckets))
	for i, b := range buckets {
		out[i] = b.Total.IntPart()
	}
	return out
}

func TestBucketize_EmptyInputKeepsSkeleton(t *testing.T) {
	now := time.Date(2025, 6, 11, 18, 0, 0, 0, wat)

	for period, want := range map[domain.Period]int{
		domain.PeriodDay:   pipeline.DayBuckets,
		domain.PeriodWeek:  pipeline.WeekBuckets,
		domain.PeriodMonth: pipeline.MonthBuckets,
	} {
		buckets, err := pipeline.Bucketize(nil, domain.ChartRequest{Period: period, Now: now})
		require.NoError(t, err)
		require.Len(t, buckets, want, "period %s", period)
		for _, b := range buckets {
			assert.True(t, b.Total.IsZero())
			assert.False(t, b.Peak)
		}
	}
}

func TestBucketize_DayPlacesRecordInItsHour(t *testing.T) {
	now := time.Date(2025, 6, 11, 18, 0, 0, 0, wat)
	records := []domain.CanonicalTransaction{
		txAt("a", time.Date(2025, 6, 11, 14, 32, 0, 0, wat), 5000),
		txAt("yesterday", time.Date(2025, 6, 10, 14, 32, 0, 0, wat), 999),
		{ID: "no-time", Amount: decimal.NewFromInt(7)},
	}

	buckets, err := pipeline.Bucketize(records, domain.ChartRequest{Period: domain.PeriodDay, Now: now})
	require.NoError(t, err)
	require.Len(t, buckets, 24)

	assert.Equal(t, "14:00-15:00", buckets[14].Label)
	assert.Equal(t, "23:00-00:00", buckets[23].Label)
	for i, b := range buckets {
		if i == 14 {
			assert.True(t, decimal.NewFromInt(5000).Equal(b.Total))
			assert.True(t, b.Peak)
			continue
		}
		assert.True(t, b.Total.IsZero(), "bucket %d", i)
		assert.False(t, b.Peak)
	}
}

func TestBucketize_DayUsesNowLocation(t *testing.T) {
	now := time.Date(2025, 6, 11, 18, 0, 0, 0, wat)
	// 13:32 UTC is 14:32 WAT.
	rec := txAt("utc", time.Date(2025, 6, 11, 13, 32, 0, 0, time.UTC), 10)

	buckets, err := pipeline.Bucketize([]domain.CanonicalTransaction{rec}, domain.ChartRequest{Period: domain.PeriodDay, Now: now})
	require.NoError(t, err)
	assert.Equal(t, int64(10), buckets[14].Total.IntPart())
}

func TestBucketize_WeekMondayToSunday(t *testing.T) {
	now := time.Date(2025, 6, 11, 9, 0, 0, 0, wat) // Wednesday
	records := []domain.CanonicalTransaction{
		txAt("mon", time.Date(2025, 6, 9, 8, 0, 0, 0, wat), 100),
		txAt("sun", time.Date(2025, 6, 15, 23, 59, 0, 0, wat), 300),
		txAt("prev-sun", time.Date(2025, 6, 8, 12, 0, 0, 0, wat), 1000),
		txAt("next-mon", time.Date(2025, 6, 16, 0, 0, 0, 0, wat), 1000),
	}

	buckets, err := pipeline.Bucketize(records, domain.ChartRequest{Period: domain.PeriodWeek, Now: now})
	require.NoError(t, err)

	assert.Equal(t, []int64{100, 0, 0, 0, 0, 0, 300}, totals(buckets))
	assert.Equal(t, "Mon", buckets[0].Label)
	assert.Equal(t, "Sun", buckets[6].Label)
	assert.True(t, buckets[6].Peak)
}

func TestBucketize_WeekOnSunday(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, wat) // Sunday
	buckets, err := pipeline.Bucketize(nil, domain.ChartRequest{Period: domain.PeriodWeek, Now: now})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, wat), buckets[0].Start)
}

func TestBucketize_MonthWeeks(t *testing.T) {
	now := time.Date(2025, 2, 10, 9, 0, 0, 0, wat)
	records := []domain.CanonicalTransaction{
		txAt("d1", time.Date(2025, 2, 1, 0, 0, 0, 0, wat), 1),
		txAt("d8", time.Date(2025, 2, 8, 0, 0, 0, 0, wat), 2),
		txAt("d28", time.Date(2025, 2, 28, 23, 0, 0, 0, wat), 4),
		txAt("mar1", time.Date(2025, 3, 1, 0, 0, 0, 0, wat), 100),
	}

	buckets, err := pipeline.Bucketize(records, domain.ChartRequest{Period: domain.PeriodMonth, Now: now})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 0, 4}, totals(buckets))
	assert.Equal(t, "Week 1", buckets[0].Label)
	assert.Equal(t, "Week 4", buckets[3].Label)
}

func TestBucketize_CustomSwapsReversedRange(t *testing.T) {
	now := time.Date(2025, 3, 20, 0, 0, 0, 0, wat)
	rng := &domain.DateRange{
		Start: time.Date(2025, 3, 10, 0, 0, 0, 0, wat),
		End:   time.Date(2025, 3, 1, 0, 0, 0, 0, wat),
	}
	records := []domain.CanonicalTransaction{
		txAt("in", time.Date(2025, 3, 10, 23, 0, 0, 0, wat), 40),
		txAt("first", time.Date(2025, 3, 1, 0, 0, 0, 0, wat), 2),
		txAt("out", time.Date(2025, 3, 11, 0, 0, 0, 0, wat), 1000),
	}

	buckets, err := pipeline.Bucketize(records, domain.ChartRequest{Period: domain.PeriodCustom, Range: rng, Now: now})
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, wat), buckets[0].Start)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, wat), buckets[0].End)
	assert.Equal(t, int64(42), buckets[0].Total.IntPart())
	assert.Equal(t, "01 Mar 2025 - 10 Mar 2025", buckets[0].Label)
}

func TestBucketize_CustomSubRangesInOrder(t *testing.T) {
	now := time.Date(2025, 3, 20, 0, 0, 0, 0, wat)
	rng := &domain.DateRange{Start: time.Date(2025, 3, 1, 0, 0, 0, 0, wat), End: time.Date(2025, 3, 14, 0, 0, 0, 0, wat)}
	subs := []domain.DateRange{
		{Start: time.Date(2025, 3, 8, 0, 0, 0, 0, wat), End: time.Date(2025, 3, 14, 0, 0, 0, 0, wat), Label: "second"},
		{Start: time.Date(2025, 3, 1, 0, 0, 0, 0, wat), End: time.Date(2025, 3, 7, 0, 0, 0, 0, wat), Label: "first"},
	}
	records := []domain.CanonicalTransaction{
		txAt("a", time.Date(2025, 3, 2, 0, 0, 0, 0, wat), 5),
		txAt("b", time.Date(2025, 3, 9, 0, 0, 0, 0, wat), 7),
	}

	buckets, err := pipeline.Bucketize(records, domain.ChartRequest{Period: domain.PeriodCustom, Range: rng, SubRanges: subs, Now: now})
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "first", buckets[0].Label)
	assert.Equal(t, []int64{5, 7}, totals(buckets))
	assert.True(t, buckets[1].Peak)
}

func TestBucketize_InvalidRequests(t *testing.T) {
	var validation *domain.ErrValidation

	_, err := pipeline.Bucketize(nil, domain.ChartRequest{Period: domain.PeriodCustom})
	assert.True(t, errors.As(err, &validation))

	_, err = pipeline.Bucketize(nil, domain.ChartRequest{Period: "year"})
	assert.True(t, errors.As(err, &validation))
}

func TestSwapRange(t *testing.T) {
	a := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.AddDate(0, 0, 5)

	got := pipeline.SwapRange(domain.DateRange{Start: b, End: a})
	assert.Equal(t, a, got.Start)
	assert.Equal(t, b, got.End)
}

func TestParseSubRanges(t *testing.T) {
	loc := time.FixedZone("WAT", 3600)
	ranges, skipped := pipeline.ParseSubRanges([]domain.RawRange{
		{Start: "2025-05-01", End: "2025-05-07", Label: "First"},
		{Start: "03/04/2025", End: "2025-05-14"},
		{Start: "15/05/2025", End: "21/05/2025"},
	}, loc)

	assert.Equal(t, 1, skipped)
	require.Len(t, ranges, 2)
	assert.Equal(t, "First", ranges[0].Label)
	assert.Equal(t, time.Date(2025, 5, 15, 0, 0, 0, 0, loc), ranges[1].Start)
	assert.Equal(t, time.Date(2025, 5, 21, 0, 0, 0, 0, loc), ranges[1].End)
}
