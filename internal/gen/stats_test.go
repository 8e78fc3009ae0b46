package gen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzhai/acmtrack/internal/models"
)

func solvedOn(t *testing.T, source, id, day string) models.ProblemRecord {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02", day, time.UTC)
	require.NoError(t, err)
	return models.ProblemRecord{
		ProblemInput: models.ProblemInput{Source: source, ID: id, Title: id, Status: models.ProblemSolved},
		SolvedAt:     &ts,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
}

func TestBuildStatsSeriesDaily(t *testing.T) {
	problems := []models.ProblemRecord{
		solvedOn(t, "codeforces", "1A", "2025-08-04"),
		solvedOn(t, "codeforces", "2B", "2025-08-04"),
		solvedOn(t, "codeforces", "3C", "2025-08-06"),
		solvedOn(t, "codeforces", "out-of-range", "2025-09-01"),
	}

	series, err := BuildStatsSeries(problems, models.PeriodDay, "2025-08-01", "2025-08-31")
	require.NoError(t, err)
	require.Len(t, series.Points, 2, "empty buckets are omitted")

	assert.Equal(t, "2025-08-04", series.Points[0].PeriodStart)
	assert.Equal(t, "2025-08-04", series.Points[0].PeriodEnd)
	assert.Equal(t, 2, series.Points[0].SolvedCount)
	assert.Equal(t, 2, series.Points[0].TotalCount)
	assert.Equal(t, "2025-08-06", series.Points[1].PeriodStart)
	assert.Equal(t, 1, series.Points[1].SolvedCount)
}

func TestBuildStatsSeriesWeeklyBucketsStartMonday(t *testing.T) {
	problems := []models.ProblemRecord{
		// 2025-08-06 is a Wednesday; its ISO week runs 08-04 through 08-10.
		solvedOn(t, "codeforces", "1A", "2025-08-06"),
		solvedOn(t, "codeforces", "2B", "2025-08-10"),
		solvedOn(t, "codeforces", "3C", "2025-08-11"),
	}

	series, err := BuildStatsSeries(problems, models.PeriodWeek, "2025-08-01", "2025-08-31")
	require.NoError(t, err)
	require.Len(t, series.Points, 2)
	assert.Equal(t, "2025-08-04", series.Points[0].PeriodStart)
	assert.Equal(t, "2025-08-10", series.Points[0].PeriodEnd)
	assert.Equal(t, 2, series.Points[0].SolvedCount)
	assert.Equal(t, "2025-08-11", series.Points[1].PeriodStart)
}

func TestBuildStatsSeriesMonthlyBuckets(t *testing.T) {
	problems := []models.ProblemRecord{
		solvedOn(t, "codeforces", "1A", "2025-06-15"),
		solvedOn(t, "codeforces", "2B", "2025-06-30"),
		solvedOn(t, "codeforces", "3C", "2025-07-01"),
	}

	series, err := BuildStatsSeries(problems, models.PeriodMonth, "2025-06-01", "2025-07-31")
	require.NoError(t, err)
	require.Len(t, series.Points, 2)
	assert.Equal(t, "2025-06-01", series.Points[0].PeriodStart)
	assert.Equal(t, "2025-06-30", series.Points[0].PeriodEnd)
	assert.Equal(t, 2, series.Points[0].SolvedCount)
	assert.Equal(t, "2025-07-01", series.Points[1].PeriodStart)
	assert.Equal(t, "2025-07-31", series.Points[1].PeriodEnd)
}

func TestBuildStatsSeriesRejectsBadRange(t *testing.T) {
	_, err := BuildStatsSeries(nil, models.PeriodDay, "2025-08-31", "2025-08-01")
	assert.Error(t, err)
	_, err = BuildStatsSeries(nil, models.PeriodDay, "not-a-date", "2025-08-01")
	assert.Error(t, err)
}

func TestResolveSolvedDateFallsBackToUpdatedAt(t *testing.T) {
	updated := time.Date(2025, 8, 5, 13, 45, 0, 0, time.UTC)
	record := models.ProblemRecord{
		ProblemInput: models.ProblemInput{Source: "codeforces", ID: "4A", Status: models.ProblemSolved},
		UpdatedAt:    updated,
	}
	day, ok := resolveSolvedDate(&record)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC), day)

	unsolved := models.ProblemRecord{
		ProblemInput: models.ProblemInput{Source: "codeforces", ID: "1B", Status: models.ProblemUnsolved},
		UpdatedAt:    updated,
	}
	_, ok = resolveSolvedDate(&unsolved)
	assert.False(t, ok)
}

func TestFilterSolvedBetween(t *testing.T) {
	problems := []models.ProblemRecord{
		solvedOn(t, "codeforces", "1A", "2025-08-04"),
		solvedOn(t, "codeforces", "2B", "2025-08-10"),
		solvedOn(t, "codeforces", "3C", "2025-08-11"),
	}
	from := time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)

	selected := FilterSolvedBetween(problems, from, to)
	require.Len(t, selected, 2)
	assert.Equal(t, "1A", selected[0].ID)
	assert.Equal(t, "2B", selected[1].ID)
}

func TestParseMonthTarget(t *testing.T) {
	start, end, err := ParseMonthTarget("2025-02")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", start.Format("2006-01-02"))
	assert.Equal(t, "2025-02-28", end.Format("2006-01-02"))

	_, _, err = ParseMonthTarget("2025-13")
	assert.Error(t, err)
	_, _, err = ParseMonthTarget("last month")
	assert.Error(t, err)
}
