package gen

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rzhai/acmtrack/internal/models"
)

const dateLayout = "2006-01-02"

// ParseMonthTarget resolves a "YYYY-MM" phased-report target into the first
// and last day of the month.
func ParseMonthTarget(target string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01", target, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month target %q, expected YYYY-MM", target)
	}
	return start, start.AddDate(0, 1, -1), nil
}

// FilterSolvedBetween returns the problems whose solved date falls inside
// [from, to] inclusive.
func FilterSolvedBetween(problems []models.ProblemRecord, from, to time.Time) []models.ProblemRecord {
	var selected []models.ProblemRecord
	for idx := range problems {
		day, ok := resolveSolvedDate(&problems[idx])
		if !ok || day.Before(from) || day.After(to) {
			continue
		}
		selected = append(selected, problems[idx])
	}
	return selected
}

// resolveSolvedDate picks the UTC calendar date a problem counts under.
// Solved problems without an explicit solve timestamp fall back to their last
// update.
func resolveSolvedDate(record *models.ProblemRecord) (time.Time, bool) {
	if record.SolvedAt != nil {
		t := record.SolvedAt.UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	if record.Status == models.ProblemSolved {
		t := record.UpdatedAt.UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// bucketRange returns the inclusive bucket [start, end] containing day for
// the given period. Weeks start on Monday; months are calendar months.
func bucketRange(day time.Time, period models.StatsPeriod) (time.Time, time.Time) {
	switch period {
	case models.PeriodWeek:
		weekday := int(day.Weekday())
		// time.Weekday counts Sunday as 0.
		offset := (weekday + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 6)
	case models.PeriodMonth:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1)
	default:
		return day, day
	}
}

// BuildStatsSeries buckets solve activity between fromDate and toDate
// (inclusive, "2006-01-02") into the given period. Buckets with no activity
// are omitted.
func BuildStatsSeries(problems []models.ProblemRecord, period models.StatsPeriod, fromDate, toDate string) (*models.StatsSeries, error) {
	from, err := time.ParseInLocation(dateLayout, fromDate, time.UTC)
	if err != nil {
		return nil, errors.New("invalid from_date, expected YYYY-MM-DD")
	}
	to, err := time.ParseInLocation(dateLayout, toDate, time.UTC)
	if err != nil {
		return nil, errors.New("invalid to_date, expected YYYY-MM-DD")
	}
	if from.After(to) {
		return nil, errors.New("from_date must not be after to_date")
	}

	type counts struct {
		end                          time.Time
		solved, attempted, unsolved int
	}
	buckets := map[time.Time]*counts{}

	for idx := range problems {
		record := &problems[idx]
		day, ok := resolveSolvedDate(record)
		if !ok || day.Before(from) || day.After(to) {
			continue
		}
		start, end := bucketRange(day, period)
		bucket := buckets[start]
		if bucket == nil {
			bucket = &counts{end: end}
			buckets[start] = bucket
		}
		switch record.Status {
		case models.ProblemSolved:
			bucket.solved++
		case models.ProblemAttempted:
			bucket.attempted++
		case models.ProblemUnsolved:
			bucket.unsolved++
		}
	}

	starts := make([]time.Time, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	series := &models.StatsSeries{
		Period:   period,
		FromDate: fromDate,
		ToDate:   toDate,
		Points:   make([]models.StatsPoint, 0, len(starts)),
	}
	for _, start := range starts {
		bucket := buckets[start]
		series.Points = append(series.Points, models.StatsPoint{
			PeriodStart:    start.Format(dateLayout),
			PeriodEnd:      bucket.end.Format(dateLayout),
			SolvedCount:    bucket.solved,
			AttemptedCount: bucket.attempted,
			UnsolvedCount:  bucket.unsolved,
			TotalCount:     bucket.solved + bucket.attempted + bucket.unsolved,
		})
	}
	return series, nil
}
