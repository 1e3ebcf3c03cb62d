// Package stats derives leaderboards, summaries and streaks from score
// record rows. Everything here is pure: no I/O, no hidden state, no
// wall-clock access.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/domain"
)

const day = 24 * time.Hour

// StreakResult holds a player's consecutive-day streaks and the derived
// status text.
type StreakResult struct {
	Current int    `json:"current"`
	Longest int    `json:"longest"`
	Status  string `json:"status"`
}

// Streaks computes the current and longest consecutive-day streaks over
// a player's posted dates. The input need not be sorted or distinct;
// duplicates are collapsed before counting. The caller supplies today
// so the calculation carries no wall-clock coupling.
func Streaks(dates []time.Time, today time.Time) StreakResult {
	dates = normalize(dates)
	if len(dates) == 0 {
		return StreakResult{Status: "no scores yet"}
	}

	longest := 1
	run := 1
	for i := 1; i < len(dates); i++ {
		if dates[i].Sub(dates[i-1]) == day {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	today = truncate(today)
	yesterday := today.Add(-day)
	recent := dates[len(dates)-1]

	current := 0
	if recent.Equal(today) || recent.Equal(yesterday) {
		current = 1
		for i := len(dates) - 2; i >= 0; i-- {
			if dates[i+1].Sub(dates[i]) != day {
				break
			}
			current++
		}
	}

	return StreakResult{
		Current: current,
		Longest: longest,
		Status:  streakStatus(current, recent, today),
	}
}

// streakStatus derives the status text from the current streak, the
// most recent posted date and today.
func streakStatus(current int, recent, today time.Time) string {
	switch {
	case current == 0:
		return "no active streak"
	case recent.Equal(today):
		return fmt.Sprintf("currently on a %d-day streak", current)
	case recent.Equal(today.Add(-day)):
		return fmt.Sprintf("had a %d-day streak, but it ended yesterday", current)
	default:
		return "no active streak"
	}
}

// DistinctDates extracts the ascending, de-duplicated list of posted
// dates from a row set ordered per the store contract.
func DistinctDates(rows []domain.ScoreRow) ([]time.Time, error) {
	seen := make(map[string]struct{}, len(rows))
	dates := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.GameDate]; ok {
			continue
		}
		seen[row.GameDate] = struct{}{}
		d, err := time.Parse(domain.DateLayout, row.GameDate)
		if err != nil {
			return nil, fmt.Errorf("parsing game date %q: %w", row.GameDate, err)
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// normalize truncates to day precision, de-duplicates and sorts
// ascending.
func normalize(dates []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = truncate(d)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
