package stats

import (
	"sort"

	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/domain"
)

// PlayerSummary accumulates one player's results over a row set.
type PlayerSummary struct {
	PlayerID    string `json:"player_id"`
	PlayerName  string `json:"player_name"`
	GamesPlayed int    `json:"games_played"`
	TotalScore  int    `json:"total_score"`
	BestScore   int    `json:"best_score"`
	WorstScore  int    `json:"worst_score"`
}

// AverageScore returns the player's full-precision average. Rounding is
// a presentation concern. A summary with zero games averages to zero;
// grouping only produces summaries from at least one row, but the guard
// stays regardless.
func (s *PlayerSummary) AverageScore() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.TotalScore) / float64(s.GamesPlayed)
}

// DailyHigh is a player's single best score within a date window.
type DailyHigh struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Score      int    `json:"score"`
}

// Summarize groups rows by player in encounter order, accumulating
// totals, counts and best/worst scores. The row set is expected to be
// pre-filtered to one group and time window.
func Summarize(rows []domain.ScoreRow) []PlayerSummary {
	index := make(map[string]int, len(rows))
	summaries := make([]PlayerSummary, 0, len(rows))
	for _, row := range rows {
		i, ok := index[row.PlayerID]
		if !ok {
			index[row.PlayerID] = len(summaries)
			summaries = append(summaries, PlayerSummary{
				PlayerID:   row.PlayerID,
				PlayerName: row.PlayerName,
				BestScore:  row.Score,
				WorstScore: row.Score,
			})
			i = len(summaries) - 1
		}
		s := &summaries[i]
		s.TotalScore += row.Score
		s.GamesPlayed++
		if row.Score > s.BestScore {
			s.BestScore = row.Score
		}
		if row.Score < s.WorstScore {
			s.WorstScore = row.Score
		}
	}
	return summaries
}

// AverageLeaderboard ranks players descending by average score. Ties
// stay in encounter order, which the store's (date asc, score desc)
// ordering makes deterministic.
func AverageLeaderboard(rows []domain.ScoreRow) []PlayerSummary {
	summaries := Summarize(rows)
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].AverageScore() > summaries[j].AverageScore()
	})
	return summaries
}

// DailyHighLeaderboard keeps each player's maximum score across the row
// set and ranks descending by it. Used for single-day windows where
// only the best submission of the day is meaningful.
func DailyHighLeaderboard(rows []domain.ScoreRow) []DailyHigh {
	index := make(map[string]int, len(rows))
	highs := make([]DailyHigh, 0, len(rows))
	for _, row := range rows {
		i, ok := index[row.PlayerID]
		if !ok {
			index[row.PlayerID] = len(highs)
			highs = append(highs, DailyHigh{
				PlayerID:   row.PlayerID,
				PlayerName: row.PlayerName,
				Score:      row.Score,
			})
			continue
		}
		if row.Score > highs[i].Score {
			highs[i].Score = row.Score
		}
	}
	sort.SliceStable(highs, func(i, j int) bool {
		return highs[i].Score > highs[j].Score
	})
	return highs
}
