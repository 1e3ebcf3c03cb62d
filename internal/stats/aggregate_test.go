package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/domain"
)

func TestAverageLeaderboardRanksByAverage(t *testing.T) {
	rows := []domain.ScoreRow{
		{PlayerID: "p1", PlayerName: "Ann", Score: 100, GameDate: "2024-01-01"},
		{PlayerID: "p1", PlayerName: "Ann", Score: 200, GameDate: "2024-01-02"},
		{PlayerID: "p2", PlayerName: "Bob", Score: 300, GameDate: "2024-01-02"},
	}

	board := AverageLeaderboard(rows)
	require.Len(t, board, 2)
	assert.Equal(t, "p2", board[0].PlayerID)
	assert.InDelta(t, 300.0, board[0].AverageScore(), 1e-9)
	assert.Equal(t, "p1", board[1].PlayerID)
	assert.InDelta(t, 150.0, board[1].AverageScore(), 1e-9)
	assert.Equal(t, 2, board[1].GamesPlayed)
}

func TestAverageLeaderboardTiesKeepEncounterOrder(t *testing.T) {
	rows := []domain.ScoreRow{
		{PlayerID: "p1", PlayerName: "Ann", Score: 200, GameDate: "2024-01-01"},
		{PlayerID: "p2", PlayerName: "Bob", Score: 200, GameDate: "2024-01-01"},
	}

	board := AverageLeaderboard(rows)
	require.Len(t, board, 2)
	assert.Equal(t, "p1", board[0].PlayerID)
	assert.Equal(t, "p2", board[1].PlayerID)
}

func TestSummarizeBestWorst(t *testing.T) {
	rows := []domain.ScoreRow{
		{PlayerID: "p1", PlayerName: "Ann", Score: 150, GameDate: "2024-01-01"},
		{PlayerID: "p1", PlayerName: "Ann", Score: 90, GameDate: "2024-01-02"},
		{PlayerID: "p1", PlayerName: "Ann", Score: 300, GameDate: "2024-01-03"},
	}

	summaries := Summarize(rows)
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, 300, s.BestScore)
	assert.Equal(t, 90, s.WorstScore)
	assert.Equal(t, 540, s.TotalScore)
	assert.Equal(t, 3, s.GamesPlayed)
}

func TestAverageScoreZeroGamesGuard(t *testing.T) {
	var s PlayerSummary
	assert.Equal(t, 0.0, s.AverageScore())
}

func TestDailyHighKeepsMaxPerPlayer(t *testing.T) {
	rows := []domain.ScoreRow{
		{PlayerID: "p1", PlayerName: "Ann", Score: 200, GameDate: "2024-01-01"},
		{PlayerID: "p1", PlayerName: "Ann", Score: 100, GameDate: "2024-01-01"},
	}

	highs := DailyHighLeaderboard(rows)
	require.Len(t, highs, 1)
	assert.Equal(t, 200, highs[0].Score)
}

func TestDailyHighRanksDescending(t *testing.T) {
	rows := []domain.ScoreRow{
		{PlayerID: "p1", PlayerName: "Ann", Score: 100, GameDate: "2024-01-01"},
		{PlayerID: "p2", PlayerName: "Bob", Score: 400, GameDate: "2024-01-01"},
		{PlayerID: "p3", PlayerName: "Cat", Score: 250, GameDate: "2024-01-01"},
	}

	highs := DailyHighLeaderboard(rows)
	require.Len(t, highs, 3)
	assert.Equal(t, []string{"p2", "p3", "p1"},
		[]string{highs[0].PlayerID, highs[1].PlayerID, highs[2].PlayerID})
}

func TestEmptyRowSets(t *testing.T) {
	assert.Empty(t, AverageLeaderboard(nil))
	assert.Empty(t, DailyHighLeaderboard(nil))
	assert.Empty(t, Summarize(nil))
}
