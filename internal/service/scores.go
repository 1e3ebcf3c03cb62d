package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/domain"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/parser"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/stats"
)

// RecordStore is the persistence contract the service depends on.
type RecordStore interface {
	AddRecord(ctx context.Context, rec domain.ScoreRecord) (bool, error)
	Records(ctx context.Context, q domain.RecordQuery) ([]domain.ScoreRow, error)
}

// DailyBoard is the optional daily-high cache contract.
type DailyBoard interface {
	RecordScore(ctx context.Context, groupID, gameDate, playerID, playerName string, score int) error
	TopScores(ctx context.Context, groupID, gameDate string, limit int) ([]stats.DailyHigh, bool, error)
	Warm(ctx context.Context, groupID, gameDate string, highs []stats.DailyHigh) error
}

// Notifier receives acknowledgements for newly recorded scores.
type Notifier interface {
	NotifyScoreRecorded(groupID string, rec domain.ScoreRecord, streaks stats.StreakResult)
}

// Outcome classifies the result of ingesting one chat message.
type Outcome string

const (
	OutcomeRecorded  Outcome = "recorded"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeNoScore   Outcome = "no_score"
	OutcomeMalformed Outcome = "malformed"
)

// IngestResult is the outcome of feeding one message through the
// ingestion path. Record and Streaks are set only for OutcomeRecorded.
type IngestResult struct {
	Outcome Outcome             `json:"outcome"`
	Record  *domain.ScoreRecord `json:"record,omitempty"`
	Streaks *stats.StreakResult `json:"streaks,omitempty"`
}

// Window bounds a leaderboard query to the trailing N days, inclusive
// of today. Zero days means all time.
type Window struct {
	Days int
}

var (
	WindowAllTime = Window{}
	WindowWeek    = Window{Days: 7}
	WindowMonth   = Window{Days: 30}
)

// ParseWindow maps a query-string window name onto a Window.
func ParseWindow(s string) (Window, error) {
	switch s {
	case "", "all", "overall":
		return WindowAllTime, nil
	case "week", "7d":
		return WindowWeek, nil
	case "month", "30d":
		return WindowMonth, nil
	default:
		return Window{}, fmt.Errorf("%w: unknown window %q", domain.ErrInvalidRequest, s)
	}
}

// PlayerStats is a player's personal statistics within a group.
type PlayerStats struct {
	PlayerID      string  `json:"player_id"`
	PlayerName    string  `json:"player_name"`
	GamesPlayed   int     `json:"games_played"`
	AverageScore  float64 `json:"average_score"`
	BestScore     int     `json:"best_score"`
	WorstScore    int     `json:"worst_score"`
	CurrentStreak int     `json:"current_streak"`
	LongestStreak int     `json:"longest_streak"`
	StreakStatus  string  `json:"streak_status"`
	RecentAverage float64 `json:"recent_average"`
	RecentGames   int     `json:"recent_games"`
}

// ScoreService orchestrates ingestion and aggregate queries over the
// record store.
type ScoreService struct {
	store    RecordStore
	daily    DailyBoard
	notifier Notifier
	parser   *parser.Parser
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a ScoreService.
type Option func(*ScoreService)

// WithDailyBoard attaches a daily-high cache.
func WithDailyBoard(daily DailyBoard) Option {
	return func(s *ScoreService) { s.daily = daily }
}

// WithNotifier attaches an acknowledgement notifier.
func WithNotifier(notifier Notifier) Option {
	return func(s *ScoreService) { s.notifier = notifier }
}

// WithClock overrides the wall clock anchoring "today".
func WithClock(now func() time.Time) Option {
	return func(s *ScoreService) { s.now = now }
}

// NewScoreService creates a new score service
func NewScoreService(store RecordStore, p *parser.Parser, logger *slog.Logger, opts ...Option) *ScoreService {
	s := &ScoreService{
		store:  store,
		parser: p,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordMessage feeds one chat message through the ingestion path:
// parse, persist idempotently, compute streaks, update the daily cache
// and acknowledge. Messages without a score announcement and duplicate
// announcements are normal outcomes, not errors.
func (s *ScoreService) RecordMessage(ctx context.Context, msg domain.ChatMessage) (IngestResult, error) {
	if msg.ID == "" || msg.GroupID == "" {
		return IngestResult{}, fmt.Errorf("%w: message id and group id are required", domain.ErrInvalidRequest)
	}
	if msg.FromBot {
		return IngestResult{Outcome: OutcomeNoScore}, nil
	}

	ann, err := s.parser.Parse(msg.Content)
	if errors.Is(err, domain.ErrNoScoreFound) {
		return IngestResult{Outcome: OutcomeNoScore}, nil
	}
	if err != nil {
		s.logger.Warn("malformed score announcement",
			"message_id", msg.ID,
			"group_id", msg.GroupID,
			"error", err,
		)
		return IngestResult{Outcome: OutcomeMalformed}, nil
	}

	rec := domain.ScoreRecord{
		GroupID:    msg.GroupID,
		PlayerID:   msg.AuthorID,
		PlayerName: msg.AuthorName,
		GameDate:   msg.GameDate(),
		Score:      ann.Score,
		MaxScore:   ann.MaxScore,
		GameNumber: ann.GameNumber,
		SourceID:   msg.ID,
	}

	inserted, err := s.store.AddRecord(ctx, rec)
	if err != nil {
		return IngestResult{}, fmt.Errorf("adding score record: %w", err)
	}
	if !inserted {
		return IngestResult{Outcome: OutcomeDuplicate, Record: &rec}, nil
	}

	streaks, err := s.playerStreaks(ctx, rec.GroupID, rec.PlayerID)
	if err != nil {
		// The record is committed; streaks are a derived nicety here.
		s.logger.Warn("failed to compute streaks after insert", "player_id", rec.PlayerID, "error", err)
		streaks = stats.StreakResult{}
	}

	if s.daily != nil {
		if err := s.daily.RecordScore(ctx, rec.GroupID, rec.GameDate, rec.PlayerID, rec.PlayerName, rec.Score); err != nil {
			s.logger.Warn("failed to update daily cache", "error", err)
		}
	}
	if s.notifier != nil {
		s.notifier.NotifyScoreRecorded(rec.GroupID, rec, streaks)
	}

	return IngestResult{Outcome: OutcomeRecorded, Record: &rec, Streaks: &streaks}, nil
}

// Leaderboard returns the average-ranked leaderboard for a group over a
// window.
func (s *ScoreService) Leaderboard(ctx context.Context, groupID string, window Window) ([]stats.PlayerSummary, error) {
	q := domain.RecordQuery{GroupID: groupID}
	if window.Days > 0 {
		start, end := s.windowRange(window)
		q.StartDate, q.EndDate = start, end
	}

	rows, err := s.store.Records(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard rows: %w", err)
	}
	return stats.AverageLeaderboard(rows), nil
}

// TodayScores returns today's daily-high leaderboard for a group,
// served from the cache when possible and from the store otherwise.
func (s *ScoreService) TodayScores(ctx context.Context, groupID string) ([]stats.DailyHigh, error) {
	today := s.today()

	if s.daily != nil {
		highs, ok, err := s.daily.TopScores(ctx, groupID, today, 0)
		if err != nil {
			s.logger.Warn("daily cache read failed, falling back to store", "error", err)
		} else if ok {
			return highs, nil
		}
	}

	rows, err := s.store.Records(ctx, domain.RecordQuery{
		GroupID:   groupID,
		StartDate: today,
		EndDate:   today,
	})
	if err != nil {
		return nil, fmt.Errorf("querying today's rows: %w", err)
	}

	highs := stats.DailyHighLeaderboard(rows)
	if s.daily != nil && len(highs) > 0 {
		if err := s.daily.Warm(ctx, groupID, today, highs); err != nil {
			s.logger.Warn("warming daily cache failed", "error", err)
		}
	}
	return highs, nil
}

// PlayerStats returns a player's personal statistics, streaks included.
// Returns domain.ErrNoRecords when the player has never posted in the
// group.
func (s *ScoreService) PlayerStats(ctx context.Context, groupID, playerID string) (PlayerStats, error) {
	rows, err := s.store.Records(ctx, domain.RecordQuery{GroupID: groupID, PlayerID: playerID})
	if err != nil {
		return PlayerStats{}, fmt.Errorf("querying player rows: %w", err)
	}
	if len(rows) == 0 {
		return PlayerStats{}, domain.ErrNoRecords
	}

	summary := stats.Summarize(rows)[0]

	dates, err := stats.DistinctDates(rows)
	if err != nil {
		return PlayerStats{}, fmt.Errorf("deriving posted dates: %w", err)
	}
	streaks := stats.Streaks(dates, s.nowDate())

	result := PlayerStats{
		PlayerID:      summary.PlayerID,
		PlayerName:    summary.PlayerName,
		GamesPlayed:   summary.GamesPlayed,
		AverageScore:  summary.AverageScore(),
		BestScore:     summary.BestScore,
		WorstScore:    summary.WorstScore,
		CurrentStreak: streaks.Current,
		LongestStreak: streaks.Longest,
		StreakStatus:  streaks.Status,
	}

	start, end := s.windowRange(WindowWeek)
	recent, err := s.store.Records(ctx, domain.RecordQuery{
		GroupID:   groupID,
		PlayerID:  playerID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		return PlayerStats{}, fmt.Errorf("querying recent player rows: %w", err)
	}
	if len(recent) > 0 {
		recentSummary := stats.Summarize(recent)[0]
		result.RecentAverage = recentSummary.AverageScore()
		result.RecentGames = recentSummary.GamesPlayed
	}

	return result, nil
}

// playerStreaks computes a player's streaks from the store.
func (s *ScoreService) playerStreaks(ctx context.Context, groupID, playerID string) (stats.StreakResult, error) {
	rows, err := s.store.Records(ctx, domain.RecordQuery{GroupID: groupID, PlayerID: playerID})
	if err != nil {
		return stats.StreakResult{}, err
	}
	dates, err := stats.DistinctDates(rows)
	if err != nil {
		return stats.StreakResult{}, err
	}
	return stats.Streaks(dates, s.nowDate()), nil
}

// windowRange returns the inclusive [start, end] date strings for a
// trailing window ending today. A 7-day window starts today-6.
func (s *ScoreService) windowRange(window Window) (string, string) {
	end := s.nowDate()
	start := end.AddDate(0, 0, -(window.Days - 1))
	return start.Format(domain.DateLayout), end.Format(domain.DateLayout)
}

func (s *ScoreService) today() string {
	return s.nowDate().Format(domain.DateLayout)
}

func (s *ScoreService) nowDate() time.Time {
	t := s.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
