package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/domain"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/parser"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/stats"
)

// memStore is an in-memory RecordStore honoring the store contract:
// unique source_id inserts and (game_date asc, score desc) ordering.
type memStore struct {
	mu      sync.Mutex
	records []domain.ScoreRecord
	sources map[string]struct{}
	failAll bool
}

func newMemStore() *memStore {
	return &memStore{sources: make(map[string]struct{})}
}

func (m *memStore) AddRecord(_ context.Context, rec domain.ScoreRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return false, domain.ErrStoreUnavailable
	}
	if _, ok := m.sources[rec.SourceID]; ok {
		return false, nil
	}
	m.sources[rec.SourceID] = struct{}{}
	m.records = append(m.records, rec)
	return true, nil
}

func (m *memStore) Records(_ context.Context, q domain.RecordQuery) ([]domain.ScoreRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, domain.ErrStoreUnavailable
	}
	var rows []domain.ScoreRow
	for _, rec := range m.records {
		if rec.GroupID != q.GroupID {
			continue
		}
		if q.PlayerID != "" && rec.PlayerID != q.PlayerID {
			continue
		}
		if q.StartDate != "" && rec.GameDate < q.StartDate {
			continue
		}
		if q.EndDate != "" && rec.GameDate > q.EndDate {
			continue
		}
		rows = append(rows, domain.ScoreRow{
			PlayerID:   rec.PlayerID,
			PlayerName: rec.PlayerName,
			Score:      rec.Score,
			GameDate:   rec.GameDate,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].GameDate != rows[j].GameDate {
			return rows[i].GameDate < rows[j].GameDate
		}
		return rows[i].Score > rows[j].Score
	})
	return rows, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type captureNotifier struct {
	mu    sync.Mutex
	calls int
	last  stats.StreakResult
}

func (n *captureNotifier) NotifyScoreRecorded(_ string, _ domain.ScoreRecord, streaks stats.StreakResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.last = streaks
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(date string) func() time.Time {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func newTestService(store RecordStore, opts ...Option) *ScoreService {
	opts = append([]Option{WithClock(fixedClock("2024-01-03"))}, opts...)
	return NewScoreService(store, parser.New(""), testLogger(), opts...)
}

func msg(id, author, content, date string) domain.ChatMessage {
	ts, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return domain.ChatMessage{
		ID:         id,
		GroupID:    "g1",
		AuthorID:   author,
		AuthorName: "name-" + author,
		Content:    content,
		Timestamp:  ts.Add(9 * time.Hour),
	}
}

func TestRecordMessageRecorded(t *testing.T) {
	store := newMemStore()
	notifier := &captureNotifier{}
	svc := newTestService(store, WithNotifier(notifier))

	res, err := svc.RecordMessage(context.Background(), msg("m1", "p1", "TimeGuessr #120 46,415/50,000", "2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, res.Outcome)
	require.NotNil(t, res.Record)
	assert.Equal(t, 46415, res.Record.Score)
	assert.Equal(t, 50000, res.Record.MaxScore)
	assert.Equal(t, 120, res.Record.GameNumber)
	assert.Equal(t, "2024-01-03", res.Record.GameDate)
	require.NotNil(t, res.Streaks)
	assert.Equal(t, 1, res.Streaks.Current)
	assert.Equal(t, 1, notifier.calls)
}

func TestRecordMessageDuplicate(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.RecordMessage(ctx, msg("m1", "p1", "TimeGuessr #120 46,415/50,000", "2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, first.Outcome)

	second, err := svc.RecordMessage(ctx, msg("m1", "p1", "TimeGuessr #120 46,415/50,000", "2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)
	assert.Equal(t, 1, store.count())
}

func TestRecordMessageNoScore(t *testing.T) {
	svc := newTestService(newMemStore())

	res, err := svc.RecordMessage(context.Background(), msg("m1", "p1", "no score here", "2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoScore, res.Outcome)
}

func TestRecordMessageSkipsBots(t *testing.T) {
	svc := newTestService(newMemStore())

	m := msg("m1", "bot", "TimeGuessr #120 46,415/50,000", "2024-01-03")
	m.FromBot = true
	res, err := svc.RecordMessage(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoScore, res.Outcome)
}

func TestRecordMessageMissingIdentity(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.RecordMessage(context.Background(), domain.ChatMessage{Content: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestRecordMessageStoreFailure(t *testing.T) {
	store := newMemStore()
	store.failAll = true
	svc := newTestService(store)

	_, err := svc.RecordMessage(context.Background(), msg("m1", "p1", "TimeGuessr #1 100/500", "2024-01-03"))
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestRecordMessageStreakAfterConsecutiveDays(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	for i, date := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		res, err := svc.RecordMessage(ctx, msg("m"+date, "p1", "TimeGuessr #1 100/500", date))
		require.NoError(t, err)
		require.Equal(t, OutcomeRecorded, res.Outcome)
		assert.Equal(t, i+1, res.Streaks.Current)
	}
}

func TestLeaderboardAllTime(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	for _, m := range []domain.ChatMessage{
		msg("m1", "p1", "TimeGuessr #1 100/500", "2024-01-01"),
		msg("m2", "p1", "TimeGuessr #2 200/500", "2024-01-02"),
		msg("m3", "p2", "TimeGuessr #2 300/500", "2024-01-02"),
	} {
		_, err := svc.RecordMessage(ctx, m)
		require.NoError(t, err)
	}

	board, err := svc.Leaderboard(ctx, "g1", WindowAllTime)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "p2", board[0].PlayerID)
	assert.Equal(t, "p1", board[1].PlayerID)
}

func TestLeaderboardWindowExcludesOldRows(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	// 2023-12-28 is exactly 6 days before today (2024-01-03): inside the
	// 7-day window. 2023-12-27 is outside.
	for _, m := range []domain.ChatMessage{
		msg("m1", "p1", "TimeGuessr #1 100/500", "2023-12-27"),
		msg("m2", "p2", "TimeGuessr #1 200/500", "2023-12-28"),
	} {
		_, err := svc.RecordMessage(ctx, m)
		require.NoError(t, err)
	}

	board, err := svc.Leaderboard(ctx, "g1", WindowWeek)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "p2", board[0].PlayerID)
}

func TestLeaderboardScopedToGroup(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	m := msg("m1", "p1", "TimeGuessr #1 100/500", "2024-01-03")
	_, err := svc.RecordMessage(ctx, m)
	require.NoError(t, err)

	other := msg("m2", "p9", "TimeGuessr #1 400/500", "2024-01-03")
	other.GroupID = "g2"
	_, err = svc.RecordMessage(ctx, other)
	require.NoError(t, err)

	board, err := svc.Leaderboard(ctx, "g1", WindowAllTime)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "p1", board[0].PlayerID)
}

func TestTodayScoresFallsBackToStore(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	for _, m := range []domain.ChatMessage{
		msg("m1", "p1", "TimeGuessr #1 100/500", "2024-01-03"),
		msg("m2", "p1", "TimeGuessr #1 200/500", "2024-01-03"),
		msg("m3", "p2", "TimeGuessr #1 150/500", "2024-01-02"),
	} {
		_, err := svc.RecordMessage(ctx, m)
		require.NoError(t, err)
	}

	highs, err := svc.TodayScores(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, highs, 1)
	assert.Equal(t, "p1", highs[0].PlayerID)
	assert.Equal(t, 200, highs[0].Score)
}

type fakeDaily struct {
	recorded int
	warmed   int
	highs    []stats.DailyHigh
}

func (f *fakeDaily) RecordScore(_ context.Context, _, _, _, _ string, _ int) error {
	f.recorded++
	return nil
}

func (f *fakeDaily) TopScores(_ context.Context, _, _ string, _ int) ([]stats.DailyHigh, bool, error) {
	if len(f.highs) == 0 {
		return nil, false, nil
	}
	return f.highs, true, nil
}

func (f *fakeDaily) Warm(_ context.Context, _, _ string, highs []stats.DailyHigh) error {
	f.warmed += len(highs)
	return nil
}

func TestTodayScoresWarmsCacheOnMiss(t *testing.T) {
	store := newMemStore()
	daily := &fakeDaily{}
	svc := newTestService(store, WithDailyBoard(daily))
	ctx := context.Background()

	_, err := svc.RecordMessage(ctx, msg("m1", "p1", "TimeGuessr #1 100/500", "2024-01-03"))
	require.NoError(t, err)

	highs, err := svc.TodayScores(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, highs, 1)
	assert.Equal(t, 1, daily.warmed)
}

func TestTodayScoresPrefersCache(t *testing.T) {
	store := newMemStore()
	daily := &fakeDaily{highs: []stats.DailyHigh{{PlayerID: "cached", Score: 999}}}
	svc := newTestService(store, WithDailyBoard(daily))

	highs, err := svc.TodayScores(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, highs, 1)
	assert.Equal(t, "cached", highs[0].PlayerID)
}

func TestIngestWritesThroughToDailyCache(t *testing.T) {
	daily := &fakeDaily{}
	svc := newTestService(newMemStore(), WithDailyBoard(daily))

	_, err := svc.RecordMessage(context.Background(), msg("m1", "p1", "TimeGuessr #1 100/500", "2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, 1, daily.recorded)
}

func TestPlayerStats(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	for _, m := range []domain.ChatMessage{
		msg("m1", "p1", "TimeGuessr #1 100/500", "2023-11-01"),
		msg("m2", "p1", "TimeGuessr #2 300/500", "2024-01-02"),
		msg("m3", "p1", "TimeGuessr #3 200/500", "2024-01-03"),
	} {
		_, err := svc.RecordMessage(ctx, m)
		require.NoError(t, err)
	}

	got, err := svc.PlayerStats(ctx, "g1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.GamesPlayed)
	assert.InDelta(t, 200.0, got.AverageScore, 1e-9)
	assert.Equal(t, 300, got.BestScore)
	assert.Equal(t, 100, got.WorstScore)
	assert.Equal(t, 2, got.CurrentStreak)
	assert.Equal(t, 2, got.LongestStreak)
	assert.Equal(t, "currently on a 2-day streak", got.StreakStatus)
	// Trailing 7-day window covers only the two January rows.
	assert.Equal(t, 2, got.RecentGames)
	assert.InDelta(t, 250.0, got.RecentAverage, 1e-9)
}

func TestPlayerStatsNoRecords(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.PlayerStats(context.Background(), "g1", "ghost")
	assert.ErrorIs(t, err, domain.ErrNoRecords)
}

func TestParseWindow(t *testing.T) {
	for name, want := range map[string]Window{
		"":        WindowAllTime,
		"all":     WindowAllTime,
		"overall": WindowAllTime,
		"week":    WindowWeek,
		"7d":      WindowWeek,
		"month":   WindowMonth,
		"30d":     WindowMonth,
	} {
		got, err := ParseWindow(name)
		require.NoError(t, err, "window %q", name)
		assert.Equal(t, want, got)
	}

	_, err := ParseWindow("fortnight")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestRecordMessageMalformedIsNotFatal(t *testing.T) {
	// A score too large for int matches the pattern but fails numeric
	// conversion; that is a malformed outcome, never a crash.
	store := newMemStore()
	svc := newTestService(store)

	content := "TimeGuessr #1 1,000,000,000,000,000,000,000/50,000"
	res, err := svc.RecordMessage(context.Background(), msg("m1", "p1", content, "2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeMalformed, res.Outcome)
	assert.Equal(t, 0, store.count())
}
