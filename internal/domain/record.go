package domain

import "time"

// DateLayout is the calendar-date format used for game_date values.
// Dates are compared with plain calendar semantics: no time of day,
// no timezone arithmetic beyond what produced the date string.
const DateLayout = "2006-01-02"

// ScoreRecord is one player's one game submission within a group.
// Records are created exactly once (live ingestion or backfill),
// never updated and never deleted.
type ScoreRecord struct {
	GroupID    string `json:"group_id"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	GameDate   string `json:"game_date"`
	Score      int    `json:"score"`
	MaxScore   int    `json:"max_score"`
	GameNumber int    `json:"game_number,omitempty"`
	SourceID   string `json:"source_id"`
}

// ScoreRow is the projection the store returns for aggregation and
// streak queries.
type ScoreRow struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Score      int    `json:"score"`
	GameDate   string `json:"game_date"`
}

// RecordQuery filters a store query. GroupID is mandatory; PlayerID
// and the date range are optional. StartDate and EndDate are inclusive
// calendar dates in DateLayout.
type RecordQuery struct {
	GroupID   string
	PlayerID  string
	StartDate string
	EndDate   string
}

// ChatMessage is the raw ingestion input: free-form text plus the
// metadata the chat platform supplies with it. Timestamp is the
// message's authored-at time, not processing time.
type ChatMessage struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"`
	ChannelID  string    `json:"channel_id,omitempty"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	FromBot    bool      `json:"from_bot,omitempty"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// GameDate derives the calendar date a submission is attributed to.
func (m *ChatMessage) GameDate() string {
	return m.Timestamp.Format(DateLayout)
}
