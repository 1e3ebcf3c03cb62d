// Package parser extracts structured score announcements from
// free-form chat message text.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/domain"
)

// DefaultGameTag is the announcement prefix matched when no tag is
// configured.
const DefaultGameTag = "TimeGuessr"

// Announcement is a successfully parsed score announcement.
type Announcement struct {
	GameNumber int
	Score      int
	MaxScore   int
}

// Parser matches announcements of the shape
// "<GameTag> #<number> <score>/<max_score>" where the score fields may
// carry thousands separators, e.g. "TimeGuessr #120 46,415/50,000".
type Parser struct {
	tag     string
	pattern *regexp.Regexp
}

// New creates a parser for the given game tag. An empty tag falls back
// to DefaultGameTag.
func New(tag string) *Parser {
	if tag == "" {
		tag = DefaultGameTag
	}
	pattern := regexp.MustCompile(
		regexp.QuoteMeta(tag) + ` #(\d+)\s+(\d{1,3}(?:,\d{3})*)/(\d{1,3}(?:,\d{3})*)`,
	)
	return &Parser{tag: tag, pattern: pattern}
}

// Tag returns the game tag this parser matches.
func (p *Parser) Tag() string {
	return p.tag
}

// Parse attempts to extract an announcement from message text. It
// returns domain.ErrNoScoreFound when the pattern is absent, which is a
// normal outcome, and domain.ErrMalformedScore when the pattern matched
// but a numeric field failed to convert.
func (p *Parser) Parse(content string) (Announcement, error) {
	match := p.pattern.FindStringSubmatch(content)
	if match == nil {
		return Announcement{}, domain.ErrNoScoreFound
	}

	gameNumber, err := strconv.Atoi(match[1])
	if err != nil {
		return Announcement{}, fmt.Errorf("%w: game number %q", domain.ErrMalformedScore, match[1])
	}

	score, err := strconv.Atoi(strings.ReplaceAll(match[2], ",", ""))
	if err != nil {
		return Announcement{}, fmt.Errorf("%w: score %q", domain.ErrMalformedScore, match[2])
	}

	maxScore, err := strconv.Atoi(strings.ReplaceAll(match[3], ",", ""))
	if err != nil {
		return Announcement{}, fmt.Errorf("%w: max score %q", domain.ErrMalformedScore, match[3])
	}

	return Announcement{
		GameNumber: gameNumber,
		Score:      score,
		MaxScore:   maxScore,
	}, nil
}
