// Package importer replays bounded windows of historical chat messages
// through the live ingestion path, so backfilled scores land exactly as
// live ones do.
package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/domain"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/service"
)

// HardCap bounds every import run regardless of the requested limit.
const HardCap = 10000

// Recorder feeds one message through the ingestion path.
type Recorder interface {
	RecordMessage(ctx context.Context, msg domain.ChatMessage) (service.IngestResult, error)
}

// Source pages historical messages oldest-first. Page returns the next
// batch starting after cursor, the cursor for the following page, and
// whether more pages remain.
type Source interface {
	Page(ctx context.Context, cursor string, limit int) ([]domain.ChatMessage, string, bool, error)
}

// Report accumulates the counters of one import run.
type Report struct {
	Processed         int `json:"processed"`
	Imported          int `json:"imported"`
	SkippedDuplicates int `json:"skipped_duplicates"`
	SkippedNonScores  int `json:"skipped_non_scores"`
}

// Sleeper delays between page fetches. Implementations must cooperate
// with context cancellation and hold no locks while waiting.
type Sleeper func(ctx context.Context, d time.Duration) error

// sleep is the default Sleeper.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Importer replays historical messages into the record store.
type Importer struct {
	recorder      Recorder
	logger        *slog.Logger
	pageSize      int
	maxMessages   int
	progressEvery int
	pageDelay     time.Duration
	sleep         Sleeper
}

// Options tunes an import run. Zero values fall back to defaults.
type Options struct {
	PageSize      int
	MaxMessages   int
	ProgressEvery int
	PageDelay     time.Duration
	Sleep         Sleeper
}

// New creates an importer.
func New(recorder Recorder, logger *slog.Logger, opts Options) *Importer {
	imp := &Importer{
		recorder:      recorder,
		logger:        logger,
		pageSize:      opts.PageSize,
		maxMessages:   opts.MaxMessages,
		progressEvery: opts.ProgressEvery,
		pageDelay:     opts.PageDelay,
		sleep:         opts.Sleep,
	}
	if imp.pageSize <= 0 {
		imp.pageSize = 100
	}
	if imp.maxMessages <= 0 || imp.maxMessages > HardCap {
		imp.maxMessages = HardCap
	}
	if imp.progressEvery <= 0 {
		imp.progressEvery = 100
	}
	if imp.sleep == nil {
		imp.sleep = sleep
	}
	return imp
}

// Run replays up to limit messages from src, oldest first. The limit is
// capped at the importer's maximum. Per-message failures are counted as
// skipped and never abort the run; progress is reported through the
// optional callback as processing advances.
func (i *Importer) Run(ctx context.Context, src Source, limit int, progress func(Report)) (Report, error) {
	if limit <= 0 || limit > i.maxMessages {
		limit = i.maxMessages
	}

	var report Report
	cursor := ""
	lastReported := 0

	for report.Processed < limit {
		pageLimit := i.pageSize
		if remaining := limit - report.Processed; remaining < pageLimit {
			pageLimit = remaining
		}

		page, next, more, err := src.Page(ctx, cursor, pageLimit)
		if err != nil {
			return report, err
		}

		for _, msg := range page {
			report.Processed++

			// The tracker's own messages in history are neither
			// scores nor chatter; they count only as processed.
			if msg.FromBot {
				if report.Processed >= limit {
					break
				}
				continue
			}

			res, err := i.recorder.RecordMessage(ctx, msg)
			if err != nil {
				// Isolated per-message failure: count and continue.
				i.logger.Warn("failed to import message", "message_id", msg.ID, "error", err)
				report.SkippedNonScores++
			} else {
				switch res.Outcome {
				case service.OutcomeRecorded:
					report.Imported++
				case service.OutcomeDuplicate:
					report.SkippedDuplicates++
				default:
					report.SkippedNonScores++
				}
			}

			if progress != nil && report.Processed-lastReported >= i.progressEvery {
				lastReported = report.Processed
				progress(report)
			}
			if report.Processed >= limit {
				break
			}
		}

		if !more || report.Processed >= limit {
			break
		}
		cursor = next

		// Throttle between page fetches to respect the source
		// platform's rate limits.
		if err := i.sleep(ctx, i.pageDelay); err != nil {
			return report, err
		}
	}

	i.logger.Info("history import complete",
		"processed", report.Processed,
		"imported", report.Imported,
		"skipped_duplicates", report.SkippedDuplicates,
		"skipped_non_scores", report.SkippedNonScores,
	)
	return report, nil
}

// SliceSource pages over an in-memory message window. It is the seam a
// chat-gateway collaborator fills in production and the double used in
// tests.
type SliceSource []domain.ChatMessage

// Page implements Source. The cursor is the index of the next message.
func (s SliceSource) Page(_ context.Context, cursor string, limit int) ([]domain.ChatMessage, string, bool, error) {
	start := 0
	if cursor != "" {
		for i := range s {
			if s[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(s) {
		return nil, "", false, nil
	}

	end := start + limit
	if end > len(s) {
		end = len(s)
	}
	page := s[start:end]
	next := ""
	if len(page) > 0 {
		next = page[len(page)-1].ID
	}
	return page, next, end < len(s), nil
}
