package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/config"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/domain"
)

// Repository provides PostgreSQL-based access to the score record
// store. Records are append-only; the unique constraint on source_id is
// the sole synchronization primitive for concurrent ingestion.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping verifies the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS score_records (
			id BIGSERIAL PRIMARY KEY,
			group_id VARCHAR(64) NOT NULL,
			player_id VARCHAR(64) NOT NULL,
			player_name VARCHAR(255) NOT NULL,
			game_date DATE NOT NULL,
			score BIGINT NOT NULL,
			max_score BIGINT NOT NULL,
			game_number INT,
			source_id VARCHAR(64) NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_score_records_group_date ON score_records(group_id, game_date)`,
		`CREATE INDEX IF NOT EXISTS idx_score_records_player ON score_records(group_id, player_id, game_date)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// AddRecord persists a score record. The insert is idempotent on
// source_id: a record whose source message was already ingested is a
// silent no-op and inserted is false.
func (r *Repository) AddRecord(ctx context.Context, rec domain.ScoreRecord) (bool, error) {
	query := `
		INSERT INTO score_records (group_id, player_id, player_name, game_date, score, max_score, game_number, source_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		rec.GroupID,
		rec.PlayerID,
		rec.PlayerName,
		rec.GameDate,
		rec.Score,
		rec.MaxScore,
		rec.GameNumber,
		rec.SourceID,
		time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting score record: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return result.RowsAffected() == 1, nil
}

// Records retrieves score record projections matching the query. The
// ordering is load-bearing: streak logic assumes ascending chronology
// and leaderboard logic assumes ties broken by score.
func (r *Repository) Records(ctx context.Context, q domain.RecordQuery) ([]domain.ScoreRow, error) {
	query := `SELECT player_id, player_name, score, to_char(game_date, 'YYYY-MM-DD') FROM score_records`
	conditions := []string{"group_id = $1"}
	params := []any{q.GroupID}

	if q.PlayerID != "" {
		params = append(params, q.PlayerID)
		conditions = append(conditions, fmt.Sprintf("player_id = $%d", len(params)))
	}
	if q.StartDate != "" {
		params = append(params, q.StartDate)
		conditions = append(conditions, fmt.Sprintf("game_date >= $%d", len(params)))
	}
	if q.EndDate != "" {
		params = append(params, q.EndDate)
		conditions = append(conditions, fmt.Sprintf("game_date <= $%d", len(params)))
	}

	query += " WHERE " + strings.Join(conditions, " AND ")
	query += " ORDER BY game_date ASC, score DESC"

	rows, err := r.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying score records: %w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []domain.ScoreRow
	for rows.Next() {
		var row domain.ScoreRow
		if err := rows.Scan(&row.PlayerID, &row.PlayerName, &row.Score, &row.GameDate); err != nil {
			return nil, fmt.Errorf("scanning score row: %w", err)
		}
		records = append(records, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading score rows: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return records, nil
}
