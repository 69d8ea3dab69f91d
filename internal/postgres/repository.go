package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pokewar-server/internal/config"
	"github.com/pokewar-server/internal/domain"
	"github.com/pokewar-server/internal/store"
)

// Repository provides PostgreSQL-based data access. It is both a
// store.Backend (one row per collection, guarded by a version column) and
// the archive for resolved matches.
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
		return nil, fmt.Errorf("connecting to database: %w", err)
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

// Ping checks that the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS kv_entries (
			key VARCHAR(128) PRIMARY KEY,
			value JSONB NOT NULL,
			version BIGINT NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS match_archive (
			id VARCHAR(64) PRIMARY KEY,
			server_id VARCHAR(64) NOT NULL,
			player1_id VARCHAR(64) NOT NULL,
			player2_id VARCHAR(64) NOT NULL,
			player1_pokemon_id VARCHAR(32) NOT NULL,
			player1_pokemon_name VARCHAR(128) NOT NULL,
			player2_pokemon_id VARCHAR(32) NOT NULL,
			player2_pokemon_name VARCHAR(128) NOT NULL,
			winner_id VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			archived_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_archive_player1 ON match_archive(player1_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_match_archive_player2 ON match_archive(player2_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_match_archive_server ON match_archive(server_id, created_at DESC)`,
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

// Get returns the document and version stored under key
func (r *Repository) Get(ctx context.Context, key string) (store.Entry, error) {
	query := `SELECT value, version FROM kv_entries WHERE key = $1`

	var entry store.Entry
	err := r.pool.QueryRow(ctx, query, key).Scan(&entry.Data, &entry.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Entry{}, nil
		}
		return store.Entry{}, fmt.Errorf("getting %s: %w", key, err)
	}
	return entry, nil
}

// Put writes data if the stored version still equals expected
func (r *Repository) Put(ctx context.Context, key string, data []byte, expected int64) (int64, error) {
	now := time.Now()
	var next int64
	var err error

	switch expected {
	case store.AnyVersion:
		query := `
			INSERT INTO kv_entries (key, value, version, updated_at)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (key)
			DO UPDATE SET value = $2, version = kv_entries.version + 1, updated_at = $3
			RETURNING version
		`
		err = r.pool.QueryRow(ctx, query, key, data, now).Scan(&next)
	case 0:
		query := `
			INSERT INTO kv_entries (key, value, version, updated_at)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (key) DO NOTHING
			RETURNING version
		`
		err = r.pool.QueryRow(ctx, query, key, data, now).Scan(&next)
	default:
		query := `
			UPDATE kv_entries
			SET value = $2, version = version + 1, updated_at = $4
			WHERE key = $1 AND version = $3
			RETURNING version
		`
		err = r.pool.QueryRow(ctx, query, key, data, expected, now).Scan(&next)
	}

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrVersionConflict
		}
		return 0, fmt.Errorf("putting %s: %w", key, err)
	}
	return next, nil
}

// Delete removes a document
func (r *Repository) Delete(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// ArchiveMatches stores resolved matches. Matches already archived are skipped.
func (r *Repository) ArchiveMatches(ctx context.Context, matches []domain.MatchRecord) error {
	if len(matches) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO match_archive (
			id, server_id, player1_id, player2_id,
			player1_pokemon_id, player1_pokemon_name,
			player2_pokemon_id, player2_pokemon_name,
			winner_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	for _, m := range matches {
		batch.Queue(query,
			m.ID, m.ServerID, m.Player1ID, m.Player2ID,
			m.Player1PokemonID, m.Player1PokemonName,
			m.Player2PokemonID, m.Player2PokemonName,
			m.WinnerID, m.CreatedAt,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range matches {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("archiving matches: %w", err)
		}
	}
	return nil
}

// ListArchivedMatches returns a user's archived matches, newest first
func (r *Repository) ListArchivedMatches(ctx context.Context, userID string, limit int) ([]domain.MatchRecord, error) {
	query := `
		SELECT id, server_id, player1_id, player2_id,
			   player1_pokemon_id, player1_pokemon_name,
			   player2_pokemon_id, player2_pokemon_name,
			   winner_id, created_at
		FROM match_archive
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing archived matches: %w", err)
	}
	defer rows.Close()

	matches := []domain.MatchRecord{}
	for rows.Next() {
		var m domain.MatchRecord
		err := rows.Scan(
			&m.ID, &m.ServerID, &m.Player1ID, &m.Player2ID,
			&m.Player1PokemonID, &m.Player1PokemonName,
			&m.Player2PokemonID, &m.Player2PokemonName,
			&m.WinnerID, &m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning archived match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
