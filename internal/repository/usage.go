// Package repository persists usage records in Postgres.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mathparenting/tutor-gateway/internal/domain"
)

// Schema:
//
//	CREATE TABLE usage_records (
//	    id BIGSERIAL PRIMARY KEY,
//	    request_id TEXT NOT NULL,
//	    client_id TEXT NOT NULL,
//	    intent TEXT NOT NULL,
//	    topic TEXT,
//	    provider TEXT,
//	    model TEXT,
//	    prompt_tokens INT NOT NULL DEFAULT 0,
//	    completion_tokens INT NOT NULL DEFAULT 0,
//	    latency_ms BIGINT NOT NULL DEFAULT 0,
//	    cached BOOLEAN NOT NULL DEFAULT FALSE,
//	    status TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
type PostgresUsageRepository struct {
	db *sql.DB
}

func NewPostgresUsageRepository(databaseURL string) (*PostgresUsageRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresUsageRepository{db: db}, nil
}

func NewPostgresUsageRepositoryWithDB(db *sql.DB) *PostgresUsageRepository {
	return &PostgresUsageRepository{db: db}
}

func (r *PostgresUsageRepository) Record(ctx context.Context, record domain.UsageRecord) error {
	query := `
		INSERT INTO usage_records (request_id, client_id, intent, topic, provider, model, prompt_tokens, completion_tokens, latency_ms, cached, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.RequestID,
		record.ClientID,
		record.Intent,
		record.Topic,
		record.Provider,
		record.Model,
		record.PromptTokens,
		record.CompletionTokens,
		record.LatencyMs,
		record.Cached,
		record.Status,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}

	return nil
}

// Recent returns the newest records, most recent first; served by the admin
// usage endpoint.
func (r *PostgresUsageRepository) Recent(ctx context.Context, limit int) ([]domain.UsageRecord, error) {
	query := `
		SELECT request_id, client_id, intent, COALESCE(topic, ''), COALESCE(provider, ''), COALESCE(model, ''), prompt_tokens, completion_tokens, latency_ms, cached, status, created_at
		FROM usage_records
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query usage records: %w", err)
	}
	defer rows.Close()

	var records []domain.UsageRecord
	for rows.Next() {
		var rec domain.UsageRecord
		if err := rows.Scan(
			&rec.RequestID,
			&rec.ClientID,
			&rec.Intent,
			&rec.Topic,
			&rec.Provider,
			&rec.Model,
			&rec.PromptTokens,
			&rec.CompletionTokens,
			&rec.LatencyMs,
			&rec.Cached,
			&rec.Status,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (r *PostgresUsageRepository) DB() *sql.DB {
	return r.db
}

func (r *PostgresUsageRepository) Close() error {
	return r.db.Close()
}
