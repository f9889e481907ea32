package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"aegis/pkg/securityevent"
)

// PostgresStore persists security events and master-access records.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, tunes the pool, and runs the inline schema
// migration.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS security_events (
		id UUID PRIMARY KEY,
		event_type VARCHAR(64) NOT NULL,
		severity VARCHAR(16) NOT NULL,
		source_ip VARCHAR(64),
		source_user_agent TEXT,
		source_user_id VARCHAR(255),
		behavioral_pattern TEXT,
		details JSONB,
		mitigation_applied TEXT[],
		resolved BOOLEAN NOT NULL DEFAULT FALSE,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS master_access (
		id UUID PRIMARY KEY,
		access_type VARCHAR(64) NOT NULL,
		access_level VARCHAR(32) NOT NULL,
		biometric_type VARCHAR(32) NOT NULL,
		biometric_hash TEXT NOT NULL,
		last_verified TIMESTAMP WITH TIME ZONE,
		expires_at TIMESTAMP WITH TIME ZONE,
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_security_events_type ON security_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_security_events_timestamp ON security_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_master_access_biometric_type ON master_access(biometric_type);`

	_, err := s.db.Exec(query)
	return err
}

func (s *PostgresStore) SaveSecurityEvent(ctx context.Context, evt *securityevent.Event) error {
	details, err := json.Marshal(evt.Details)
	if err != nil {
		return fmt.Errorf("marshal event details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO security_events
			(id, event_type, severity, source_ip, source_user_agent, source_user_id,
			 behavioral_pattern, details, mitigation_applied, resolved, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		evt.ID, evt.Type, evt.Severity,
		evt.Source.IP, evt.Source.UserAgent, evt.Source.UserID, evt.Source.BehavioralPattern,
		details, pq.Array(evt.MitigationApplied), evt.Resolved, evt.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecentEvents(ctx context.Context, limit int) ([]*securityevent.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, severity, source_ip, source_user_agent, source_user_id,
		       behavioral_pattern, details, mitigation_applied, resolved, timestamp
		FROM security_events
		ORDER BY timestamp DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}
	defer rows.Close()

	var out []*securityevent.Event
	for rows.Next() {
		var (
			evt     securityevent.Event
			details []byte
		)
		if err := rows.Scan(
			&evt.ID, &evt.Type, &evt.Severity,
			&evt.Source.IP, &evt.Source.UserAgent, &evt.Source.UserID, &evt.Source.BehavioralPattern,
			&details, pq.Array(&evt.MitigationApplied), &evt.Resolved, &evt.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &evt.Details); err != nil {
				return nil, fmt.Errorf("unmarshal event details: %w", err)
			}
		}
		out = append(out, &evt)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListMasterAccessByBiometricType(ctx context.Context, biometricType string) ([]*securityevent.MasterAccess, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, access_type, access_level, biometric_type, biometric_hash,
		       last_verified, expires_at, status
		FROM master_access
		WHERE biometric_type = $1 OR biometric_type = 'multi'`, biometricType)
	if err != nil {
		return nil, fmt.Errorf("query master access: %w", err)
	}
	defer rows.Close()

	var out []*securityevent.MasterAccess
	for rows.Next() {
		var (
			rec          securityevent.MasterAccess
			lastVerified sql.NullTime
			expiresAt    sql.NullTime
		)
		if err := rows.Scan(
			&rec.ID, &rec.AccessType, &rec.AccessLevel, &rec.BiometricType,
			&rec.BiometricHash, &lastVerified, &expiresAt, &rec.Status,
		); err != nil {
			return nil, fmt.Errorf("scan master access: %w", err)
		}
		if lastVerified.Valid {
			rec.LastVerified = &lastVerified.Time
		}
		if expiresAt.Valid {
			rec.ExpiresAt = &expiresAt.Time
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateMasterAccess(ctx context.Context, rec *securityevent.MasterAccess) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO master_access
			(id, access_type, access_level, biometric_type, biometric_hash, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.AccessType, rec.AccessLevel, rec.BiometricType,
		rec.BiometricHash, rec.ExpiresAt, rec.Status,
	)
	if err != nil {
		return fmt.Errorf("insert master access: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMasterAccess(ctx context.Context, id string, rec *securityevent.MasterAccess) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE master_access
		SET access_type = $2, access_level = $3, biometric_type = $4,
		    biometric_hash = $5, last_verified = $6, expires_at = $7, status = $8
		WHERE id = $1`,
		id, rec.AccessType, rec.AccessLevel, rec.BiometricType,
		rec.BiometricHash, rec.LastVerified, rec.ExpiresAt, rec.Status,
	)
	if err != nil {
		return fmt.Errorf("update master access: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
