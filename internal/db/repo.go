package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"janani-health/pkg"

	"github.com/google/uuid"
)

// PostgresStore keeps each health record as a row with JSONB history and
// summaries columns. Appends use the jsonb concatenation operator inside an
// upsert so concurrent turns for the same phone never lose each other.
type PostgresStore struct {
	DB *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore constructs a store from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{DB: db} }

// AppendInteraction adds one interaction to the end of the phone's history,
// creating the record on first contact.
func (r *PostgresStore) AppendInteraction(ctx context.Context, phone string, in pkg.Interaction) error {
	payload, err := json.Marshal(normalize(in))
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO health_logs (phone_number, history)
         VALUES ($1, jsonb_build_array($2::jsonb))
         ON CONFLICT (phone_number) DO UPDATE
         SET history = health_logs.history || EXCLUDED.history,
             updated_at = NOW()`,
		phone, string(payload),
	)
	if err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

// AppendSummary adds a generated period summary to the phone's record.
func (r *PostgresStore) AppendSummary(ctx context.Context, phone string, s pkg.PeriodSummary) error {
	payload, err := json.Marshal(prepareSummary(s))
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO health_logs (phone_number, summaries)
         VALUES ($1, jsonb_build_array($2::jsonb))
         ON CONFLICT (phone_number) DO UPDATE
         SET summaries = health_logs.summaries || EXCLUDED.summaries,
             updated_at = NOW()`,
		phone, string(payload),
	)
	if err != nil {
		return fmt.Errorf("append summary: %w", err)
	}
	return nil
}

// Get returns the record whose phone number matches identifier, falling back
// to a match on email.
func (r *PostgresStore) Get(ctx context.Context, identifier string) (*pkg.UserHealthRecord, error) {
	var (
		rec                pkg.UserHealthRecord
		history, summaries []byte
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT phone_number, COALESCE(user_email, ''), history, summaries, created_at, updated_at
         FROM health_logs
         WHERE phone_number = $1 OR user_email = $1
         ORDER BY (phone_number = $1) DESC
         LIMIT 1`,
		identifier,
	).Scan(&rec.PhoneNumber, &rec.UserEmail, &history, &summaries, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := decodeRecord(&rec, history, summaries); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", rec.PhoneNumber, err)
	}
	return &rec, nil
}

func (r *PostgresStore) LinkEmail(ctx context.Context, phone, email string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO health_logs (phone_number, user_email)
         VALUES ($1, $2)
         ON CONFLICT (phone_number) DO UPDATE
         SET user_email = EXCLUDED.user_email, updated_at = NOW()`,
		phone, email,
	)
	return err
}

// UsersWithInteractionsBetween scans the embedded history arrays for
// interactions whose timestamp falls inside the window.
func (r *PostgresStore) UsersWithInteractionsBetween(ctx context.Context, start, end time.Time) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT h.phone_number
         FROM health_logs h
         WHERE EXISTS (
           SELECT 1 FROM jsonb_array_elements(h.history) e
           WHERE (e->>'timestamp')::timestamptz BETWEEN $1 AND $2
         )
         ORDER BY h.phone_number`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var phones []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		phones = append(phones, p)
	}
	return phones, rows.Err()
}

func (r *PostgresStore) Ping(ctx context.Context) error { return r.DB.PingContext(ctx) }

func (r *PostgresStore) Close() error { return r.DB.Close() }

func prepareSummary(s pkg.PeriodSummary) pkg.PeriodSummary {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = time.Now()
	}
	s.GeneratedAt = s.GeneratedAt.UTC()
	s.PeriodStart = s.PeriodStart.UTC()
	s.PeriodEnd = s.PeriodEnd.UTC()
	return s
}
