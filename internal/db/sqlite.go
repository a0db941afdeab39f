package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"janani-health/pkg"
)

// SQLiteStore implements Store on a single SQLite file. History and
// summaries are JSON text columns appended with json_insert.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if err := Migrate(context.Background(), db, DriverSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func sqliteNow() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func (s *SQLiteStore) AppendInteraction(ctx context.Context, phone string, in pkg.Interaction) error {
	payload, err := json.Marshal(normalize(in))
	if err != nil {
		return err
	}
	now := sqliteNow()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO health_logs (phone_number, history, summaries, created_at, updated_at)
		VALUES (?, json_array(json(?)), '[]', ?, ?)
		ON CONFLICT(phone_number) DO UPDATE
		SET history = json_insert(health_logs.history, '$[#]', json(?)),
		    updated_at = ?`,
		phone, string(payload), now, now, string(payload), now,
	)
	if err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendSummary(ctx context.Context, phone string, sum pkg.PeriodSummary) error {
	payload, err := json.Marshal(prepareSummary(sum))
	if err != nil {
		return err
	}
	now := sqliteNow()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO health_logs (phone_number, history, summaries, created_at, updated_at)
		VALUES (?, '[]', json_array(json(?)), ?, ?)
		ON CONFLICT(phone_number) DO UPDATE
		SET summaries = json_insert(health_logs.summaries, '$[#]', json(?)),
		    updated_at = ?`,
		phone, string(payload), now, now, string(payload), now,
	)
	if err != nil {
		return fmt.Errorf("append summary: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, identifier string) (*pkg.UserHealthRecord, error) {
	var (
		rec                  pkg.UserHealthRecord
		history, summaries   string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT phone_number, COALESCE(user_email, ''), history, summaries, created_at, updated_at
		FROM health_logs
		WHERE phone_number = ? OR user_email = ?
		ORDER BY (phone_number = ?) DESC
		LIMIT 1`,
		identifier, identifier, identifier,
	).Scan(&rec.PhoneNumber, &rec.UserEmail, &history, &summaries, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if err := decodeRecord(&rec, []byte(history), []byte(summaries)); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", rec.PhoneNumber, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) LinkEmail(ctx context.Context, phone, email string) error {
	now := sqliteNow()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO health_logs (phone_number, user_email, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(phone_number) DO UPDATE
		SET user_email = excluded.user_email, updated_at = excluded.updated_at`,
		phone, email, now, now,
	)
	return err
}

// UsersWithInteractionsBetween decodes each history in Go; timestamps are
// stored as RFC 3339 text, which does not compare reliably as strings.
func (s *SQLiteStore) UsersWithInteractionsBetween(ctx context.Context, start, end time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT phone_number, history FROM health_logs ORDER BY phone_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var phones []string
	for rows.Next() {
		var phone, history string
		if err := rows.Scan(&phone, &history); err != nil {
			return nil, err
		}
		var stamps []struct {
			Timestamp time.Time `json:"timestamp"`
		}
		if err := json.Unmarshal([]byte(history), &stamps); err != nil {
			return nil, fmt.Errorf("decode history %s: %w", phone, err)
		}
		for _, st := range stamps {
			if !st.Timestamp.Before(start) && !st.Timestamp.After(end) {
				phones = append(phones, phone)
				break
			}
		}
	}
	return phones, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }
