package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"janani-health/pkg"
)

// ErrNotFound is returned when no health record matches an identifier.
var ErrNotFound = errors.New("health record not found")

// Store persists one health record per phone number. Interactions and
// summaries are only ever appended, each append a single atomic statement.
type Store interface {
	AppendInteraction(ctx context.Context, phone string, in pkg.Interaction) error
	AppendSummary(ctx context.Context, phone string, s pkg.PeriodSummary) error
	// Get looks the record up by phone number first, then by email.
	Get(ctx context.Context, identifier string) (*pkg.UserHealthRecord, error)
	// LinkEmail attaches an email to the record for phone, creating it if needed.
	LinkEmail(ctx context.Context, phone, email string) error
	// UsersWithInteractionsBetween lists phones with at least one
	// interaction timestamped inside [start, end].
	UsersWithInteractionsBetween(ctx context.Context, start, end time.Time) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// normalize fixes up an interaction before it is written.
func normalize(in pkg.Interaction) pkg.Interaction {
	if in.ID == "" {
		in.ID = pkg.NewInteractionID()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}
	in.Timestamp = in.Timestamp.UTC()
	if in.Symptoms == nil {
		in.Symptoms = []pkg.SymptomEntry{}
	}
	if in.Medications == nil {
		in.Medications = []pkg.MedicationEntry{}
	}
	if in.FetalMovement == "" {
		in.FetalMovement = pkg.FetalUnknown
	}
	return in
}

func decodeRecord(rec *pkg.UserHealthRecord, history, summaries []byte) error {
	if len(history) > 0 {
		if err := json.Unmarshal(history, &rec.History); err != nil {
			return err
		}
	}
	if len(summaries) > 0 {
		if err := json.Unmarshal(summaries, &rec.Summaries); err != nil {
			return err
		}
	}
	if rec.History == nil {
		rec.History = []pkg.Interaction{}
	}
	if rec.Summaries == nil {
		rec.Summaries = []pkg.PeriodSummary{}
	}
	return nil
}

// NotifyingStore publishes the phone number on every successful append.
type NotifyingStore struct {
	Store
	Notifier Notifier
}

// WithNotifier wraps s so appends are announced on n.
func WithNotifier(s Store, n Notifier) *NotifyingStore {
	return &NotifyingStore{Store: s, Notifier: n}
}

func (s *NotifyingStore) AppendInteraction(ctx context.Context, phone string, in pkg.Interaction) error {
	if err := s.Store.AppendInteraction(ctx, phone, in); err != nil {
		return err
	}
	_ = s.Notifier.Notify(ctx, phone)
	return nil
}

func (s *NotifyingStore) AppendSummary(ctx context.Context, phone string, sum pkg.PeriodSummary) error {
	if err := s.Store.AppendSummary(ctx, phone, sum); err != nil {
		return err
	}
	_ = s.Notifier.Notify(ctx, phone)
	return nil
}
