// Package app assembles the components shared by the server and the
// operator CLI from a loaded configuration.
package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"janani-health/internal/config"
	"janani-health/internal/core"
	"janani-health/internal/db"
	"janani-health/internal/dedup"
	"janani-health/internal/llm"
	"janani-health/internal/telephony"
)

// OpenStore opens the configured store wrapped so every append is announced
// on the returned notifier. For Postgres the notifier relays NOTIFY events
// until ctx is cancelled.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (db.Store, db.Notifier, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	switch cfg.StoreDriver {
	case db.DriverSQLite:
		s, err := db.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		n := db.NewLocalNotifier()
		return db.WithNotifier(s, n), n, nil
	case db.DriverPostgres:
		conn, err := db.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		n := db.NewPGNotifier(conn, cfg.DatabaseURL, cfg.NotifyChannel, log)
		if err := n.Start(ctx); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("start notify listener: %w", err)
		}
		return db.WithNotifier(db.NewPostgresStore(conn), n), n, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// NewLLM builds the chat client from the LLM_* settings.
func NewLLM(cfg config.Config) *llm.OpenAIClient {
	return llm.NewOpenAIClient(llm.Options{
		APIKey:         cfg.LLMAPIKey,
		BaseURL:        cfg.LLMBaseURL,
		ClinicalModel:  cfg.LLMModelClinical,
		SummaryModel:   cfg.LLMModelSummary,
		TranslateModel: cfg.LLMModelTranslate,
	})
}

// NewSummaryRunner builds the periodic summary runner over store.
func NewSummaryRunner(cfg config.Config, store db.Store, client llm.Client, log *zap.SugaredLogger) (*core.SummaryRunner, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	summarizer := core.NewSummarizer(client, loc, cfg.SummaryTimeout())
	return core.NewSummaryRunner(store, summarizer, loc, log), nil
}

// GreetingURL is where outbound calls start.
func GreetingURL(cfg config.Config) string {
	return cfg.PublicBaseURL + "/api/voice/greeting"
}

// NewCaller builds the Twilio call-back client.
func NewCaller(cfg config.Config) (*telephony.TwilioCaller, error) {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioPhoneNumber == "" {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER must be set")
	}
	return telephony.NewTwilioCaller(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, GreetingURL(cfg)), nil
}

// NewDedup shares recording identifiers through Redis when a client is
// given and keeps them in process otherwise.
func NewDedup(cfg config.Config, rdb *redis.Client) dedup.RecordingSet {
	if rdb != nil {
		return dedup.NewRedisSet(rdb, cfg.DedupTTL())
	}
	return dedup.NewMemorySet(cfg.DedupCapacity, cfg.DedupTTL())
}

// NewClips picks the clip store the same way as NewDedup.
func NewClips(cfg config.Config, rdb *redis.Client) telephony.ClipStore {
	if rdb != nil {
		return telephony.NewRedisClips(rdb, cfg.ClipTTL())
	}
	return telephony.NewMemoryClips(cfg.ClipTTL())
}
