package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting of the service. Values come from an optional
// .env file and the process environment.
type Config struct {
	Environment   string `mapstructure:"ENVIRONMENT"`
	ServerPort    string `mapstructure:"SERVER_PORT"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`
	Timezone      string `mapstructure:"TIMEZONE"`
	LogDir        string `mapstructure:"LOG_DIR"`

	// Store
	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`
	NotifyChannel string `mapstructure:"NOTIFY_CHANNEL"`

	// Redis (optional; empty address keeps dedup and audio clips in memory)
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	DedupTTLSeconds int `mapstructure:"DEDUP_TTL_SECONDS"`
	DedupCapacity   int `mapstructure:"DEDUP_CAPACITY"`

	// OpenAI compatible LLM endpoint
	LLMAPIKey         string `mapstructure:"LLM_API_KEY"`
	LLMBaseURL        string `mapstructure:"LLM_BASE_URL"`
	LLMModelClinical  string `mapstructure:"LLM_MODEL_CLINICAL"`
	LLMModelSummary   string `mapstructure:"LLM_MODEL_SUMMARY"`
	LLMModelTranslate string `mapstructure:"LLM_MODEL_TRANSLATE"`

	// Speech provider
	SpeechAPIKey  string `mapstructure:"SPEECH_API_KEY"`
	SpeechBaseURL string `mapstructure:"SPEECH_BASE_URL"`
	STTModel      string `mapstructure:"STT_MODEL"`
	TTSModel      string `mapstructure:"TTS_MODEL"`
	TTSSpeaker    string `mapstructure:"TTS_SPEAKER"`

	// Advisory (RAG) service
	AdvisoryURL    string `mapstructure:"ADVISORY_URL"`
	PatientContext string `mapstructure:"PATIENT_CONTEXT"`

	// Twilio
	TwilioAccountSID        string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken         string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber       string `mapstructure:"TWILIO_PHONE_NUMBER"`
	TwilioValidateSignature bool   `mapstructure:"TWILIO_VALIDATE_SIGNATURE"`

	// Call flow
	MaxNoInputRetries     int `mapstructure:"MAX_NO_INPUT_RETRIES"`
	StageTimeoutSeconds   int `mapstructure:"STAGE_TIMEOUT_SECONDS"`
	TurnBudgetSeconds     int `mapstructure:"TURN_BUDGET_SECONDS"`
	SummaryTimeoutSeconds int `mapstructure:"SUMMARY_TIMEOUT_SECONDS"`
	ClipTTLSeconds        int `mapstructure:"CLIP_TTL_SECONDS"`
	CallBackDelaySeconds  int `mapstructure:"CALL_BACK_DELAY_SECONDS"`
}

var defaults = map[string]interface{}{
	"ENVIRONMENT":               "development",
	"SERVER_PORT":               "8080",
	"PUBLIC_BASE_URL":           "http://localhost:8080",
	"TIMEZONE":                  "Asia/Kolkata",
	"LOG_DIR":                   "logs",
	"STORE_DRIVER":              "sqlite",
	"DATABASE_URL":              "",
	"SQLITE_PATH":               "data/janani.db",
	"NOTIFY_CHANNEL":            "health_log_updates",
	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"DEDUP_TTL_SECONDS":         120,
	"DEDUP_CAPACITY":            10000,
	"LLM_API_KEY":               "",
	"LLM_BASE_URL":              "",
	"LLM_MODEL_CLINICAL":        "llama-3.3-70b-versatile",
	"LLM_MODEL_SUMMARY":         "llama-3.3-70b-versatile",
	"LLM_MODEL_TRANSLATE":       "llama-3.3-70b-versatile",
	"SPEECH_API_KEY":            "",
	"SPEECH_BASE_URL":           "https://api.sarvam.ai",
	"STT_MODEL":                 "saaras:v3",
	"TTS_MODEL":                 "bulbul:v3",
	"TTS_SPEAKER":               "priya",
	"ADVISORY_URL":              "http://localhost:8000/ask",
	"PATIENT_CONTEXT":           "Pregnant mother calling the Janani helpline, general wellness query.",
	"TWILIO_ACCOUNT_SID":        "",
	"TWILIO_AUTH_TOKEN":         "",
	"TWILIO_PHONE_NUMBER":       "",
	"TWILIO_VALIDATE_SIGNATURE": false,
	"MAX_NO_INPUT_RETRIES":      2,
	"STAGE_TIMEOUT_SECONDS":     8,
	"TURN_BUDGET_SECONDS":       13,
	"SUMMARY_TIMEOUT_SECONDS":   30,
	"CLIP_TTL_SECONDS":          300,
	"CALL_BACK_DELAY_SECONDS":   2,
}

// Load reads configuration from path/.env and the environment. A missing
// .env file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if cfg.StoreDriver != "postgres" && cfg.StoreDriver != "sqlite" {
		return cfg, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == "postgres" && cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL must be set for the postgres store")
	}
	return cfg, nil
}

// Location resolves the configured timezone used for calendar windows and
// cron schedules.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// StageTimeout bounds each external call made while a caller is on the line.
func (c Config) StageTimeout() time.Duration {
	return time.Duration(c.StageTimeoutSeconds) * time.Second
}

// TurnBudget bounds one whole recorded turn.
func (c Config) TurnBudget() time.Duration {
	return time.Duration(c.TurnBudgetSeconds) * time.Second
}

// SummaryTimeout bounds one narrative-generation call.
func (c Config) SummaryTimeout() time.Duration {
	return time.Duration(c.SummaryTimeoutSeconds) * time.Second
}

// DedupTTL is how long a recording identifier is remembered.
func (c Config) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLSeconds) * time.Second
}

// ClipTTL is how long a synthesized reply stays fetchable.
func (c Config) ClipTTL() time.Duration {
	return time.Duration(c.ClipTTLSeconds) * time.Second
}

// CallBackDelay lets the caller's line clear before ringing back.
func (c Config) CallBackDelay() time.Duration {
	return time.Duration(c.CallBackDelaySeconds) * time.Second
}
