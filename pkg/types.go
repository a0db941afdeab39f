package pkg

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// SymptomStatus tracks where a reported symptom is in its course.
type SymptomStatus string

const (
	SymptomActive    SymptomStatus = "active"
	SymptomRelieved  SymptomStatus = "relieved"
	SymptomRecurring SymptomStatus = "recurring"
)

// FetalMovement is the caller's answer to "did you feel the baby move".
type FetalMovement string

const (
	FetalYes     FetalMovement = "Yes"
	FetalNo      FetalMovement = "No"
	FetalInvalid FetalMovement = "Invalid"
	FetalUnknown FetalMovement = "Unknown"
)

// PeriodType is the calendar granularity of a generated summary.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

// SourceVoiceCall marks interactions captured over the telephone.
const SourceVoiceCall = "voice_call"

// SymptomEntry is one symptom mentioned during a call.
type SymptomEntry struct {
	Name         string        `json:"name"`
	ReportedTime string        `json:"reported_time"`
	Status       SymptomStatus `json:"status"`
}

// MedicationEntry is one medicine or supplement mentioned during a call.
type MedicationEntry struct {
	Name        string `json:"name"`
	Taken       bool   `json:"taken"`
	TakenTime   string `json:"taken_time"`
	EffectNoted string `json:"effect_noted"`
}

// Interaction is a single processed call turn. It is appended once and never
// updated; the JSON names are read by the dashboard and must stay stable.
type Interaction struct {
	ID                 string            `json:"_id"`
	Timestamp          time.Time         `json:"timestamp"`
	UserMessageNative  string            `json:"user_message_native"`
	UserMessageEnglish string            `json:"user_message_english"`
	ReplyNative        string            `json:"rag_reply_native"`
	ReplyEnglish       string            `json:"rag_reply_english"`
	Symptoms           []SymptomEntry    `json:"symptoms"`
	Medications        []MedicationEntry `json:"medications"`
	ReliefNoted        bool              `json:"relief_noted"`
	ReliefDetails      string            `json:"relief_details"`
	FetalMovement      FetalMovement     `json:"fetal_movement_status"`
	SeverityScore      int               `json:"severity_score"`
	AISummary          string            `json:"ai_summary"`
	Source             string            `json:"source,omitempty"`
	Language           string            `json:"language,omitempty"`
}

// PeriodSummary is an LLM-narrated rollup of one calendar window.
type PeriodSummary struct {
	ID                  string     `json:"_id"`
	Type                PeriodType `json:"type"`
	PeriodStart         time.Time  `json:"period_start"`
	PeriodEnd           time.Time  `json:"period_end"`
	GeneratedAt         time.Time  `json:"generated_at"`
	SummaryEnglish      string     `json:"summary_english"`
	SummaryNative       string     `json:"summary_native"`
	TotalInteractions   int        `json:"total_interactions"`
	SymptomsTimeline    string     `json:"symptoms_timeline"`
	MedicationsTimeline string     `json:"medications_timeline"`
	AvgSeverity         float64    `json:"avg_severity"`
	DoctorNotes         string     `json:"doctor_notes"`
}

// Covers reports whether the summary was generated for the window of type t
// starting at start. A window is keyed by its start; the weekly window ends
// at generation time, so its end is not stable.
func (s PeriodSummary) Covers(t PeriodType, start time.Time) bool {
	return s.Type == t && s.PeriodStart.Equal(start)
}

// UserHealthRecord is the per phone number document holding all history.
type UserHealthRecord struct {
	PhoneNumber string          `json:"phone_number"`
	UserEmail   string          `json:"user_email"`
	History     []Interaction   `json:"history"`
	Summaries   []PeriodSummary `json:"summaries"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// HasSummary reports whether a summary already exists for the window.
func (r *UserHealthRecord) HasSummary(t PeriodType, start time.Time) bool {
	for _, s := range r.Summaries {
		if s.Covers(t, start) {
			return true
		}
	}
	return false
}

// NewInteractionID returns a time-ordered identifier for an interaction.
func NewInteractionID() string {
	return ulid.Make().String()
}
