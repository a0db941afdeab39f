// Package clinical turns a caller transcript into a validated clinical
// record. Whatever the model returns is repaired into the fixed schema, so
// callers never see a decoding error from malformed output.
package clinical

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"janani-health/internal/llm"
	"janani-health/pkg"
)

const (
	// UnknownSymptom replaces a symptom entry with no name.
	UnknownSymptom = "unknown"
	// UnspecifiedMedicine replaces a medication entry with no name.
	UnspecifiedMedicine = "unspecified medicine"
	// DefaultSeverity is used when the model gives no usable score.
	DefaultSeverity = 5
)

// Record is the clinical content of one call turn.
type Record struct {
	Symptoms      []pkg.SymptomEntry    `json:"symptoms"`
	Medications   []pkg.MedicationEntry `json:"medications"`
	ReliefNoted   bool                  `json:"relief_noted"`
	ReliefDetails string                `json:"relief_details"`
	FetalMovement pkg.FetalMovement     `json:"fetal_movement"`
	Severity      int                   `json:"severity"`
	Summary       string                `json:"summary"`
}

// Default is the record used when extraction is unavailable.
func Default(transcript string) Record {
	return Record{
		Symptoms:      []pkg.SymptomEntry{},
		Medications:   []pkg.MedicationEntry{},
		FetalMovement: pkg.FetalNo,
		Severity:      DefaultSeverity,
		Summary:       truncate(transcript, 200),
	}
}

// Apply copies the clinical fields onto an interaction.
func (r Record) Apply(in *pkg.Interaction) {
	in.Symptoms = r.Symptoms
	in.Medications = r.Medications
	in.ReliefNoted = r.ReliefNoted
	in.ReliefDetails = r.ReliefDetails
	in.FetalMovement = r.FetalMovement
	in.SeverityScore = r.Severity
	in.AISummary = r.Summary
}

// Parse decodes a model response leniently and repairs it. Unparseable input
// yields the repaired zero record (which equals Default without a summary).
func Parse(raw []byte) Record {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(llm.StripFences(string(raw))), &fields); err != nil {
		fields = map[string]interface{}{}
	}

	r := Record{
		Symptoms:      parseSymptoms(fields["symptoms"]),
		Medications:   parseMedications(fields["medications"]),
		ReliefDetails: asString(fields["relief_details"]),
		Summary:       asString(fields["summary"]),
	}
	// Only a real boolean counts; "yes" or 1 is treated as missing.
	if b, ok := fields["relief_noted"].(bool); ok {
		r.ReliefNoted = b
	}
	r.FetalMovement = parseFetal(fields["fetal_movement"])
	r.Severity = parseSeverity(fields["severity"])
	return Repair(r)
}

// Repair enforces the schema rules on an already-typed record.
func Repair(r Record) Record {
	switch r.FetalMovement {
	case pkg.FetalYes, pkg.FetalNo, pkg.FetalUnknown, pkg.FetalInvalid:
	default:
		r.FetalMovement = pkg.FetalNo
	}
	if r.Severity < 1 || r.Severity > 10 {
		r.Severity = DefaultSeverity
	}
	if r.Symptoms == nil {
		r.Symptoms = []pkg.SymptomEntry{}
	}
	for i := range r.Symptoms {
		s := &r.Symptoms[i]
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			s.Name = UnknownSymptom
		}
		switch s.Status {
		case pkg.SymptomActive, pkg.SymptomRelieved, pkg.SymptomRecurring:
		default:
			s.Status = pkg.SymptomActive
		}
	}
	if r.Medications == nil {
		r.Medications = []pkg.MedicationEntry{}
	}
	for i := range r.Medications {
		m := &r.Medications[i]
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			m.Name = UnspecifiedMedicine
		}
	}
	return r
}

func parseSymptoms(v interface{}) []pkg.SymptomEntry {
	items, _ := v.([]interface{})
	out := make([]pkg.SymptomEntry, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case string:
			out = append(out, pkg.SymptomEntry{Name: it, Status: pkg.SymptomActive})
		case map[string]interface{}:
			out = append(out, pkg.SymptomEntry{
				Name:         asString(it["name"]),
				ReportedTime: asString(it["reported_time"]),
				Status:       pkg.SymptomStatus(strings.ToLower(asString(it["status"]))),
			})
		default:
			out = append(out, pkg.SymptomEntry{})
		}
	}
	return out
}

func parseMedications(v interface{}) []pkg.MedicationEntry {
	items, _ := v.([]interface{})
	out := make([]pkg.MedicationEntry, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case string:
			out = append(out, pkg.MedicationEntry{Name: it})
		case map[string]interface{}:
			taken, _ := it["taken"].(bool)
			out = append(out, pkg.MedicationEntry{
				Name:        asString(it["name"]),
				Taken:       taken,
				TakenTime:   asString(it["taken_time"]),
				EffectNoted: asString(it["effect_noted"]),
			})
		default:
			out = append(out, pkg.MedicationEntry{})
		}
	}
	return out
}

func parseFetal(v interface{}) pkg.FetalMovement {
	s := strings.TrimSpace(asString(v))
	for _, f := range []pkg.FetalMovement{pkg.FetalYes, pkg.FetalNo, pkg.FetalUnknown, pkg.FetalInvalid} {
		if strings.EqualFold(s, string(f)) {
			return f
		}
	}
	return ""
}

func parseSeverity(v interface{}) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
