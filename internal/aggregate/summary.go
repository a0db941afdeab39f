package aggregate

import (
	"fmt"
	"strings"
	"time"

	"janani-health/pkg"
)

// Red flag thresholds.
const (
	HighSeverityScore      = 6
	HighSeverityFlagAbove  = 3
	ActiveSymptomFlagAbove = 3
	doctorWindow           = 20
	doctorNotesWindow      = 10
	recentHighSeverityMax  = 5
	familyWindow           = 15
)

// Family health tiers.
const (
	TierGood      = "Good"
	TierAttention = "Needs Attention"
	TierUrgent    = "Needs Immediate Care"
)

var tierMessages = map[string]string{
	TierGood:      "She is doing well! Her recent interactions show healthy patterns. Keep supporting her.",
	TierAttention: "She has mentioned some symptoms recently. Make sure she is comfortable and taking her medications.",
	TierUrgent:    "Please ensure she sees a doctor soon. Some symptoms need medical attention.",
}

// HighSeverityEvent is a recent turn scored at or above HighSeverityScore.
type HighSeverityEvent struct {
	Date     time.Time `json:"date"`
	Severity int       `json:"severity"`
	Summary  string    `json:"summary"`
	Symptoms []string  `json:"symptoms"`
}

// DoctorSummary is the doctor-facing red flag view.
type DoctorSummary struct {
	GeneratedAt          time.Time           `json:"generatedAt"`
	TotalInteractions    int                 `json:"totalInteractions"`
	RedFlags             []string            `json:"redFlags"`
	ActiveSymptoms       []string            `json:"activeSymptoms"`
	SkippedMedications   []string            `json:"skippedMedications"`
	FetalMovementConcern bool                `json:"fetalMovementConcern"`
	HighSeverityEvents   int                 `json:"highSeverityEvents"`
	RecentHighSeverity   []HighSeverityEvent `json:"recentHighSeverity"`
	DoctorNotes          string              `json:"doctorNotes"`
}

// FamilySummary is the plain-language view for relatives.
type FamilySummary struct {
	GeneratedAt       time.Time `json:"generatedAt"`
	OverallHealth     string    `json:"overallHealth"`
	AverageSeverity   float64   `json:"averageSeverity"`
	RecentSymptoms    []string  `json:"recentSymptoms"`
	MedicationsTaken  []string  `json:"medicationsTaken"`
	ReliefOccurrences int       `json:"reliefOccurrences"`
	TotalRecentChats  int       `json:"totalRecentChats"`
	Message           string    `json:"message"`
}

// Doctor builds the red flag summary. Each threshold rule appends at most
// one flag, independently of the others.
func Doctor(history []pkg.Interaction, now time.Time) DoctorSummary {
	sum := DoctorSummary{
		GeneratedAt:        now,
		TotalInteractions:  len(history),
		RedFlags:           []string{},
		ActiveSymptoms:     []string{},
		SkippedMedications: []string{},
		RecentHighSeverity: []HighSeverityEvent{},
	}

	var high []pkg.Interaction
	noMovement, checks := 0, 0
	for _, in := range history {
		if in.SeverityScore >= HighSeverityScore {
			high = append(high, in)
		}
		if in.FetalMovement != pkg.FetalInvalid {
			checks++
			if in.FetalMovement == pkg.FetalNo {
				noMovement++
			}
		}
	}
	sum.HighSeverityEvents = len(high)
	sum.FetalMovementConcern = checks > 0 && float64(noMovement)/float64(checks) > 0.5

	seenSym, seenMed := map[string]bool{}, map[string]bool{}
	for _, in := range tail(history, doctorWindow) {
		for _, s := range in.Symptoms {
			if (s.Status == pkg.SymptomActive || s.Status == pkg.SymptomRecurring) && !seenSym[s.Name] {
				seenSym[s.Name] = true
				sum.ActiveSymptoms = append(sum.ActiveSymptoms, s.Name)
			}
		}
		for _, m := range in.Medications {
			if !m.Taken && !seenMed[m.Name] {
				seenMed[m.Name] = true
				sum.SkippedMedications = append(sum.SkippedMedications, m.Name)
			}
		}
	}

	for _, in := range tail(high, recentHighSeverityMax) {
		names := make([]string, 0, len(in.Symptoms))
		for _, s := range in.Symptoms {
			names = append(names, s.Name)
		}
		sum.RecentHighSeverity = append(sum.RecentHighSeverity, HighSeverityEvent{
			Date: in.Timestamp, Severity: in.SeverityScore, Summary: in.AISummary, Symptoms: names,
		})
	}

	if len(high) > HighSeverityFlagAbove {
		sum.RedFlags = append(sum.RedFlags, fmt.Sprintf("%d high-severity events recorded", len(high)))
	}
	if len(sum.ActiveSymptoms) > ActiveSymptomFlagAbove {
		sum.RedFlags = append(sum.RedFlags, "Multiple active symptoms: "+strings.Join(sum.ActiveSymptoms, ", "))
	}
	if sum.FetalMovementConcern {
		sum.RedFlags = append(sum.RedFlags, "Patient frequently reports no fetal movement")
	}
	if len(sum.SkippedMedications) > 0 {
		sum.RedFlags = append(sum.RedFlags, "Medications not taken: "+strings.Join(sum.SkippedMedications, ", "))
	}

	var notes []string
	for _, in := range tail(history, doctorNotesWindow) {
		if in.AISummary != "" {
			notes = append(notes, fmt.Sprintf("[%s] %s", in.Timestamp.Format("2006-01-02"), in.AISummary))
		}
	}
	sum.DoctorNotes = strings.Join(notes, "\n")
	return sum
}

// HealthTier classifies an average severity.
func HealthTier(avg float64) string {
	switch {
	case avg <= 3:
		return TierGood
	case avg <= 6:
		return TierAttention
	default:
		return TierUrgent
	}
}

// Family builds the family summary over the most recent turns. The average
// here counts every recent turn, including unscored ones.
func Family(history []pkg.Interaction, now time.Time) FamilySummary {
	recent := tail(history, familyWindow)
	sum := FamilySummary{
		GeneratedAt:      now,
		RecentSymptoms:   []string{},
		MedicationsTaken: []string{},
		TotalRecentChats: len(recent),
	}
	var avg float64
	if len(recent) > 0 {
		total := 0
		for _, in := range recent {
			total += in.SeverityScore
		}
		avg = float64(total) / float64(len(recent))
	}
	sum.OverallHealth = HealthTier(avg)
	sum.AverageSeverity = round1(avg)
	sum.Message = tierMessages[sum.OverallHealth]

	seenSym, seenMed := map[string]bool{}, map[string]bool{}
	for _, in := range recent {
		if in.ReliefNoted {
			sum.ReliefOccurrences++
		}
		for _, s := range in.Symptoms {
			if !seenSym[s.Name] {
				seenSym[s.Name] = true
				sum.RecentSymptoms = append(sum.RecentSymptoms, fmt.Sprintf("%s (%s)", s.Name, s.Status))
			}
		}
		for _, m := range in.Medications {
			if m.Taken && !seenMed[m.Name] {
				seenMed[m.Name] = true
				sum.MedicationsTaken = append(sum.MedicationsTaken, m.Name)
			}
		}
	}
	return sum
}
