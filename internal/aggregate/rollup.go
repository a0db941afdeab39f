// Package aggregate rolls a user's interaction history up into the views
// read by the patient, doctor and family dashboards. Everything here is a
// pure function of its input.
package aggregate

import (
	"math"
	"sort"
	"time"

	"janani-health/pkg"
)

// SymptomPoint is one mention of a symptom.
type SymptomPoint struct {
	Date         time.Time         `json:"date"`
	Status       pkg.SymptomStatus `json:"status"`
	ReportedTime string            `json:"reportedTime"`
}

// SymptomRollup groups every mention of one symptom name.
type SymptomRollup struct {
	Name          string            `json:"name"`
	FirstReported time.Time         `json:"firstReported"`
	LastReported  time.Time         `json:"lastReported"`
	Status        pkg.SymptomStatus `json:"status"`
	Occurrences   int               `json:"occurrences"`
	Timeline      []SymptomPoint    `json:"timeline"`
}

// MedicationRollup groups every mention of one medication name.
type MedicationRollup struct {
	Name          string    `json:"name"`
	TimesTaken    int       `json:"timesTaken"`
	TimesSkipped  int       `json:"timesSkipped"`
	LastMentioned time.Time `json:"lastMentioned"`
	Effects       []string  `json:"effects"`
}

// Stats are the headline numbers of the dashboard.
type Stats struct {
	TotalInteractions int        `json:"totalInteractions"`
	AvgSeverity       float64    `json:"avgSeverity"`
	ReliefRate        int        `json:"reliefRate"`
	LastActivity      *time.Time `json:"lastActivity"`
}

// Symptoms groups symptoms by exact name. The status of a rollup is the
// status of its most recent mention. Output is ordered by occurrences,
// most frequent first; ties keep first-seen order.
func Symptoms(history []pkg.Interaction) []SymptomRollup {
	index := map[string]int{}
	var out []SymptomRollup
	for _, in := range history {
		for _, s := range in.Symptoms {
			i, ok := index[s.Name]
			if !ok {
				i = len(out)
				index[s.Name] = i
				out = append(out, SymptomRollup{Name: s.Name, FirstReported: in.Timestamp})
			}
			r := &out[i]
			r.Occurrences++
			r.LastReported = in.Timestamp
			r.Status = s.Status
			r.Timeline = append(r.Timeline, SymptomPoint{Date: in.Timestamp, Status: s.Status, ReportedTime: s.ReportedTime})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Occurrences > out[b].Occurrences })
	if out == nil {
		out = []SymptomRollup{}
	}
	return out
}

// Medications groups medications by exact name, ordered by times taken.
func Medications(history []pkg.Interaction) []MedicationRollup {
	index := map[string]int{}
	var out []MedicationRollup
	for _, in := range history {
		for _, m := range in.Medications {
			i, ok := index[m.Name]
			if !ok {
				i = len(out)
				index[m.Name] = i
				out = append(out, MedicationRollup{Name: m.Name, Effects: []string{}})
			}
			r := &out[i]
			if m.Taken {
				r.TimesTaken++
			} else {
				r.TimesSkipped++
			}
			r.LastMentioned = in.Timestamp
			if m.EffectNoted != "" {
				r.Effects = append(r.Effects, m.EffectNoted)
			}
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].TimesTaken > out[b].TimesTaken })
	if out == nil {
		out = []MedicationRollup{}
	}
	return out
}

// AvgSeverity averages the scored turns only. Zero marks an unprocessed or
// failed turn and is excluded; no scored turns yields 0.
func AvgSeverity(history []pkg.Interaction) float64 {
	sum, n := 0, 0
	for _, in := range history {
		if in.SeverityScore > 0 {
			sum += in.SeverityScore
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// ComputeStats returns the dashboard headline numbers.
func ComputeStats(history []pkg.Interaction) Stats {
	st := Stats{
		TotalInteractions: len(history),
		AvgSeverity:       round1(AvgSeverity(history)),
	}
	if len(history) == 0 {
		return st
	}
	relief := 0
	for _, in := range history {
		if in.ReliefNoted {
			relief++
		}
	}
	st.ReliefRate = int(math.Round(float64(relief) / float64(len(history)) * 100))
	last := history[len(history)-1].Timestamp
	st.LastActivity = &last
	return st
}

// tail returns the last n entries of history.
func tail(history []pkg.Interaction, n int) []pkg.Interaction {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
