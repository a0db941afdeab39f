package aggregate

import (
	"time"

	"janani-health/pkg"
)

const (
	recentWindow    = 10
	summariesWindow = 5
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// RecentInteraction is the compact dashboard view of one turn.
type RecentInteraction struct {
	ID            string                `json:"id"`
	Timestamp     time.Time             `json:"timestamp"`
	UserMessage   string                `json:"userMessage"`
	AIReply       string                `json:"aiReply"`
	Severity      int                   `json:"severity"`
	Symptoms      []pkg.SymptomEntry    `json:"symptoms"`
	Medications   []pkg.MedicationEntry `json:"medications"`
	ReliefNoted   bool                  `json:"reliefNoted"`
	ReliefDetails string                `json:"reliefDetails"`
	FetalMovement pkg.FetalMovement     `json:"fetalMovement"`
	AISummary     string                `json:"aiSummary"`
}

// HistoryEntry is the full view of one turn used by paginated history.
type HistoryEntry struct {
	ID                 string                `json:"id"`
	Timestamp          time.Time             `json:"timestamp"`
	UserMessageNative  string                `json:"userMessageNative"`
	UserMessageEnglish string                `json:"userMessageEnglish"`
	AIReplyNative      string                `json:"aiReplyNative"`
	AIReplyEnglish     string                `json:"aiReplyEnglish"`
	Symptoms           []pkg.SymptomEntry    `json:"symptoms"`
	Medications        []pkg.MedicationEntry `json:"medications"`
	ReliefNoted        bool                  `json:"reliefNoted"`
	ReliefDetails      string                `json:"reliefDetails"`
	FetalMovement      pkg.FetalMovement     `json:"fetalMovement"`
	Severity           int                   `json:"severity"`
	AISummary          string                `json:"aiSummary"`
}

// Pagination describes one page of history.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// HistoryPage is a page of history, newest first.
type HistoryPage struct {
	History    []HistoryEntry `json:"history"`
	Pagination Pagination     `json:"pagination"`
}

// DashboardData is the per user rollup.
type DashboardData struct {
	Symptoms           []SymptomRollup     `json:"symptoms"`
	Medications        []MedicationRollup  `json:"medications"`
	RecentInteractions []RecentInteraction `json:"recentInteractions"`
	Summaries          []pkg.PeriodSummary `json:"summaries"`
	Stats              Stats               `json:"stats"`
}

// Dashboard rolls a whole record up. A nil record yields an empty dashboard.
func Dashboard(rec *pkg.UserHealthRecord) DashboardData {
	if rec == nil {
		return DashboardData{
			Symptoms:           []SymptomRollup{},
			Medications:        []MedicationRollup{},
			RecentInteractions: []RecentInteraction{},
			Summaries:          []pkg.PeriodSummary{},
		}
	}
	summaries := make([]pkg.PeriodSummary, 0, summariesWindow)
	for i := len(rec.Summaries) - 1; i >= 0 && len(summaries) < summariesWindow; i-- {
		summaries = append(summaries, rec.Summaries[i])
	}
	return DashboardData{
		Symptoms:           Symptoms(rec.History),
		Medications:        Medications(rec.History),
		RecentInteractions: Recent(rec.History, recentWindow),
		Summaries:          summaries,
		Stats:              ComputeStats(rec.History),
	}
}

// Recent returns up to n of the latest turns, newest first.
func Recent(history []pkg.Interaction, n int) []RecentInteraction {
	last := tail(history, n)
	out := make([]RecentInteraction, 0, len(last))
	for i := len(last) - 1; i >= 0; i-- {
		in := last[i]
		out = append(out, RecentInteraction{
			ID:            in.ID,
			Timestamp:     in.Timestamp,
			UserMessage:   firstNonEmpty(in.UserMessageEnglish, in.UserMessageNative),
			AIReply:       firstNonEmpty(in.ReplyEnglish, in.ReplyNative),
			Severity:      in.SeverityScore,
			Symptoms:      in.Symptoms,
			Medications:   in.Medications,
			ReliefNoted:   in.ReliefNoted,
			ReliefDetails: in.ReliefDetails,
			FetalMovement: in.FetalMovement,
			AISummary:     in.AISummary,
		})
	}
	return out
}

// Page returns one page of history, newest first. Page and limit below 1
// fall back to 1 and DefaultPageSize; limit is capped at MaxPageSize.
func Page(history []pkg.Interaction, page, limit int) HistoryPage {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	total := len(history)
	res := HistoryPage{
		History: []HistoryEntry{},
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}
	if total == 0 || page-1 > (total-1)/limit {
		return res
	}
	// index 0 of the page is history[total-1-(page-1)*limit]
	start := (page - 1) * limit
	for k := start; k < start+limit && k < total; k++ {
		in := history[total-1-k]
		res.History = append(res.History, HistoryEntry{
			ID:                 in.ID,
			Timestamp:          in.Timestamp,
			UserMessageNative:  in.UserMessageNative,
			UserMessageEnglish: in.UserMessageEnglish,
			AIReplyNative:      in.ReplyNative,
			AIReplyEnglish:     in.ReplyEnglish,
			Symptoms:           in.Symptoms,
			Medications:        in.Medications,
			ReliefNoted:        in.ReliefNoted,
			ReliefDetails:      in.ReliefDetails,
			FetalMovement:      in.FetalMovement,
			Severity:           in.SeverityScore,
			AISummary:          in.AISummary,
		})
	}
	return res
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
