package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"janani-health/internal/aggregate"
	"janani-health/internal/db"
	"janani-health/internal/llm"
	"janani-health/pkg"
)

var (
	// ErrUnknownPeriod is returned for a period type other than daily,
	// weekly or monthly.
	ErrUnknownPeriod = errors.New("unknown summary period")
	// ErrRunInProgress is returned when a run for the same period type has
	// not finished yet.
	ErrRunInProgress = errors.New("summary run already in progress")
)

// ParsePeriod converts a user supplied period name.
func ParsePeriod(s string) (pkg.PeriodType, error) {
	switch p := pkg.PeriodType(strings.ToLower(strings.TrimSpace(s))); p {
	case pkg.PeriodDaily, pkg.PeriodWeekly, pkg.PeriodMonthly:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
}

// Window returns the closed time range a summary of the given type covers
// when generated at now. Calendar boundaries are taken in loc.
func Window(period pkg.PeriodType, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	y, m, d := now.Date()
	switch period {
	case pkg.PeriodDaily:
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 1).Add(-time.Millisecond), nil
	case pkg.PeriodWeekly:
		return time.Date(y, m, d-7, 0, 0, 0, 0, loc), now, nil
	case pkg.PeriodMonthly:
		first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return first.AddDate(0, -1, 0), first.Add(-time.Millisecond), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
}

// narrative is the JSON shape the model is asked to return.
type narrative struct {
	SummaryEnglish      string `json:"summary_english"`
	SummaryNative       string `json:"summary_native"`
	SymptomsTimeline    string `json:"symptoms_timeline"`
	MedicationsTimeline string `json:"medications_timeline"`
	DoctorNotes         string `json:"doctor_notes"`
}

// Summarizer writes the narrative for one user's window.
type Summarizer struct {
	LLM      llm.Client
	Location *time.Location
	// Timeout bounds the model call; zero leaves it to ctx.
	Timeout time.Duration
	Now     func() time.Time
}

// NewSummarizer constructs a summarizer.
func NewSummarizer(client llm.Client, loc *time.Location, timeout time.Duration) *Summarizer {
	return &Summarizer{LLM: client, Location: loc, Timeout: timeout}
}

func (s *Summarizer) loc() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Generate returns nil without error when no interaction falls inside
// [start, end].
func (s *Summarizer) Generate(ctx context.Context, rec *pkg.UserHealthRecord, period pkg.PeriodType, start, end time.Time) (*pkg.PeriodSummary, error) {
	in := between(rec.History, start, end)
	if len(in) == 0 {
		return nil, nil
	}
	avg := aggregate.AvgSeverity(in)
	loc := s.loc()
	system := fmt.Sprintf(summarySystemPrompt, period, rec.PhoneNumber,
		start.In(loc).Format("2/1/2006"), end.In(loc).Format("2/1/2006"),
		len(in), avg, timeline(in, loc))

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	var n narrative
	if err := s.LLM.JSON(ctx, llm.PurposeSummary, system, fmt.Sprintf(summaryUserPrompt, period), &n); err != nil {
		return nil, fmt.Errorf("generate %s summary: %w", period, err)
	}

	generated := time.Now()
	if s.Now != nil {
		generated = s.Now()
	}
	return &pkg.PeriodSummary{
		Type:                period,
		PeriodStart:         start,
		PeriodEnd:           end,
		GeneratedAt:         generated,
		SummaryEnglish:      n.SummaryEnglish,
		SummaryNative:       n.SummaryNative,
		TotalInteractions:   len(in),
		SymptomsTimeline:    n.SymptomsTimeline,
		MedicationsTimeline: n.MedicationsTimeline,
		AvgSeverity:         math.Round(avg*10) / 10,
		DoctorNotes:         n.DoctorNotes,
	}, nil
}

func between(history []pkg.Interaction, start, end time.Time) []pkg.Interaction {
	var out []pkg.Interaction
	for _, in := range history {
		if !in.Timestamp.Before(start) && !in.Timestamp.After(end) {
			out = append(out, in)
		}
	}
	return out
}

// timeline renders the per-call block handed to the model.
func timeline(history []pkg.Interaction, loc *time.Location) string {
	blocks := make([]string, 0, len(history))
	for i, in := range history {
		syms := make([]string, 0, len(in.Symptoms))
		for _, s := range in.Symptoms {
			detail := string(s.Status)
			if s.ReportedTime != "" {
				detail += ", " + s.ReportedTime
			}
			syms = append(syms, fmt.Sprintf("%s (%s)", s.Name, detail))
		}
		meds := make([]string, 0, len(in.Medications))
		for _, m := range in.Medications {
			detail := "not taken"
			if m.Taken {
				detail = "taken"
			}
			if m.TakenTime != "" {
				detail += " at " + m.TakenTime
			}
			if m.EffectNoted != "" {
				detail += ", effect: " + m.EffectNoted
			}
			meds = append(meds, fmt.Sprintf("%s (%s)", m.Name, detail))
		}
		relief := "No"
		if in.ReliefNoted {
			relief = "Yes - " + in.ReliefDetails
		}

		var b strings.Builder
		fmt.Fprintf(&b, "--- Call %d at %s ---\n", i+1, in.Timestamp.In(loc).Format("2/1/2006, 3:04:05 pm"))
		fmt.Fprintf(&b, "Patient said (English): %s\n", in.UserMessageEnglish)
		fmt.Fprintf(&b, "Symptoms: %s\n", orNone(syms))
		fmt.Fprintf(&b, "Medications: %s\n", orNone(meds))
		fmt.Fprintf(&b, "Relief noted: %s\n", relief)
		fmt.Fprintf(&b, "Severity: %d/10\n", in.SeverityScore)
		fmt.Fprintf(&b, "AI Summary: %s", in.AISummary)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

// RunReport describes one batch run.
type RunReport struct {
	Period    pkg.PeriodType `json:"period"`
	Start     time.Time      `json:"period_start"`
	End       time.Time      `json:"period_end"`
	Users     int            `json:"users"`
	Generated int            `json:"generated"`
	Skipped   int            `json:"skipped"`
	Empty     int            `json:"empty"`
	Failed    int            `json:"failed"`
}

// SummaryRunner generates one period's summaries for every user with
// activity in the window. Runs of the same period type never overlap.
type SummaryRunner struct {
	Store      db.Store
	Summarizer *Summarizer
	Log        *zap.SugaredLogger
	Location   *time.Location
	Now        func() time.Time

	mu      sync.Mutex
	running map[pkg.PeriodType]bool
}

// NewSummaryRunner constructs a runner.
func NewSummaryRunner(store db.Store, s *Summarizer, loc *time.Location, log *zap.SugaredLogger) *SummaryRunner {
	return &SummaryRunner{Store: store, Summarizer: s, Location: loc, Log: log}
}

func (r *SummaryRunner) acquire(p pkg.PeriodType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running == nil {
		r.running = map[pkg.PeriodType]bool{}
	}
	if r.running[p] {
		return false
	}
	r.running[p] = true
	return true
}

func (r *SummaryRunner) release(p pkg.PeriodType) {
	r.mu.Lock()
	delete(r.running, p)
	r.mu.Unlock()
}

// Run generates the summaries for the window ending now. A failure for one
// user is logged and counted; it does not stop the batch.
func (r *SummaryRunner) Run(ctx context.Context, period pkg.PeriodType) (RunReport, error) {
	if !r.acquire(period) {
		return RunReport{Period: period}, ErrRunInProgress
	}
	defer r.release(period)

	log := r.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	start, end, err := Window(period, now, r.Location)
	if err != nil {
		return RunReport{Period: period}, err
	}
	report := RunReport{Period: period, Start: start, End: end}

	phones, err := r.Store.UsersWithInteractionsBetween(ctx, start, end)
	if err != nil {
		return report, fmt.Errorf("list users for %s summary: %w", period, err)
	}
	report.Users = len(phones)
	log.Infow("summary run started", "period", period, "start", start, "end", end, "users", len(phones))

	for _, phone := range phones {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rec, err := r.Store.Get(ctx, phone)
		if err != nil {
			log.Errorw("load record failed", "period", period, "phone", phone, "error", err)
			report.Failed++
			continue
		}
		if rec.HasSummary(period, start) {
			report.Skipped++
			continue
		}
		sum, err := r.Summarizer.Generate(ctx, rec, period, start, end)
		if err != nil {
			log.Errorw("summary generation failed", "period", period, "phone", phone, "error", err)
			report.Failed++
			continue
		}
		if sum == nil {
			report.Empty++
			continue
		}
		if err := r.Store.AppendSummary(ctx, phone, *sum); err != nil {
			log.Errorw("save summary failed", "period", period, "phone", phone, "error", err)
			report.Failed++
			continue
		}
		report.Generated++
	}

	log.Infow("summary run finished", "period", period, "generated", report.Generated,
		"skipped", report.Skipped, "empty", report.Empty, "failed", report.Failed)
	return report, nil
}
